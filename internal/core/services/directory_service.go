package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"
	"relaycast/pkg/utils"
	"relaycast/pkg/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// codeAlphabet excludes visually ambiguous characters (I, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type directoryService struct {
	repo         ports.RoomRepository
	codeLength   int
	codeAttempts int

	// mu serializes all mutations: writes to the durable store never
	// interleave, and a failed write leaves the store untouched because
	// mutations are applied to a clone and only published via Put.
	mu     sync.Mutex
	logger *zap.SugaredLogger
}

func NewDirectoryService(repo ports.RoomRepository, codeLength, codeAttempts int, logger *zap.SugaredLogger) ports.DirectoryService {
	return &directoryService{
		repo:         repo,
		codeLength:   codeLength,
		codeAttempts: codeAttempts,
		logger:       logger,
	}
}

func (s *directoryService) CreateRoom(ctx context.Context, name domain.RoomName, password string, privacy domain.Privacy) (*domain.RoomRecord, error) {
	normalized := domain.RoomName(validation.NormalizeRoomName(string(name)))
	if err := validation.ValidateRoomName(string(normalized)); err != nil {
		return nil, domain.ErrInvalidName
	}
	if privacy != domain.PrivacyPrivate {
		privacy = domain.PrivacyPublic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Get(ctx, normalized); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	record := &domain.RoomRecord{
		Name:      normalized,
		Privacy:   privacy,
		VipRoster: make(map[string]string),
		VipCodes:  make(map[string]*domain.VipCode),
		Title:     "Untitled Stream",
		CreatedAt: time.Now(),
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		record.PasswordHash = string(hash)
	}

	if err := s.repo.Put(ctx, record); err != nil {
		s.logger.Errorw("room claim write failed", "room", normalized, "error", err)
		return nil, err
	}

	s.logger.Infow("room claimed", "room", normalized, "privacy", privacy, "password_set", record.PasswordHash != "")
	return record, nil
}

func (s *directoryService) Authenticate(ctx context.Context, name domain.RoomName, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.repo.Get(ctx, name)
	if err != nil {
		return err
	}
	if record.PasswordHash == "" {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return domain.ErrInvalidPassword
	}
	return nil
}

func (s *directoryService) Get(ctx context.Context, name domain.RoomName) (*domain.RoomRecord, error) {
	return s.repo.Get(ctx, name)
}

func (s *directoryService) List(ctx context.Context) ([]*domain.RoomRecord, error) {
	return s.repo.List(ctx)
}

// update applies fn to a clone of the record and publishes it with a single
// Put. On write failure the published state is unchanged.
func (s *directoryService) update(ctx context.Context, name domain.RoomName, fn func(*domain.RoomRecord) error) (*domain.RoomRecord, error) {
	record, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	next := record.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, next); err != nil {
		s.logger.Errorw("directory write failed, mutation dropped", "room", name, "error", err)
		return nil, err
	}
	return next, nil
}

func (s *directoryService) UpdatePrivacy(ctx context.Context, name domain.RoomName, privacy domain.Privacy) (*domain.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, name, func(r *domain.RoomRecord) error {
		r.Privacy = privacy
		if privacy != domain.PrivacyPrivate {
			// VIP gating requires a private room
			r.VipRequired = false
		}
		return nil
	})
}

func (s *directoryService) UpdateVipRequired(ctx context.Context, name domain.RoomName, required bool) (*domain.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, name, func(r *domain.RoomRecord) error {
		if r.Privacy != domain.PrivacyPrivate {
			required = false
		}
		r.VipRequired = required
		return nil
	})
}

func (s *directoryService) AddVipUser(ctx context.Context, name domain.RoomName, displayName string) (*domain.RoomRecord, error) {
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return nil, domain.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, name, func(r *domain.RoomRecord) error {
		if r.VipRoster == nil {
			r.VipRoster = make(map[string]string)
		}
		r.VipRoster[validation.NormalizeDisplayName(displayName)] = strings.TrimSpace(displayName)
		return nil
	})
}

func (s *directoryService) GenerateVipCode(ctx context.Context, name domain.RoomName, maxUses int) (string, *domain.VipCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.repo.List(ctx)
	if err != nil {
		return "", nil, err
	}

	// the registry cannot change while mu is held, so a collision only
	// needs a fresh candidate, never a fresh List
	var code string
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		candidate := utils.RandomCode(codeAlphabet, s.codeLength)
		if codeExists(all, candidate) {
			continue
		}
		code = candidate
		break
	}
	if code == "" {
		return "", nil, domain.ErrCodeSpaceExhausted
	}

	entry := &domain.VipCode{MaxUses: maxUses}
	if !entry.MultiUse() {
		entry.UsesLeft = maxUses
	}

	record, err := s.update(ctx, name, func(r *domain.RoomRecord) error {
		if r.VipCodes == nil {
			r.VipCodes = make(map[string]*domain.VipCode)
		}
		r.VipCodes[code] = entry
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	s.logger.Infow("vip code generated", "room", name, "max_uses", maxUses)
	return code, record.VipCodes[code], nil
}

func (s *directoryService) RevokeVipCode(ctx context.Context, name domain.RoomName, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.update(ctx, name, func(r *domain.RoomRecord) error {
		if _, ok := r.VipCodes[code]; !ok {
			return domain.ErrNotFound
		}
		delete(r.VipCodes, code)
		return nil
	})
	return err
}

func (s *directoryService) RedeemCode(ctx context.Context, code string, room domain.RoomName) (domain.RoomName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.repo.List(ctx)
	if err != nil {
		return "", err
	}

	var owner domain.RoomName
	for _, record := range all {
		if _, ok := record.VipCodes[code]; ok {
			owner = record.Name
			break
		}
	}
	if owner == "" {
		return "", domain.ErrInvalidOrExhausted
	}
	// the scope check runs before the decrement so a rejected redemption
	// never burns a use of another room's code
	if room != "" && owner != room {
		return "", domain.ErrInvalidOrExhausted
	}

	_, err = s.update(ctx, owner, func(r *domain.RoomRecord) error {
		entry, ok := r.VipCodes[code]
		if !ok {
			return domain.ErrInvalidOrExhausted
		}
		if entry.MultiUse() {
			entry.Used++
			return nil
		}
		if entry.UsesLeft <= 0 {
			return domain.ErrInvalidOrExhausted
		}
		entry.UsesLeft--
		entry.Used++
		return nil
	})
	if err != nil {
		return "", err
	}
	return owner, nil
}

func (s *directoryService) MarkPermanent(ctx context.Context, name domain.RoomName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.update(ctx, name, func(r *domain.RoomRecord) error {
		r.Permanent = true
		return nil
	})
	return err
}

func (s *directoryService) UpdateLiveState(ctx context.Context, name domain.RoomName, live bool, viewerCount int, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.update(ctx, name, func(r *domain.RoomRecord) error {
		r.Live = live
		r.ViewerCount = viewerCount
		if title != "" {
			r.Title = title
		}
		return nil
	})
	return err
}

func codeExists(records []*domain.RoomRecord, code string) bool {
	for _, r := range records {
		if _, ok := r.VipCodes[code]; ok {
			return true
		}
	}
	return false
}
