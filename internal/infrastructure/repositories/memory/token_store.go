package memory

import (
	"context"
	"sync"
	"time"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"
	"relaycast/pkg/utils"
)

// TokenStore holds VIP grant tokens in memory. Expiry is checked when a token
// is consumed rather than by a background sweep; expired entries are dropped
// on touch.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.VipToken
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{
		tokens: make(map[string]*domain.VipToken),
		ttl:    ttl,
		now:    time.Now,
	}
}

var _ ports.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) Issue(ctx context.Context, room domain.RoomName) (*domain.VipToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := &domain.VipToken{
		Token:    utils.GenerateToken(),
		Room:     room,
		IssuedAt: s.now(),
	}
	s.tokens[token.Token] = token
	return token, nil
}

func (s *TokenStore) Consume(ctx context.Context, token string, room domain.RoomName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return domain.ErrInvalidOrExhausted
	}
	if s.now().Sub(entry.IssuedAt) > s.ttl {
		delete(s.tokens, token)
		return domain.ErrInvalidOrExhausted
	}
	if entry.Room != room {
		return domain.ErrInvalidOrExhausted
	}
	delete(s.tokens, token)
	return nil
}

// SetClock overrides the store's clock; used by tests to exercise expiry.
func (s *TokenStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
