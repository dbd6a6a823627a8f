package services

import (
	"sync"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"

	"go.uber.org/zap"
)

type sessionService struct {
	mu       sync.Mutex
	sessions map[domain.RoomName]*domain.RoomSession
	logger   *zap.SugaredLogger
}

func NewSessionService(logger *zap.SugaredLogger) ports.SessionService {
	return &sessionService{
		sessions: make(map[domain.RoomName]*domain.RoomSession),
		logger:   logger,
	}
}

// getOrCreate lazily constructs the session. Caller holds s.mu.
func (s *sessionService) getOrCreate(room domain.RoomName) *domain.RoomSession {
	sess, ok := s.sessions[room]
	if !ok {
		sess = &domain.RoomSession{
			Room:        room,
			StreamTitle: "Untitled Stream",
			Users:       make(map[domain.SocketID]*domain.SessionUser),
		}
		s.sessions[room] = sess
		s.logger.Infow("session created", "room", room)
	}
	return sess
}

func (s *sessionService) Join(room domain.RoomName, id domain.SocketID, name string, isViewer, isVip bool) *domain.RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(room)
	sess.Users[id] = &domain.SessionUser{
		Name:     name,
		IsViewer: isViewer,
		IsVip:    isVip,
	}
	// the first host to join an ownerless room claims control; this is the
	// only automatic ownership assignment
	if !isViewer && sess.OwnerID == "" {
		sess.OwnerID = id
		s.logger.Infow("ownership claimed", "room", room, "owner", id)
	}
	return sess.Snapshot()
}

func (s *sessionService) Leave(room domain.RoomName, id domain.SocketID) (*domain.RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil, false
	}
	if _, ok := sess.Users[id]; !ok {
		return nil, false
	}
	delete(sess.Users, id)
	if sess.OwnerID == id {
		// ownership is released, never transferred automatically
		sess.OwnerID = ""
	}
	if len(sess.Users) == 0 {
		delete(s.sessions, room)
		s.logger.Infow("session destroyed", "room", room)
		return nil, true
	}
	return sess.Snapshot(), false
}

func (s *sessionService) Promote(room domain.RoomName, caller, target domain.SocketID) *domain.RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil
	}
	// owner-only; permitted regardless of lock state
	if sess.OwnerID != caller {
		return sess.Snapshot()
	}
	if _, ok := sess.Users[target]; !ok {
		return sess.Snapshot()
	}
	sess.OwnerID = target
	if u := sess.Users[target]; u.IsViewer {
		u.IsViewer = false
	}
	s.logger.Infow("ownership transferred", "room", room, "from", caller, "to", target)
	return sess.Snapshot()
}

func (s *sessionService) Lock(room domain.RoomName, caller domain.SocketID, locked bool) *domain.RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil
	}
	if sess.OwnerID != caller {
		return sess.Snapshot()
	}
	sess.Locked = locked
	return sess.Snapshot()
}

func (s *sessionService) Kick(room domain.RoomName, caller, target domain.SocketID) (*domain.RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil, false
	}
	if sess.OwnerID != caller || caller == target {
		return sess.Snapshot(), false
	}
	if _, ok := sess.Users[target]; !ok {
		return sess.Snapshot(), false
	}
	delete(sess.Users, target)
	s.logger.Infow("user kicked", "room", room, "target", target)
	return sess.Snapshot(), true
}

func (s *sessionService) SetTitle(room domain.RoomName, caller domain.SocketID, title string) *domain.RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil
	}
	if sess.OwnerID != caller || title == "" {
		return sess.Snapshot()
	}
	sess.StreamTitle = title
	return sess.Snapshot()
}

func (s *sessionService) SetRequestingCall(room domain.RoomName, id domain.SocketID, requesting bool) *domain.RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil
	}
	u, ok := sess.Users[id]
	if !ok {
		return sess.Snapshot()
	}
	u.RequestingCall = requesting
	return sess.Snapshot()
}

func (s *sessionService) Snapshot(room domain.RoomName) (*domain.RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil, false
	}
	return sess.Snapshot(), true
}

func (s *sessionService) IsOwner(room domain.RoomName, id domain.SocketID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	return ok && sess.OwnerID == id && id != ""
}

func (s *sessionService) IsLocked(room domain.RoomName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	return ok && sess.Locked
}

func (s *sessionService) Members(room domain.RoomName) []domain.SocketID {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[room]
	if !ok {
		return nil
	}
	members := make([]domain.SocketID, 0, len(sess.Users))
	for id := range sess.Users {
		members = append(members, id)
	}
	return members
}
