package ports

import (
	"context"

	"relaycast/internal/core/domain"
)

// RoomRepository is the durable store behind the room directory. The
// directory service is the only writer; implementations must make Put atomic
// per record so memory and disk never diverge from the caller's perspective.
type RoomRepository interface {
	Get(ctx context.Context, name domain.RoomName) (*domain.RoomRecord, error)
	Put(ctx context.Context, record *domain.RoomRecord) error
	Delete(ctx context.Context, name domain.RoomName) error
	List(ctx context.Context) ([]*domain.RoomRecord, error)
}

// TokenStore holds short-lived single-use VIP grant tokens.
type TokenStore interface {
	Issue(ctx context.Context, room domain.RoomName) (*domain.VipToken, error)
	// Consume validates and atomically removes a token. It fails for unknown,
	// expired, already-consumed, or wrong-room tokens.
	Consume(ctx context.Context, token string, room domain.RoomName) error
}
