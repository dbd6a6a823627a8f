package memory

import (
	"context"
	"testing"
	"time"

	"relaycast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenConsumeOnce(t *testing.T) {
	store := NewTokenStore(15 * time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, "room")
	require.NoError(t, err)

	require.NoError(t, store.Consume(ctx, token.Token, "room"))
	assert.ErrorIs(t, store.Consume(ctx, token.Token, "room"), domain.ErrInvalidOrExhausted)
}

func TestTokenIsRoomScoped(t *testing.T) {
	store := NewTokenStore(15 * time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, "room-a")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Consume(ctx, token.Token, "room-b"), domain.ErrInvalidOrExhausted)

	// a wrong-room attempt must not burn the token
	assert.NoError(t, store.Consume(ctx, token.Token, "room-a"))
}

func TestTokenExpiry(t *testing.T) {
	store := NewTokenStore(15 * time.Minute)
	ctx := context.Background()

	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return issued })

	token, err := store.Issue(ctx, "room")
	require.NoError(t, err)

	store.SetClock(func() time.Time { return issued.Add(16 * time.Minute) })
	assert.ErrorIs(t, store.Consume(ctx, token.Token, "room"), domain.ErrInvalidOrExhausted)
}

func TestUnknownToken(t *testing.T) {
	store := NewTokenStore(15 * time.Minute)

	err := store.Consume(context.Background(), "nope", "room")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExhausted)
}
