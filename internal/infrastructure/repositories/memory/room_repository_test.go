package memory

import (
	"context"
	"testing"

	"relaycast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepositoryDoesNotAliasStoredState(t *testing.T) {
	repo := NewRoomRepository()
	ctx := context.Background()

	record := &domain.RoomRecord{
		Name:      "room",
		VipRoster: map[string]string{"alice": "Alice"},
	}
	require.NoError(t, repo.Put(ctx, record))

	// mutating the caller's copy must not reach the store
	record.VipRoster["mallory"] = "Mallory"

	got, err := repo.Get(ctx, "room")
	require.NoError(t, err)
	assert.NotContains(t, got.VipRoster, "mallory")

	// and mutating a read copy must not either
	got.VipRoster["eve"] = "Eve"
	again, err := repo.Get(ctx, "room")
	require.NoError(t, err)
	assert.NotContains(t, again.VipRoster, "eve")
}

func TestRoomRepositoryNotFound(t *testing.T) {
	repo := NewRoomRepository()

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), domain.ErrNotFound)
}

func TestRoomRepositoryListSorted(t *testing.T) {
	repo := NewRoomRepository()
	ctx := context.Background()

	for _, name := range []domain.RoomName{"zulu", "alpha", "mike"} {
		require.NoError(t, repo.Put(ctx, &domain.RoomRecord{Name: name}))
	}

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.RoomName("alpha"), records[0].Name)
	assert.Equal(t, domain.RoomName("zulu"), records[2].Name)
}
