package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"relaycast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepository(t *testing.T) *RoomRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "rooms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRecord(name domain.RoomName) *domain.RoomRecord {
	return &domain.RoomRecord{
		Name:      name,
		Privacy:   domain.PrivacyPrivate,
		VipRoster: map[string]string{"alice": "Alice"},
		VipCodes:  map[string]*domain.VipCode{"ABCD2345": {MaxUses: 3, UsesLeft: 2, Used: 1}},
		Title:     "Untitled Stream",
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBoltPutGet(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	want := sampleRecord("myroom")
	require.NoError(t, repo.Put(ctx, want))

	got, err := repo.Get(ctx, "myroom")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.VipRoster, got.VipRoster)
	assert.Equal(t, want.VipCodes, got.VipCodes)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestBoltGetMissing(t *testing.T) {
	repo := openTestRepository(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoltPutOverwrites(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	record := sampleRecord("myroom")
	require.NoError(t, repo.Put(ctx, record))

	record.Title = "Evening Show"
	require.NoError(t, repo.Put(ctx, record))

	got, err := repo.Get(ctx, "myroom")
	require.NoError(t, err)
	assert.Equal(t, "Evening Show", got.Title)
}

func TestBoltDelete(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, sampleRecord("myroom")))
	require.NoError(t, repo.Delete(ctx, "myroom"))

	_, err := repo.Get(ctx, "myroom")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "myroom"), domain.ErrNotFound)
}

func TestBoltListSorted(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	for _, name := range []domain.RoomName{"charlie", "alpha", "bravo"} {
		require.NoError(t, repo.Put(ctx, sampleRecord(name)))
	}

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.RoomName("alpha"), records[0].Name)
	assert.Equal(t, domain.RoomName("bravo"), records[1].Name)
	assert.Equal(t, domain.RoomName("charlie"), records[2].Name)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")
	ctx := context.Background()

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, sampleRecord("myroom")))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "myroom")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomName("myroom"), got.Name)
}
