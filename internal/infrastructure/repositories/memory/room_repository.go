package memory

import (
	"context"
	"sort"
	"sync"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"
)

// RoomRepository keeps the registry in process memory. Records are cloned on
// the way in and out so callers can never alias the stored state.
type RoomRepository struct {
	rooms map[domain.RoomName]*domain.RoomRecord
	mu    sync.RWMutex
}

func NewRoomRepository() ports.RoomRepository {
	return &RoomRepository{
		rooms: make(map[domain.RoomName]*domain.RoomRecord),
	}
}

func (r *RoomRepository) Get(ctx context.Context, name domain.RoomName) (*domain.RoomRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.rooms[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return record.Clone(), nil
}

func (r *RoomRepository) Put(ctx context.Context, record *domain.RoomRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[record.Name] = record.Clone()
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, name domain.RoomName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[name]; !ok {
		return domain.ErrNotFound
	}
	delete(r.rooms, name)
	return nil
}

func (r *RoomRepository) List(ctx context.Context) ([]*domain.RoomRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*domain.RoomRecord, 0, len(r.rooms))
	for _, record := range r.rooms {
		records = append(records, record.Clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}
