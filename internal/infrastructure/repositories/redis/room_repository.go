package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RoomRepository stores each record as a JSON value under a prefixed key,
// with a set index for listing.
type RoomRepository struct {
	client *redis.Client
	prefix string
}

func NewRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RoomRepository{
		client: client,
		prefix: "relaycast:room:",
	}
}

func (r *RoomRepository) roomKey(name domain.RoomName) string {
	return r.prefix + string(name)
}

func (r *RoomRepository) indexKey() string {
	return r.prefix + "index"
}

func (r *RoomRepository) Get(ctx context.Context, name domain.RoomName) (*domain.RoomRecord, error) {
	data, err := r.client.Get(ctx, r.roomKey(name)).Result()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room from redis: %w", err)
	}

	var record domain.RoomRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("unmarshal room record: %w", err)
	}
	return &record, nil
}

func (r *RoomRepository) Put(ctx context.Context, record *domain.RoomRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal room record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.roomKey(record.Name), data, 0)
	pipe.SAdd(ctx, r.indexKey(), string(record.Name))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put room in redis: %w", err)
	}
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, name domain.RoomName) error {
	removed, err := r.client.Del(ctx, r.roomKey(name)).Result()
	if err != nil {
		return fmt.Errorf("delete room from redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrNotFound
	}
	if err := r.client.SRem(ctx, r.indexKey(), string(name)).Err(); err != nil {
		return fmt.Errorf("remove room from index: %w", err)
	}
	return nil
}

func (r *RoomRepository) List(ctx context.Context) ([]*domain.RoomRecord, error) {
	names, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list room index: %w", err)
	}
	sort.Strings(names)

	records := make([]*domain.RoomRecord, 0, len(names))
	for _, name := range names {
		record, err := r.Get(ctx, domain.RoomName(name))
		if err == domain.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
