package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"

	bbolt "go.etcd.io/bbolt"
)

var roomsBucket = []byte("rooms")

// RoomRepository persists the registry in a single bbolt file. Each Put is
// one transaction, so a failed write leaves the file at the previous record
// state.
type RoomRepository struct {
	db *bbolt.DB
}

func Open(path string) (*RoomRepository, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(roomsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create rooms bucket: %w", err)
	}
	return &RoomRepository{db: db}, nil
}

var _ ports.RoomRepository = (*RoomRepository)(nil)

func (r *RoomRepository) Close() error {
	return r.db.Close()
}

func (r *RoomRepository) Get(ctx context.Context, name domain.RoomName) (*domain.RoomRecord, error) {
	var record *domain.RoomRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(roomsBucket).Get([]byte(name))
		if data == nil {
			return domain.ErrNotFound
		}
		record = &domain.RoomRecord{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *RoomRepository) Put(ctx context.Context, record *domain.RoomRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal room record: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(roomsBucket).Put([]byte(record.Name), data)
	})
}

func (r *RoomRepository) Delete(ctx context.Context, name domain.RoomName) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(roomsBucket)
		if bucket.Get([]byte(name)) == nil {
			return domain.ErrNotFound
		}
		return bucket.Delete([]byte(name))
	})
}

func (r *RoomRepository) List(ctx context.Context) ([]*domain.RoomRecord, error) {
	var records []*domain.RoomRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(roomsBucket).ForEach(func(_, data []byte) error {
			record := &domain.RoomRecord{}
			if err := json.Unmarshal(data, record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}
