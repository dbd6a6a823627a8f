package repositories

import (
	"fmt"

	"relaycast/internal/core/ports"
	"relaycast/internal/infrastructure/repositories/bolt"
	"relaycast/internal/infrastructure/repositories/memory"
	redisrepo "relaycast/internal/infrastructure/repositories/redis"
	"relaycast/pkg/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the room repository for the configured backend. Falling back
// to memory is deliberate only for the memory backend; a broken durable
// backend is a startup failure, not a silent downgrade.
type Factory struct {
	roomRepo ports.RoomRepository

	boltRepo    *bolt.RoomRepository
	redisClient *goredis.Client
}

func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	f := &Factory{}

	switch cfg.Directory.Backend {
	case "bolt":
		repo, err := bolt.Open(cfg.Directory.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt directory store: %w", err)
		}
		f.boltRepo = repo
		f.roomRepo = repo
		logger.Infow("using bolt room repository", "path", cfg.Directory.BoltPath)

	case "redis":
		client, err := redisrepo.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis directory store: %w", err)
		}
		f.redisClient = client
		f.roomRepo = redisrepo.NewRoomRepository(client)
		logger.Info("using redis room repository")

	case "memory":
		f.roomRepo = memory.NewRoomRepository()
		logger.Info("using memory room repository")

	default:
		return nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
	}

	return f, nil
}

func (f *Factory) RoomRepository() ports.RoomRepository {
	return f.roomRepo
}

func (f *Factory) Close() error {
	if f.boltRepo != nil {
		return f.boltRepo.Close()
	}
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}
