// Package factory opens the record store selected in a campaign config.
package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/config"
	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/badger"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/file"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/memory"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/redis"
)

// NewRecordStore opens a store and checks it is healthy.
func NewRecordStore(cfg *config.StoreConfig, logger *zap.Logger) (persistence.IRecordStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store persistence.IRecordStore
		err   error
	)
	switch cfg.Type {
	case config.StoreTypeMemory:
		logger.Sugar().Warnw("Using in-memory record store, records are discarded on exit")
		store = memory.NewMemoryStore()
	case config.StoreTypeFile:
		store, err = file.NewFileStore(cfg.Path, logger)
	case config.StoreTypeBadger:
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger store requires a path")
		}
		store, err = badger.NewBadgerStore(cfg.Path, logger)
	case config.StoreTypeRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis store requires redis settings")
		}
		store, err = redis.NewRedisStore(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
	}

	if err := store.HealthCheck(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s store failed health check: %w", cfg.Type, err)
	}
	return store, nil
}
