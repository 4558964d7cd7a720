package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// Key layout in Redis
const (
	keyPrefixCampaign    = "merkledrop:campaign:"
	keyPrefixRecord      = "merkledrop:record:"
	keySchemaVersion     = "merkledrop:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index sets for listing (Redis doesn't support prefix iteration natively)
	keySetCampaigns     = "merkledrop:campaigns:index"
	keySetRecordsFormat = "merkledrop:records:%s:index"
)

// RedisStore is an IRecordStore backed by Redis, for campaigns shared between
// machines. Write-once semantics rely on SETNX.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IRecordStore = (*RedisStore)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "fuji:" gives "fuji:merkledrop:campaign:...".
	KeyPrefix string
}

// NewRedisStore connects to Redis and validates the schema version.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis record store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rs, nil
}

func (r *RedisStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisStore) campaignKey(batchID string) string {
	return r.prefixKey(keyPrefixCampaign + batchID)
}

func (r *RedisStore) recordKey(batchID, address string) string {
	return r.prefixKey(keyPrefixRecord + batchID + ":" + address)
}

func (r *RedisStore) recordIndexKey(batchID string) string {
	return r.prefixKey(fmt.Sprintf(keySetRecordsFormat, batchID))
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	set, err := r.client.SetNX(ctx, schemaKey, currentSchemaVersion, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	if set {
		return nil
	}

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// setOnce stores data at key unless a value exists, returning the existing value.
func (r *RedisStore) setOnce(ctx context.Context, key string, data []byte) ([]byte, error) {
	set, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return nil, err
	}
	if set {
		return nil, nil
	}
	existing, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("key %s disappeared during write", key)
	}
	return existing, err
}

func (r *RedisStore) SaveCampaign(ctx context.Context, manifest *types.CampaignManifest) error {
	if err := persistence.ValidateManifest(manifest); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalManifest(manifest)
	if err != nil {
		return err
	}

	existing, err := r.setOnce(ctx, r.campaignKey(manifest.BatchID), data)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	if existing != nil {
		stored, err := persistence.UnmarshalManifest(existing)
		if err != nil {
			return err
		}
		if _, err := persistence.CheckCampaignWrite(stored, manifest); err != nil {
			return err
		}
	}

	if err := r.client.SAdd(ctx, r.prefixKey(keySetCampaigns), manifest.BatchID).Err(); err != nil {
		return fmt.Errorf("failed to index campaign: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadCampaign(ctx context.Context, batchID string) (*types.CampaignManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(ctx, r.campaignKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	return persistence.UnmarshalManifest(data)
}

func (r *RedisStore) ListCampaigns(ctx context.Context) ([]*types.CampaignManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	indexKey := r.prefixKey(keySetCampaigns)
	batchIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign ids: %w", err)
	}

	keys := make([]string, len(batchIDs))
	for i, id := range batchIDs {
		keys[i] = r.campaignKey(id)
	}

	campaigns := make([]*types.CampaignManifest, 0, len(keys))
	err = r.fetch(ctx, indexKey, batchIDs, keys, func(key string, data []byte) {
		m, err := persistence.UnmarshalManifest(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal CampaignManifest, skipping", "key", key, "error", err)
			return
		}
		campaigns = append(campaigns, m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch campaigns: %w", err)
	}

	persistence.SortCampaigns(campaigns)
	return campaigns, nil
}

func (r *RedisStore) SaveRecord(ctx context.Context, batchID string, record *types.AirdropRecord) error {
	if err := persistence.ValidateBatchID(batchID); err != nil {
		return err
	}
	address, err := persistence.RecordKey(record)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalRecord(record)
	if err != nil {
		return err
	}

	existing, err := r.setOnce(ctx, r.recordKey(batchID, address), data)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	if existing != nil {
		stored, err := persistence.UnmarshalRecord(existing)
		if err != nil {
			return err
		}
		if _, err := persistence.CheckRecordWrite(stored, record); err != nil {
			return err
		}
	}

	if err := r.client.SAdd(ctx, r.recordIndexKey(batchID), address).Err(); err != nil {
		return fmt.Errorf("failed to index record: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadRecord(ctx context.Context, batchID string, address common.Address) (*types.AirdropRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(ctx, r.recordKey(batchID, persistence.AddressKey(address))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return persistence.UnmarshalRecord(data)
}

func (r *RedisStore) ListRecords(ctx context.Context, batchID string) ([]*types.AirdropRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	indexKey := r.recordIndexKey(batchID)
	addresses, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list record addresses: %w", err)
	}

	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = r.recordKey(batchID, a)
	}

	records := make([]*types.AirdropRecord, 0, len(keys))
	err = r.fetch(ctx, indexKey, addresses, keys, func(key string, data []byte) {
		rec, err := persistence.UnmarshalRecord(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal AirdropRecord, skipping", "key", key, "error", err)
			return
		}
		records = append(records, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	persistence.SortRecords(records)
	return records, nil
}

// fetch MGETs keys and calls fn for each value. Index members whose key is gone
// are removed from the index.
func (r *RedisStore) fetch(ctx context.Context, indexKey string, members, keys []string, fn func(key string, data []byte)) error {
	if len(keys) == 0 {
		return nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}

	for i, val := range values {
		if val == nil {
			r.client.SRem(ctx, indexKey, members[i])
			continue
		}
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type in record store", "key", keys[i])
			continue
		}
		fn(keys[i], []byte(data))
	}
	return nil
}

// Close closes the Redis client. Idempotent.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis record store closed")
	return nil
}

// HealthCheck pings Redis
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
