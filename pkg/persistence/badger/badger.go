package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyPrefixCampaign    = "campaign:"
	keyPrefixRecord      = "record:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	// concurrent writers of the same key can fail commit with ErrConflict
	maxConflictRetries = 5
)

// BadgerStore is a disk-backed IRecordStore using Badger.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IRecordStore = (*BadgerStore)(nil)

// NewBadgerStore opens a Badger database at dataPath with SyncWrites enabled.
// A background goroutine runs value log GC until Close.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger record store initialized", "path", absPath)

	return bs, nil
}

func campaignKey(batchID string) []byte {
	return []byte(keyPrefixCampaign + batchID)
}

func recordPrefix(batchID string) []byte {
	return []byte(keyPrefixRecord + batchID + ":")
}

func recordKey(batchID, address string) []byte {
	return append(recordPrefix(batchID), address...)
}

// initSchema initializes or validates the schema version
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// get copies the value at key, returning nil if it doesn't exist.
func get(txn *badgerdb.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// update runs fn in a read-write transaction, retrying when the commit conflicts
// with a concurrent writer.
func (b *BadgerStore) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = b.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		b.logger.Sugar().Debugw("Retrying conflicting badger transaction", "attempt", attempt+1)
	}
	return err
}

func (b *BadgerStore) SaveCampaign(ctx context.Context, manifest *types.CampaignManifest) error {
	if err := persistence.ValidateManifest(manifest); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalManifest(manifest)
	if err != nil {
		return err
	}

	key := campaignKey(manifest.BatchID)
	return b.update(ctx, func(txn *badgerdb.Txn) error {
		existing, err := get(txn, key)
		if err != nil {
			return fmt.Errorf("failed to read campaign: %w", err)
		}
		if existing != nil {
			stored, err := persistence.UnmarshalManifest(existing)
			if err != nil {
				return err
			}
			skip, err := persistence.CheckCampaignWrite(stored, manifest)
			if err != nil || skip {
				return err
			}
		}
		return txn.Set(key, data)
	})
}

func (b *BadgerStore) LoadCampaign(_ context.Context, batchID string) (*types.CampaignManifest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = get(txn, campaignKey(batchID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalManifest(data)
}

func (b *BadgerStore) ListCampaigns(_ context.Context) ([]*types.CampaignManifest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	campaigns := make([]*types.CampaignManifest, 0)
	err := b.iterate([]byte(keyPrefixCampaign), func(key, val []byte) {
		m, err := persistence.UnmarshalManifest(val)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal CampaignManifest, skipping", "key", string(key), "error", err)
			return
		}
		campaigns = append(campaigns, m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	persistence.SortCampaigns(campaigns)
	return campaigns, nil
}

func (b *BadgerStore) SaveRecord(ctx context.Context, batchID string, record *types.AirdropRecord) error {
	if err := persistence.ValidateBatchID(batchID); err != nil {
		return err
	}
	address, err := persistence.RecordKey(record)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalRecord(record)
	if err != nil {
		return err
	}

	key := recordKey(batchID, address)
	return b.update(ctx, func(txn *badgerdb.Txn) error {
		existing, err := get(txn, key)
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		if existing != nil {
			stored, err := persistence.UnmarshalRecord(existing)
			if err != nil {
				return err
			}
			skip, err := persistence.CheckRecordWrite(stored, record)
			if err != nil || skip {
				return err
			}
		}
		return txn.Set(key, data)
	})
}

func (b *BadgerStore) LoadRecord(_ context.Context, batchID string, address common.Address) (*types.AirdropRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = get(txn, recordKey(batchID, persistence.AddressKey(address)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalRecord(data)
}

func (b *BadgerStore) ListRecords(_ context.Context, batchID string) ([]*types.AirdropRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*types.AirdropRecord, 0)
	err := b.iterate(recordPrefix(batchID), func(key, val []byte) {
		r, err := persistence.UnmarshalRecord(val)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal AirdropRecord, skipping", "key", string(key), "error", err)
			return
		}
		records = append(records, r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	persistence.SortRecords(records)
	return records, nil
}

func (b *BadgerStore) iterate(prefix []byte, fn func(key, val []byte)) error {
	return b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			fn(item.KeyCopy(nil), val)
		}
		return nil
	})
}

// Close stops GC and closes the database. Idempotent.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger record store closed")
	return nil
}

// HealthCheck verifies the database is readable
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
