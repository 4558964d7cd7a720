// Package file stores campaigns as plain JSON files, one claim file per recipient:
//
//	<dir>/<batch id>/campaign.json
//	<dir>/<batch id>/<address>.json
//
// Claim files can be served as-is to recipients.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

const (
	campaignFile = "campaign.json"
	fileExt      = ".json"
)

type FileStore struct {
	dir    string
	logger *zap.Logger

	// writeMu serializes check-then-write so write-once holds within a process
	writeMu sync.Mutex
	mu      sync.RWMutex
	closed  bool
}

var _ persistence.IRecordStore = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("output directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", absDir)
	}

	logger.Sugar().Infow("File record store initialized", "path", absDir)
	return &FileStore{dir: absDir, logger: logger}, nil
}

// Dir is the root output directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// RecordPath is where the claim file of an address is written.
func (f *FileStore) RecordPath(batchID string, address common.Address) string {
	return filepath.Join(f.dir, batchID, persistence.AddressKey(address)+fileExt)
}

func (f *FileStore) campaignPath(batchID string) string {
	return filepath.Join(f.dir, batchID, campaignFile)
}

// readFile returns nil data if the file doesn't exist.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

// writeFile writes through a temp file and rename so readers never see partial JSON.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrapf(err, "failed to chmod %s", tmpName)
	}
	return errors.Wrapf(os.Rename(tmpName, path), "failed to rename into %s", path)
}

func (f *FileStore) SaveCampaign(_ context.Context, manifest *types.CampaignManifest) error {
	if err := persistence.ValidateManifest(manifest); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalManifest(manifest)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	path := f.campaignPath(manifest.BatchID)
	existing, err := readFile(path)
	if err != nil {
		return err
	}
	if existing != nil {
		stored, err := persistence.UnmarshalManifest(existing)
		if err != nil {
			return errors.Wrapf(err, "corrupt campaign file %s", path)
		}
		skip, err := persistence.CheckCampaignWrite(stored, manifest)
		if err != nil || skip {
			return err
		}
	}
	return writeFile(path, data)
}

func (f *FileStore) LoadCampaign(_ context.Context, batchID string) (*types.CampaignManifest, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, persistence.ErrClosed
	}
	if persistence.ValidateBatchID(batchID) != nil {
		return nil, nil
	}

	data, err := readFile(f.campaignPath(batchID))
	if err != nil || data == nil {
		return nil, err
	}
	return persistence.UnmarshalManifest(data)
}

func (f *FileStore) ListCampaigns(_ context.Context) ([]*types.CampaignManifest, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, persistence.ErrClosed
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", f.dir)
	}

	campaigns := make([]*types.CampaignManifest, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := f.campaignPath(entry.Name())
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		m, err := persistence.UnmarshalManifest(data)
		if err != nil {
			f.logger.Sugar().Warnw("Failed to unmarshal CampaignManifest, skipping", "path", path, "error", err)
			continue
		}
		campaigns = append(campaigns, m)
	}

	persistence.SortCampaigns(campaigns)
	return campaigns, nil
}

func (f *FileStore) SaveRecord(_ context.Context, batchID string, record *types.AirdropRecord) error {
	if err := persistence.ValidateBatchID(batchID); err != nil {
		return err
	}
	address, err := persistence.RecordKey(record)
	if err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalRecord(record)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	path := filepath.Join(f.dir, batchID, address+fileExt)
	existing, err := readFile(path)
	if err != nil {
		return err
	}
	if existing != nil {
		stored, err := persistence.UnmarshalRecord(existing)
		if err != nil {
			return errors.Wrapf(err, "corrupt claim file %s", path)
		}
		skip, err := persistence.CheckRecordWrite(stored, record)
		if err != nil || skip {
			return err
		}
	}
	return writeFile(path, data)
}

func (f *FileStore) LoadRecord(_ context.Context, batchID string, address common.Address) (*types.AirdropRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, persistence.ErrClosed
	}
	if persistence.ValidateBatchID(batchID) != nil {
		return nil, nil
	}

	data, err := readFile(f.RecordPath(batchID, address))
	if err != nil || data == nil {
		return nil, err
	}
	return persistence.UnmarshalRecord(data)
}

func (f *FileStore) ListRecords(_ context.Context, batchID string) ([]*types.AirdropRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*types.AirdropRecord, 0)
	if persistence.ValidateBatchID(batchID) != nil {
		return records, nil
	}

	batchDir := filepath.Join(f.dir, batchID)
	entries, err := os.ReadDir(batchDir)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", batchDir)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == campaignFile || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(batchDir, name)
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		rec, err := persistence.UnmarshalRecord(data)
		if err != nil {
			f.logger.Sugar().Warnw("Failed to unmarshal AirdropRecord, skipping", "path", path, "error", err)
			continue
		}
		records = append(records, rec)
	}

	persistence.SortRecords(records)
	return records, nil
}

// Close marks the store closed. Idempotent.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// HealthCheck verifies the output directory exists and is writable.
func (f *FileStore) HealthCheck() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return persistence.ErrClosed
	}

	info, err := os.Stat(f.dir)
	if err != nil {
		return errors.Wrapf(err, "output directory %s is not accessible", f.dir)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", f.dir)
	}
	probe, err := os.CreateTemp(f.dir, ".health-*")
	if err != nil {
		return errors.Wrapf(err, "output directory %s is not writable", f.dir)
	}
	_ = probe.Close()
	return os.Remove(probe.Name())
}
