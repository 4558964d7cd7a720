package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// MemoryStore is an in-memory implementation of IRecordStore.
// Used by tests and dry runs; all data is lost when the process exits.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	campaigns map[string]*types.CampaignManifest
	// batch ID -> address key -> record
	records map[string]map[string]*types.AirdropRecord

	closed bool
}

var _ persistence.IRecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]*types.CampaignManifest),
		records:   make(map[string]map[string]*types.AirdropRecord),
	}
}

func (m *MemoryStore) SaveCampaign(_ context.Context, manifest *types.CampaignManifest) error {
	if err := persistence.ValidateManifest(manifest); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	skip, err := persistence.CheckCampaignWrite(m.campaigns[manifest.BatchID], manifest)
	if err != nil || skip {
		return err
	}
	m.campaigns[manifest.BatchID] = persistence.CopyManifest(manifest)
	return nil
}

func (m *MemoryStore) LoadCampaign(_ context.Context, batchID string) (*types.CampaignManifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	return persistence.CopyManifest(m.campaigns[batchID]), nil
}

func (m *MemoryStore) ListCampaigns(_ context.Context) ([]*types.CampaignManifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	out := make([]*types.CampaignManifest, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, persistence.CopyManifest(c))
	}
	persistence.SortCampaigns(out)
	return out, nil
}

func (m *MemoryStore) SaveRecord(_ context.Context, batchID string, record *types.AirdropRecord) error {
	if err := persistence.ValidateBatchID(batchID); err != nil {
		return err
	}
	key, err := persistence.RecordKey(record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	batch, ok := m.records[batchID]
	if !ok {
		batch = make(map[string]*types.AirdropRecord)
		m.records[batchID] = batch
	}
	skip, err := persistence.CheckRecordWrite(batch[key], record)
	if err != nil || skip {
		return err
	}
	batch[key] = persistence.CopyRecord(record)
	return nil
}

func (m *MemoryStore) LoadRecord(_ context.Context, batchID string, address common.Address) (*types.AirdropRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	return persistence.CopyRecord(m.records[batchID][persistence.AddressKey(address)]), nil
}

func (m *MemoryStore) ListRecords(_ context.Context, batchID string) ([]*types.AirdropRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	batch := m.records[batchID]
	out := make([]*types.AirdropRecord, 0, len(batch))
	for _, r := range batch {
		out = append(out, persistence.CopyRecord(r))
	}
	persistence.SortRecords(out)
	return out, nil
}

// Close marks the store closed. Idempotent.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
