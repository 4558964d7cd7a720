package memory

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.RunStoreTests(t, func(t *testing.T) persistence.IRecordStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_DeepCopy(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	defer func() { _ = ms.Close() }()

	manifest, records := storetest.BuildCampaign(t, "copies", 2)
	require.NoError(t, persistence.SaveAll(ctx, ms, manifest, records, 1))

	// Mutating the saved input must not change stored data
	original := records[0].Proof[0]
	records[0].Proof[0] = "0xdeadbeef"
	manifest.Root = "0x00"

	loaded, err := ms.LoadRecord(ctx, "copies", common.HexToAddress(records[0].Address))
	require.NoError(t, err)
	assert.Equal(t, original, loaded.Proof[0])

	// Mutating loaded data must not change stored data
	loaded.Amount = "0"
	again, err := ms.LoadRecord(ctx, "copies", common.HexToAddress(records[0].Address))
	require.NoError(t, err)
	assert.NotEqual(t, "0", again.Amount)

	campaign, err := ms.LoadCampaign(ctx, "copies")
	require.NoError(t, err)
	assert.NotEqual(t, "0x00", campaign.Root)
}
