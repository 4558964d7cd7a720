// Package storetest holds the behaviour every IRecordStore backend must share.
package storetest

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangolindex/merkledrop-go/pkg/airdrop"
	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.IRecordStore

// BuildCampaign generates a real campaign of n recipients.
func BuildCampaign(t *testing.T, batchID string, n int) (*types.CampaignManifest, []*types.AirdropRecord) {
	t.Helper()

	allocs := make([]types.Allocation, n)
	for i := range allocs {
		allocs[i] = types.Allocation{
			Address: common.BigToAddress(big.NewInt(int64(0x1000 + i))),
			Amount:  uint256.NewInt(uint64(100 * (i + 1))),
		}
	}
	b, err := airdrop.NewBuilder(nil, nil)
	require.NoError(t, err)
	res, err := b.Build(batchID, allocs)
	require.NoError(t, err)
	return res.Manifest("hardhat", 1700000000), res.Records()
}

// RunStoreTests runs the shared IRecordStore behaviour against a backend.
func RunStoreTests(t *testing.T, newStore Factory) {
	open := func(t *testing.T) persistence.IRecordStore {
		t.Helper()
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	ctx := context.Background()

	t.Run("SaveAndLoadCampaign", func(t *testing.T) {
		s := open(t)
		manifest, _ := BuildCampaign(t, "campaign-a", 3)

		require.NoError(t, s.SaveCampaign(ctx, manifest))
		loaded, err := s.LoadCampaign(ctx, manifest.BatchID)
		require.NoError(t, err)
		if diff := cmp.Diff(manifest, loaded); diff != "" {
			t.Errorf("campaign mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("LoadCampaignNotFound", func(t *testing.T) {
		s := open(t)
		loaded, err := s.LoadCampaign(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("CampaignWriteOnce", func(t *testing.T) {
		s := open(t)
		manifest, _ := BuildCampaign(t, "campaign-b", 2)
		require.NoError(t, s.SaveCampaign(ctx, manifest))

		regenerated := persistence.CopyManifest(manifest)
		regenerated.CreatedAt++
		require.NoError(t, s.SaveCampaign(ctx, regenerated))

		loaded, err := s.LoadCampaign(ctx, manifest.BatchID)
		require.NoError(t, err)
		assert.Equal(t, manifest.CreatedAt, loaded.CreatedAt)

		changed := persistence.CopyManifest(manifest)
		changed.Root = "0x0000000000000000000000000000000000000000000000000000000000000001"
		require.ErrorIs(t, s.SaveCampaign(ctx, changed), persistence.ErrCampaignConflict)
	})

	t.Run("ListCampaignsSorted", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"c-3", "c-1", "c-2"} {
			manifest, _ := BuildCampaign(t, id, 1)
			require.NoError(t, s.SaveCampaign(ctx, manifest))
		}
		list, err := s.ListCampaigns(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "c-1", list[0].BatchID)
		assert.Equal(t, "c-2", list[1].BatchID)
		assert.Equal(t, "c-3", list[2].BatchID)
	})

	t.Run("InvalidCampaign", func(t *testing.T) {
		s := open(t)
		require.Error(t, s.SaveCampaign(ctx, nil))
		require.Error(t, s.SaveCampaign(ctx, &types.CampaignManifest{BatchID: "../escape"}))
	})

	t.Run("SaveAndLoadRecord", func(t *testing.T) {
		s := open(t)
		_, records := BuildCampaign(t, "records-a", 5)

		for _, r := range records {
			require.NoError(t, s.SaveRecord(ctx, "records-a", r))
		}
		for _, r := range records {
			loaded, err := s.LoadRecord(ctx, "records-a", common.HexToAddress(r.Address))
			require.NoError(t, err)
			if diff := cmp.Diff(r, loaded); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		}
	})

	t.Run("LoadRecordNotFound", func(t *testing.T) {
		s := open(t)
		loaded, err := s.LoadRecord(ctx, "records-none", common.HexToAddress("0x01"))
		require.NoError(t, err)
		assert.Nil(t, loaded)

		list, err := s.ListRecords(ctx, "records-none")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("RecordAddressIsCaseInsensitive", func(t *testing.T) {
		s := open(t)
		_, records := BuildCampaign(t, "records-case", 1)
		upper := persistence.CopyRecord(records[0])
		upper.Address = common.HexToAddress(records[0].Address).Hex()

		require.NoError(t, s.SaveRecord(ctx, "records-case", upper))
		loaded, err := s.LoadRecord(ctx, "records-case", common.HexToAddress(records[0].Address))
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, records[0].Amount, loaded.Amount)
	})

	t.Run("RecordWriteOnce", func(t *testing.T) {
		s := open(t)
		_, records := BuildCampaign(t, "records-b", 2)
		require.NoError(t, s.SaveRecord(ctx, "records-b", records[0]))
		require.NoError(t, s.SaveRecord(ctx, "records-b", persistence.CopyRecord(records[0])))

		changed := persistence.CopyRecord(records[0])
		changed.Amount = "1"
		require.ErrorIs(t, s.SaveRecord(ctx, "records-b", changed), persistence.ErrRecordConflict)

		loaded, err := s.LoadRecord(ctx, "records-b", common.HexToAddress(records[0].Address))
		require.NoError(t, err)
		assert.Equal(t, records[0].Amount, loaded.Amount)
	})

	t.Run("InvalidRecord", func(t *testing.T) {
		s := open(t)
		_, records := BuildCampaign(t, "records-c", 1)
		require.Error(t, s.SaveRecord(ctx, "records-c", nil))
		require.Error(t, s.SaveRecord(ctx, "", records[0]))

		bad := persistence.CopyRecord(records[0])
		bad.Address = "0x1234"
		require.ErrorIs(t, s.SaveRecord(ctx, "records-c", bad), types.ErrInvalidAddress)
	})

	t.Run("BatchesAreIsolated", func(t *testing.T) {
		s := open(t)
		_, first := BuildCampaign(t, "iso-1", 2)
		_, second := BuildCampaign(t, "iso-12", 3)
		for _, r := range first {
			require.NoError(t, s.SaveRecord(ctx, "iso-1", r))
		}
		for _, r := range second {
			require.NoError(t, s.SaveRecord(ctx, "iso-12", r))
		}

		list, err := s.ListRecords(ctx, "iso-1")
		require.NoError(t, err)
		assert.Len(t, list, 2)
		list, err = s.ListRecords(ctx, "iso-12")
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("SaveAll", func(t *testing.T) {
		s := open(t)
		manifest, records := BuildCampaign(t, "save-all", 37)

		require.NoError(t, persistence.SaveAll(ctx, s, manifest, records, 4))
		// idempotent
		require.NoError(t, persistence.SaveAll(ctx, s, manifest, records, 4))

		list, err := s.ListRecords(ctx, "save-all")
		require.NoError(t, err)
		require.Len(t, list, 37)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].Address, list[i].Address)
		}

		loaded, err := s.LoadCampaign(ctx, "save-all")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, manifest.Root, loaded.Root)
	})

	t.Run("SaveAllRejectsConflictingCampaign", func(t *testing.T) {
		s := open(t)
		manifest, records := BuildCampaign(t, "save-conflict", 4)
		require.NoError(t, persistence.SaveAll(ctx, s, manifest, records, 2))

		other, otherRecords := BuildCampaign(t, "save-conflict", 5)
		err := persistence.SaveAll(ctx, s, other, otherRecords, 2)
		require.ErrorIs(t, err, persistence.ErrCampaignConflict)

		list, err := s.ListRecords(ctx, "save-conflict")
		require.NoError(t, err)
		assert.Len(t, list, 4)
	})

	t.Run("SaveAllLeafCountMismatch", func(t *testing.T) {
		s := open(t)
		manifest, records := BuildCampaign(t, "save-short", 3)
		require.Error(t, persistence.SaveAll(ctx, s, manifest, records[:2], 2))
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		s := open(t)
		_, records := BuildCampaign(t, "concurrent", 20)

		var wg sync.WaitGroup
		errs := make(chan error, len(records)*2)
		for i := 0; i < 2; i++ {
			for _, r := range records {
				wg.Add(1)
				go func(r *types.AirdropRecord) {
					defer wg.Done()
					errs <- s.SaveRecord(ctx, "concurrent", r)
				}(r)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		list, err := s.ListRecords(ctx, "concurrent")
		require.NoError(t, err)
		assert.Len(t, list, 20)
	})

	t.Run("Close", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.HealthCheck())
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		require.ErrorIs(t, s.HealthCheck(), persistence.ErrClosed)
		_, err := s.LoadCampaign(ctx, "any")
		require.ErrorIs(t, err, persistence.ErrClosed)
		_, err = s.ListRecords(ctx, "any")
		require.ErrorIs(t, err, persistence.ErrClosed)

		_, records := BuildCampaign(t, "closed", 1)
		require.ErrorIs(t, s.SaveRecord(ctx, "closed", records[0]), persistence.ErrClosed)
	})
}
