package audit

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pangolindex/merkledrop-go/pkg/airdrop"
	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/memory"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/storetest"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// seed stores a campaign, letting tamper rewrite records before they are saved.
func seed(t *testing.T, batchID string, n int, tamper func(records []*types.AirdropRecord)) (persistence.IRecordStore, [32]byte) {
	t.Helper()
	manifest, records := storetest.BuildCampaign(t, batchID, n)
	if tamper != nil {
		tamper(records)
	}

	store := memory.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	for _, r := range records {
		require.NoError(t, store.SaveRecord(context.Background(), batchID, r))
	}
	require.NoError(t, store.SaveCampaign(context.Background(), manifest))

	root, err := airdrop.DecodeHash(manifest.Root)
	require.NoError(t, err)
	return store, root
}

func TestAudit_CleanCampaign(t *testing.T) {
	for _, workers := range []int{0, 1, 4, 32} {
		store, root := seed(t, "clean", 25, nil)

		report, err := Audit(context.Background(), store, "clean", root, workers)
		require.NoError(t, err)
		assert.True(t, report.OK(), "workers=%d", workers)
		assert.Equal(t, 25, report.Records)
		assert.Equal(t, 25, report.Valid)
		assert.Empty(t, report.Invalid)
		assert.Empty(t, report.Malformed)
		assert.True(t, report.RootMatches())
		assert.True(t, report.TotalsMatch())
		assert.Equal(t, report.ManifestTotalAmount, report.TotalAmount)
	}
}

func TestAudit_UntrustedRoot(t *testing.T) {
	store, _ := seed(t, "wrong-root", 4, nil)
	other := common.HexToHash("0xa99168d65703044b47554952229de9e52fe8a5486e095ea150c0501b29de0a32")

	report, err := Audit(context.Background(), store, "wrong-root", other, 2)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.False(t, report.RootMatches())
	assert.Equal(t, 0, report.Valid)
	assert.Len(t, report.Invalid, 4)
	assert.True(t, report.TotalsMatch())
}

func TestAudit_TamperedRecords(t *testing.T) {
	var inflated, broken, relabeled string
	store, root := seed(t, "tampered", 6, func(records []*types.AirdropRecord) {
		records[1].Amount = "999999"
		inflated = records[1].Address

		records[3].Proof = append([]string{"0x12"}, records[3].Proof[1:]...)
		broken = records[3].Address

		records[5].Root = "0x0000000000000000000000000000000000000000000000000000000000000001"
		relabeled = records[5].Address
	})

	report, err := Audit(context.Background(), store, "tampered", root, 3)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, 3, report.Valid)

	require.Len(t, report.Malformed, 1)
	assert.Equal(t, broken, report.Malformed[0].Address)
	assert.Contains(t, report.Malformed[0].Reason, "MalformedProof")

	require.Len(t, report.Invalid, 2)
	invalid := map[string]string{}
	for _, f := range report.Invalid {
		invalid[f.Address] = f.Reason
	}
	assert.Equal(t, "proof does not match trusted root", invalid[inflated])
	assert.Contains(t, invalid[relabeled], "record carries root")

	// the inflated amount no longer adds up to the manifest total
	assert.False(t, report.TotalsMatch())
	assert.True(t, report.RootMatches())
}

func TestAudit_MissingRecord(t *testing.T) {
	ctx := context.Background()
	manifest, records := storetest.BuildCampaign(t, "partial", 5)
	store := memory.NewMemoryStore()
	defer func() { _ = store.Close() }()
	for _, r := range records[:4] {
		require.NoError(t, store.SaveRecord(ctx, "partial", r))
	}
	require.NoError(t, store.SaveCampaign(ctx, manifest))

	root, err := airdrop.DecodeHash(manifest.Root)
	require.NoError(t, err)
	report, err := Audit(ctx, store, "partial", root, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Valid)
	assert.False(t, report.TotalsMatch())
	assert.False(t, report.OK())
}

func TestAudit_SupplyCap(t *testing.T) {
	// BuildCampaign(3) allocates 100 + 200 + 300
	store, root := seed(t, "capped", 3, nil)

	report, err := NewAuditor(store, &Options{Workers: 2, SupplyCap: uint256.NewInt(600)}, nil).Audit(context.Background(), "capped", root)
	require.NoError(t, err)
	assert.True(t, report.WithinSupply)
	assert.Equal(t, "600", report.SupplyCap)
	assert.True(t, report.OK())

	report, err = NewAuditor(store, &Options{SupplyCap: uint256.NewInt(599)}, nil).Audit(context.Background(), "capped", root)
	require.NoError(t, err)
	assert.False(t, report.WithinSupply)
	assert.False(t, report.OK())
}

func TestAudit_Errors(t *testing.T) {
	store, root := seed(t, "exists", 3, nil)

	_, err := Audit(context.Background(), store, "missing", root, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Audit(ctx, store, "exists", root, 1)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, store.Close())
	_, err = Audit(context.Background(), store, "exists", root, 1)
	require.ErrorIs(t, err, persistence.ErrClosed)
}
