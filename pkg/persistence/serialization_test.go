package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

func TestUnmarshalRecord_ClaimFile(t *testing.T) {
	data := []byte(`{
  "address": "0xcccccccccccccccccccccccccccccccccccccc03",
  "amount": "300",
  "proof": ["0xdc075fb2132ad7066843b70097b46bb4a02684a2ff5291ae771c01539a8c5efa"],
  "root": "0x805f33176fa4a28a953ab1ef89125278ae35ad4ff362279b4432bbcb357b8225"
}`)

	record, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, "0xcccccccccccccccccccccccccccccccccccccc03", record.Address)
	assert.Equal(t, "300", record.Amount)
	assert.Len(t, record.Proof, 1)

	out, err := MarshalRecord(record)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(out))
}

func TestUnmarshalRecord_MissingProof(t *testing.T) {
	record, err := UnmarshalRecord([]byte(`{"address":"0x01","amount":"1","root":"0x02"}`))
	require.NoError(t, err)
	assert.NotNil(t, record.Proof)
	assert.Empty(t, record.Proof)
}

func TestSerialization_InvalidInput(t *testing.T) {
	_, err := MarshalRecord(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil AirdropRecord")

	_, err = MarshalManifest(nil)
	require.Error(t, err)

	_, err = UnmarshalRecord(nil)
	require.Error(t, err)

	_, err = UnmarshalRecord([]byte(`{"proof": "not a list"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")

	_, err = UnmarshalManifest([]byte(`{"leafCount": "three"}`))
	require.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	m := &types.CampaignManifest{
		BatchID:      "songbird-2022",
		Network:      "songbird",
		Root:         "0xa99168d65703044b47554952229de9e52fe8a5486e095ea150c0501b29de0a32",
		LeafCount:    3,
		TotalAmount:  "600",
		HashFunction: "keccak256",
		LeafOrder:    "input",
		CreatedAt:    1660000000,
	}
	data, err := MarshalManifest(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"batchId":"songbird-2022"`)

	restored, err := UnmarshalManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, restored)
}

func TestValidateBatchID(t *testing.T) {
	valid := []string{"a", "songbird-2022", "batch_1.v2", "3f0c8a6e-7f0e-4a39-9a8e-2a1f3e0a9b11"}
	for _, id := range valid {
		assert.NoError(t, ValidateBatchID(id), id)
	}

	invalid := []string{"", ".", "..", "a/b", "../etc", "a:b", "with space"}
	for _, id := range invalid {
		assert.Error(t, ValidateBatchID(id), id)
	}
}

func TestRecordKey(t *testing.T) {
	key, err := RecordKey(&types.AirdropRecord{Address: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA01"})
	require.NoError(t, err)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01", key)

	_, err = RecordKey(&types.AirdropRecord{Address: "0x1234"})
	require.ErrorIs(t, err, types.ErrInvalidAddress)

	_, err = RecordKey(nil)
	require.Error(t, err)
}

func TestWriteOnceChecks(t *testing.T) {
	rec := &types.AirdropRecord{Address: "0x01", Amount: "1", Proof: []string{"0xaa"}, Root: "0xbb"}

	skip, err := CheckRecordWrite(nil, rec)
	require.NoError(t, err)
	assert.False(t, skip)

	skip, err = CheckRecordWrite(CopyRecord(rec), rec)
	require.NoError(t, err)
	assert.True(t, skip)

	changed := CopyRecord(rec)
	changed.Amount = "2"
	_, err = CheckRecordWrite(changed, rec)
	require.ErrorIs(t, err, ErrRecordConflict)

	m := &types.CampaignManifest{BatchID: "b", Root: "0x01", CreatedAt: 1}
	later := CopyManifest(m)
	later.CreatedAt = 2
	skip, err = CheckCampaignWrite(m, later)
	require.NoError(t, err)
	assert.True(t, skip)

	later.Root = "0x02"
	_, err = CheckCampaignWrite(m, later)
	require.ErrorIs(t, err, ErrCampaignConflict)
}

func TestCopyRecordIsDeep(t *testing.T) {
	rec := &types.AirdropRecord{Proof: []string{"0xaa"}}
	cp := CopyRecord(rec)
	cp.Proof[0] = "0xbb"
	assert.Equal(t, "0xaa", rec.Proof[0])
	assert.Nil(t, CopyRecord(nil))
}
