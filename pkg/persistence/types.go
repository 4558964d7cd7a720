package persistence

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

var (
	// ErrRecordConflict is returned when a different record already exists for the address.
	ErrRecordConflict = errors.New("record already exists with different contents")
	// ErrCampaignConflict is returned when a different manifest already exists for the batch.
	ErrCampaignConflict = errors.New("campaign already exists with different contents")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("record store is closed")
)

// ValidateBatchID checks that a batch ID can be used as a key in every backend,
// including as a directory name.
func ValidateBatchID(batchID string) error {
	if batchID == "" {
		return fmt.Errorf("batch id cannot be empty")
	}
	if batchID == "." || batchID == ".." {
		return fmt.Errorf("invalid batch id %q", batchID)
	}
	for _, c := range batchID {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return fmt.Errorf("invalid character %q in batch id %q", c, batchID)
		}
	}
	return nil
}

// RecordKey returns the canonical lower-case address a record is stored under.
func RecordKey(record *types.AirdropRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("cannot save nil AirdropRecord")
	}
	addr, err := types.ParseAddress(record.Address)
	if err != nil {
		return "", fmt.Errorf("invalid record address: %w", err)
	}
	return AddressKey(addr), nil
}

// AddressKey is the lower-case 0x-prefixed hex of an address.
func AddressKey(address common.Address) string {
	return hexutil.Encode(address.Bytes())
}

// ValidateManifest checks the fields a store keys or indexes manifests by.
func ValidateManifest(manifest *types.CampaignManifest) error {
	if manifest == nil {
		return fmt.Errorf("cannot save nil CampaignManifest")
	}
	return ValidateBatchID(manifest.BatchID)
}

// CheckRecordWrite applies write-once semantics. It reports whether the write can be
// skipped because an identical record is already stored.
func CheckRecordWrite(existing, incoming *types.AirdropRecord) (bool, error) {
	if existing == nil {
		return false, nil
	}
	if existing.Equal(incoming) {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ErrRecordConflict, incoming.Address)
}

// CheckCampaignWrite is CheckRecordWrite for manifests.
func CheckCampaignWrite(existing, incoming *types.CampaignManifest) (bool, error) {
	if existing == nil {
		return false, nil
	}
	if existing.SameCampaign(incoming) {
		return true, nil
	}
	return false, fmt.Errorf("%w: batch %s has root %s", ErrCampaignConflict, existing.BatchID, existing.Root)
}

// SortRecords orders records by address.
func SortRecords(records []*types.AirdropRecord) {
	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].Address) < strings.ToLower(records[j].Address)
	})
}

// SortCampaigns orders manifests by batch ID.
func SortCampaigns(manifests []*types.CampaignManifest) {
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].BatchID < manifests[j].BatchID
	})
}

// CopyRecord returns a deep copy of a record.
func CopyRecord(r *types.AirdropRecord) *types.AirdropRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Proof = append([]string(nil), r.Proof...)
	return &cp
}

// CopyManifest returns a copy of a manifest.
func CopyManifest(m *types.CampaignManifest) *types.CampaignManifest {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}
