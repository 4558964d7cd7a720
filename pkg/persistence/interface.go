package persistence

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// IRecordStore persists generated airdrop campaigns and their per-recipient records.
// All implementations must be thread-safe; SaveAll writes records concurrently.
//
// Campaign manifests and records are write-once:
// - saving a value identical to the stored one is a no-op
// - saving a different value under the same key returns ErrCampaignConflict / ErrRecordConflict
type IRecordStore interface {
	// Campaigns

	// SaveCampaign persists a campaign manifest keyed by its batch ID.
	// CreatedAt is not compared when checking for conflicts.
	SaveCampaign(ctx context.Context, manifest *types.CampaignManifest) error

	// LoadCampaign retrieves a manifest by batch ID.
	// Returns nil if the campaign doesn't exist, error only on storage failure.
	LoadCampaign(ctx context.Context, batchID string) (*types.CampaignManifest, error)

	// ListCampaigns returns all manifests sorted by batch ID.
	ListCampaigns(ctx context.Context) ([]*types.CampaignManifest, error)

	// Records

	// SaveRecord persists one recipient record under a batch, keyed by address.
	SaveRecord(ctx context.Context, batchID string, record *types.AirdropRecord) error

	// LoadRecord retrieves the record of one address.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadRecord(ctx context.Context, batchID string, address common.Address) (*types.AirdropRecord, error)

	// ListRecords returns all records of a batch sorted by address.
	// Returns an empty slice for unknown batches.
	ListRecords(ctx context.Context, batchID string) ([]*types.AirdropRecord, error)

	// Lifecycle Management

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the store is operational.
	HealthCheck() error
}
