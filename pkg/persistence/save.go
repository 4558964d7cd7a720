package persistence

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// SaveAll persists a campaign: every record, then the manifest. The manifest is
// written last so a stored manifest means the batch is complete. A conflicting
// manifest is detected before any record is written.
func SaveAll(ctx context.Context, store IRecordStore, manifest *types.CampaignManifest, records []*types.AirdropRecord, workers int) error {
	if err := ValidateManifest(manifest); err != nil {
		return err
	}
	if manifest.LeafCount != len(records) {
		return fmt.Errorf("manifest lists %d leaves but %d records were given", manifest.LeafCount, len(records))
	}
	if workers < 1 {
		workers = 1
	}

	existing, err := store.LoadCampaign(ctx, manifest.BatchID)
	if err != nil {
		return fmt.Errorf("failed to load campaign %s: %w", manifest.BatchID, err)
	}
	if _, err := CheckCampaignWrite(existing, manifest); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, record := range records {
		record := record
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return store.SaveRecord(gctx, manifest.BatchID, record)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to save records for batch %s: %w", manifest.BatchID, err)
	}

	if err := store.SaveCampaign(ctx, manifest); err != nil {
		return fmt.Errorf("failed to save campaign %s: %w", manifest.BatchID, err)
	}
	return nil
}
