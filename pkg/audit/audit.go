// Package audit re-verifies a stored campaign against a trusted root.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pangolindex/merkledrop-go/pkg/airdrop"
	"github.com/pangolindex/merkledrop-go/pkg/merkle"
	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// Finding describes one record that failed the audit.
type Finding struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// Report is the outcome of auditing one batch.
type Report struct {
	BatchID      string `json:"batchId"`
	TrustedRoot  string `json:"trustedRoot"`
	ManifestRoot string `json:"manifestRoot"`

	Records int `json:"records"`
	Valid   int `json:"valid"`
	// Invalid records are well formed but do not prove inclusion under the trusted root
	Invalid []Finding `json:"invalid"`
	// Malformed records could not be decoded
	Malformed []Finding `json:"malformed"`

	TotalAmount         string `json:"totalAmount"`
	ManifestTotalAmount string `json:"manifestTotalAmount"`
	ManifestLeafCount   int    `json:"manifestLeafCount"`
	SupplyCap           string `json:"supplyCap,omitempty"`
	WithinSupply        bool   `json:"withinSupply"`
}

// RootMatches reports whether the manifest root is the trusted root.
func (r *Report) RootMatches() bool {
	return strings.EqualFold(r.TrustedRoot, r.ManifestRoot)
}

// TotalsMatch reports whether the stored records add up to the manifest.
func (r *Report) TotalsMatch() bool {
	return r.Records == r.ManifestLeafCount && r.TotalAmount == r.ManifestTotalAmount
}

// OK is true when every record verifies and the batch is consistent with its manifest.
func (r *Report) OK() bool {
	return r.RootMatches() && r.TotalsMatch() && r.WithinSupply &&
		len(r.Invalid) == 0 && len(r.Malformed) == 0 && r.Valid == r.Records
}

type Options struct {
	// Workers bounds parallel verification. Defaults to 1.
	Workers int
	// SupplyCap in base units. Nil skips the check.
	SupplyCap *uint256.Int
}

type Auditor struct {
	store   persistence.IRecordStore
	options *Options
	logger  *zap.Logger
}

func NewAuditor(store persistence.IRecordStore, opts *Options, logger *zap.Logger) *Auditor {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{store: store, options: opts, logger: logger}
}

// Audit checks a batch with the given worker count and no supply cap.
func Audit(ctx context.Context, store persistence.IRecordStore, batchID string, trustedRoot [32]byte, workers int) (*Report, error) {
	return NewAuditor(store, &Options{Workers: workers}, nil).Audit(ctx, batchID, trustedRoot)
}

// Audit loads every record of batchID and verifies it against trustedRoot using
// the hash function recorded in the manifest. Storage failures are errors;
// failing records are reported, not returned as errors.
func (a *Auditor) Audit(ctx context.Context, batchID string, trustedRoot [32]byte) (*Report, error) {
	manifest, err := a.store.LoadCampaign(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %s: %w", batchID, err)
	}
	if manifest == nil {
		return nil, fmt.Errorf("campaign %s not found", batchID)
	}

	verifier, err := airdrop.NewVerifier(merkle.HashFunction(manifest.HashFunction))
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", batchID, err)
	}

	records, err := a.store.ListRecords(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records of %s: %w", batchID, err)
	}

	trustedHex := common.Hash(trustedRoot).Hex()
	report := &Report{
		BatchID:             batchID,
		TrustedRoot:         trustedHex,
		ManifestRoot:        manifest.Root,
		Records:             len(records),
		Invalid:             []Finding{},
		Malformed:           []Finding{},
		ManifestTotalAmount: manifest.TotalAmount,
		ManifestLeafCount:   manifest.LeafCount,
	}

	var (
		mu    sync.Mutex
		total = new(uint256.Int)
	)
	workers := a.options.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, record := range records {
		record := record
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			valid, finding, malformed := checkRecord(verifier, record, trustedRoot)

			mu.Lock()
			defer mu.Unlock()
			if amount, err := types.ParseAmount(record.Amount); err == nil {
				total.Add(total, amount)
			}
			switch {
			case valid:
				report.Valid++
			case malformed:
				report.Malformed = append(report.Malformed, finding)
			default:
				report.Invalid = append(report.Invalid, finding)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortFindings(report.Invalid)
	sortFindings(report.Malformed)
	report.TotalAmount = total.Dec()
	report.WithinSupply = true
	if a.options.SupplyCap != nil {
		report.SupplyCap = a.options.SupplyCap.Dec()
		report.WithinSupply = !total.Gt(a.options.SupplyCap)
	}

	a.logger.Sugar().Infow("Audited campaign",
		"batch_id", batchID,
		"records", report.Records,
		"valid", report.Valid,
		"invalid", len(report.Invalid),
		"malformed", len(report.Malformed),
		"root_matches", report.RootMatches(),
		"totals_match", report.TotalsMatch(),
		"within_supply", report.WithinSupply,
	)
	return report, nil
}

func checkRecord(v *airdrop.Verifier, record *types.AirdropRecord, trustedRoot [32]byte) (valid bool, finding Finding, malformed bool) {
	finding.Address = record.Address

	ok, err := v.VerifyRecordAgainst(record, trustedRoot)
	if err != nil {
		finding.Reason = err.Error()
		return false, finding, true
	}
	if !ok {
		finding.Reason = "proof does not match trusted root"
		return false, finding, false
	}
	// VerifyRecordAgainst already decoded the embedded root
	if embedded, _ := airdrop.DecodeHash(record.Root); embedded != trustedRoot {
		finding.Reason = fmt.Sprintf("record carries root %s", record.Root)
		return false, finding, false
	}
	return true, finding, false
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return strings.ToLower(findings[i].Address) < strings.ToLower(findings[j].Address)
	})
}
