package airdrop

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/merkle"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// LeafOrder selects how leaves are arranged before pairing.
type LeafOrder string

const (
	// LeafOrderInput pairs leaves in the order allocations were supplied.
	// Required to reproduce roots that were already published.
	LeafOrderInput LeafOrder = "input"
	// LeafOrderSorted sorts leaf hashes ascending before pairing.
	LeafOrderSorted LeafOrder = "sorted"
)

func (o LeafOrder) String() string {
	return string(o)
}

// ParseLeafOrder accepts "input", "sorted" or "" (input).
func ParseLeafOrder(s string) (LeafOrder, error) {
	switch LeafOrder(s) {
	case "", LeafOrderInput:
		return LeafOrderInput, nil
	case LeafOrderSorted:
		return LeafOrderSorted, nil
	default:
		return "", fmt.Errorf("unsupported leaf order: %s", s)
	}
}

// Options configures a Builder.
type Options struct {
	HashFunction merkle.HashFunction
	LeafOrder    LeafOrder
	// SupplyCap bounds the total allocated amount in base units. Nil disables the check.
	SupplyCap *uint256.Int
}

// Builder turns an ordered allocation list into a root and per-address proofs.
// It holds no state between Build calls.
type Builder struct {
	hasher    merkle.Hasher
	hashName  merkle.HashFunction
	order     LeafOrder
	supplyCap *uint256.Int
	logger    *zap.Logger
}

// NewBuilder creates a Builder. A nil opts means keccak256 with input ordering.
func NewBuilder(opts *Options, logger *zap.Logger) (*Builder, error) {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hashName := opts.HashFunction
	if hashName == "" {
		hashName = merkle.HashKeccak256
	}
	hasher, err := merkle.NewHasher(hashName)
	if err != nil {
		return nil, err
	}
	order, err := ParseLeafOrder(string(opts.LeafOrder))
	if err != nil {
		return nil, err
	}

	return &Builder{
		hasher:    hasher,
		hashName:  hashName,
		order:     order,
		supplyCap: opts.SupplyCap,
		logger:    logger,
	}, nil
}

// Result is the output of one Build call.
type Result struct {
	BatchID      string
	Root         [32]byte
	HashFunction merkle.HashFunction
	LeafOrder    LeafOrder

	// Allocations in input order
	Allocations []types.Allocation
	// Proofs maps each recipient to its sibling path, leaf to root
	Proofs map[common.Address][][32]byte
	// TotalAmount is the sum of all allocation amounts
	TotalAmount *uint256.Int
}

// Build validates allocations and computes the tree. Any invalid allocation fails
// the whole batch.
func (b *Builder) Build(batchID string, allocations []types.Allocation) (*Result, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch id is required")
	}
	if len(allocations) == 0 {
		return nil, types.NewError(types.KindEmptyAllocationSet, "batch %s has no allocations", batchID)
	}

	total := new(uint256.Int)
	seen := make(map[common.Address]int, len(allocations))
	leaves := make([][32]byte, len(allocations))

	for i, alloc := range allocations {
		if err := validateAllocation(alloc); err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		if first, ok := seen[alloc.Address]; ok {
			return nil, types.NewError(types.KindDuplicateAddress,
				"address %s at allocations %d and %d", alloc.Address.Hex(), first, i)
		}
		seen[alloc.Address] = i

		if _, overflow := total.AddOverflow(total, alloc.Amount); overflow {
			return nil, types.NewError(types.KindAmountOverflow, "total allocated amount overflows 256 bits")
		}
		leaves[i] = LeafHash(b.hasher, alloc.Address, alloc.Amount)
	}

	if b.supplyCap != nil && total.Gt(b.supplyCap) {
		return nil, types.NewError(types.KindSupplyExceeded,
			"total allocation %s exceeds supply cap %s", total.Dec(), b.supplyCap.Dec())
	}

	// positions[i] is the index of allocation i's leaf in the tree
	positions := make([]int, len(leaves))
	treeLeaves := leaves
	if b.order == LeafOrderSorted {
		treeLeaves, positions = sortWithPositions(leaves)
	} else {
		for i := range positions {
			positions[i] = i
		}
	}

	tree, err := merkle.BuildMerkleTree(treeLeaves, b.hasher)
	if err != nil {
		return nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}

	proofs := make(map[common.Address][][32]byte, len(allocations))
	copied := make([]types.Allocation, len(allocations))
	for i, alloc := range allocations {
		proof, err := tree.GenerateProof(positions[i])
		if err != nil {
			return nil, fmt.Errorf("failed to generate proof for %s: %w", alloc.Address.Hex(), err)
		}
		proofs[alloc.Address] = proof.Proof
		copied[i] = types.Allocation{Address: alloc.Address, Amount: alloc.Amount.Clone()}
	}

	b.logger.Sugar().Debugw("Built airdrop merkle tree",
		"batch_id", batchID,
		"leaves", len(leaves),
		"depth", tree.Depth(),
		"hash", b.hashName,
		"leaf_order", b.order,
		"root", common.Hash(tree.Root).Hex(),
	)

	return &Result{
		BatchID:      batchID,
		Root:         tree.Root,
		HashFunction: b.hashName,
		LeafOrder:    b.order,
		Allocations:  copied,
		Proofs:       proofs,
		TotalAmount:  total,
	}, nil
}

func validateAllocation(alloc types.Allocation) error {
	return types.CheckAmount(alloc.Amount)
}

// LeafHash computes hash(address || amount as 12-byte big-endian).
func LeafHash(hasher merkle.Hasher, address common.Address, amount *uint256.Int) [32]byte {
	return merkle.HashLeaf(hasher, types.PackLeafData(address, amount))
}

func sortWithPositions(leaves [][32]byte) ([][32]byte, []int) {
	order := make([]int, len(leaves))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return bytes.Compare(leaves[order[i]][:], leaves[order[j]][:]) < 0
	})

	sorted := make([][32]byte, len(leaves))
	positions := make([]int, len(leaves))
	for pos, idx := range order {
		sorted[pos] = leaves[idx]
		positions[idx] = pos
	}
	return sorted, positions
}

// Records renders one self-contained record per recipient, in input order.
func (r *Result) Records() []*types.AirdropRecord {
	records := make([]*types.AirdropRecord, 0, len(r.Allocations))
	for _, alloc := range r.Allocations {
		records = append(records, types.NewAirdropRecord(alloc.Address, alloc.Amount, r.Proofs[alloc.Address], r.Root))
	}
	return records
}

// Record returns the record for one recipient.
func (r *Result) Record(address common.Address) (*types.AirdropRecord, bool) {
	for _, alloc := range r.Allocations {
		if alloc.Address == address {
			return types.NewAirdropRecord(alloc.Address, alloc.Amount, r.Proofs[address], r.Root), true
		}
	}
	return nil, false
}

// RootHex is the root as 0x-prefixed hex.
func (r *Result) RootHex() string {
	return common.Hash(r.Root).Hex()
}

// Manifest describes the result for persistence.
func (r *Result) Manifest(network string, createdAt int64) *types.CampaignManifest {
	return &types.CampaignManifest{
		BatchID:      r.BatchID,
		Network:      network,
		Root:         r.RootHex(),
		LeafCount:    len(r.Allocations),
		TotalAmount:  r.TotalAmount.Dec(),
		HashFunction: r.HashFunction.String(),
		LeafOrder:    r.LeafOrder.String(),
		CreatedAt:    createdAt,
	}
}
