// Package whitelist prepares contract calldata for allowance-based airdrops,
// where recipients are registered on chain in fixed-size batches.
package whitelist

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/pangolindex/merkledrop-go/pkg/types"
	"github.com/pangolindex/merkledrop-go/pkg/util"
)

// DefaultBatchSize is the number of recipients per whitelistAddresses call.
const DefaultBatchSize = 250

// Batch is one whitelistAddresses call.
type Batch struct {
	Index       int
	Allocations []types.Allocation
}

// Batches splits allocations into consecutive batches of at most size, keeping
// order. A size <= 0 uses DefaultBatchSize.
func Batches(allocations []types.Allocation, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]Batch, 0, (len(allocations)+size-1)/size)
	for start := 0; start < len(allocations); start += size {
		end := min(start+size, len(allocations))
		batches = append(batches, Batch{
			Index:       len(batches),
			Allocations: allocations[start:end],
		})
	}
	return batches
}

// Total sums the batch amounts.
func (b Batch) Total() *uint256.Int {
	total := new(uint256.Int)
	for _, a := range b.Allocations {
		if a.Amount != nil {
			total.Add(total, a.Amount)
		}
	}
	return total
}

// Calldata encodes the batch as whitelistAddresses(address[],uint96[]).
func (b Batch) Calldata() ([]byte, error) {
	addrs := make([]common.Address, len(b.Allocations))
	amounts := make([]*uint256.Int, len(b.Allocations))
	for i, a := range b.Allocations {
		addrs[i] = a.Address
		amounts[i] = a.Amount
	}
	return util.EncodeWhitelistAddresses(addrs, amounts)
}

// Call is one prepared contract call.
type Call struct {
	Method     string `json:"method"`
	Batch      *int   `json:"batch,omitempty"`
	Recipients int    `json:"recipients,omitempty"`
	Total      string `json:"total,omitempty"`
	Data       string `json:"data"`
}

// Calls prepares the whitelist calls for allocations. When root is set a
// setMerkleRoot call is prepended.
func Calls(allocations []types.Allocation, size int, root *[32]byte) ([]Call, error) {
	if len(allocations) == 0 {
		return nil, types.NewError(types.KindEmptyAllocationSet, "no allocations to whitelist")
	}

	var calls []Call
	if root != nil {
		data, err := util.EncodeSetMerkleRoot(*root)
		if err != nil {
			return nil, fmt.Errorf("failed to encode merkle root: %w", err)
		}
		calls = append(calls, Call{Method: util.MethodSetMerkleRoot, Data: hexutil.Encode(data)})
	}

	for _, b := range Batches(allocations, size) {
		data, err := b.Calldata()
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", b.Index, err)
		}
		index := b.Index
		calls = append(calls, Call{
			Method:     util.MethodWhitelistAddresses,
			Batch:      &index,
			Recipients: len(b.Allocations),
			Total:      b.Total().Dec(),
			Data:       hexutil.Encode(data),
		})
	}
	return calls, nil
}
