package util

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

func FuzzEncodeWhitelistAddressesRoundTrip(f *testing.F) {
	f.Add([]byte{}, uint64(1), uint32(0))
	f.Add(make([]byte, 20), uint64(100), uint32(7))
	f.Add([]byte("0123456789012345678901234567890123456789"), ^uint64(0), ^uint32(0))

	f.Fuzz(func(t *testing.T, seed []byte, low uint64, high uint32) {
		// Keep memory bounded for fuzzing.
		if len(seed) > 20*64 {
			seed = seed[:20*64]
		}

		var (
			addrs   []common.Address
			amounts []*uint256.Int
		)
		for i := 0; i+20 <= len(seed); i += 20 {
			addrs = append(addrs, common.BytesToAddress(seed[i:i+20]))
			// high<<64 | low always fits in 96 bits
			amount := new(uint256.Int).Lsh(uint256.NewInt(uint64(high)), 64)
			amount.Or(amount, uint256.NewInt(low+uint64(i)))
			amounts = append(amounts, amount)
		}

		calldata, err := EncodeWhitelistAddresses(addrs, amounts)
		if len(addrs) == 0 {
			require.ErrorIs(t, err, types.ErrEmptyAllocationSet)
			return
		}
		if amountsHaveZero(amounts) {
			require.ErrorIs(t, err, types.ErrZeroAmount)
			return
		}
		require.NoError(t, err)

		gotAddrs, gotAmounts, err := DecodeWhitelistAddresses(calldata)
		require.NoError(t, err)
		require.Equal(t, addrs, gotAddrs)
		require.Len(t, gotAmounts, len(amounts))
		for i := range amounts {
			require.True(t, amounts[i].Eq(gotAmounts[i]))
		}
	})
}

func amountsHaveZero(amounts []*uint256.Int) bool {
	for _, a := range amounts {
		if a.IsZero() {
			return true
		}
	}
	return false
}
