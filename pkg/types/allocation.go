package types

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const (
	// AmountBits is the width of an allocation amount (uint96 on chain).
	AmountBits = 96
	// AmountLength is the byte length of an encoded amount.
	AmountLength = AmountBits / 8
	// LeafDataLength is the length of the packed leaf preimage: address || amount.
	LeafDataLength = common.AddressLength + AmountLength
)

// Allocation is one recipient's share of an airdrop.
type Allocation struct {
	Address common.Address
	Amount  *uint256.Int
}

// NewAllocation validates a raw address and an amount.
func NewAllocation(address []byte, amount *uint256.Int) (Allocation, error) {
	addr, err := AddressFromBytes(address)
	if err != nil {
		return Allocation{}, err
	}
	if err := CheckAmount(amount); err != nil {
		return Allocation{}, err
	}
	return Allocation{Address: addr, Amount: amount.Clone()}, nil
}

// ParseAllocation parses a hex address and a decimal amount.
func ParseAllocation(address, amount string) (Allocation, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return Allocation{}, err
	}
	amt, err := ParseAmount(amount)
	if err != nil {
		return Allocation{}, err
	}
	if err := CheckAmount(amt); err != nil {
		return Allocation{}, err
	}
	return Allocation{Address: addr, Amount: amt}, nil
}

// AddressFromBytes requires exactly 20 bytes.
func AddressFromBytes(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, NewError(KindInvalidAddress, "address must be %d bytes, got %d", common.AddressLength, len(b))
	}
	return common.BytesToAddress(b), nil
}

// ParseAddress decodes a hex address, with or without the 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, NewError(KindInvalidAddress, "address is empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(strings.ToLower(s[:2]) + s[2:])
	if err != nil {
		return common.Address{}, WrapError(KindInvalidAddress, err, "invalid address %q", s)
	}
	return AddressFromBytes(raw)
}

// ParseAmount decodes a base-10 amount and checks it fits in 96 bits.
// A zero amount parses successfully; CheckAmount rejects it.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewError(KindInvalidAmount, "amount is empty")
	}
	if strings.HasPrefix(s, "-") {
		return nil, NewError(KindInvalidAmount, "amount %q is negative", s)
	}
	amt, err := uint256.FromDecimal(s)
	if err != nil {
		if errors.Is(err, uint256.ErrBig256Range) {
			return nil, NewError(KindAmountOverflow, "amount %s exceeds %d bits", s, AmountBits)
		}
		return nil, WrapError(KindInvalidAmount, err, "invalid amount %q", s)
	}
	if amt.BitLen() > AmountBits {
		return nil, NewError(KindAmountOverflow, "amount %s exceeds %d bits", s, AmountBits)
	}
	return amt, nil
}

// CheckAmount rejects nil, zero and amounts wider than 96 bits.
func CheckAmount(amount *uint256.Int) error {
	if amount == nil {
		return NewError(KindInvalidAmount, "amount is nil")
	}
	if amount.IsZero() {
		return NewError(KindZeroAmount, "amount must be greater than zero")
	}
	if amount.BitLen() > AmountBits {
		return NewError(KindAmountOverflow, "amount %s exceeds %d bits", amount.Dec(), AmountBits)
	}
	return nil
}

// EncodeAmount returns the amount as a 12-byte big-endian integer.
// The caller must have checked the amount with CheckAmount.
func EncodeAmount(amount *uint256.Int) [AmountLength]byte {
	var out [AmountLength]byte
	copy(out[:], amount.PaddedBytes(AmountLength))
	return out
}

// PackLeafData returns address(20) || amount(12), the leaf preimage.
func PackLeafData(address common.Address, amount *uint256.Int) []byte {
	enc := EncodeAmount(amount)
	data := make([]byte, 0, LeafDataLength)
	data = append(data, address.Bytes()...)
	data = append(data, enc[:]...)
	return data
}
