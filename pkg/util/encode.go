package util

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// airdropABI covers the airdrop contract calls the tooling prepares.
const airdropABI = `[
	{"type":"function","name":"whitelistAddresses","stateMutability":"nonpayable","inputs":[
		{"name":"addrs","type":"address[]"},
		{"name":"amounts","type":"uint96[]"}
	],"outputs":[]},
	{"type":"function","name":"setMerkleRoot","stateMutability":"nonpayable","inputs":[
		{"name":"root","type":"bytes32"}
	],"outputs":[]}
]`

const (
	MethodWhitelistAddresses = "whitelistAddresses"
	MethodSetMerkleRoot      = "setMerkleRoot"
)

var parsedAirdropABI = mustParseABI(airdropABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid airdrop ABI: %v", err))
	}
	return parsed
}

// AirdropABI returns the parsed airdrop contract ABI.
func AirdropABI() abi.ABI {
	return parsedAirdropABI
}

// EncodeWhitelistAddresses encodes calldata for whitelistAddresses(address[],uint96[]).
func EncodeWhitelistAddresses(addrs []common.Address, amounts []*uint256.Int) ([]byte, error) {
	if len(addrs) != len(amounts) {
		return nil, fmt.Errorf("got %d addresses but %d amounts", len(addrs), len(amounts))
	}
	if len(addrs) == 0 {
		return nil, types.NewError(types.KindEmptyAllocationSet, "nothing to whitelist")
	}

	bigAmounts := make([]*big.Int, len(amounts))
	for i, amount := range amounts {
		if err := types.CheckAmount(amount); err != nil {
			return nil, fmt.Errorf("amount %d for %s: %w", i, addrs[i].Hex(), err)
		}
		bigAmounts[i] = amount.ToBig()
	}

	return parsedAirdropABI.Pack(MethodWhitelistAddresses, addrs, bigAmounts)
}

// EncodeSetMerkleRoot encodes calldata for setMerkleRoot(bytes32).
func EncodeSetMerkleRoot(root [32]byte) ([]byte, error) {
	return parsedAirdropABI.Pack(MethodSetMerkleRoot, root)
}

// DecodeWhitelistAddresses is the inverse of EncodeWhitelistAddresses.
func DecodeWhitelistAddresses(calldata []byte) ([]common.Address, []*uint256.Int, error) {
	method, err := methodFor(calldata, MethodWhitelistAddresses)
	if err != nil {
		return nil, nil, err
	}
	values, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to unpack %s: %w", method.Name, err)
	}

	addrs, ok := values[0].([]common.Address)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected address array type %T", values[0])
	}
	bigAmounts, ok := values[1].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected amount array type %T", values[1])
	}
	amounts := make([]*uint256.Int, len(bigAmounts))
	for i, b := range bigAmounts {
		amounts[i], _ = uint256.FromBig(b)
	}
	return addrs, amounts, nil
}

// DecodeSetMerkleRoot is the inverse of EncodeSetMerkleRoot.
func DecodeSetMerkleRoot(calldata []byte) ([32]byte, error) {
	method, err := methodFor(calldata, MethodSetMerkleRoot)
	if err != nil {
		return [32]byte{}, err
	}
	values, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to unpack %s: %w", method.Name, err)
	}
	root, ok := values[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("unexpected root type %T", values[0])
	}
	return root, nil
}

func methodFor(calldata []byte, name string) (*abi.Method, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(calldata))
	}
	method, err := parsedAirdropABI.MethodById(calldata[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != name {
		return nil, fmt.Errorf("calldata is for %s, not %s", method.Name, name)
	}
	return method, nil
}
