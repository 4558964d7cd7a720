package airdrop

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/pangolindex/merkledrop-go/pkg/merkle"
	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// Verifier checks claims against a root. It is stateless and safe for concurrent use.
// The zero value verifies with keccak256.
type Verifier struct {
	hasher merkle.Hasher
}

// NewVerifier returns a verifier for the named hash function ("" is keccak256).
func NewVerifier(hash merkle.HashFunction) (*Verifier, error) {
	hasher, err := merkle.NewHasher(hash)
	if err != nil {
		return nil, err
	}
	return &Verifier{hasher: hasher}, nil
}

// Verify checks a claim with keccak256, the hash used on chain.
func Verify(address common.Address, amount *uint256.Int, proof [][]byte, root []byte) (bool, error) {
	return (&Verifier{hasher: merkle.Keccak256Hasher{}}).Verify(address, amount, proof, root)
}

// Verify reports whether (address, amount, proof) hashes up to root.
//
// A false result with a nil error means the proof is well formed but does not
// match. An empty proof, or a sibling or root that is not 32 bytes, is a
// MalformedProof error.
func (v *Verifier) Verify(address common.Address, amount *uint256.Int, proof [][]byte, root []byte) (bool, error) {
	if len(root) != merkle.HashLength {
		return false, types.NewError(types.KindMalformedProof, "root must be %d bytes, got %d", merkle.HashLength, len(root))
	}
	siblings := make([][32]byte, len(proof))
	for i, p := range proof {
		if len(p) != merkle.HashLength {
			return false, types.NewError(types.KindMalformedProof, "proof element %d must be %d bytes, got %d", i, merkle.HashLength, len(p))
		}
		copy(siblings[i][:], p)
	}
	return v.VerifyHashes(address, amount, siblings, [32]byte(root))
}

// VerifyHashes is Verify for fixed-size hashes.
func (v *Verifier) VerifyHashes(address common.Address, amount *uint256.Int, proof [][32]byte, root [32]byte) (bool, error) {
	if err := types.CheckAmount(amount); err != nil {
		return false, err
	}
	// Every tree has at least one level, even with a single leaf
	if len(proof) == 0 {
		return false, types.NewError(types.KindMalformedProof, "proof is empty")
	}

	hasher := v.hasher
	if hasher == nil {
		hasher = merkle.Keccak256Hasher{}
	}
	leaf := LeafHash(hasher, address, amount)
	return merkle.ProcessProof(hasher, leaf, proof) == root, nil
}

// VerifyRecord checks a record against the root it carries.
func (v *Verifier) VerifyRecord(record *types.AirdropRecord) (bool, error) {
	if record == nil {
		return false, types.NewError(types.KindMalformedProof, "record is nil")
	}
	root, err := DecodeHash(record.Root)
	if err != nil {
		return false, err
	}
	return v.VerifyRecordAgainst(record, root)
}

// VerifyRecordAgainst checks a record against a trusted root. The root embedded in
// the record is ignored apart from being well formed.
func (v *Verifier) VerifyRecordAgainst(record *types.AirdropRecord, trustedRoot [32]byte) (bool, error) {
	if record == nil {
		return false, types.NewError(types.KindMalformedProof, "record is nil")
	}
	address, err := types.ParseAddress(record.Address)
	if err != nil {
		return false, err
	}
	amount, err := types.ParseAmount(record.Amount)
	if err != nil {
		return false, err
	}
	if _, err := DecodeHash(record.Root); err != nil {
		return false, err
	}
	proof, err := DecodeProof(record.Proof)
	if err != nil {
		return false, err
	}
	return v.VerifyHashes(address, amount, proof, trustedRoot)
}

// DecodeHash parses a 0x-prefixed 32-byte hash. Anything else is a MalformedProof.
func DecodeHash(s string) ([32]byte, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return [32]byte{}, types.WrapError(types.KindMalformedProof, err, "invalid hash %q", s)
	}
	if len(raw) != merkle.HashLength {
		return [32]byte{}, types.NewError(types.KindMalformedProof, "hash %q must be %d bytes, got %d", s, merkle.HashLength, len(raw))
	}
	return [32]byte(raw), nil
}

// DecodeProof parses a hex proof.
func DecodeProof(proof []string) ([][32]byte, error) {
	out := make([][32]byte, len(proof))
	for i, p := range proof {
		h, err := DecodeHash(p)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
