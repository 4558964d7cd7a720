package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/wealdtech/go-merkletree/v2/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashLength is the only digest size the tree supports.
const HashLength = 32

// Hasher hashes the concatenation of its inputs. It has the same method set
// as go-merkletree's HashType so those hash types can be used directly.
type Hasher interface {
	Hash(data ...[]byte) []byte
	HashLength() int
}

type HashFunction string

const (
	HashKeccak256 HashFunction = "keccak256"
	HashBlake2b   HashFunction = "blake2b"
	HashSHA3      HashFunction = "sha3-256"
)

func (h HashFunction) String() string {
	return string(h)
}

// SupportedHashFunctions lists the names accepted by NewHasher.
func SupportedHashFunctions() []HashFunction {
	return []HashFunction{HashKeccak256, HashBlake2b, HashSHA3}
}

// NewHasher returns the hasher for a hash function name. The empty name is keccak256,
// which is what Solidity verifiers use.
func NewHasher(name HashFunction) (Hasher, error) {
	switch name {
	case "", HashKeccak256:
		return Keccak256Hasher{}, nil
	case HashBlake2b:
		return blake2b.New(), nil
	case HashSHA3:
		return SHA3Hasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hash function: %s", name)
	}
}

// Keccak256Hasher is the legacy Keccak-256 used by the EVM.
type Keccak256Hasher struct{}

func (Keccak256Hasher) Hash(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

func (Keccak256Hasher) HashLength() int {
	return HashLength
}

// SHA3Hasher is FIPS-202 SHA3-256.
type SHA3Hasher struct{}

func (SHA3Hasher) Hash(data ...[]byte) []byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func (SHA3Hasher) HashLength() int {
	return HashLength
}

func checkHasher(h Hasher) (Hasher, error) {
	if h == nil {
		return Keccak256Hasher{}, nil
	}
	if h.HashLength() != HashLength {
		return nil, fmt.Errorf("hasher produces %d byte digests, tree requires %d", h.HashLength(), HashLength)
	}
	return h, nil
}

func digest(h Hasher, data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], h.Hash(data...))
	return out
}
