package merkle

import (
	"bytes"
	"fmt"
	"sort"
)

// BuildMerkleTree creates a binary merkle tree over leaves in the order given.
//
// Parents are hash(min(a, b) || max(a, b)) with the pair ordered by byte value,
// so a proof carries no left/right information. If a level has an odd number of
// nodes, the last node is paired with itself. A nil hasher means keccak256.
func BuildMerkleTree(leaves [][32]byte, hasher Hasher) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty leaf list")
	}

	h, err := checkHasher(hasher)
	if err != nil {
		return nil, err
	}

	bottom := make([][32]byte, len(leaves))
	copy(bottom, leaves)

	levels := make([][][32]byte, 0)
	levels = append(levels, bottom)

	currentLevel := bottom
	for {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, HashPair(h, left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
		if len(currentLevel) == 1 {
			break
		}
	}

	return &MerkleTree{
		Leaves: bottom,
		Root:   currentLevel[0],
		levels: levels,
		hasher: h,
	}, nil
}

// Depth is the number of hashing levels, which is also the length of every proof.
func (mt *MerkleTree) Depth() int {
	return len(mt.levels) - 1
}

// GenerateProof creates a merkle proof for the leaf at the given index.
// The proof consists of sibling hashes along the path from leaf to root.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([][32]byte, 0, mt.Depth())
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		siblingIndex := index ^ 1
		// Last node of an odd level was paired with itself
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		proof = append(proof, currentLevel[siblingIndex])
		index = index / 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof recomputes the root from the proof and compares it with root.
// LeafIndex is not consulted: sorted-pair hashing makes position irrelevant.
func VerifyProof(proof *MerkleProof, root [32]byte, hasher Hasher) bool {
	if proof == nil {
		return false
	}
	h, err := checkHasher(hasher)
	if err != nil {
		return false
	}
	return ProcessProof(h, proof.Leaf, proof.Proof) == root
}

// ProcessProof folds the siblings into leaf and returns the resulting root.
func ProcessProof(hasher Hasher, leaf [32]byte, siblings [][32]byte) [32]byte {
	current := leaf
	for _, sibling := range siblings {
		current = HashPair(hasher, current, sibling)
	}
	return current
}

// HashPair hashes two nodes in ascending byte order.
func HashPair(hasher Hasher, a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return digest(hasher, a[:], b[:])
}

// HashLeaf hashes a packed leaf preimage.
func HashLeaf(hasher Hasher, data []byte) [32]byte {
	return digest(hasher, data)
}

// SortLeaves returns a copy of leaves in ascending byte order.
func SortLeaves(leaves [][32]byte) [][32]byte {
	sorted := make([][32]byte, len(leaves))
	copy(sorted, leaves)

	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	return sorted
}
