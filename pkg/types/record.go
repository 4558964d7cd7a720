package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// AirdropRecord is the published claim for a single recipient. It carries
// everything the recipient needs to claim against a verifier holding the root.
type AirdropRecord struct {
	Address string   `json:"address"`
	Amount  string   `json:"amount"`
	Proof   []string `json:"proof"`
	Root    string   `json:"root"`
}

// NewAirdropRecord renders an allocation, its proof and the tree root as a record.
// Addresses are lower-case hex, amounts decimal strings.
func NewAirdropRecord(address common.Address, amount *uint256.Int, proof [][32]byte, root [32]byte) *AirdropRecord {
	hexProof := make([]string, len(proof))
	for i, p := range proof {
		hexProof[i] = hexutil.Encode(p[:])
	}
	return &AirdropRecord{
		Address: hexutil.Encode(address.Bytes()),
		Amount:  amount.Dec(),
		Proof:   hexProof,
		Root:    hexutil.Encode(root[:]),
	}
}

// Equal compares two records field by field.
func (r *AirdropRecord) Equal(other *AirdropRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Address != other.Address || r.Amount != other.Amount || r.Root != other.Root {
		return false
	}
	if len(r.Proof) != len(other.Proof) {
		return false
	}
	for i := range r.Proof {
		if r.Proof[i] != other.Proof[i] {
			return false
		}
	}
	return true
}

// CampaignManifest describes one generated airdrop batch.
type CampaignManifest struct {
	BatchID      string `json:"batchId"`
	Network      string `json:"network,omitempty"`
	Root         string `json:"root"`
	LeafCount    int    `json:"leafCount"`
	TotalAmount  string `json:"totalAmount"`
	HashFunction string `json:"hashFunction"`
	LeafOrder    string `json:"leafOrder"`
	CreatedAt    int64  `json:"createdAt"`
}

// SameCampaign reports whether two manifests describe the same tree.
// CreatedAt is ignored so regenerating a batch is idempotent.
func (m *CampaignManifest) SameCampaign(other *CampaignManifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.BatchID == other.BatchID &&
		m.Network == other.Network &&
		m.Root == other.Root &&
		m.LeafCount == other.LeafCount &&
		m.TotalAmount == other.TotalAmount &&
		m.HashFunction == other.HashFunction &&
		m.LeafOrder == other.LeafOrder
}
