package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Value is implemented by every leaf value type stored in a tree (Account,
// Receipt, ...). Encode returns its ABI-style byte encoding, grounded on
// original_source/crates/vapp/src/merkle.rs's Keccak256::hash using
// value.abi_encode().
type Value interface {
	Encode() []byte
}

// hashLeaf hashes a single leaf value. An empty leaf (nil) hashes to the
// zero hash, matching the Rust implementation's treatment of None.
func hashLeaf[V Value](v *V) common.Hash {
	if v == nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash((*v).Encode())
}

// hashPair hashes two sibling node hashes together to produce their parent.
func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left.Bytes(), right.Bytes())
}
