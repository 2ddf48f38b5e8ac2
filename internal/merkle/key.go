// Package merkle implements the sparse, zero-hash-optimized binary Merkle
// tree used to commit to vApp account/request state, grounded on
// original_source/crates/vapp/src/merkle.rs and sparse.rs. The Go port keeps
// the same bottom-up recomputation and sparse-recovery algorithms but
// expresses the key space with two concrete types (Address, U256) behind a
// small interface instead of a Rust associated-const trait.
package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Key is implemented by every type that can index a tree: it reports how
// many bits wide the index space is and the U256 index the leaf occupies.
type Key interface {
	comparable
	Index() *uint256.Int
	Bits() int
}

// AddressKey indexes the 160-bit account tree, keyed by Ethereum address.
type AddressKey common.Address

// Index left-pads the 20-byte address into a U256.
func (k AddressKey) Index() *uint256.Int {
	return new(uint256.Int).SetBytes(common.Address(k).Bytes())
}

// Bits reports the address key space width.
func (k AddressKey) Bits() int { return 160 }

// U256Key indexes the 256-bit request-receipt tree, keyed by request id.
type U256Key uint256.Int

// Index returns the key itself, reinterpreted as a *uint256.Int.
func (k U256Key) Index() *uint256.Int {
	v := uint256.Int(k)
	return &v
}

// Bits reports the request key space width.
func (k U256Key) Bits() int { return 256 }

// NewU256Key wraps a *uint256.Int as a tree key.
func NewU256Key(v *uint256.Int) U256Key {
	return U256Key(*v)
}
