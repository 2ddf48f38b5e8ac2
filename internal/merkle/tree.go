package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Tree is a sparse, zero-hash-optimized binary Merkle tree over a 2^bits
// index space, grounded on original_source/crates/vapp/src/merkle.rs's
// MerkleStorage. It keeps only non-empty leaves in memory; empty subtrees
// are folded using precomputed zero hashes instead of being materialized.
type Tree[K Key, V Value] struct {
	bits       int
	leaves     map[string]V
	zeroHashes []common.Hash
	cache      map[layerIndex]common.Hash
	touched    map[string]K
}

type layerIndex struct {
	layer int
	index string
}

// New builds an empty tree for key type K (bits taken from a zero K).
func New[K Key, V Value]() *Tree[K, V] {
	var zero K
	bits := zero.Bits()
	return &Tree[K, V]{
		bits:       bits,
		leaves:     make(map[string]V),
		zeroHashes: computeZeroHashes(bits),
		cache:      make(map[layerIndex]common.Hash),
		touched:    make(map[string]K),
	}
}

func computeZeroHashes(bits int) []common.Hash {
	hashes := make([]common.Hash, bits+1)
	hashes[0] = common.Hash{}
	for i := 1; i <= bits; i++ {
		hashes[i] = hashPair(hashes[i-1], hashes[i-1])
	}
	return hashes
}

// Insert writes value at key, invalidating the node-hash cache (the tree
// shape may have changed).
func (t *Tree[K, V]) Insert(key K, value V) {
	idx := key.Index().Hex()
	t.leaves[idx] = value
	t.touched[idx] = key
	t.cache = make(map[layerIndex]common.Hash)
}

// Get returns the value stored at key, tracking the access.
func (t *Tree[K, V]) Get(key K) (V, bool) {
	idx := key.Index().Hex()
	t.touched[idx] = key
	v, ok := t.leaves[idx]
	return v, ok
}

// GetUntracked returns the value stored at key without recording the
// access in the touched-key set.
func (t *Tree[K, V]) GetUntracked(key K) (V, bool) {
	v, ok := t.leaves[key.Index().Hex()]
	return v, ok
}

// TouchedKeys returns every key that has been read or written since the
// tree was created or last had its tracking cleared.
func (t *Tree[K, V]) TouchedKeys() []K {
	keys := make([]K, 0, len(t.touched))
	for _, k := range t.touched {
		keys = append(keys, k)
	}
	return keys
}

// ClearKeyTracking resets the touched-key set.
func (t *Tree[K, V]) ClearKeyTracking() {
	t.touched = make(map[string]K)
}

// Root computes the current Merkle root from scratch.
func (t *Tree[K, V]) Root() common.Hash {
	if len(t.leaves) == 0 {
		return t.zeroHashes[t.bits]
	}

	current := make(map[string]common.Hash, len(t.leaves))
	for idx, v := range t.leaves {
		val := v
		current[idx] = hashLeaf(&val)
	}

	for layer := 1; layer <= t.bits; layer++ {
		next := make(map[string]common.Hash)
		for idx, h := range current {
			index, _ := uint256.FromHex(idx)
			parent := new(uint256.Int).Rsh(index, 1)
			isLeft := index.Bit(0) == 0

			parentKey := parent.Hex()
			if _, ok := next[parentKey]; !ok {
				if isLeft {
					next[parentKey] = hashPair(h, t.zeroHashes[layer-1])
				} else {
					next[parentKey] = hashPair(t.zeroHashes[layer-1], h)
				}
			}

			if isLeft {
				siblingIdx := new(uint256.Int).Or(index, uint256.NewInt(1))
				if siblingHash, ok := current[siblingIdx.Hex()]; ok {
					next[parentKey] = hashPair(h, siblingHash)
				}
			} else {
				siblingIdx := new(uint256.Int).And(index, new(uint256.Int).Not(uint256.NewInt(1)))
				if siblingHash, ok := current[siblingIdx.Hex()]; ok {
					next[parentKey] = hashPair(siblingHash, h)
				}
			}
		}
		current = next
	}

	if h, ok := current[uint256.NewInt(0).Hex()]; ok {
		return h
	}
	return t.zeroHashes[t.bits]
}

// Proof generates an inclusion (or non-inclusion) proof for key: the
// sibling hash at every layer from the leaf up to the root, plus the
// current value (nil if the leaf is empty).
func (t *Tree[K, V]) Proof(key K) (*Proof[K, V], error) {
	index := key.Index()
	if t.bits < 256 {
		bound := new(uint256.Int).Lsh(uint256.NewInt(1), uint(t.bits))
		if index.Cmp(bound) >= 0 {
			return nil, fmt.Errorf("merkle: index %s out of bounds for %d bits", index, t.bits)
		}
	}

	path := make([]common.Hash, 0, t.bits)
	current := new(uint256.Int).Set(index)

	for layer := 0; layer < t.bits; layer++ {
		sibling := new(uint256.Int).Xor(current, uint256.NewInt(1))

		var siblingHash common.Hash
		switch {
		case layer == 0:
			if v, ok := t.leaves[sibling.Hex()]; ok {
				val := v
				siblingHash = hashLeaf(&val)
			} else {
				siblingHash = t.zeroHashes[0]
			}
		default:
			key := layerIndex{layer: layer, index: sibling.Hex()}
			if cached, ok := t.cache[key]; ok {
				siblingHash = cached
			} else if t.isSubtreeEmpty(layer, sibling) {
				siblingHash = t.zeroHashes[layer]
			} else {
				siblingHash = t.computeNode(layer, sibling)
			}
		}

		path = append(path, siblingHash)
		current.Rsh(current, 1)
	}

	var value *V
	if v, ok := t.leaves[index.Hex()]; ok {
		val := v
		value = &val
	}

	return &Proof[K, V]{Key: key, Value: value, Path: path}, nil
}

// isSubtreeEmpty reports whether the subtree rooted at (layer, index)
// contains no leaves, by scanning the sparse leaf map for any index in the
// subtree's leaf range.
func (t *Tree[K, V]) isSubtreeEmpty(layer int, index *uint256.Int) bool {
	start := new(uint256.Int).Lsh(index, uint(layer))
	end := new(uint256.Int).Add(start, new(uint256.Int).Lsh(uint256.NewInt(1), uint(layer)))

	for idx := range t.leaves {
		leafIdx, err := uint256.FromHex(idx)
		if err != nil {
			continue
		}
		if leafIdx.Cmp(start) >= 0 && (end.IsZero() || leafIdx.Cmp(end) < 0) {
			return false
		}
	}
	return true
}

// computeNode computes and caches the hash at (layer, index), recursing
// into its children only where the subtree is non-empty.
func (t *Tree[K, V]) computeNode(layer int, index *uint256.Int) common.Hash {
	key := layerIndex{layer: layer, index: index.Hex()}
	if h, ok := t.cache[key]; ok {
		return h
	}

	if t.isSubtreeEmpty(layer, index) {
		t.cache[key] = t.zeroHashes[layer]
		return t.zeroHashes[layer]
	}

	left := new(uint256.Int).Lsh(index, 1)
	right := new(uint256.Int).Or(left, uint256.NewInt(1))

	var leftHash, rightHash common.Hash
	if layer == 1 {
		if v, ok := t.leaves[left.Hex()]; ok {
			val := v
			leftHash = hashLeaf(&val)
		} else {
			leftHash = t.zeroHashes[0]
		}
		if v, ok := t.leaves[right.Hex()]; ok {
			val := v
			rightHash = hashLeaf(&val)
		} else {
			rightHash = t.zeroHashes[0]
		}
	} else {
		leftHash = t.computeNode(layer-1, left)
		rightHash = t.computeNode(layer-1, right)
	}

	h := hashPair(leftHash, rightHash)
	t.cache[key] = h
	return h
}

// Proof is an inclusion (or non-inclusion, if Value is nil) proof for a
// single key against some root.
type Proof[K Key, V Value] struct {
	Key   K
	Value *V
	Path  []common.Hash
}

// VerifyProof checks that proof is consistent with root.
func VerifyProof[K Key, V Value](root common.Hash, proof *Proof[K, V], bits int) error {
	var leafHash common.Hash
	if proof.Value != nil {
		val := *proof.Value
		leafHash = hashLeaf(&val)
	}
	return verifyProofWithHash(root, proof.Key.Index(), leafHash, proof.Path, bits)
}

func verifyProofWithHash(root common.Hash, index *uint256.Int, leafHash common.Hash, path []common.Hash, bits int) error {
	if len(path) != bits {
		return fmt.Errorf("merkle: invalid proof length: got %d, want %d", len(path), bits)
	}

	current := leafHash
	idx := new(uint256.Int).Set(index)
	for _, sibling := range path {
		if idx.Bit(0) == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		idx.Rsh(idx, 1)
	}

	if current != root {
		return fmt.Errorf("merkle: invalid proof")
	}
	return nil
}

// ErrMissingProofForUpdatedKey is returned by CalculateNewRoot when
// newValues names a key with no corresponding entry in proofs: without a
// proof there are no sibling hashes to rebalance that key's path with.
var ErrMissingProofForUpdatedKey = fmt.Errorf("merkle: missing merkle proof for updated key")

// CalculateNewRoot verifies every proof against oldRoot, then replays each
// proof's path to the root using the (possibly updated) leaf value,
// preferring a sibling hash already derived from another proof over the
// proof's own supplied sibling hash so that two updated keys sharing an
// ancestor fold together correctly. Grounded on
// MerkleStorage::calculate_new_root.
func CalculateNewRoot[K Key, V Value](oldRoot common.Hash, proofs []*Proof[K, V], newValues []KeyValue[K, V], bits int) (common.Hash, error) {
	if len(proofs) == 0 && len(newValues) == 0 {
		return oldRoot, nil
	}

	updated := make(map[string]V, len(newValues))
	for _, kv := range newValues {
		updated[kv.Key.Index().Hex()] = kv.Value
	}

	hasProof := make(map[string]struct{}, len(proofs))
	for _, p := range proofs {
		hasProof[p.Key.Index().Hex()] = struct{}{}
	}
	for _, kv := range newValues {
		if _, ok := hasProof[kv.Key.Index().Hex()]; !ok {
			return common.Hash{}, ErrMissingProofForUpdatedKey
		}
	}

	for _, p := range proofs {
		if err := VerifyProof(oldRoot, p, bits); err != nil {
			return common.Hash{}, err
		}
	}

	nodes := make(map[layerIndex]common.Hash)

	for _, p := range proofs {
		idx := p.Key.Index().Hex()

		var current common.Hash
		if v, ok := updated[idx]; ok {
			val := v
			current = hashLeaf(&val)
		} else if p.Value != nil {
			val := *p.Value
			current = hashLeaf(&val)
		}

		curIdx := new(uint256.Int).Set(p.Key.Index())
		nodes[layerIndex{layer: 0, index: curIdx.Hex()}] = current

		for layer, proofSiblingHash := range p.Path {
			siblingIdx := new(uint256.Int).Xor(curIdx, uint256.NewInt(1))
			siblingKey := layerIndex{layer: layer, index: siblingIdx.Hex()}

			siblingHash, ok := nodes[siblingKey]
			if !ok {
				siblingHash = proofSiblingHash
				nodes[siblingKey] = siblingHash
			}

			var parentHash common.Hash
			if curIdx.Bit(0) == 0 {
				parentHash = hashPair(current, siblingHash)
			} else {
				parentHash = hashPair(siblingHash, current)
			}

			curIdx.Rsh(curIdx, 1)
			current = parentHash
			nodes[layerIndex{layer: layer + 1, index: curIdx.Hex()}] = current
		}
	}

	rootKey := layerIndex{layer: bits, index: uint256.NewInt(0).Hex()}
	if h, ok := nodes[rootKey]; ok {
		return h, nil
	}
	return common.Hash{}, fmt.Errorf("merkle: failed to compute new root")
}

// KeyValue is a (key, new value) pair supplied to CalculateNewRoot.
type KeyValue[K Key, V Value] struct {
	Key   K
	Value V
}
