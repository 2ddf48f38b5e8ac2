package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// WitnessedStore is the circuit-side counterpart of Tree: rather than
// holding every leaf, it holds only the leaves that were proven against a
// committed root, and rejects any read or write to a key that was not
// witnessed. Grounded on
// original_source/crates/vapp/src/sparse.rs's SparseStorage.
type WitnessedStore[K Key, V Value] struct {
	bits      int
	values    map[string]V
	witnessed map[string]struct{}
}

// Sentinel errors mirroring SparseStorageError.
var (
	ErrKeyNotWitnessed    = fmt.Errorf("merkle: key was not witnessed by any supplied proof")
	ErrDuplicateProof     = fmt.Errorf("merkle: duplicate proof supplied for key")
	ErrProofVerification  = fmt.Errorf("merkle: proof failed to verify against root")
)

// NewWitnessedStore returns an empty store (bits taken from a zero K).
func NewWitnessedStore[K Key, V Value]() *WitnessedStore[K, V] {
	var zero K
	return &WitnessedStore[K, V]{
		bits:      zero.Bits(),
		values:    make(map[string]V),
		witnessed: make(map[string]struct{}),
	}
}

// Recover resets the store and repopulates it from proofs, all of which
// must verify against root. A key proven more than once is rejected as a
// duplicate proof, since it can only mean a malicious or buggy witness
// generator. Proofs for empty (non-inclusion) leaves are accepted and just
// mark the key as witnessed without storing a value — this lets the STF
// prove that an account legitimately does not exist yet.
func (s *WitnessedStore[K, V]) Recover(root common.Hash, proofs []*Proof[K, V]) error {
	s.values = make(map[string]V)
	s.witnessed = make(map[string]struct{})

	for _, p := range proofs {
		idx := p.Key.Index().Hex()
		if _, ok := s.witnessed[idx]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateProof, idx)
		}
		s.witnessed[idx] = struct{}{}

		if err := VerifyProof(root, p, s.bits); err != nil {
			return ErrProofVerification
		}

		if p.Value != nil {
			s.values[idx] = *p.Value
		}
	}

	return nil
}

// Get returns the value at key, failing if key was never witnessed.
func (s *WitnessedStore[K, V]) Get(key K) (V, bool, error) {
	var zero V
	idx := key.Index().Hex()
	if _, ok := s.witnessed[idx]; !ok {
		return zero, false, ErrKeyNotWitnessed
	}
	v, ok := s.values[idx]
	return v, ok, nil
}

// Insert writes value at key, failing if key was never witnessed.
func (s *WitnessedStore[K, V]) Insert(key K, value V) error {
	idx := key.Index().Hex()
	if _, ok := s.witnessed[idx]; !ok {
		return ErrKeyNotWitnessed
	}
	s.values[idx] = value
	return nil
}

// IsEmpty reports whether the store currently holds no values.
func (s *WitnessedStore[K, V]) IsEmpty() bool {
	return len(s.values) == 0
}
