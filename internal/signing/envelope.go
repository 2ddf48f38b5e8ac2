package signing

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Format selects how a message body is canonically encoded before signing.
type Format int

const (
	FormatBinary Format = iota
	FormatJSON
)

// Body is implemented by every signable message body (internal/node's
// bidRequestBody, fulfillProofRequestBody, ...). Encode must be deterministic: the same
// logical body always produces the same bytes, since signatures and the
// derived request id depend on it.
type Body interface {
	// Encode returns the canonical binary encoding used as the signable
	// preimage under FormatBinary.
	Encode() []byte
}

// Envelope is the wire shape of every signed off-chain message: a format
// selector, a 65-byte signature, and the body itself.
type Envelope[T Body] struct {
	Format    Format
	Signature [65]byte
	Body      *T
}

// Preimage errors.
var (
	ErrEmptyBody              = fmt.Errorf("signing: empty message body")
	ErrSignatureDeserialize   = fmt.Errorf("signing: failed to deserialize signature")
	ErrAddressRecoveryFailed  = fmt.Errorf("signing: failed to recover sender address")
)

// preimage returns the bytes that were (or must be) signed: the canonical
// encoding of the body under the envelope's format.
func preimage[T Body](e *Envelope[T]) ([]byte, error) {
	if e.Body == nil {
		return nil, ErrEmptyBody
	}

	switch e.Format {
	case FormatJSON:
		b, err := json.Marshal(e.Body)
		if err != nil {
			return nil, fmt.Errorf("signing: json encode failed: %w", err)
		}
		return b, nil
	default:
		return (*e.Body).Encode(), nil
	}
}

// personalSignHash computes the Ethereum "personal_sign" digest of message:
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func personalSignHash(message []byte) common.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256Hash([]byte(prefix), message)
}

// RecoverSender decodes the envelope's 65-byte signature, recovers the
// Ethereum-style signer address from the personal-sign hash of the encoded
// body, and returns (address, preimage).
func RecoverSender[T Body](e *Envelope[T]) (common.Address, []byte, error) {
	msg, err := preimage(e)
	if err != nil {
		return common.Address{}, nil, err
	}

	sig := e.Signature[:]
	hash := personalSignHash(msg)

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: %v", ErrAddressRecoveryFailed, err)
	}

	return crypto.PubkeyToAddress(*pub), msg, nil
}

// RecoverSenderRaw is RecoverSender without requiring an Envelope wrapper:
// it recovers the address that produced sig over message.
func RecoverSenderRaw(sig, message []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrSignatureDeserialize
	}
	hash := personalSignHash(message)
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrAddressRecoveryFailed, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a 65-byte signature over message using priv, in the
// recoverable [R || S || V] layout crypto.Ecrecover/SigToPub expect.
func Sign(priv *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	hash := personalSignHash(message)
	return crypto.Sign(hash.Bytes(), priv)
}

// RequestID derives the deterministic 32-byte request identifier that binds
// a request body to its signer: hash(encode(body) || sender). All
// downstream messages referring to this request must embed the same id.
func RequestID(encodedBody []byte, sender common.Address) common.Hash {
	return crypto.Keccak256Hash(encodedBody, sender.Bytes())
}

// EncodeUint64 is a small helper used by Body implementations to append a
// big-endian uint64 field to a canonical encoding buffer.
func EncodeUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// EncodeBytes appends a length-prefixed byte slice, so that two different
// (field, field) splits of the same total bytes can't collide.
func EncodeBytes(buf []byte, v []byte) []byte {
	buf = EncodeUint64(buf, uint64(len(v)))
	return append(buf, v...)
}

// EncodeString is EncodeBytes for strings.
func EncodeString(buf []byte, v string) []byte {
	return EncodeBytes(buf, []byte(v))
}
