package signing

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBody struct {
	Nonce uint64
	Data  string
}

func (b testBody) Encode() []byte {
	buf := EncodeUint64(nil, b.Nonce)
	return EncodeString(buf, b.Data)
}

func TestRecoverSender_MatchesSigner(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	wantAddr := crypto.PubkeyToAddress(priv.PublicKey)

	body := testBody{Nonce: 7, Data: "hello"}
	msg := body.Encode()
	sig, err := Sign(priv, msg)
	require.NoError(t, err)

	var env Envelope[testBody]
	env.Format = FormatBinary
	env.Body = &body
	copy(env.Signature[:], sig)

	addr, preimageBytes, err := RecoverSender(&env)
	require.NoError(t, err)
	assert.Equal(t, wantAddr, addr)
	assert.Equal(t, msg, preimageBytes)
}

func TestRecoverSender_EmptyBody(t *testing.T) {
	var env Envelope[testBody]
	env.Format = FormatBinary
	_, _, err := RecoverSender(&env)
	require.ErrorIs(t, err, ErrEmptyBody)
}

func TestRecoverSender_TamperedBodyChangesAddress(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	wantAddr := crypto.PubkeyToAddress(priv.PublicKey)

	body := testBody{Nonce: 7, Data: "hello"}
	msg := body.Encode()
	sig, err := Sign(priv, msg)
	require.NoError(t, err)

	tampered := testBody{Nonce: 7, Data: "goodbye"}
	var env Envelope[testBody]
	env.Format = FormatBinary
	env.Body = &tampered
	copy(env.Signature[:], sig)

	addr, _, err := RecoverSender(&env)
	require.NoError(t, err)
	assert.NotEqual(t, wantAddr, addr)
}

func TestRecoverSenderRaw_RejectsShortSignature(t *testing.T) {
	_, err := RecoverSenderRaw([]byte{1, 2, 3}, []byte("msg"))
	require.ErrorIs(t, err, ErrSignatureDeserialize)
}

func TestRequestID_DeterministicAndSenderBound(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(priv.PublicKey)

	body := testBody{Nonce: 1, Data: "x"}
	encoded := body.Encode()

	id1 := RequestID(encoded, addr)
	id2 := RequestID(encoded, addr)
	assert.Equal(t, id1, id2)

	otherPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherAddr := crypto.PubkeyToAddress(otherPriv.PublicKey)
	id3 := RequestID(encoded, otherAddr)
	assert.NotEqual(t, id1, id3)
}

func TestDomainForChain_KnownChains(t *testing.T) {
	assert.Equal(t, MainnetDomain, DomainForChain(MainnetChainID))
	assert.Equal(t, SepoliaDomain, DomainForChain(SepoliaChainID))
	assert.NotEqual(t, MainnetDomain, SepoliaDomain)
}

func TestDomainForChain_PanicsOnUnknownChain(t *testing.T) {
	assert.Panics(t, func() {
		DomainForChain(999)
	})
}
