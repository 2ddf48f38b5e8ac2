// Package signing implements the signed message envelope: canonical
// encoding of message bodies, Ethereum personal-sign recovery, and the
// two hard-coded EIP-712 domain separators. Grounded on
// arcsign/src/chainadapter/ethereum/signer.go's use of
// github.com/ethereum/go-ethereum/crypto for address derivation.
package signing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// eip712DomainTypeHash is keccak256("EIP712Domain(string name,string version,uint256 chainId)").
var eip712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))

const domainName = "Succinct Prover Network"
const domainVersion = "1.0.0"

// chainID values for the two supported deployments.
const (
	MainnetChainID = 1
	SepoliaChainID = 11155111
)

// domainSeparator computes the EIP-712 domain separator for {name, version,
// chainId}.
func domainSeparator(chainID int64) common.Hash {
	nameHash := crypto.Keccak256Hash([]byte(domainName))
	versionHash := crypto.Keccak256Hash([]byte(domainVersion))

	chainIDBytes := common.LeftPadBytes(new(big.Int).SetInt64(chainID).Bytes(), 32)

	buf := make([]byte, 0, 32*4)
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, nameHash.Bytes()...)
	buf = append(buf, versionHash.Bytes()...)
	buf = append(buf, chainIDBytes...)

	return crypto.Keccak256Hash(buf)
}

// MainnetDomain and SepoliaDomain are the two domain separators a
// message's claimed domain must equal to be accepted.
var (
	MainnetDomain = domainSeparator(MainnetChainID)
	SepoliaDomain = domainSeparator(SepoliaChainID)
)

// DomainForChain resolves a chain ID to its domain separator. It panics for
// unsupported chain IDs since the two domains are the universe of values a
// correctly configured node will ever ask for.
func DomainForChain(chainID int64) common.Hash {
	switch chainID {
	case MainnetChainID:
		return MainnetDomain
	case SepoliaChainID:
		return SepoliaDomain
	default:
		panic("signing: unsupported chain id")
	}
}
