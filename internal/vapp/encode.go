package vapp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/succinctlabs/spn-prover/internal/signing"
)

// Canonical binary encodings of each signed sub-message body: the same
// bytes a correctly behaving client must sign, and the only bytes the
// STF ever verifies a signature against.

func encodeWithdraw(tx *Withdraw) []byte {
	buf := signing.EncodeBytes(nil, tx.Account.Bytes())
	buf = signing.EncodeBytes(buf, uint256Bytes(tx.Amount))
	buf = signing.EncodeBytes(buf, tx.Auctioneer.Bytes())
	buf = signing.EncodeBytes(buf, uint256Bytes(tx.Fee))
	return buf
}

func encodeDelegate(tx *Delegate) []byte {
	buf := signing.EncodeBytes(nil, tx.Prover.Bytes())
	buf = signing.EncodeBytes(buf, tx.Delegate.Bytes())
	return buf
}

func encodeTransfer(tx *Transfer) []byte {
	buf := signing.EncodeBytes(nil, tx.To.Bytes())
	buf = signing.EncodeBytes(buf, uint256Bytes(tx.Amount))
	buf = signing.EncodeBytes(buf, tx.Auctioneer.Bytes())
	buf = signing.EncodeBytes(buf, uint256Bytes(tx.Fee))
	return buf
}

func encodeClearRequest(r *ClearRequest) []byte {
	buf := signing.EncodeBytes(nil, r.Auctioneer.Bytes())
	buf = signing.EncodeBytes(buf, r.Executor.Bytes())
	for _, w := range r.Whitelist {
		buf = signing.EncodeBytes(buf, w.Bytes())
	}
	buf = signing.EncodeBytes(buf, uint256Bytes(r.BaseFee))
	buf = signing.EncodeBytes(buf, uint256Bytes(r.MaxPricePerPGU))
	buf = signing.EncodeUint64(buf, r.GasLimit)
	buf = signing.EncodeUint64(buf, uint64(r.Mode))
	return buf
}

func encodeClearBid(b *ClearBid) []byte {
	buf := signing.EncodeBytes(nil, b.RequestID.Bytes())
	buf = signing.EncodeBytes(buf, b.Prover.Bytes())
	buf = signing.EncodeBytes(buf, uint256Bytes(b.Amount))
	return buf
}

func encodeClearSettle(s *ClearSettle) []byte {
	return signing.EncodeBytes(nil, s.RequestID.Bytes())
}

func encodeClearExecute(e *ClearExecute) []byte {
	buf := signing.EncodeBytes(nil, e.RequestID.Bytes())
	buf = signing.EncodeUint64(buf, uint64(e.ExecutionStatus))
	if e.PublicValuesHash != nil {
		buf = signing.EncodeBytes(buf, e.PublicValuesHash.Bytes())
	}
	if e.PGUs != nil {
		buf = signing.EncodeUint64(buf, *e.PGUs)
	}
	if e.Punishment != nil {
		buf = signing.EncodeBytes(buf, uint256Bytes(e.Punishment))
	}
	return buf
}

func encodeClearFulfill(f *ClearFulfill) []byte {
	buf := signing.EncodeBytes(nil, f.RequestID.Bytes())
	buf = signing.EncodeBytes(buf, f.Proof)
	return buf
}

func uint256Bytes(v *uint256.Int) []byte {
	if v == nil {
		v = uint256.NewInt(0)
	}
	b := v.Bytes32()
	return b[:]
}

// recoverAndCheckDomain recovers the signer of sig over message and
// requires the claimed domain to match expected.
func recoverAndCheckDomain(domain, expected common.Hash, sig [65]byte, message []byte) (common.Address, error) {
	if domain != expected {
		return common.Address{}, newPanic(CodeDomainMismatch, "domain %s does not match state domain %s", domain, expected)
	}
	addr, err := signing.RecoverSenderRaw(sig[:], message)
	if err != nil {
		return common.Address{}, newPanic(CodeSignatureDeserialization, "%v", err)
	}
	return addr, nil
}
