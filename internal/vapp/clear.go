package vapp

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/succinctlabs/spn-prover/internal/merkle"
	"github.com/succinctlabs/spn-prover/internal/signing"
)

// Verifier checks a Compressed-mode proof against a verifying key and a
// public-values hash. The caller supplies the concrete implementation
// through State.ProofVerifier; the STF only depends on this interface.
type Verifier interface {
	Verify(vkWords []uint32, publicValuesHash common.Hash) bool
}

// executeClear validates and applies a Clear transaction in its ordered,
// seventeen-step validation sequence; no receipt is ever produced for this
// variant.
func (s *State) executeClear(tx *Clear) error {
	// Step 1: structural presence + domain.
	if tx.Request == nil || tx.Bid == nil || tx.Settle == nil || tx.Execute == nil {
		return newPanic(CodeMissingBody, "clear is missing a required core sub-message")
	}
	for _, d := range []common.Hash{tx.Request.Domain, tx.Bid.Domain, tx.Settle.Domain, tx.Execute.Domain} {
		if d != s.Domain {
			return newPanic(CodeDomainMismatch, "sub-message domain %s does not match state domain %s", d, s.Domain)
		}
	}

	// Step 2: recover signers.
	requesterSigner, err := signing.RecoverSenderRaw(tx.Request.Signature[:], encodeClearRequest(tx.Request))
	if err != nil {
		return newPanic(CodeSignatureDeserialization, "request: %v", err)
	}
	bidSigner, err := signing.RecoverSenderRaw(tx.Bid.Signature[:], encodeClearBid(tx.Bid))
	if err != nil {
		return newPanic(CodeSignatureDeserialization, "bid: %v", err)
	}
	settleSigner, err := signing.RecoverSenderRaw(tx.Settle.Signature[:], encodeClearSettle(tx.Settle))
	if err != nil {
		return newPanic(CodeSignatureDeserialization, "settle: %v", err)
	}
	executeSigner, err := signing.RecoverSenderRaw(tx.Execute.Signature[:], encodeClearExecute(tx.Execute))
	if err != nil {
		return newPanic(CodeSignatureDeserialization, "execute: %v", err)
	}

	// Step 3: request id consistency.
	requestID := signing.RequestID(encodeClearRequest(tx.Request), requesterSigner)
	if tx.Bid.RequestID != requestID || tx.Settle.RequestID != requestID || tx.Execute.RequestID != requestID {
		return newPanic(CodeRequestIDMismatch, "sub-message request id does not match %s", requestID)
	}

	// Step 4: replay protection.
	requestKey := merkle.NewU256Key(new(uint256.Int).SetBytes(requestID.Bytes()))
	if _, ok := s.Txns.Get(requestKey); ok {
		return newPanic(CodeRequestAlreadyProcessed, "request %s already processed", requestID)
	}

	// Step 5: prover exists and delegated signer matches the bid signer.
	prover, ok := s.account(tx.Bid.Prover)
	if !ok {
		return newRevert(CodeProverNotFound, "prover %s does not exist", tx.Bid.Prover)
	}
	if prover.DelegatedSigner != bidSigner {
		return newPanic(CodeDelegatedSignerMismatch, "bid signer %s is not prover's delegated signer %s", bidSigner, prover.DelegatedSigner)
	}

	// Step 6: whitelist.
	if len(tx.Request.Whitelist) > 0 {
		allowed := false
		for _, addr := range tx.Request.Whitelist {
			if addr == tx.Bid.Prover {
				allowed = true
				break
			}
		}
		if !allowed {
			return newPanic(CodeWhitelistViolation, "prover %s is not in request whitelist", tx.Bid.Prover)
		}
	}

	// Step 7-8: settle/execute signer must be the request's or the state's
	// trusted party.
	if settleSigner != tx.Request.Auctioneer && settleSigner != s.Auctioneer {
		return newPanic(CodeAuctioneerMismatch, "settle signer %s is neither request nor state auctioneer", settleSigner)
	}
	if executeSigner != tx.Request.Executor && executeSigner != s.Executor {
		return newPanic(CodeExecutorMismatch, "execute signer %s is neither request nor state executor", executeSigner)
	}

	// Step 9: parse amounts, bound the bid.
	if tx.Request.BaseFee == nil || tx.Request.MaxPricePerPGU == nil || tx.Bid.Amount == nil {
		return newPanic(CodeMissingField, "base fee, max price per pgu, or bid amount missing")
	}
	if tx.Bid.Amount.Gt(tx.Request.MaxPricePerPGU) {
		return newPanic(CodeMaxPricePerPGUExceeded, "bid amount %s exceeds max price per pgu %s", tx.Bid.Amount, tx.Request.MaxPricePerPGU)
	}

	// Step 10: unexecutable short-circuit.
	if tx.Execute.ExecutionStatus == ExecutionUnexecutable {
		if tx.Execute.Punishment == nil {
			return newPanic(CodeMissingField, "punishment required for unexecutable request")
		}
		maxPunishment := new(uint256.Int).Add(
			new(uint256.Int).Mul(tx.Request.MaxPricePerPGU, uint256.NewInt(tx.Request.GasLimit)),
			tx.Request.BaseFee,
		)
		if tx.Execute.Punishment.Gt(maxPunishment) {
			return newPanic(CodeMaxPricePerPGUExceeded, "punishment %s exceeds max %s", tx.Execute.Punishment, maxPunishment)
		}

		requester, ok := s.account(requesterSigner)
		if !ok {
			return newRevert(CodeAccountNotFound, "requester %s does not exist", requesterSigner)
		}
		if requester.Balance.Lt(tx.Execute.Punishment) {
			return newRevert(CodeInsufficientBalance, "requester balance %s less than punishment %s", requester.Balance, tx.Execute.Punishment)
		}
		requester.Balance = new(uint256.Int).Sub(requester.Balance, tx.Execute.Punishment)
		s.putAccount(requesterSigner, requester)
		s.Txns.Insert(requestKey, Processed(true))
		return nil
	}

	// Step 11.
	if tx.Execute.ExecutionStatus != ExecutionExecuted {
		return newPanic(CodeExecutionFailed, "execution status %d is neither Executed nor Unexecutable", tx.Execute.ExecutionStatus)
	}

	// Step 12: fulfill sub-message.
	if tx.Fulfill == nil {
		return newPanic(CodeMissingField, "fulfill sub-message is required once execution succeeded")
	}
	if tx.Fulfill.Domain != s.Domain {
		return newPanic(CodeDomainMismatch, "fulfill domain %s does not match state domain %s", tx.Fulfill.Domain, s.Domain)
	}
	fulfillSigner, err := signing.RecoverSenderRaw(tx.Fulfill.Signature[:], encodeClearFulfill(tx.Fulfill))
	if err != nil {
		return newPanic(CodeSignatureDeserialization, "fulfill: %v", err)
	}
	if fulfillSigner != prover.DelegatedSigner {
		return newPanic(CodeDelegatedSignerMismatch, "fulfill signer %s is not prover's delegated signer %s", fulfillSigner, prover.DelegatedSigner)
	}
	if tx.Fulfill.RequestID != requestID {
		return newPanic(CodeRequestIDMismatch, "fulfill request id does not match %s", requestID)
	}

	// Step 13: public-values hash.
	if tx.Execute.PublicValuesHash == nil {
		return newPanic(CodeMissingField, "execute must supply a public values hash")
	}
	publicValuesHash := *tx.Execute.PublicValuesHash
	if tx.Request.PublicValuesHash != nil && *tx.Request.PublicValuesHash != publicValuesHash {
		return newPanic(CodeInvalidProof, "request and execute public values hash disagree")
	}

	// Step 14: proof verification.
	switch tx.Request.Mode {
	case ProofModeCompressed:
		if s.ProofVerifier == nil || !s.ProofVerifier.Verify(nil, publicValuesHash) {
			return newPanic(CodeInvalidProof, "compressed proof failed verification")
		}
	case ProofModeGroth16, ProofModePlonk:
		if tx.Verify == nil {
			return newPanic(CodeMissingField, "verifier signature required for groth16/plonk mode")
		}
		verifyPreimage := bytes.Join([][]byte{encodeClearFulfill(tx.Fulfill), fulfillSigner.Bytes()}, nil)
		verifierSigner, err := signing.RecoverSenderRaw(tx.Verify.Signature[:], verifyPreimage)
		if err != nil || verifierSigner != s.Verifier {
			return newPanic(CodeInvalidProof, "verifier signature invalid")
		}
	default:
		return newPanic(CodeUnsupportedProofMode, "unsupported proof mode %d", tx.Request.Mode)
	}

	// Step 15: gas accounting.
	if tx.Execute.PGUs == nil {
		return newPanic(CodeMissingField, "execute must report pgus")
	}
	if *tx.Execute.PGUs > tx.Request.GasLimit {
		return newPanic(CodeGasLimitExceeded, "pgus %d exceeds gas limit %d", *tx.Execute.PGUs, tx.Request.GasLimit)
	}

	// Step 16: cost + balance check.
	cost, overflow := new(uint256.Int).MulOverflow(tx.Bid.Amount, uint256.NewInt(*tx.Execute.PGUs))
	if overflow {
		return newPanic(CodeArithmeticOverflow, "bid.amount * pgus overflows")
	}
	cost, overflow = cost.AddOverflow(cost, tx.Request.BaseFee)
	if overflow {
		return newPanic(CodeArithmeticOverflow, "cost + base fee overflows")
	}

	requester, ok := s.account(requesterSigner)
	if !ok {
		return newRevert(CodeAccountNotFound, "requester %s does not exist", requesterSigner)
	}
	if requester.Balance.Lt(cost) {
		return newRevert(CodeInsufficientBalance, "requester balance %s less than cost %s", requester.Balance, cost)
	}

	// Step 17: settle.
	s.Txns.Insert(requestKey, Processed(true))
	requester.Balance = new(uint256.Int).Sub(requester.Balance, cost)
	s.putAccount(requesterSigner, requester)

	// stakerFee is the owner's share (the stake-backing party); proverFee is
	// what remains with the prover account itself once the protocol and the
	// owner have been paid.
	protocolFee, stakerFee, proverFee := splitFee(cost, 0, prover.StakerFeeBips.Uint64())

	treasuryAcc, ok := s.account(s.Treasury)
	if !ok {
		treasuryAcc = NewAccount()
	}
	treasuryAcc.Balance = new(uint256.Int).Add(treasuryAcc.Balance, protocolFee)
	s.putAccount(s.Treasury, treasuryAcc)

	ownerAcc, ok := s.account(prover.Owner)
	if !ok {
		ownerAcc = NewAccount()
	}
	ownerAcc.Balance = new(uint256.Int).Add(ownerAcc.Balance, stakerFee)
	s.putAccount(prover.Owner, ownerAcc)

	prover.Balance = new(uint256.Int).Add(prover.Balance, proverFee)
	s.putAccount(tx.Bid.Prover, prover)

	return nil
}
