package vapp

import "fmt"

// Panic is a structural violation of the state machine: the transaction
// must never have been included, and a sequencer observing one must reject
// the batch outright. Grounded on
// original_source/crates/vapp/src/errors.rs's VAppPanic.
type Panic struct {
	Code string
	Err  error
}

func (p *Panic) Error() string { return fmt.Sprintf("vapp panic [%s]: %v", p.Code, p.Err) }
func (p *Panic) Unwrap() error { return p.Err }

func newPanic(code string, format string, args ...any) *Panic {
	return &Panic{Code: code, Err: fmt.Errorf(format, args...)}
}

// Revert records that a transaction was attempted and rejected for a
// reason the ledger still needs to account for (e.g. insufficient
// balance) rather than a structural violation. When Execute returns one,
// neither the balances nor the counters have changed.
type Revert struct {
	Code string
	Err  error
}

func (r *Revert) Error() string { return fmt.Sprintf("vapp revert [%s]: %v", r.Code, r.Err) }
func (r *Revert) Unwrap() error { return r.Err }

func newRevert(code string, format string, args ...any) *Revert {
	return &Revert{Code: code, Err: fmt.Errorf(format, args...)}
}

// Panic codes.
const (
	CodeOnchainTxOutOfOrder      = "OnchainTxOutOfOrder"
	CodeBlockNumberOutOfOrder    = "BlockNumberOutOfOrder"
	CodeLogIndexOutOfOrder       = "LogIndexOutOfOrder"
	CodeMissingBody              = "MissingBody"
	CodeDomainMismatch           = "DomainMismatch"
	CodeSignatureDeserialization = "SignatureDeserializationFailed"
	CodeAddressDeserialization   = "AddressDeserializationFailed"
	CodeRequestIDMismatch        = "RequestIdMismatch"
	CodeUnsupportedProofMode     = "UnsupportedProofMode"
	CodeInvalidProof             = "InvalidProof"
	CodeMissingField             = "MissingField"
	CodeAuctioneerMismatch       = "AuctioneerMismatch"
	CodeExecutorMismatch         = "ExecutorMismatch"
	CodeGasLimitExceeded         = "GasLimitExceeded"
	CodeMaxPricePerPGUExceeded   = "MaxPricePerPguExceeded"
	CodeArithmeticOverflow       = "ArithmeticOverflow"
	CodeDelegatedSignerMismatch  = "DelegatedSignerMismatch"
	CodeRequestAlreadyProcessed  = "RequestAlreadyProcessed"
	CodeTransactionAlreadyProc   = "TransactionAlreadyProcessed"
	CodeOnlyOwnerCanDelegate     = "OnlyOwnerCanDelegate"
	CodeExecutionFailed          = "ExecutionFailed"
	CodeWhitelistViolation       = "WhitelistViolation"
)

// Revert codes.
const (
	CodeInsufficientBalance = "InsufficientBalance"
	CodeAccountNotFound     = "AccountNotFound"
	CodeProverNotFound      = "ProverNotFound"
)
