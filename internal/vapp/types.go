// Package vapp implements the vApp state transition function: the
// deterministic ledger executor that applies deposits, withdrawals, prover
// creation, delegation, transfers, and proof-request clearing against a
// Merkle-committed account/request state. Grounded on
// original_source/crates/vapp/src/state.rs.
package vapp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/succinctlabs/spn-prover/internal/merkle"
)

// Account is a leaf of the 160-bit-keyed accounts tree.
type Account struct {
	Balance         *uint256.Int
	Owner           common.Address
	DelegatedSigner common.Address
	StakerFeeBips   *uint256.Int
}

// NewAccount returns a zero-value account: no balance, no owner, no
// delegated signer, no staker fee.
func NewAccount() Account {
	return Account{
		Balance:       uint256.NewInt(0),
		StakerFeeBips: uint256.NewInt(0),
	}
}

// Encode ABI-encodes the account as four left-padded 32-byte words, the
// canonical leaf encoding hashed by the accounts tree.
func (a Account) Encode() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, common.LeftPadBytes(a.Owner.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(a.DelegatedSigner.Bytes(), 32)...)
	buf = append(buf, uint256ToBytes32(a.Balance)...)
	buf = append(buf, uint256ToBytes32(a.StakerFeeBips)...)
	return buf
}

func uint256ToBytes32(v *uint256.Int) []byte {
	if v == nil {
		v = uint256.NewInt(0)
	}
	b := v.Bytes32()
	return b[:]
}

var _ merkle.Value = Account{}

// Processed is the boolean leaf value of the processed-transactions tree:
// write-once presence bits guarding against replay.
type Processed bool

// Encode encodes true/false as distinct single-byte leaves.
func (p Processed) Encode() []byte {
	if p {
		return []byte{1}
	}
	return []byte{0}
}

var _ merkle.Value = Processed(false)

// AccountKey indexes the accounts tree.
type AccountKey = merkle.AddressKey

// RequestKey indexes the processed-transactions tree.
type RequestKey = merkle.U256Key

// ReceiptStatus is the outcome recorded for an on-chain-originated
// transaction.
type ReceiptStatus int

const (
	StatusCompleted ReceiptStatus = iota
	StatusReverted
)

func (s ReceiptStatus) String() string {
	if s == StatusCompleted {
		return "Completed"
	}
	return "Reverted"
}

// Receipt is produced only by Deposit, Withdraw, and CreateProver, and
// becomes part of the STF's public output.
type Receipt struct {
	OnchainTxID uint64
	Variant     string
	Status      ReceiptStatus
	Action      []byte
}

// ProofMode selects how a Clear's fulfillment proof is checked.
type ProofMode int

const (
	ProofModeUnspecified ProofMode = iota
	ProofModeCompressed
	ProofModeGroth16
	ProofModePlonk
)

// ExecutionStatus reports whether the executor could run the request.
type ExecutionStatus int

const (
	ExecutionUnspecified ExecutionStatus = iota
	ExecutionExecuted
	ExecutionUnexecutable
)

// Transaction is implemented by each of the six STF variants.
type Transaction interface {
	isTransaction()
}

// OnchainMeta carries the block/log/sequence position every on-chain-
// originated transaction variant must validate and advance.
type OnchainMeta struct {
	OnchainTxID uint64
	Block       uint64
	LogIndex    uint64
}

// Deposit credits account by amount; always produces a Completed receipt.
type Deposit struct {
	OnchainMeta
	Account common.Address
	Amount  *uint256.Int
}

func (Deposit) isTransaction() {}

// CreateProver initializes a prover account, self-delegating to its owner.
type CreateProver struct {
	OnchainMeta
	Prover        common.Address
	Owner         common.Address
	StakerFeeBips *uint256.Int
}

func (CreateProver) isTransaction() {}

// Withdraw is signed off-chain by the withdrawing account, but still rides
// along the on-chain sequence counters.
type Withdraw struct {
	OnchainMeta
	Account    common.Address
	Amount     *uint256.Int // uint256Max() (all bits set) means "drain minus fee"
	Auctioneer common.Address
	Fee        *uint256.Int
	Domain     common.Hash
	Signature  [65]byte
}

func (Withdraw) isTransaction() {}

// Delegate reassigns a prover's delegated signer; signed by the prover's
// owner.
type Delegate struct {
	Prover    common.Address
	Delegate  common.Address
	Domain    common.Hash
	Signature [65]byte
}

func (Delegate) isTransaction() {}

// Transfer moves funds between two accounts plus a fee to the auctioneer.
type Transfer struct {
	To         common.Address
	Amount     *uint256.Int
	Auctioneer common.Address
	Fee        *uint256.Int
	Domain     common.Hash
	Signature  [65]byte
}

func (Transfer) isTransaction() {}

// ClearRequest is the requester-signed sub-message describing the work
// being cleared.
type ClearRequest struct {
	Domain            common.Hash
	Signature         [65]byte
	Auctioneer        common.Address
	Executor          common.Address
	Whitelist         []common.Address
	BaseFee           *uint256.Int
	MaxPricePerPGU    *uint256.Int
	GasLimit          uint64
	Mode              ProofMode
	PublicValuesHash  *common.Hash // optional
}

// ClearBid is the prover-signed sub-message committing to a price.
type ClearBid struct {
	Domain    common.Hash
	Signature [65]byte
	RequestID common.Hash
	Prover    common.Address
	Amount    *uint256.Int
}

// ClearSettle is the auctioneer-signed sub-message.
type ClearSettle struct {
	Domain    common.Hash
	Signature [65]byte
	RequestID common.Hash
	Signer    common.Address
}

// ClearExecute is the executor-signed sub-message reporting the outcome.
type ClearExecute struct {
	Domain           common.Hash
	Signature        [65]byte
	RequestID        common.Hash
	ExecutionStatus  ExecutionStatus
	PublicValuesHash *common.Hash
	PGUs             *uint64
	Punishment       *uint256.Int
}

// ClearFulfill is the prover-delegated-signer-signed sub-message carrying
// the proof.
type ClearFulfill struct {
	Domain    common.Hash
	Signature [65]byte
	RequestID common.Hash
	Proof     []byte
}

// ClearVerify is the verifier's optional ETH signature over the fulfill id
// (required for Groth16/Plonk modes).
type ClearVerify struct {
	Signature [65]byte
}

// Clear is the composite, five-sub-message settlement transaction.
type Clear struct {
	Request *ClearRequest
	Bid     *ClearBid
	Settle  *ClearSettle
	Execute *ClearExecute
	Fulfill *ClearFulfill
	Verify  *ClearVerify // optional
}

func (Clear) isTransaction() {}
