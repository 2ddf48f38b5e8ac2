package vapp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/succinctlabs/spn-prover/internal/merkle"
	"github.com/succinctlabs/spn-prover/internal/signing"
)

// State is the vApp ledger: a Merkle-committed account tree, a Merkle-
// committed processed-transactions tree, and the monotonic counters that
// order on-chain-originated transactions.
type State struct {
	Domain common.Hash

	TxID          uint64
	OnchainTxID   uint64
	OnchainBlock  uint64
	OnchainLogIdx uint64

	Accounts *merkle.Tree[AccountKey, Account]
	Txns     *merkle.Tree[RequestKey, Processed]

	Treasury   common.Address
	Auctioneer common.Address
	Executor   common.Address
	Verifier   common.Address

	// ProofVerifier checks Compressed-mode proofs during Clear (step 14).
	// It is nil in tests that don't exercise Compressed mode; a Clear that
	// needs it without one configured fails proof verification.
	ProofVerifier Verifier
}

// New constructs an empty vApp state for domain, with the four trusted
// party addresses fixed at genesis.
func New(domain common.Hash, treasury, auctioneer, executor, verifier common.Address) *State {
	return &State{
		Domain:      domain,
		TxID:        1,
		OnchainTxID: 1,
		Accounts:    merkle.New[AccountKey, Account](),
		Txns:        merkle.New[RequestKey, Processed](),
		Treasury:    treasury,
		Auctioneer:  auctioneer,
		Executor:    executor,
		Verifier:    verifier,
	}
}

// Root computes the current accounts/requests Merkle roots. The STF itself
// does not fold these into a single state-container hash (that belongs to
// the caller wiring this into a zkVM public-values commitment) — it just
// exposes the two roots the caller needs.
func (s *State) Root() (accountsRoot, requestsRoot common.Hash) {
	return s.Accounts.Root(), s.Txns.Root()
}

func (s *State) account(addr common.Address) (Account, bool) {
	return s.Accounts.Get(AccountKey(addr))
}

func (s *State) putAccount(addr common.Address, acc Account) {
	s.Accounts.Insert(AccountKey(addr), acc)
}

// Execute applies tx against the state and returns its receipt (only
// Deposit, Withdraw, and CreateProver ever produce one). tx_id is
// incremented on every on-chain-originated transaction regardless of
// outcome, and on every off-chain transaction that succeeds.
func (s *State) Execute(tx Transaction) (*Receipt, error) {
	switch t := tx.(type) {
	case *Deposit:
		return s.executeDeposit(t)
	case *Withdraw:
		return s.executeWithdraw(t)
	case *CreateProver:
		return s.executeCreateProver(t)
	case *Delegate:
		if err := s.executeDelegate(t); err != nil {
			return nil, err
		}
		s.TxID++
		return nil, nil
	case *Transfer:
		if err := s.executeTransfer(t); err != nil {
			return nil, err
		}
		s.TxID++
		return nil, nil
	case *Clear:
		if err := s.executeClear(t); err != nil {
			return nil, err
		}
		s.TxID++
		return nil, nil
	case nil:
		return nil, newPanic("MissingBody", "transaction is nil")
	default:
		return nil, newPanic("UnknownTransaction", "unrecognized transaction type %T", tx)
	}
}

// validateOnchainSequence increments TxID on entry, before any check, then
// enforces strictly-ordered on-chain position and advances the on-chain
// counters once the ordering checks pass — the caller still owns whatever receipt/panic results from executing
// the variant's own logic.
func (s *State) validateOnchainSequence(meta OnchainMeta) error {
	s.TxID++

	if meta.OnchainTxID != s.OnchainTxID {
		return newPanic(CodeOnchainTxOutOfOrder, "expected %d, got %d", s.OnchainTxID, meta.OnchainTxID)
	}
	if meta.Block < s.OnchainBlock {
		return newPanic(CodeBlockNumberOutOfOrder, "block %d precedes current %d", meta.Block, s.OnchainBlock)
	}
	if meta.Block == s.OnchainBlock && meta.LogIndex <= s.OnchainLogIdx {
		return newPanic(CodeLogIndexOutOfOrder, "log index %d does not advance past %d", meta.LogIndex, s.OnchainLogIdx)
	}

	s.OnchainTxID++
	s.OnchainBlock = meta.Block
	s.OnchainLogIdx = meta.LogIndex
	return nil
}

func (s *State) executeDeposit(tx *Deposit) (*Receipt, error) {
	if err := s.validateOnchainSequence(tx.OnchainMeta); err != nil {
		return nil, err
	}

	acc, ok := s.account(tx.Account)
	if !ok {
		acc = NewAccount()
	}
	acc.Balance = new(uint256.Int).Add(acc.Balance, tx.Amount)
	s.putAccount(tx.Account, acc)

	return &Receipt{
		OnchainTxID: tx.OnchainTxID,
		Variant:     "Deposit",
		Status:      StatusCompleted,
		Action:      Account{}.Encode(),
	}, nil
}

func (s *State) executeCreateProver(tx *CreateProver) (*Receipt, error) {
	if err := s.validateOnchainSequence(tx.OnchainMeta); err != nil {
		return nil, err
	}

	acc := NewAccount()
	acc.Owner = tx.Owner
	acc.DelegatedSigner = tx.Owner
	acc.StakerFeeBips = tx.StakerFeeBips
	s.putAccount(tx.Prover, acc)

	return &Receipt{
		OnchainTxID: tx.OnchainTxID,
		Variant:     "CreateProver",
		Status:      StatusCompleted,
		Action:      acc.Encode(),
	}, nil
}

func (s *State) executeWithdraw(tx *Withdraw) (*Receipt, error) {
	if err := s.validateOnchainSequence(tx.OnchainMeta); err != nil {
		return nil, err
	}

	signer, err := recoverAndCheckDomain(tx.Domain, s.Domain, tx.Signature, encodeWithdraw(tx))
	if err != nil {
		return nil, err
	}
	if signer != tx.Account {
		return nil, newPanic("OnlyAccountCanWithdraw", "signer %s is not account %s", signer, tx.Account)
	}

	acc, ok := s.account(tx.Account)
	if !ok {
		return &Receipt{OnchainTxID: tx.OnchainTxID, Variant: "Withdraw", Status: StatusReverted}, nil
	}

	amount := tx.Amount
	if amount.Eq(uint256Max()) {
		if acc.Balance.Lt(tx.Fee) {
			return &Receipt{OnchainTxID: tx.OnchainTxID, Variant: "Withdraw", Status: StatusReverted}, nil
		}
		amount = new(uint256.Int).Sub(acc.Balance, tx.Fee)
	}

	total, overflow := new(uint256.Int).AddOverflow(amount, tx.Fee)
	if overflow || acc.Balance.Lt(total) {
		return &Receipt{OnchainTxID: tx.OnchainTxID, Variant: "Withdraw", Status: StatusReverted}, nil
	}

	acc.Balance = new(uint256.Int).Sub(acc.Balance, total)
	s.putAccount(tx.Account, acc)

	auctioneerAcc, ok := s.account(tx.Auctioneer)
	if !ok {
		auctioneerAcc = NewAccount()
	}
	auctioneerAcc.Balance = new(uint256.Int).Add(auctioneerAcc.Balance, tx.Fee)
	s.putAccount(tx.Auctioneer, auctioneerAcc)

	return &Receipt{
		OnchainTxID: tx.OnchainTxID,
		Variant:     "Withdraw",
		Status:      StatusCompleted,
		Action:      acc.Encode(),
	}, nil
}

func uint256Max() *uint256.Int {
	max := new(uint256.Int)
	return max.Not(max)
}

func (s *State) executeDelegate(tx *Delegate) error {
	signer, err := recoverAndCheckDomain(tx.Domain, s.Domain, tx.Signature, encodeDelegate(tx))
	if err != nil {
		return err
	}

	acc, ok := s.account(tx.Prover)
	if !ok {
		return newRevert(CodeProverNotFound, "prover %s does not exist", tx.Prover)
	}
	if signer != acc.Owner {
		return newPanic(CodeOnlyOwnerCanDelegate, "signer %s is not owner %s", signer, acc.Owner)
	}

	acc.DelegatedSigner = tx.Delegate
	s.putAccount(tx.Prover, acc)
	return nil
}

func (s *State) executeTransfer(tx *Transfer) error {
	senderAddr, err := recoverAndCheckDomain(tx.Domain, s.Domain, tx.Signature, encodeTransfer(tx))
	if err != nil {
		return err
	}

	txHash := signing.RequestID(encodeTransfer(tx), senderAddr)
	txKey := merkle.NewU256Key(new(uint256.Int).SetBytes(txHash.Bytes()))
	if _, ok := s.Txns.Get(txKey); ok {
		return newPanic(CodeTransactionAlreadyProc, "transfer %s already processed", txHash)
	}

	sender, ok := s.account(senderAddr)
	if !ok {
		return newRevert(CodeAccountNotFound, "sender %s does not exist", senderAddr)
	}

	total, overflow := new(uint256.Int).AddOverflow(tx.Amount, tx.Fee)
	if overflow {
		return newPanic(CodeArithmeticOverflow, "amount + fee overflows")
	}
	if sender.Balance.Lt(total) {
		return newRevert(CodeInsufficientBalance, "sender balance %s less than %s", sender.Balance, total)
	}

	sender.Balance = new(uint256.Int).Sub(sender.Balance, total)
	s.putAccount(senderAddr, sender)

	recipient, ok := s.account(tx.To)
	if !ok {
		recipient = NewAccount()
	}
	recipient.Balance = new(uint256.Int).Add(recipient.Balance, tx.Amount)
	s.putAccount(tx.To, recipient)

	auctioneerAcc, ok := s.account(tx.Auctioneer)
	if !ok {
		auctioneerAcc = NewAccount()
	}
	auctioneerAcc.Balance = new(uint256.Int).Add(auctioneerAcc.Balance, tx.Fee)
	s.putAccount(tx.Auctioneer, auctioneerAcc)

	s.Txns.Insert(txKey, Processed(true))
	return nil
}
