package vapp

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/succinctlabs/spn-prover/internal/signing"
)

var testDomain = common.HexToHash("0xd0ma1n")

func newTestState() *State {
	treasury := common.HexToAddress("0xTREASURY")
	auctioneer := common.HexToAddress("0xAUCTIONEER")
	executor := common.HexToAddress("0xEXECUTOR")
	verifier := common.HexToAddress("0xVERIFIER")
	return New(testDomain, treasury, auctioneer, executor, verifier)
}

func mustKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	return priv, crypto.PubkeyToAddress(priv.PublicKey)
}

func sign(t *testing.T, priv *ecdsa.PrivateKey, message []byte) [65]byte {
	t.Helper()
	sig, err := signing.Sign(priv, message)
	require.NoError(t, err)
	var out [65]byte
	copy(out[:], sig)
	return out
}

func u(n int64) *uint256.Int { return uint256.NewInt(uint64(n)) }

func TestScenarioA_BasicDeposit(t *testing.T) {
	s := newTestState()
	depositor := common.HexToAddress("0xA")

	receipt, err := s.Execute(&Deposit{
		OnchainMeta: OnchainMeta{OnchainTxID: 1, Block: 0, LogIndex: 1},
		Account:     depositor,
		Amount:      u(100),
	})
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, StatusCompleted, receipt.Status)

	acc, ok := s.account(depositor)
	require.True(t, ok)
	assert.True(t, acc.Balance.Eq(u(100)))

	assert.EqualValues(t, 2, s.TxID)
	assert.EqualValues(t, 2, s.OnchainTxID)
	assert.EqualValues(t, 0, s.OnchainBlock)
	assert.EqualValues(t, 1, s.OnchainLogIdx)
}

func TestScenarioB_OutOfOrderOnchainTx(t *testing.T) {
	s := newTestState()
	depositor := common.HexToAddress("0xA")

	_, err := s.Execute(&Deposit{
		OnchainMeta: OnchainMeta{OnchainTxID: 1, Block: 0, LogIndex: 1},
		Account:     depositor,
		Amount:      u(100),
	})
	require.NoError(t, err)

	_, err = s.Execute(&Deposit{
		OnchainMeta: OnchainMeta{OnchainTxID: 3, Block: 0, LogIndex: 2},
		Account:     depositor,
		Amount:      u(1),
	})
	require.Error(t, err)
	var p *Panic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, CodeOnchainTxOutOfOrder, p.Code)
}

// buildClear assembles a fully-signed, passing Clear transaction per
// scenario (c): requester R deposits, prover P is created with owner O,
// bid/fulfill by O, settle by the global auctioneer, execute by the global
// executor, Compressed mode.
func buildClear(t *testing.T, s *State, requesterPriv *ecdsa.PrivateKey, requester common.Address,
	ownerPriv *ecdsa.PrivateKey, prover common.Address,
	auctioneerPriv, executorPriv *ecdsa.PrivateKey,
	baseFee, maxPrice *uint256.Int, gasLimit uint64,
	bidAmount *uint256.Int, pgus uint64, executionStatus ExecutionStatus, punishment *uint256.Int,
) *Clear {
	t.Helper()

	req := &ClearRequest{
		Domain:         testDomain,
		Auctioneer:     s.Auctioneer,
		Executor:       s.Executor,
		BaseFee:        baseFee,
		MaxPricePerPGU: maxPrice,
		GasLimit:       gasLimit,
		Mode:           ProofModeCompressed,
	}
	req.Signature = sign(t, requesterPriv, encodeClearRequest(req))
	requestID := signing.RequestID(encodeClearRequest(req), requester)

	bid := &ClearBid{Domain: testDomain, RequestID: requestID, Prover: prover, Amount: bidAmount}
	bid.Signature = sign(t, ownerPriv, encodeClearBid(bid))

	settle := &ClearSettle{Domain: testDomain, RequestID: requestID}
	settle.Signature = sign(t, auctioneerPriv, encodeClearSettle(settle))

	pvHash := common.HexToHash("0xPV")
	execute := &ClearExecute{
		Domain:           testDomain,
		RequestID:        requestID,
		ExecutionStatus:  executionStatus,
		PublicValuesHash: &pvHash,
	}
	if executionStatus == ExecutionUnexecutable {
		execute.Punishment = punishment
	} else {
		p := pgus
		execute.PGUs = &p
	}
	execute.Signature = sign(t, executorPriv, encodeClearExecute(execute))

	clear := &Clear{Request: req, Bid: bid, Settle: settle, Execute: execute}

	if executionStatus == ExecutionExecuted {
		fulfill := &ClearFulfill{Domain: testDomain, RequestID: requestID, Proof: []byte("proof")}
		fulfill.Signature = sign(t, ownerPriv, encodeClearFulfill(fulfill))
		clear.Fulfill = fulfill
	}

	return clear
}

func setupProverScenario(t *testing.T) (s *State, requesterPriv, ownerPriv, auctioneerPriv, executorPriv *ecdsa.PrivateKey, requester, owner, prover common.Address) {
	t.Helper()
	s = newTestState()
	s.ProofVerifier = alwaysValidVerifier{}

	requesterPriv, requester = mustKey(t)
	ownerPriv, owner = mustKey(t)
	auctioneerPriv, _ = mustKey(t)
	executorPriv, _ = mustKey(t)
	_, prover = mustKey(t)

	// Deposit 100e6 to requester.
	_, err := s.Execute(&Deposit{
		OnchainMeta: OnchainMeta{OnchainTxID: 1, Block: 0, LogIndex: 1},
		Account:     requester,
		Amount:      u(100_000_000),
	})
	require.NoError(t, err)

	// Create prover with owner O, stakerFeeBips 0.
	_, err = s.Execute(&CreateProver{
		OnchainMeta:   OnchainMeta{OnchainTxID: 2, Block: 0, LogIndex: 2},
		Prover:        prover,
		Owner:         owner,
		StakerFeeBips: u(0),
	})
	require.NoError(t, err)

	// Point settle/execute signers at the state's globals directly.
	s.Auctioneer = crypto.PubkeyToAddress(auctioneerPriv.PublicKey)
	s.Executor = crypto.PubkeyToAddress(executorPriv.PublicKey)

	return
}

func TestScenarioC_CreateProverDelegateClear(t *testing.T) {
	s, requesterPriv, ownerPriv, auctioneerPriv, executorPriv, requester, owner, prover := setupProverScenario(t)

	clear := buildClear(t, s, requesterPriv, requester, ownerPriv, prover, auctioneerPriv, executorPriv,
		u(0), u(100_000), 10_000, u(50_000), 1_000, ExecutionExecuted, nil)

	_, err := s.Execute(clear)
	require.NoError(t, err)

	requesterAcc, ok := s.account(requester)
	require.True(t, ok)
	assert.True(t, requesterAcc.Balance.Eq(u(100_000_000-50_000_000)), "requester balance: %s", requesterAcc.Balance)

	proverAcc, ok := s.account(prover)
	require.True(t, ok)
	assert.True(t, proverAcc.Balance.Eq(u(50_000_000)), "prover balance: %s", proverAcc.Balance)

	_ = owner
}

func TestScenarioD_GasLimitExceeded(t *testing.T) {
	s, requesterPriv, ownerPriv, auctioneerPriv, executorPriv, requester, owner, prover := setupProverScenario(t)
	_ = owner

	clear := buildClear(t, s, requesterPriv, requester, ownerPriv, prover, auctioneerPriv, executorPriv,
		u(0), u(100_000), 10_000, u(50_000), 15_000, ExecutionExecuted, nil)

	_, err := s.Execute(clear)
	require.Error(t, err)
	var p *Panic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, CodeGasLimitExceeded, p.Code)

	requesterAcc, _ := s.account(requester)
	assert.True(t, requesterAcc.Balance.Eq(u(100_000_000)))
}

func TestScenarioE_UnexecutableWithPunishment(t *testing.T) {
	s, requesterPriv, ownerPriv, auctioneerPriv, executorPriv, requester, owner, prover := setupProverScenario(t)
	_ = owner

	clear := buildClear(t, s, requesterPriv, requester, ownerPriv, prover, auctioneerPriv, executorPriv,
		u(0), u(100_000), 10_000, u(50_000), 0, ExecutionUnexecutable, u(25_000_000))

	_, err := s.Execute(clear)
	require.NoError(t, err)

	requesterAcc, _ := s.account(requester)
	assert.True(t, requesterAcc.Balance.Eq(u(100_000_000-25_000_000)))

	proverAcc, ok := s.account(prover)
	require.True(t, ok)
	assert.True(t, proverAcc.Balance.IsZero())
}

func TestScenarioF_WithdrawDrainWithFee(t *testing.T) {
	s := newTestState()
	requesterPriv, requesterAddr := mustKey(t)

	_, err := s.Execute(&Deposit{
		OnchainMeta: OnchainMeta{OnchainTxID: 1, Block: 0, LogIndex: 1},
		Account:     requesterAddr,
		Amount:      new(uint256.Int).Mul(u(101), new(uint256.Int).Exp(u(10), u(18))),
	})
	require.NoError(t, err)

	withdraw := &Withdraw{
		OnchainMeta: OnchainMeta{OnchainTxID: 2, Block: 0, LogIndex: 2},
		Account:     requesterAddr,
		Amount:      new(uint256.Int).Mul(u(60), new(uint256.Int).Exp(u(10), u(18))),
		Auctioneer:  s.Auctioneer,
		Fee:         new(uint256.Int).Exp(u(10), u(18)),
		Domain:      testDomain,
	}
	withdraw.Signature = sign(t, requesterPriv, encodeWithdraw(withdraw))

	receipt, err := s.Execute(withdraw)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, StatusCompleted, receipt.Status)

	acc, _ := s.account(requesterAddr)
	want := new(uint256.Int).Mul(u(40), new(uint256.Int).Exp(u(10), u(18)))
	assert.True(t, acc.Balance.Eq(want), "got %s want %s", acc.Balance, want)

	auctioneerAcc, ok := s.account(s.Auctioneer)
	require.True(t, ok)
	assert.True(t, auctioneerAcc.Balance.Eq(new(uint256.Int).Exp(u(10), u(18))))
}

func TestProperty5_ReplayProtection(t *testing.T) {
	s := newTestState()
	senderPriv, sender := mustKey(t)

	_, err := s.Execute(&Deposit{
		OnchainMeta: OnchainMeta{OnchainTxID: 1, Block: 0, LogIndex: 1},
		Account:     sender,
		Amount:      u(1000),
	})
	require.NoError(t, err)

	transfer := &Transfer{
		To:         common.HexToAddress("0xTO"),
		Amount:     u(10),
		Auctioneer: s.Auctioneer,
		Fee:        u(1),
		Domain:     testDomain,
	}
	transfer.Signature = sign(t, senderPriv, encodeTransfer(transfer))

	_, err = s.Execute(transfer)
	require.NoError(t, err)

	_, err = s.Execute(transfer)
	require.Error(t, err)
	var p *Panic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, CodeTransactionAlreadyProc, p.Code)
}

func TestProperty7_DomainIsolation(t *testing.T) {
	s := newTestState()
	proverPriv, prover := mustKey(t)
	_ = proverPriv

	delegate := &Delegate{
		Prover:   prover,
		Delegate: common.HexToAddress("0xD"),
		Domain:   common.HexToHash("0xWRONG"),
	}
	delegate.Signature = sign(t, proverPriv, encodeDelegate(delegate))

	_, err := s.Execute(delegate)
	require.Error(t, err)
	var p *Panic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, CodeDomainMismatch, p.Code)
}

func TestProperty8_FeeConservation(t *testing.T) {
	s, requesterPriv, ownerPriv, auctioneerPriv, executorPriv, requester, owner, prover := setupProverScenario(t)

	requesterBefore, _ := s.account(requester)
	treasuryBefore, ok := s.account(s.Treasury)
	if !ok {
		treasuryBefore = NewAccount()
	}
	proverBefore, _ := s.account(prover)
	ownerBefore, ok := s.account(owner)
	if !ok {
		ownerBefore = NewAccount()
	}

	clear := buildClear(t, s, requesterPriv, requester, ownerPriv, prover, auctioneerPriv, executorPriv,
		u(0), u(100_000), 10_000, u(50_000), 1_000, ExecutionExecuted, nil)
	_, err := s.Execute(clear)
	require.NoError(t, err)

	requesterAfter, _ := s.account(requester)
	treasuryAfter, _ := s.account(s.Treasury)
	proverAfter, _ := s.account(prover)
	ownerAfter, _ := s.account(owner)

	requesterDelta := new(uint256.Int).Sub(requesterBefore.Balance, requesterAfter.Balance)
	treasuryDelta := new(uint256.Int).Sub(treasuryAfter.Balance, treasuryBefore.Balance)
	proverDelta := new(uint256.Int).Sub(proverAfter.Balance, proverBefore.Balance)
	ownerDelta := new(uint256.Int).Sub(ownerAfter.Balance, ownerBefore.Balance)

	sum := new(uint256.Int).Add(treasuryDelta, new(uint256.Int).Add(proverDelta, ownerDelta))
	assert.True(t, requesterDelta.Eq(sum), "requester delta %s != sum of credits %s", requesterDelta, sum)
}
