package node

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/succinctlabs/spn-prover/internal/networkpb"
)

// mockClient is a minimal in-memory networkpb.Client used to drive
// SerialBidder/SerialProver without a real network service.
type mockClient struct {
	mu sync.Mutex

	owner   common.Address
	balance *uint256.Int
	nonce   uint64

	assigned  []*networkpb.ProofRequest
	requested []*networkpb.ProofRequest

	bids     []*networkpb.BidRequest
	fulfills []*networkpb.FulfillProofRequest
	failures []*networkpb.FailFulfillmentRequest
}

func newMockClient(owner common.Address) *mockClient {
	return &mockClient{owner: owner, balance: uint256.NewInt(0)}
}

func (m *mockClient) GetOwner(ctx context.Context, address common.Address) (common.Address, error) {
	return m.owner, nil
}

func (m *mockClient) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	return m.balance, nil
}

func (m *mockClient) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.nonce
	m.nonce++
	return n, nil
}

func (m *mockClient) GetFilteredProofRequests(ctx context.Context, filter networkpb.ProofRequestFilter) ([]*networkpb.ProofRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch filter.FulfillmentStatus {
	case networkpb.FulfillmentAssigned:
		if filter.ExecutionStatus == networkpb.ExecutionStatusUnexecutable {
			return nil, nil
		}
		return m.assigned, nil
	case networkpb.FulfillmentRequested:
		return m.requested, nil
	default:
		return nil, nil
	}
}

func (m *mockClient) GetProofRequestDetails(ctx context.Context, requestID common.Hash) (*networkpb.ProofRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.assigned {
		if r.RequestID == requestID {
			return r, nil
		}
	}
	for _, r := range m.requested {
		if r.RequestID == requestID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockClient) Bid(ctx context.Context, req *networkpb.BidRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids = append(m.bids, req)
	return nil
}

func (m *mockClient) FulfillProof(ctx context.Context, req *networkpb.FulfillProofRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fulfills = append(m.fulfills, req)
	return nil
}

func (m *mockClient) FailFulfillment(ctx context.Context, req *networkpb.FailFulfillmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, req)
	return nil
}

var _ networkpb.Client = (*mockClient)(nil)
