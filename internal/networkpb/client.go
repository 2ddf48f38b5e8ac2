// Package networkpb models the gRPC contract the prover node speaks to the
// network service. Proto code generation itself lives outside this
// repository; these are hand-written request/response shapes plus the
// client interface, grounded on
// original_source/crates/rpc/src/fetch.rs's use of
// spn_network_types::prover_network_client::ProverNetworkClient and on
// arcsign's gRPC client wiring.
package networkpb

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FulfillmentStatus mirrors the network's view of a request's lifecycle.
type FulfillmentStatus int

const (
	FulfillmentUnspecified FulfillmentStatus = iota
	FulfillmentRequested
	FulfillmentAssigned
	FulfillmentFulfilled
	FulfillmentUnfulfillable
)

// ExecutionStatus mirrors the executor's verdict on a request.
type ExecutionStatus int

const (
	ExecutionStatusUnspecified ExecutionStatus = iota
	ExecutionStatusExecuted
	ExecutionStatusUnexecutable
)

// ProofMode mirrors the proving system requested for a request.
type ProofMode int

const (
	ProofModeUnspecified ProofMode = iota
	ProofModeCompressed
	ProofModeGroth16
	ProofModePlonk
)

// ProofRequestFilter selects a page of proof requests.
type ProofRequestFilter struct {
	Version           string
	FulfillmentStatus FulfillmentStatus
	ExecutionStatus   ExecutionStatus
	MinDeadline       *int64
	Fulfiller         *common.Address
	NotBidBy          *common.Address
	Limit             uint32
	From              *common.Address
	To                *common.Address
}

// ProofRequest is the detail the node needs to bid on and prove a request.
type ProofRequest struct {
	RequestID       common.Hash
	Requester       common.Address
	Auctioneer      common.Address
	Executor        common.Address
	Whitelist       []common.Address
	ProgramURI      string
	StdinURI        string
	Mode            ProofMode
	GasLimit        uint64
	BaseFee         *uint256.Int
	MaxPricePerPGU  *uint256.Int
	Deadline        int64
	ExecutionStatus ExecutionStatus
}

// BidRequest is the signed envelope submitted by SerialBidder.
type BidRequest struct {
	Nonce     uint64
	RequestID common.Hash
	Amount    *uint256.Int
	Prover    common.Address
	Domain    common.Hash
	Signature [65]byte
}

// FulfillProofRequest is the signed envelope submitted by SerialProver on success.
type FulfillProofRequest struct {
	Nonce     uint64
	RequestID common.Hash
	Proof     []byte
	Domain    common.Hash
	Signature [65]byte
}

// FailFulfillmentRequest reports a failed proving attempt.
type FailFulfillmentRequest struct {
	Nonce     uint64
	RequestID common.Hash
	Domain    common.Hash
	Signature [65]byte
}

// Client is the subset of the network's gRPC service the node consumes.
type Client interface {
	GetOwner(ctx context.Context, address common.Address) (common.Address, error)
	GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error)
	GetNonce(ctx context.Context, address common.Address) (uint64, error)
	GetFilteredProofRequests(ctx context.Context, filter ProofRequestFilter) ([]*ProofRequest, error)
	GetProofRequestDetails(ctx context.Context, requestID common.Hash) (*ProofRequest, error)
	Bid(ctx context.Context, req *BidRequest) error
	FulfillProof(ctx context.Context, req *FulfillProofRequest) error
	FailFulfillment(ctx context.Context, req *FailFulfillmentRequest) error
}
