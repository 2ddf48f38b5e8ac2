package networkpb

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/succinctlabs/spn-prover/internal/retry"
)

// GRPCClient implements Client against the network's gRPC service over a
// raw grpc.ClientConnInterface, every call wrapped in the retry harness.
// It invokes RPCs by fully-qualified method name rather than through
// generated stubs, since proto code generation happens outside this
// repository; the wire shapes still match the service's protobuf
// definitions.
type GRPCClient struct {
	conn grpc.ClientConnInterface
	log  *zap.SugaredLogger
}

// NewGRPCClient wraps an established connection to the network service.
func NewGRPCClient(conn grpc.ClientConnInterface, log *zap.SugaredLogger) *GRPCClient {
	return &GRPCClient{conn: conn, log: log}
}

const (
	methodGetOwner                 = "/spn.ProverNetwork/GetOwner"
	methodGetBalance               = "/spn.ProverNetwork/GetBalance"
	methodGetNonce                 = "/spn.ProverNetwork/GetNonce"
	methodGetFilteredProofRequests = "/spn.ProverNetwork/GetFilteredProofRequests"
	methodGetProofRequestDetails   = "/spn.ProverNetwork/GetProofRequestDetails"
	methodBid                      = "/spn.ProverNetwork/Bid"
	methodFulfillProof             = "/spn.ProverNetwork/FulfillProof"
	methodFailFulfillment          = "/spn.ProverNetwork/FailFulfillment"
)

type getOwnerRequest struct{ Address []byte }
type getOwnerResponse struct{ Owner []byte }

func (c *GRPCClient) GetOwner(ctx context.Context, address common.Address) (common.Address, error) {
	return retry.Do(ctx, c.log, "get owner", func(ctx context.Context) (common.Address, error) {
		req := &getOwnerRequest{Address: address.Bytes()}
		resp := &getOwnerResponse{}
		if err := c.conn.Invoke(ctx, methodGetOwner, req, resp); err != nil {
			return common.Address{}, err
		}
		return common.BytesToAddress(resp.Owner), nil
	})
}

type getBalanceRequest struct{ Address []byte }
type getBalanceResponse struct{ Amount string }

func (c *GRPCClient) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	return retry.Do(ctx, c.log, "get balance", func(ctx context.Context) (*uint256.Int, error) {
		req := &getBalanceRequest{Address: address.Bytes()}
		resp := &getBalanceResponse{}
		if err := c.conn.Invoke(ctx, methodGetBalance, req, resp); err != nil {
			return nil, err
		}
		amount, err := uint256.FromDecimal(resp.Amount)
		if err != nil {
			return nil, fmt.Errorf("networkpb: invalid balance %q: %w", resp.Amount, err)
		}
		return amount, nil
	})
}

type getNonceRequest struct{ Address []byte }
type getNonceResponse struct{ Nonce uint64 }

func (c *GRPCClient) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	return retry.Do(ctx, c.log, "get nonce", func(ctx context.Context) (uint64, error) {
		req := &getNonceRequest{Address: address.Bytes()}
		resp := &getNonceResponse{}
		if err := c.conn.Invoke(ctx, methodGetNonce, req, resp); err != nil {
			return 0, err
		}
		return resp.Nonce, nil
	})
}

type getFilteredProofRequestsResponse struct{ Requests []*ProofRequest }

func (c *GRPCClient) GetFilteredProofRequests(ctx context.Context, filter ProofRequestFilter) ([]*ProofRequest, error) {
	return retry.Do(ctx, c.log, "get filtered proof requests", func(ctx context.Context) ([]*ProofRequest, error) {
		resp := &getFilteredProofRequestsResponse{}
		if err := c.conn.Invoke(ctx, methodGetFilteredProofRequests, &filter, resp); err != nil {
			return nil, err
		}
		return resp.Requests, nil
	})
}

func (c *GRPCClient) GetProofRequestDetails(ctx context.Context, requestID common.Hash) (*ProofRequest, error) {
	return retry.Do(ctx, c.log, "get proof request details", func(ctx context.Context) (*ProofRequest, error) {
		req := struct{ RequestID []byte }{RequestID: requestID.Bytes()}
		resp := &ProofRequest{}
		if err := c.conn.Invoke(ctx, methodGetProofRequestDetails, &req, resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

func (c *GRPCClient) Bid(ctx context.Context, req *BidRequest) error {
	_, err := retry.Do(ctx, c.log, "bid", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.conn.Invoke(ctx, methodBid, req, &struct{}{})
	})
	return err
}

func (c *GRPCClient) FulfillProof(ctx context.Context, req *FulfillProofRequest) error {
	_, err := retry.Do(ctx, c.log, "fulfill proof", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.conn.Invoke(ctx, methodFulfillProof, req, &struct{}{})
	})
	return err
}

func (c *GRPCClient) FailFulfillment(ctx context.Context, req *FailFulfillmentRequest) error {
	_, err := retry.Do(ctx, c.log, "fail fulfillment", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.conn.Invoke(ctx, methodFailFulfillment, req, &struct{}{})
	})
	return err
}

var _ Client = (*GRPCClient)(nil)
