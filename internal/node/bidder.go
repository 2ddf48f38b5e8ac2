package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/succinctlabs/spn-prover/internal/networkpb"
	"github.com/succinctlabs/spn-prover/internal/retry"
	"github.com/succinctlabs/spn-prover/internal/signing"
)

// bidRequestBody is the canonical body a bid's signature is computed over,
// encoded with the same field-order discipline as internal/vapp/encode.go.
type bidRequestBody struct {
	Nonce     uint64
	RequestID common.Hash
	Amount    *uint256.Int
	Prover    common.Address
}

func (b bidRequestBody) Encode() []byte {
	buf := signing.EncodeUint64(nil, b.Nonce)
	buf = signing.EncodeBytes(buf, b.RequestID.Bytes())
	buf = signing.EncodeBytes(buf, b.Amount.Bytes())
	buf = signing.EncodeBytes(buf, b.Prover.Bytes())
	return buf
}

// SerialBidder implements the node's single-flight bidding loop. It
// never holds more than one open bid: it skips the tick entirely
// whenever the owner already holds a live assignment.
type SerialBidder struct {
	ctx                 *Context
	bidPricePerPGU      *uint256.Int
	throughputPerSecond float64
}

// NewSerialBidder builds a bidder that offers bidPricePerPGU per proving
// gas unit and assumes a worst-case throughput of throughputPerSecond
// proving gas units per second.
func NewSerialBidder(nc *Context, bidPricePerPGU *uint256.Int, throughputPerSecond float64) *SerialBidder {
	return &SerialBidder{ctx: nc, bidPricePerPGU: bidPricePerPGU, throughputPerSecond: throughputPerSecond}
}

// Bid runs a single bidding tick.
func (b *SerialBidder) Bid(ctx context.Context) error {
	log := b.ctx.Log

	// Step 1.
	owner, err := retry.Do(ctx, log, "get owner", func(ctx context.Context) (common.Address, error) {
		return b.ctx.Network.GetOwner(ctx, b.ctx.Signer.Address())
	})
	if err != nil {
		return fmt.Errorf("bidder: resolving owner: %w", err)
	}

	// Step 2: skip if an assignment is already held.
	assigned, err := b.ctx.Network.GetFilteredProofRequests(ctx, networkpb.ProofRequestFilter{
		FulfillmentStatus: networkpb.FulfillmentAssigned,
		Fulfiller:         &owner,
		Limit:             1,
	})
	if err != nil {
		return fmt.Errorf("bidder: querying assigned requests: %w", err)
	}
	if len(assigned) > 0 {
		log.Debugw("skipping bid tick, assignment already held")
		return nil
	}

	// Step 3.
	requested, err := b.ctx.Network.GetFilteredProofRequests(ctx, networkpb.ProofRequestFilter{
		FulfillmentStatus: networkpb.FulfillmentRequested,
		NotBidBy:          &owner,
		Limit:             1,
	})
	if err != nil {
		return fmt.Errorf("bidder: querying open requests: %w", err)
	}
	if len(requested) != 1 {
		log.Debugw("skipping bid tick", "open_requests", len(requested))
		return nil
	}
	summary := requested[0]

	// Step 4: fetch nonce and full request details, each with retry, then
	// check deadline feasibility against the authoritative gas limit and
	// deadline in the detail response rather than the filter summary.
	nonce, err := retry.Do(ctx, log, "get nonce", func(ctx context.Context) (uint64, error) {
		return b.ctx.Network.GetNonce(ctx, b.ctx.Signer.Address())
	})
	if err != nil {
		return fmt.Errorf("bidder: fetching nonce: %w", err)
	}

	req, err := retry.Do(ctx, log, "get proof request details", func(ctx context.Context) (*networkpb.ProofRequest, error) {
		return b.ctx.Network.GetProofRequestDetails(ctx, summary.RequestID)
	})
	if err != nil {
		return fmt.Errorf("bidder: fetching request details: %w", err)
	}

	requiredTime := float64(req.GasLimit) / b.throughputPerSecond
	remainingTime := float64(req.Deadline - time.Now().Unix())
	if remainingTime < requiredTime {
		log.Debugw("skipping request, insufficient remaining time", "request_id", req.RequestID, "required_time", requiredTime, "remaining_time", remainingTime)
		return nil
	}

	// Step 5.
	body := bidRequestBody{
		Nonce:     nonce,
		RequestID: req.RequestID,
		Amount:    b.bidPricePerPGU,
		Prover:    b.ctx.ProverAddress,
	}
	sig, err := signing.Sign(b.ctx.Signer.Private(), body.Encode())
	if err != nil {
		return fmt.Errorf("bidder: signing bid: %w", err)
	}
	var sigArr [65]byte
	copy(sigArr[:], sig)

	_, err = retry.Do(ctx, log, "submit bid", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.ctx.Network.Bid(ctx, &networkpb.BidRequest{
			Nonce:     body.Nonce,
			RequestID: body.RequestID,
			Amount:    body.Amount,
			Prover:    body.Prover,
			Domain:    b.ctx.Domain,
			Signature: sigArr,
		})
	})
	if err != nil {
		return fmt.Errorf("bidder: submitting bid: %w", err)
	}

	log.Infow("submitted bid", "request_id", req.RequestID, "amount", b.bidPricePerPGU)
	return nil
}
