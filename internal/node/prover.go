package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/succinctlabs/spn-prover/internal/artifacts"
	"github.com/succinctlabs/spn-prover/internal/networkpb"
	"github.com/succinctlabs/spn-prover/internal/retry"
	"github.com/succinctlabs/spn-prover/internal/signing"
)

// fulfillProofRequestBody mirrors the fulfill sub-message body the proof
// submission is signed over.
type fulfillProofRequestBody struct {
	Nonce     uint64
	RequestID common.Hash
	Proof     []byte
}

func (b fulfillProofRequestBody) Encode() []byte {
	buf := signing.EncodeUint64(nil, b.Nonce)
	buf = signing.EncodeBytes(buf, b.RequestID.Bytes())
	buf = signing.EncodeBytes(buf, b.Proof)
	return buf
}

// failFulfillmentRequestBody is the body signed when a proving attempt is
// abandoned.
type failFulfillmentRequestBody struct {
	Nonce     uint64
	RequestID common.Hash
}

func (b failFulfillmentRequestBody) Encode() []byte {
	buf := signing.EncodeUint64(nil, b.Nonce)
	buf = signing.EncodeBytes(buf, b.RequestID.Bytes())
	return buf
}

// unexecutableSet is the mutex-guarded set of request ids the watchdog has
// observed as Unexecutable, shared between the watchdog goroutine and any
// number of in-flight proof tasks.
type unexecutableSet struct {
	mu  sync.Mutex
	ids map[common.Hash]struct{}
}

func newUnexecutableSet() *unexecutableSet {
	return &unexecutableSet{ids: make(map[common.Hash]struct{})}
}

func (u *unexecutableSet) add(id common.Hash) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids[id] = struct{}{}
}

func (u *unexecutableSet) contains(id common.Hash) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.ids[id]
	return ok
}

// SerialProver implements the node's at-most-one-concurrent-proof loop.
// The watchdog goroutine that refreshes the unexecutable set is started
// at most once per SerialProver, guarded by watchdogOnce, mirroring
// chainadapter/provider/registry.go's sync.Once-guarded singleton
// registry.
type SerialProver struct {
	ctx   *Context
	vm    ZKVM
	owner common.Address

	unexecutable *unexecutableSet
	watchdogOnce sync.Once
}

// NewSerialProver builds a prover bound to owner's assigned requests.
func NewSerialProver(nc *Context, vm ZKVM, owner common.Address) *SerialProver {
	return &SerialProver{
		ctx:          nc,
		vm:           vm,
		owner:        owner,
		unexecutable: newUnexecutableSet(),
	}
}

// startUnexecutableWatchdog spawns, at most once, a background goroutine
// that polls every 5s for requests the network has marked Unexecutable
// and adds their ids to the shared set.
func (p *SerialProver) startUnexecutableWatchdog(ctx context.Context) {
	p.watchdogOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reqs, err := p.ctx.Network.GetFilteredProofRequests(ctx, networkpb.ProofRequestFilter{
						FulfillmentStatus: networkpb.FulfillmentAssigned,
						Fulfiller:         &p.owner,
						ExecutionStatus:   networkpb.ExecutionStatusUnexecutable,
					})
					if err != nil {
						p.ctx.Log.Warnw("unexecutable watchdog poll failed", "cause", err)
						continue
					}
					for _, r := range reqs {
						p.unexecutable.add(r.RequestID)
					}
				}
			}
		}()
	})
}

// Prove runs a single proving tick.
func (p *SerialProver) Prove(ctx context.Context) error {
	log := p.ctx.Log
	p.startUnexecutableWatchdog(ctx)

	// Step 1.
	assigned, err := p.ctx.Network.GetFilteredProofRequests(ctx, networkpb.ProofRequestFilter{
		FulfillmentStatus: networkpb.FulfillmentAssigned,
		Fulfiller:         &p.owner,
		Limit:             1,
	})
	if err != nil {
		return fmt.Errorf("prover: querying assigned requests: %w", err)
	}
	if len(assigned) == 0 {
		return nil
	}
	req := assigned[0]

	// Step 2.
	if p.unexecutable.contains(req.RequestID) {
		log.Warnw("request marked unexecutable before proving started", "request_id", req.RequestID)
		return p.reportFailure(ctx, req.RequestID)
	}

	// Step 3.
	program, err := p.ctx.Store.DownloadRawFromURI(ctx, req.ProgramURI, p.ctx.Region, artifacts.TypeProgram)
	if err != nil {
		log.Errorw("failed to download program", "request_id", req.RequestID, "cause", err)
		return p.reportFailure(ctx, req.RequestID)
	}
	stdin, err := p.ctx.Store.DownloadRawFromURI(ctx, req.StdinURI, p.ctx.Region, artifacts.TypeStdin)
	if err != nil {
		log.Errorw("failed to download stdin", "request_id", req.RequestID, "cause", err)
		return p.reportFailure(ctx, req.RequestID)
	}

	// Step 4.
	if req.Mode == networkpb.ProofModeUnspecified {
		log.Errorw("request has unspecified proof mode", "request_id", req.RequestID)
		return p.reportFailure(ctx, req.RequestID)
	}

	// Step 5: blocking proof task + watchdog abort.
	result, cycles, provingTime, err := p.runProofTask(ctx, req.RequestID, program, stdin, req.Mode)
	if err != nil {
		log.Errorw("proving failed", "request_id", req.RequestID, "cause", err)
		return p.reportFailure(ctx, req.RequestID)
	}

	// Step 6.
	if err := p.submitProof(ctx, req.RequestID, result); err != nil {
		return fmt.Errorf("prover: submitting proof: %w", err)
	}

	// Step 8.
	p.ctx.Metrics.RecordFulfillment(cycles, provingTime)
	log.Infow("fulfilled request", "request_id", req.RequestID, "cycles", cycles, "proving_time", provingTime)
	return nil
}

// runProofTask drives the zkVM collaborator on a dedicated goroutine and
// races it against a 2s-interval watchdog that checks whether the request
// has since been marked unexecutable.
func (p *SerialProver) runProofTask(ctx context.Context, requestID common.Hash, elf, stdin []byte, mode networkpb.ProofMode) (proof []byte, cycles uint64, provingTime time.Duration, err error) {
	type outcome struct {
		proof  []byte
		cycles uint64
		err    error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic while proving: %v", r)}
			}
		}()
		pk, setupErr := p.vm.Setup(elf)
		if setupErr != nil {
			done <- outcome{err: fmt.Errorf("setup: %w", setupErr)}
			return
		}
		report, execErr := p.vm.Execute(pk, stdin)
		if execErr != nil {
			done <- outcome{err: fmt.Errorf("execute: %w", execErr)}
			return
		}
		proofBytes, proveErr := p.vm.Prove(pk, stdin, mode)
		if proveErr != nil {
			done <- outcome{err: fmt.Errorf("prove: %w", proveErr)}
			return
		}
		done <- outcome{proof: proofBytes, cycles: report.Cycles}
	}()

	watchdog := time.NewTicker(2 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case o := <-done:
			return o.proof, o.cycles, time.Since(start), o.err
		case <-watchdog.C:
			if p.unexecutable.contains(requestID) {
				return nil, 0, time.Since(start), fmt.Errorf("proving cancelled: request became unexecutable")
			}
		case <-ctx.Done():
			return nil, 0, time.Since(start), ctx.Err()
		}
	}
}

func (p *SerialProver) submitProof(ctx context.Context, requestID common.Hash, proof []byte) error {
	log := p.ctx.Log
	nonce, err := retry.Do(ctx, log, "get nonce", func(ctx context.Context) (uint64, error) {
		return p.ctx.Network.GetNonce(ctx, p.ctx.Signer.Address())
	})
	if err != nil {
		return fmt.Errorf("fetching nonce: %w", err)
	}

	body := fulfillProofRequestBody{Nonce: nonce, RequestID: requestID, Proof: proof}
	sig, err := signing.Sign(p.ctx.Signer.Private(), body.Encode())
	if err != nil {
		return fmt.Errorf("signing fulfillment: %w", err)
	}
	var sigArr [65]byte
	copy(sigArr[:], sig)

	_, err = retry.Do(ctx, log, "fulfill proof", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.ctx.Network.FulfillProof(ctx, &networkpb.FulfillProofRequest{
			Nonce:     nonce,
			RequestID: requestID,
			Proof:     proof,
			Domain:    p.ctx.Domain,
			Signature: sigArr,
		})
	})
	return err
}

// reportFailure submits a fail-fulfillment transaction for requestID (spec
// §4.6 step 7 and failure semantics).
func (p *SerialProver) reportFailure(ctx context.Context, requestID common.Hash) error {
	log := p.ctx.Log
	nonce, err := retry.Do(ctx, log, "get nonce", func(ctx context.Context) (uint64, error) {
		return p.ctx.Network.GetNonce(ctx, p.ctx.Signer.Address())
	})
	if err != nil {
		return fmt.Errorf("prover: fetching nonce for fail-fulfillment: %w", err)
	}

	body := failFulfillmentRequestBody{Nonce: nonce, RequestID: requestID}
	sig, err := signing.Sign(p.ctx.Signer.Private(), body.Encode())
	if err != nil {
		return fmt.Errorf("prover: signing fail-fulfillment: %w", err)
	}
	var sigArr [65]byte
	copy(sigArr[:], sig)

	_, err = retry.Do(ctx, log, "fail fulfillment", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.ctx.Network.FailFulfillment(ctx, &networkpb.FailFulfillmentRequest{
			Nonce:     nonce,
			RequestID: requestID,
			Domain:    p.ctx.Domain,
			Signature: sigArr,
		})
	})
	if err != nil {
		return fmt.Errorf("prover: submitting fail-fulfillment: %w", err)
	}
	log.Warnw("reported failed fulfillment", "request_id", requestID)
	return nil
}
