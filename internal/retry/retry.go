// Package retry implements the exponential-backoff retry harness shared by
// the network client and the node's bidder and prover loops: classify an error as transient
// or permanent, and keep retrying transient failures until the operation
// succeeds, fails permanently, or the total elapsed time exceeds a timeout.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultTimeout is the total elapsed time budget for a retried operation.
const DefaultTimeout = 120 * time.Second

// initialInterval is the first backoff delay; it doubles on every retry up
// to maxInterval.
const (
	initialInterval = 1 * time.Second
	maxInterval     = 120 * time.Second
)

// transientTransportSubstrings classifies non-gRPC transport errors (DNS
// failures, reset connections, handshake failures, timeouts) as retryable.
// Matching is case-insensitive.
var transientTransportSubstrings = []string{
	"tls handshake",
	"dns error",
	"connection reset",
	"broken pipe",
	"transport error",
	"failed to lookup",
	"timeout",
	"deadline exceeded",
}

// transientCodes are gRPC statuses worth retrying.
var transientCodes = map[codes.Code]bool{
	codes.Unavailable:      true,
	codes.DeadlineExceeded: true,
	codes.Internal:         true,
	codes.Aborted:          true,
}

// PermanentError wraps an error to signal that the harness must not retry it
// even though it would otherwise look transient. Callers that already know a
// failure is final (e.g. validation errors) can return this directly.
type PermanentError struct {
	Err error
}

func (p *PermanentError) Error() string { return p.Err.Error() }
func (p *PermanentError) Unwrap() error { return p.Err }

// classify reports whether err should be retried.
func classify(err error) bool {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return transientCodes[st.Code()]
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range transientTransportSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Operation is a nullary, retryable unit of work.
type Operation[T any] func(ctx context.Context) (T, error)

// Do retries op under the default timeout, logging every retry and the
// final permanent failure under the given operation name (e.g.
// "submitting bid", "fetching nonce").
func Do[T any](ctx context.Context, log *zap.SugaredLogger, name string, op Operation[T]) (T, error) {
	return DoWithTimeout(ctx, log, name, DefaultTimeout, op)
}

// DoWithTimeout is Do with a caller-supplied total elapsed time budget.
func DoWithTimeout[T any](ctx context.Context, log *zap.SugaredLogger, name string, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	interval := initialInterval

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !classify(err) {
			log.Errorw("permanent error", "operation", name, "cause", err, "attempt", attempt)
			return zero, err
		}

		if time.Now().After(deadline) {
			log.Errorw("retry budget exhausted", "operation", name, "cause", err, "attempt", attempt)
			return zero, err
		}

		log.Warnw("transient error, retrying", "operation", name, "cause", err, "attempt", attempt, "backoff", interval)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}
