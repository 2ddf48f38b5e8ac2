package node

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// bidProveTick is the sleep between bid+prove iterations.
const bidProveTick = 3 * time.Second

// Node wires the bidder, prover, and monitor into two cooperative loops:
// the sequential bid+prove loop and the independent monitor loop, running
// as parallel tasks under a single errgroup.Group so either's failure
// cancels the other. They share only the context's metrics.
type Node struct {
	ctx     *Context
	bidder  *SerialBidder
	prover  *SerialProver
	monitor *SerialMonitor
}

// New wires a Node from its three loops.
func New(nc *Context, bidder *SerialBidder, prover *SerialProver, monitor *SerialMonitor) *Node {
	return &Node{ctx: nc, bidder: bidder, prover: prover, monitor: monitor}
}

// Run blocks until ctx is cancelled or either loop returns a fatal error.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return n.runBidProveLoop(ctx) })
	g.Go(func() error { return n.runMonitorLoop(ctx) })

	return g.Wait()
}

func (n *Node) runBidProveLoop(ctx context.Context) error {
	log := n.ctx.Log
	for {
		if err := n.bidder.Bid(ctx); err != nil {
			log.Errorw("bid tick failed", "cause", err)
		}
		if err := n.prover.Prove(ctx); err != nil {
			log.Errorw("prove tick failed", "cause", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bidProveTick):
		}
	}
}

func (n *Node) runMonitorLoop(ctx context.Context) error {
	log := n.ctx.Log
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.monitor.Record(ctx); err != nil {
				log.Errorw("monitor tick failed", "cause", err)
			}
		}
	}
}
