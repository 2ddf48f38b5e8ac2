// Package node implements the prover node's three cooperative loops —
// bidder, prover, monitor — wired together over a shared Context.
// Grounded on original_source/src/bid.rs and prove.rs for the per-tick
// algorithms, and on chainadapter/provider/registry.go's sync.Once +
// RWMutex singleton pattern for the watchdog and region-client caches.
package node

import (
	"crypto/ecdsa"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/succinctlabs/spn-prover/internal/artifacts"
	"github.com/succinctlabs/spn-prover/internal/networkpb"
)

// Signer produces signatures and exposes the address they recover to, over
// the node's single private key.
type Signer struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// NewSigner pairs priv with addr, the address its signatures recover to;
// the caller supplies addr, it is not derived here.
func NewSigner(priv *ecdsa.PrivateKey, addr common.Address) *Signer {
	return &Signer{priv: priv, addr: addr}
}

func (s *Signer) Address() common.Address { return s.addr }

func (s *Signer) Private() *ecdsa.PrivateKey { return s.priv }

// Metrics accumulates the node's lifetime counters behind a single mutex.
type Metrics struct {
	mu               sync.Mutex
	fulfilled        uint64
	onlineSince      time.Time
	totalCycles      uint64
	totalProvingTime time.Duration
}

// NewMetrics starts the online_since clock at construction time.
func NewMetrics(onlineSince time.Time) *Metrics {
	return &Metrics{onlineSince: onlineSince}
}

func (m *Metrics) RecordFulfillment(cycles uint64, provingTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fulfilled++
	m.totalCycles += cycles
	m.totalProvingTime += provingTime
}

// Snapshot is a consistent point-in-time read of every counter.
type Snapshot struct {
	Fulfilled        uint64
	OnlineSince      time.Time
	TotalCycles      uint64
	TotalProvingTime time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Fulfilled:        m.fulfilled,
		OnlineSince:      m.onlineSince,
		TotalCycles:      m.totalCycles,
		TotalProvingTime: m.totalProvingTime,
	}
}

// Context is the shared state every loop reads from: the network client,
// the node's signer, its prover address, and the metrics counters (spec
// §4.6 "NodeContext exposes network_client() and signer() plus a metrics
// struct").
type Context struct {
	Network       networkpb.Client
	Signer        *Signer
	ProverAddress common.Address
	Store         *artifacts.Store
	Bucket        string
	Region        string
	Domain        common.Hash
	Log           *zap.SugaredLogger
	Metrics       *Metrics
}
