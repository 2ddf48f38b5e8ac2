// Command prover runs a single decentralized prover node: it reads its
// configuration from a YAML file, connects to the network's gRPC service
// and its artifact store, and runs the bid+prove and monitor loops until
// interrupted. CLI flag parsing, proto code generation, and the zkVM's
// internals live outside this repository; this file only wires the
// pieces together, grounded on nspcc-dev-neo-go/cli/server's
// signal.Notify shutdown pattern.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/succinctlabs/spn-prover/internal/artifacts"
	"github.com/succinctlabs/spn-prover/internal/config"
	"github.com/succinctlabs/spn-prover/internal/logging"
	"github.com/succinctlabs/spn-prover/internal/networkpb"
	"github.com/succinctlabs/spn-prover/internal/node"
	"github.com/succinctlabs/spn-prover/internal/signing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "prover:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	priv, err := crypto.HexToECDSA(cfg.PrivateKeyHex)
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}
	signerAddr := crypto.PubkeyToAddress(priv.PublicKey)

	var chainID int64
	switch cfg.Domain {
	case config.DomainMainnet:
		chainID = signing.MainnetChainID
	case config.DomainSepolia:
		chainID = signing.SepoliaChainID
	}
	domain := signing.DomainForChain(chainID)

	conn, err := grpc.NewClient(cfg.RPCURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dialing network service %s: %w", cfg.RPCURL, err)
	}
	defer conn.Close()

	networkClient := networkpb.NewGRPCClient(conn, log)

	bidPrice, err := uint256.FromDecimal(cfg.BidPricePerPGU)
	if err != nil {
		return fmt.Errorf("parsing bidPricePerPgu %q: %w", cfg.BidPricePerPGU, err)
	}

	nc := &node.Context{
		Network:       networkClient,
		Signer:        node.NewSigner(priv, signerAddr),
		ProverAddress: common.HexToAddress(cfg.ProverAddress),
		Store:         artifacts.NewStore(artifacts.NewRegionClients()),
		Bucket:        cfg.ArtifactBucket,
		Region:        cfg.ArtifactRegion,
		Domain:        domain,
		Log:           log,
		Metrics:       node.NewMetrics(time.Now()),
	}

	owner, err := nc.Network.GetOwner(context.Background(), nc.Signer.Address())
	if err != nil {
		return fmt.Errorf("resolving owner: %w", err)
	}

	if gpuPath, ok := node.ProbeGPU(); ok {
		log.Infow("gpu prover available", "nvidia_smi", gpuPath)
	} else {
		log.Info("no gpu detected, falling back to cpu prover")
	}

	bidder := node.NewSerialBidder(nc, bidPrice, cfg.ThroughputPGUPerSecond)
	prover := node.NewSerialProver(nc, noZKVM{}, owner)
	monitor := node.NewSerialMonitor(nc)
	n := node.New(nc, bidder, prover, monitor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	log.Infow("starting prover node", "prover_address", nc.ProverAddress, "domain", cfg.Domain)
	if err := n.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("node exited: %w", err)
	}
	return nil
}

// noZKVM is a placeholder collaborator: the real zkVM integration is an
// external dependency outside this repository.
type noZKVM struct{}

func (noZKVM) Setup(elf []byte) (node.ProvingKey, error) {
	return nil, fmt.Errorf("zkvm: not configured")
}

func (noZKVM) Execute(pk node.ProvingKey, stdin []byte) (node.ExecutionReport, error) {
	return node.ExecutionReport{}, fmt.Errorf("zkvm: not configured")
}

func (noZKVM) Prove(pk node.ProvingKey, stdin []byte, mode networkpb.ProofMode) ([]byte, error) {
	return nil, fmt.Errorf("zkvm: not configured")
}
