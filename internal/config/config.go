// Package config loads node configuration from a YAML file with environment
// variable overrides, grounded on nspcc-dev-neo-go's YAML-driven
// ApplicationConfiguration pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/succinctlabs/spn-prover/internal/logging"
)

// NetworkDomain selects which hard-coded EIP-712 domain separator the node
// signs and validates against.
type NetworkDomain string

const (
	DomainMainnet NetworkDomain = "mainnet"
	DomainSepolia NetworkDomain = "sepolia"
)

// NodeConfig is the top-level configuration for a prover node process.
type NodeConfig struct {
	// RPCURL is the address of the network's gRPC service.
	RPCURL string `yaml:"rpcUrl"`
	// PrivateKeyHex is the node's signing key (hex, without a "0x" prefix).
	PrivateKeyHex string `yaml:"privateKey"`
	// ProverAddress is the on-chain prover account this node represents.
	ProverAddress string `yaml:"proverAddress"`
	// Domain selects the EIP-712 domain separator.
	Domain NetworkDomain `yaml:"domain"`

	// BidPricePerPGU is the $PROVE price per proving gas unit the bidder
	// offers, as a base-10 integer string (parsed into uint256 at startup).
	BidPricePerPGU string `yaml:"bidPricePerPgu"`
	// ThroughputPGUPerSecond bounds which requests the bidder considers
	// feasible given the deadline.
	ThroughputPGUPerSecond float64 `yaml:"throughputPgusPerSecond"`

	// ArtifactRegion and ArtifactBucket address the default object store
	// used to download programs/stdins and upload proofs.
	ArtifactRegion string `yaml:"artifactRegion"`
	ArtifactBucket string `yaml:"artifactBucket"`

	Logging logging.Config `yaml:"logging"`
}

// Load reads and validates a NodeConfig from path, applying environment
// overrides afterward.
func Load(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NodeConfig) applyEnvOverrides() {
	if v := os.Getenv("SPN_RPC_URL"); v != "" {
		c.RPCURL = v
	}
	if v := os.Getenv("SPN_PRIVATE_KEY"); v != "" {
		c.PrivateKeyHex = v
	}
	if v := os.Getenv("SPN_PROVER_ADDR"); v != "" {
		c.ProverAddress = v
	}
	if v := os.Getenv("SPN_ARTIFACT_REGION"); v != "" {
		c.ArtifactRegion = v
	}
	if v := os.Getenv("SPN_ARTIFACT_BUCKET"); v != "" {
		c.ArtifactBucket = v
	}
}

// Validate checks that required fields are present.
func (c *NodeConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpcUrl is required")
	}
	if c.PrivateKeyHex == "" {
		return fmt.Errorf("privateKey is required")
	}
	if c.Domain != DomainMainnet && c.Domain != DomainSepolia {
		return fmt.Errorf("domain must be %q or %q, got %q", DomainMainnet, DomainSepolia, c.Domain)
	}
	return c.Logging.Validate()
}
