package node

import "github.com/succinctlabs/spn-prover/internal/networkpb"

// ProvingKey is an opaque handle produced by ZKVM.Setup from a program ELF.
type ProvingKey interface{}

// ExecutionReport summarizes a dry run of a program against its stdin,
// used for cycle-count metrics.
type ExecutionReport struct {
	Cycles uint64
}

// ZKVM is the external proving collaborator the prover loop drives inside
// a blocking task: Setup builds a proving key from a program ELF, Execute
// dry-runs it against stdin to get a cycle count, and Prove produces the
// final proof. A concrete implementation wraps the actual zkVM (e.g.
// SP1); this package only depends on the interface.
type ZKVM interface {
	Setup(elf []byte) (ProvingKey, error)
	Execute(pk ProvingKey, stdin []byte) (ExecutionReport, error)
	Prove(pk ProvingKey, stdin []byte, mode networkpb.ProofMode) ([]byte, error)
}
