// Package chains holds the chain-facing types shared by the verification
// service, the artifact loader and the chain provider.
package chains

import (
	"context"
	"encoding/json"
)

// Provider reads state from a deployed chain.
type Provider interface {
	// ChainID returns the EIP-155 chain identifier (eth_chainId)
	ChainID(ctx context.Context) (uint64, error)
	// GetDeployedBytecode returns the runtime code at address (eth_getCode at latest)
	GetDeployedBytecode(ctx context.Context, address string) ([]byte, error)
}

// Artifact is everything the explorer needs to recompile a contract.
type Artifact struct {
	ContractName string `json:"contractName"`
	// SourcePath is the compilation-target path, e.g. "src/Token.sol"
	SourcePath string `json:"sourcePath"`
	// CompilerVersion in explorer form: "v0.8.20+commit.a1b2c3d4"
	CompilerVersion   string          `json:"compilerVersion"`
	StandardJSONInput json.RawMessage `json:"standardJsonInput"`
	DeployedBytecode  string          `json:"deployedBytecode,omitempty"`
	ABI               json.RawMessage `json:"abi,omitempty"`
	EVMVersion        string          `json:"evmVersion,omitempty"`
	Optimizer         OptimizerConfig `json:"optimizer"`
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// QualifiedName is the "path:Contract" form used by explorers.
func (a *Artifact) QualifiedName() string {
	return a.SourcePath + ":" + a.ContractName
}

// Match types reported by a local bytecode comparison.
const (
	MatchFull    = "full"
	MatchPartial = "partial"
	MatchNone    = "none"
	MatchSkipped = "skipped"
)

// CompareResult is the outcome of comparing on-chain code with an artifact.
type CompareResult struct {
	Match     bool   `json:"match"`
	MatchType string `json:"matchType"`
	Message   string `json:"message"`
}
