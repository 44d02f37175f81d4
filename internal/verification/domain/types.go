// Package domain contains the business logic for contract verification.
package domain

import (
	"encoding/json"
	"time"

	"github.com/pendergraft/explorerverify/internal/chains"
	"github.com/pendergraft/explorerverify/internal/storage"
)

// Status is the lifecycle state of a verification
type Status = storage.Status

// Verification statuses
const (
	StatusPending         = storage.StatusPending
	StatusSubmitted       = storage.StatusSubmitted
	StatusVerified        = storage.StatusVerified
	StatusRejected        = storage.StatusRejected
	StatusAlreadyVerified = storage.StatusAlreadyVerified
	StatusError           = storage.StatusError
)

// VerifyRequest is everything needed to verify one deployed contract.
type VerifyRequest struct {
	// ChainID may be zero when the service has a chain provider to ask
	ChainID uint64 `json:"chainId,omitempty"`
	// Network is a label used for messages and to reject the simulated network
	Network              string          `json:"network,omitempty"`
	Address              string          `json:"address"`
	ContractName         string          `json:"contractName"`
	SourcePath           string          `json:"sourcePath"`
	CompilerVersion      string          `json:"compilerVersion"`
	StandardJSONInput    json.RawMessage `json:"standardJsonInput"`
	ConstructorArguments string          `json:"constructorArguments,omitempty"`
	// DeployedBytecode enables a local comparison with on-chain code before submitting
	DeployedBytecode string `json:"deployedBytecode,omitempty"`
	// APIKey overrides the service's explorer API key
	APIKey string `json:"-"`
}

// RequestFromArtifact fills the compiler-derived fields of a request.
func RequestFromArtifact(a *chains.Artifact) VerifyRequest {
	return VerifyRequest{
		ContractName:      a.ContractName,
		SourcePath:        a.SourcePath,
		CompilerVersion:   a.CompilerVersion,
		StandardJSONInput: a.StandardJSONInput,
		DeployedBytecode:  a.DeployedBytecode,
	}
}

// CheckRequest asks for the status of an already submitted job.
type CheckRequest struct {
	ChainID uint64
	Network string
	GUID    string
	APIKey  string
}

// Result describes a verification attempt.
type Result struct {
	ID           string                `json:"id,omitempty"`
	ChainID      uint64                `json:"chainId"`
	Network      string                `json:"network,omitempty"`
	Address      string                `json:"address,omitempty"`
	ContractName string                `json:"contractName,omitempty"`
	GUID         string                `json:"guid,omitempty"`
	Status       Status                `json:"status"`
	Message      string                `json:"message,omitempty"`
	BrowserURL   string                `json:"browserUrl,omitempty"`
	Precheck     *chains.CompareResult `json:"precheck,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Terminal reports whether the attempt has finished
func (r *Result) Terminal() bool {
	return r.Status.Terminal()
}

// ListFilter selects attempts to list
type ListFilter struct {
	ChainID uint64
	Address string
	Status  Status
	Limit   int
	Cursor  string
}

// ListResult is one page of attempts
type ListResult struct {
	Results    []Result
	HasMore    bool
	NextCursor string
}

func resultFromAttempt(a *storage.Attempt) *Result {
	return &Result{
		ID:           a.ID,
		ChainID:      a.ChainID,
		Network:      a.Network,
		Address:      a.Address,
		ContractName: a.ContractName,
		GUID:         a.GUID,
		Status:       a.Status,
		Message:      a.Message,
		BrowserURL:   a.BrowserURL,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
