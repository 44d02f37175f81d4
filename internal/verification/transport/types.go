// Package transport provides HTTP request/response types for the verification domain.
package transport

import (
	"encoding/json"
	"time"

	"github.com/pendergraft/explorerverify/internal/chains"
	"github.com/pendergraft/explorerverify/internal/endpoints"
	"github.com/pendergraft/explorerverify/internal/verification/domain"
)

// APIKeyHeader carries a per-request explorer API key.
const APIKeyHeader = "X-Explorer-Api-Key"

// CreateVerificationRequest is the HTTP request body for starting a verification.
type CreateVerificationRequest struct {
	ChainID              uint64          `json:"chainId"`
	Network              string          `json:"network,omitempty"`
	Address              string          `json:"address"`
	ContractName         string          `json:"contractName"`
	SourcePath           string          `json:"sourcePath"`
	CompilerVersion      string          `json:"compilerVersion"`
	StandardJSONInput    json.RawMessage `json:"standardJsonInput"`
	ConstructorArguments string          `json:"constructorArguments,omitempty"`
	DeployedBytecode     string          `json:"deployedBytecode,omitempty"`
}

// ToDomain converts CreateVerificationRequest to domain.VerifyRequest.
func (r CreateVerificationRequest) ToDomain(apiKey string) domain.VerifyRequest {
	return domain.VerifyRequest{
		ChainID:              r.ChainID,
		Network:              r.Network,
		Address:              r.Address,
		ContractName:         r.ContractName,
		SourcePath:           r.SourcePath,
		CompilerVersion:      r.CompilerVersion,
		StandardJSONInput:    r.StandardJSONInput,
		ConstructorArguments: r.ConstructorArguments,
		DeployedBytecode:     r.DeployedBytecode,
		APIKey:               apiKey,
	}
}

// VerificationResponse describes one attempt.
type VerificationResponse struct {
	ID           string                `json:"id"`
	ChainID      uint64                `json:"chainId"`
	Network      string                `json:"network,omitempty"`
	Address      string                `json:"address"`
	ContractName string                `json:"contractName"`
	GUID         string                `json:"guid,omitempty"`
	Status       string                `json:"status"`
	Message      string                `json:"message,omitempty"`
	BrowserURL   string                `json:"browserUrl,omitempty"`
	Precheck     *chains.CompareResult `json:"precheck,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// FromDomain converts a domain result.
func FromDomain(r *domain.Result) VerificationResponse {
	return VerificationResponse{
		ID:           r.ID,
		ChainID:      r.ChainID,
		Network:      r.Network,
		Address:      r.Address,
		ContractName: r.ContractName,
		GUID:         r.GUID,
		Status:       string(r.Status),
		Message:      r.Message,
		BrowserURL:   r.BrowserURL,
		Precheck:     r.Precheck,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ListResponse is the response for listing verifications.
type ListResponse struct {
	Data       []VerificationResponse `json:"data"`
	Pagination Pagination             `json:"pagination"`
}

// Pagination provides pagination metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

// NetworkItem is one entry of the endpoint table.
type NetworkItem struct {
	ChainID    uint64 `json:"chainId"`
	Name       string `json:"name"`
	APIURL     string `json:"apiUrl"`
	BrowserURL string `json:"browserUrl"`
}

// NetworksResponse lists the supported networks.
type NetworksResponse struct {
	Data []NetworkItem `json:"data"`
}

func networkItem(n endpoints.Network) NetworkItem {
	return NetworkItem{ChainID: n.ChainID, Name: n.Name, APIURL: n.APIURL, BrowserURL: n.BrowserURL}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
