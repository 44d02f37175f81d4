// Package explorer implements the Etherscan-compatible contract verification
// protocol: building requests, classifying responses and the submit/poll client.
package explorer

import "net/url"

const (
	moduleContract = "contract"

	// ActionVerifySourceCode submits source for verification.
	ActionVerifySourceCode = "verifysourcecode"
	// ActionCheckVerifyStatus queries a submitted verification job.
	ActionCheckVerifyStatus = "checkverifystatus"

	// CodeFormatStandardJSON is the only code format this client submits.
	CodeFormatStandardJSON = "solidity-standard-json-input"

	// constructorArgumentsField is misspelt in the explorer API and must stay that way.
	constructorArgumentsField = "constructorArguements"
)

// Header is the field subset shared by every request. Action tells the verbs apart.
type Header struct {
	APIKey string
	Module string
	Action string
}

func (h Header) values() url.Values {
	v := url.Values{}
	v.Set("apikey", h.APIKey)
	v.Set("module", h.Module)
	v.Set("action", h.Action)
	return v
}

// VerifyParams are the inputs collected from the build output and the caller.
type VerifyParams struct {
	APIKey               string
	ContractAddress      string
	SourceCode           string // serialized standard JSON input
	SourceName           string // source file path, e.g. "src/Token.sol"
	ContractName         string
	CompilerVersion      string
	ConstructorArguments string // ABI-encoded, hex
}

// VerifyRequest is the verifysourcecode request, sent as a form-encoded POST body.
type VerifyRequest struct {
	Header
	ContractAddress      string
	SourceCode           string
	CodeFormat           string
	ContractName         string
	CompilerVersion      string
	ConstructorArguments string
}

// NewVerifyRequest maps params onto the wire request. The contract name is
// qualified with its source path so same-named contracts in different files
// are unambiguous.
func NewVerifyRequest(p VerifyParams) VerifyRequest {
	return VerifyRequest{
		Header: Header{
			APIKey: p.APIKey,
			Module: moduleContract,
			Action: ActionVerifySourceCode,
		},
		ContractAddress:      p.ContractAddress,
		SourceCode:           p.SourceCode,
		CodeFormat:           CodeFormatStandardJSON,
		ContractName:         p.SourceName + ":" + p.ContractName,
		CompilerVersion:      p.CompilerVersion,
		ConstructorArguments: p.ConstructorArguments,
	}
}

// Values returns the request as form fields.
func (r VerifyRequest) Values() url.Values {
	v := r.Header.values()
	v.Set("contractaddress", r.ContractAddress)
	v.Set("sourceCode", r.SourceCode)
	v.Set("codeformat", r.CodeFormat)
	v.Set("contractname", r.ContractName)
	v.Set("compilerversion", r.CompilerVersion)
	v.Set(constructorArgumentsField, r.ConstructorArguments)
	return v
}

// CheckStatusRequest is the checkverifystatus request, sent as a GET query string.
type CheckStatusRequest struct {
	Header
	GUID string
}

// NewCheckStatusRequest builds the status query for a submitted job.
func NewCheckStatusRequest(apiKey, guid string) CheckStatusRequest {
	return CheckStatusRequest{
		Header: Header{
			APIKey: apiKey,
			Module: moduleContract,
			Action: ActionCheckVerifyStatus,
		},
		GUID: guid,
	}
}

// Values returns the request as query parameters.
func (r CheckStatusRequest) Values() url.Values {
	v := r.Header.values()
	v.Set("guid", r.GUID)
	return v
}
