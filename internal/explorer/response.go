package explorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Literal messages of the explorer API. They are undocumented and unversioned,
// so every string match lives here.
const (
	msgPending               = "Pending in queue"
	msgVerificationFailure   = "Fail - Unable to verify"
	msgVerificationSuccess   = "Pass - Verified"
	msgBytecodeMissingPrefix = "Unable to locate ContractCode at"
	msgAlreadyVerified       = "already verified"
)

// Response is the decoded {status, result} envelope of any explorer response.
// For an accepted submission Message holds the job GUID.
type Response struct {
	Status  int
	Message string
}

type envelope struct {
	Status json.RawMessage `json:"status"`
	Result json.RawMessage `json:"result"`
}

// ParseResponse decodes a raw response body. Unknown status values decode to 0,
// which classifies as not ok.
func ParseResponse(data []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &Response{
		Status:  parseStatus(env.Status),
		Message: parseResult(env.Result),
	}, nil
}

// DecodeResponse reads and parses a response body.
func DecodeResponse(r io.Reader) (*Response, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading explorer response: %w", err)
	}
	return ParseResponse(data)
}

// parseStatus accepts both "1" and 1.
func parseStatus(raw json.RawMessage) int {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseResult returns string results as-is and anything else as its JSON text.
func parseResult(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// IsOK reports a successful protocol envelope, independent of the verification outcome.
func (r *Response) IsOK() bool {
	return r.Status == 1
}

// IsPending reports a job still waiting in the explorer's queue.
func (r *Response) IsPending() bool {
	return r.Message == msgPending
}

// IsVerificationFailure reports a definitive rejection of the submitted source.
func (r *Response) IsVerificationFailure() bool {
	return r.Message == msgVerificationFailure
}

// IsVerificationSuccess reports a verified contract.
func (r *Response) IsVerificationSuccess() bool {
	return r.Message == msgVerificationSuccess
}

// IsBytecodeMissingInNetworkError reports that the explorer has no code for
// the address yet, usually indexing lag after a recent deployment.
func (r *Response) IsBytecodeMissingInNetworkError() bool {
	return strings.HasPrefix(r.Message, msgBytecodeMissingPrefix)
}

// IsAlreadyVerified reports a duplicate submission for verified source.
func (r *Response) IsAlreadyVerified() bool {
	return strings.Contains(strings.ToLower(r.Message), msgAlreadyVerified)
}

// Outcome names the classification of r, for logs and metric labels.
func (r *Response) Outcome() string {
	switch {
	case r.IsPending():
		return "pending"
	case r.IsVerificationSuccess():
		return "verified"
	case r.IsVerificationFailure():
		return "rejected"
	case r.IsAlreadyVerified():
		return "already_verified"
	case r.IsBytecodeMissingInNetworkError():
		return "bytecode_missing"
	case r.IsOK():
		return "ok"
	}
	return "failure"
}
