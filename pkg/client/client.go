// Package client provides a Go client for the explorerverify API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Verification statuses reported by the server
const (
	StatusPending         = "pending"
	StatusSubmitted       = "submitted"
	StatusVerified        = "verified"
	StatusRejected        = "rejected"
	StatusAlreadyVerified = "already_verified"
	StatusError           = "error"
)

// Client is an explorerverify API client
type Client struct {
	baseURL      string
	apiKey       string
	token        string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithPollInterval sets the delay between WaitForVerification requests.
func WithPollInterval(d time.Duration) Option {
	return func(client *Client) {
		client.pollInterval = d
	}
}

// WithToken sets the bearer token for servers that guard job creation.
func WithToken(token string) Option {
	return func(client *Client) {
		client.token = token
	}
}

// New creates a new client. apiKey is the block explorer key forwarded with
// each new verification; it may be empty when the server has its own.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollInterval: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// VerificationRequest starts a verification
type VerificationRequest struct {
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

// Precheck is the server's local bytecode comparison
type Precheck struct {
	Match     bool   `json:"match"`
	MatchType string `json:"matchType"`
	Message   string `json:"message"`
}

// Verification is one verification attempt
type Verification struct {
	ID           string    `json:"id"`
	ChainID      uint64    `json:"chainId"`
	Network      string    `json:"network,omitempty"`
	Address      string    `json:"address"`
	ContractName string    `json:"contractName"`
	GUID         string    `json:"guid,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	BrowserURL   string    `json:"browserUrl,omitempty"`
	Precheck     *Precheck `json:"precheck,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the attempt has finished
func (v *Verification) Terminal() bool {
	switch v.Status {
	case StatusVerified, StatusRejected, StatusAlreadyVerified, StatusError:
		return true
	}
	return false
}

// ListOptions filters ListVerifications
type ListOptions struct {
	ChainID uint64
	Address string
	Status  string
	Limit   int
	Cursor  string
}

// ListVerificationsResponse is the response for listing verifications
type ListVerificationsResponse struct {
	Data       []Verification `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// Network is an explorer endpoint known to the server
type Network struct {
	ChainID    uint64 `json:"chainId"`
	Name       string `json:"name"`
	APIURL     string `json:"apiUrl"`
	BrowserURL string `json:"browserUrl"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StartVerification queues a verification and returns the pending attempt.
func (c *Client) StartVerification(ctx context.Context, req VerificationRequest) (*Verification, error) {
	var resp Verification
	if err := c.post(ctx, "/api/v1/verifications", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetVerification fetches one attempt
func (c *Client) GetVerification(ctx context.Context, id string) (*Verification, error) {
	var resp Verification
	if err := c.get(ctx, "/api/v1/verifications/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVerifications lists attempts, newest first
func (c *Client) ListVerifications(ctx context.Context, opts ListOptions) (*ListVerificationsResponse, error) {
	q := url.Values{}
	if opts.ChainID != 0 {
		q.Set("chainId", strconv.FormatUint(opts.ChainID, 10))
	}
	if opts.Address != "" {
		q.Set("address", opts.Address)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/api/v1/verifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListVerificationsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListNetworks lists the explorer endpoints the server knows
func (c *Client) ListNetworks(ctx context.Context) ([]Network, error) {
	var resp struct {
		Data []Network `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/networks", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// WaitForVerification polls the attempt until it is terminal or ctx ends.
func (c *Client) WaitForVerification(ctx context.Context, id string) (*Verification, error) {
	for {
		v, err := c.GetVerification(ctx, id)
		if err != nil {
			return nil, err
		}
		if v.Terminal() {
			return v, nil
		}

		t := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return v, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Explorer-Api-Key", c.apiKey)
	}

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
