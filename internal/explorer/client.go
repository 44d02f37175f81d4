package explorer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPollInterval is the fixed delay between status polls.
const DefaultPollInterval = 3 * time.Second

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5 // requests per second, the explorer free tier
	maxBodyBytes     = 1 << 20
)

// PollObserver is called after every decoded status poll.
type PollObserver func(attempt int, resp *Response)

// Client talks to an Etherscan-compatible verification API.
// It holds no per-verification state and is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *slog.Logger
	observer     PollObserver
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(client *Client) {
		client.pollInterval = d
	}
}

// WithRateLimit paces all explorer calls. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(client *Client) {
		if rps <= 0 {
			client.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(client *Client) {
		client.logger = l
	}
}

// WithPollObserver registers a hook for every poll iteration.
func WithPollObserver(o PollObserver) Option {
	return func(client *Client) {
		client.observer = o
	}
}

// New creates a new explorer client
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:      rate.NewLimiter(defaultRateLimit, defaultRateLimit),
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PollInterval returns the delay between status polls.
func (c *Client) PollInterval() time.Duration {
	return c.pollInterval
}

// Verify submits req and polls until the job is terminal. A rejected
// verification is returned as a Response, not an error.
func (c *Client) Verify(ctx context.Context, apiURL string, req VerifyRequest) (*Response, error) {
	submitted, err := c.Submit(ctx, apiURL, req)
	if err != nil {
		return nil, err
	}
	return c.PollStatus(ctx, apiURL, NewCheckStatusRequest(req.APIKey, submitted.Message))
}

// Submit sends the verification request. On success the returned Response
// carries the job GUID in Message. Submission is never retried.
func (c *Client) Submit(ctx context.Context, apiURL string, req VerifyRequest) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to send contract verification request to %s: %w", apiURL, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(req.Values().Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building verification request for %s: %w", ErrTransport, apiURL, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Info("submitting contract verification",
		"url", apiURL,
		"address", req.ContractAddress,
		"contract", req.ContractName,
		"compiler", req.CompilerVersion,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send contract verification request to %s: %w", ErrTransport, apiURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading verification response from %s: %w", ErrTransport, apiURL, err)
	}

	// Error bodies are not guaranteed to be JSON, so keep them verbatim.
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: failed to send contract verification request to %s: HTTP status %d: %s",
			ErrTransport, apiURL, resp.StatusCode, string(body))
	}

	result, err := ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProtocol, apiURL, err)
	}

	switch {
	case result.IsBytecodeMissingInNetworkError():
		return nil, fmt.Errorf("%w: the explorer at %s reports that address %s has no bytecode. "+
			"This can happen if the contract was deployed recently and the explorer has not indexed it yet; "+
			"wait for a few confirmations (five is usually enough) and retry",
			ErrBytecodeNotIndexed, apiURL, req.ContractAddress)
	case result.IsVerificationFailure():
		return nil, fmt.Errorf("%w: %s", ErrVerificationRejected, result.Message)
	case result.IsAlreadyVerified():
		return result, fmt.Errorf("%w: %s", ErrAlreadyVerified, result.Message)
	case !result.IsOK():
		return nil, fmt.Errorf("%w: %s: %s", ErrProtocol, apiURL, result.Message)
	}

	c.logger.Info("verification submitted", "url", apiURL, "guid", result.Message)
	return result, nil
}

// PollStatus queries the job until it leaves the pending state. It waits the
// poll interval between attempts, has no attempt cap, and stops when ctx is done.
// A definitive rejection is returned as a Response with IsVerificationFailure.
func (c *Client) PollStatus(ctx context.Context, apiURL string, req CheckStatusRequest) (*Response, error) {
	for attempt := 1; ; attempt++ {
		result, err := c.CheckStatus(ctx, apiURL, req)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("verification status", "guid", req.GUID, "attempt", attempt, "status", result.Status, "message", result.Message)
		if c.observer != nil {
			c.observer(attempt, result)
		}

		switch {
		case result.IsPending():
			if err := sleep(ctx, c.pollInterval); err != nil {
				return nil, fmt.Errorf("polling verification %s: %w", req.GUID, err)
			}
			continue
		case result.IsVerificationFailure():
			c.logger.Info("verification rejected", "guid", req.GUID, "message", result.Message)
			return result, nil
		case result.IsBytecodeMissingInNetworkError():
			return nil, fmt.Errorf("%w: %w: the explorer at %s lost sight of the contract bytecode: %s",
				ErrBytecodeNotIndexed, ErrStatusUnknown, apiURL, result.Message)
		case result.IsAlreadyVerified():
			return result, nil
		case !result.IsOK():
			return nil, fmt.Errorf("%w: the explorer at %s responded with a failure status. %w. Reason: %s",
				ErrProtocol, apiURL, ErrStatusUnknown, result.Message)
		}

		c.logger.Info("verification finished", "guid", req.GUID, "message", result.Message, "attempts", attempt)
		return result, nil
	}
}

// CheckStatus performs a single status query without interpreting the outcome
// beyond transport errors.
func (c *Client) CheckStatus(ctx context.Context, apiURL string, req CheckStatusRequest) (*Response, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint URL %s: %w", ErrTransport, apiURL, err)
	}
	u.RawQuery = req.Values().Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polling verification %s: %w", req.GUID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building status request for %s: %w", ErrTransport, apiURL, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	// The query string carries the API key, so errors name apiURL only.
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failure during status polling of %s. %w: %w",
			ErrTransport, apiURL, ErrStatusUnknown, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading status response from %s. %w: %w", ErrTransport, apiURL, ErrStatusUnknown, err)
	}

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: failure during status polling of %s. %w: HTTP status %d: %s",
			ErrTransport, apiURL, ErrStatusUnknown, resp.StatusCode, string(body))
	}

	result, err := ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s. %w: %w", ErrProtocol, apiURL, ErrStatusUnknown, err)
	}
	return result, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// stripURL drops the *url.Error wrapper, whose message repeats the request URL.
func stripURL(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
