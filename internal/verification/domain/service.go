package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pendergraft/explorerverify/internal/chains"
	"github.com/pendergraft/explorerverify/internal/chains/evm"
	"github.com/pendergraft/explorerverify/internal/endpoints"
	"github.com/pendergraft/explorerverify/internal/explorer"
	"github.com/pendergraft/explorerverify/internal/observability/metrics"
	"github.com/pendergraft/explorerverify/internal/storage"
	"github.com/pendergraft/explorerverify/internal/validation"
)

// Common errors returned by the verification service.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrChainMismatch  = errors.New("chain ID mismatch")
	ErrShuttingDown   = errors.New("verification service is shutting down")
)

// AttemptStore defines the storage operations needed by the verification domain.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *storage.Attempt) error
	UpdateAttempt(ctx context.Context, a *storage.Attempt) error
	GetAttempt(ctx context.Context, id string) (*storage.Attempt, error)
	ListAttempts(ctx context.Context, filter storage.AttemptFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Attempt], error)
}

// Resolver maps a chain to its explorer endpoint.
type Resolver interface {
	Resolve(chainID uint64, network string) (endpoints.ChainEndpoint, error)
}

// Explorer is the subset of the explorer client used here.
type Explorer interface {
	Submit(ctx context.Context, apiURL string, req explorer.VerifyRequest) (*explorer.Response, error)
	PollStatus(ctx context.Context, apiURL string, req explorer.CheckStatusRequest) (*explorer.Response, error)
}

// Service runs verifications against block explorers and records every attempt.
type Service struct {
	store    AttemptStore
	resolver Resolver
	explorer Explorer
	provider chains.Provider
	apiKey   string
	logger   *slog.Logger
	now      func() time.Time

	jobTimeout time.Duration

	// background jobs live as long as ctx
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Option configures a Service
type Option func(*Service)

// WithProvider enables on-chain checks before submission.
func WithProvider(p chains.Provider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// WithAPIKey sets the explorer API key used when a request carries none.
func WithAPIKey(key string) Option {
	return func(s *Service) {
		s.apiKey = key
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithJobTimeout bounds each background job. Zero means no bound.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.jobTimeout = d
	}
}

// NewService creates a new verification service.
func NewService(store AttemptStore, resolver Resolver, exp Explorer, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:    store,
		resolver: resolver,
		explorer: exp,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// job is a validated request bound to its explorer endpoint
type job struct {
	req      VerifyRequest
	chainID  uint64
	network  string
	endpoint endpoints.ChainEndpoint
	apiKey   string
}

// Verify runs one verification to completion. Rejected and already verified
// contracts are results, not errors. When the explorer or the chain fails the
// attempt is recorded with StatusError and returned alongside the error.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*Result, error) {
	j, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	attempt, err := s.record(ctx, j)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, j, attempt)
}

// Start validates req, records a pending attempt and verifies it in the
// background. The returned Result is the pending attempt.
func (s *Service) Start(ctx context.Context, req VerifyRequest) (*Result, error) {
	j, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	attempt, err := s.record(ctx, j)
	if err != nil {
		s.wg.Done()
		return nil, err
	}
	result := resultFromAttempt(attempt)

	go func() {
		defer s.wg.Done()
		jobCtx, cancel := s.jobContext()
		defer cancel()
		if _, err := s.execute(jobCtx, j, attempt); err != nil {
			s.logger.Warn("background verification failed", "id", attempt.ID, "error", err)
		}
	}()

	return result, nil
}

func (s *Service) jobContext() (context.Context, context.CancelFunc) {
	if s.jobTimeout > 0 {
		return context.WithTimeout(s.ctx, s.jobTimeout)
	}
	return context.WithCancel(s.ctx)
}

// Shutdown stops accepting jobs, cancels running ones and waits for them to
// record their final status or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check polls the explorer for a job submitted earlier, possibly by another process.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*Result, error) {
	if err := validation.ValidateGUID(req.GUID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	endpoint, err := s.resolver.Resolve(req.ChainID, req.Network)
	if err != nil {
		return nil, err
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.apiKey
	}

	resp, err := s.explorer.PollStatus(ctx, endpoint.APIURL, explorer.NewCheckStatusRequest(apiKey, req.GUID))
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Result{
		ChainID:   req.ChainID,
		Network:   req.Network,
		GUID:      req.GUID,
		Status:    statusOf(resp),
		Message:   resp.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get returns a recorded attempt.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	a, err := s.store.GetAttempt(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting attempt: %w", err)
	}
	return resultFromAttempt(a), nil
}

// List returns recorded attempts, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filter.Status)
	}
	if filter.Address != "" {
		if err := validation.ValidateAddress(filter.Address); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	page, err := s.store.ListAttempts(ctx,
		storage.AttemptFilter{ChainID: filter.ChainID, Address: filter.Address, Status: filter.Status},
		storage.PaginationParams{Limit: filter.Limit, Cursor: filter.Cursor},
	)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("listing attempts: %w", err)
	}

	out := &ListResult{
		Results:    make([]Result, 0, len(page.Data)),
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}
	for i := range page.Data {
		out.Results = append(out.Results, *resultFromAttempt(&page.Data[i]))
	}
	return out, nil
}

func (s *Service) prepare(ctx context.Context, req VerifyRequest) (*job, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	if strings.EqualFold(req.Network, endpoints.SimulatedNetwork) {
		return nil, endpoints.ErrSimulatedNetwork
	}

	chainID := req.ChainID
	if s.provider != nil {
		id, err := s.provider.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting chain ID: %w", err)
		}
		if chainID != 0 && chainID != id {
			return nil, fmt.Errorf("%w: request targets chain %d but the node reports %d", ErrChainMismatch, chainID, id)
		}
		chainID = id
	}
	if err := validation.ValidateChainID(chainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	endpoint, err := s.resolver.Resolve(chainID, req.Network)
	if err != nil {
		return nil, err
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.apiKey
	}
	if apiKey == "" {
		s.logger.Warn("no explorer API key configured", "api_url", endpoint.APIURL)
	}

	return &job{
		req:      req,
		chainID:  chainID,
		network:  req.Network,
		endpoint: endpoint,
		apiKey:   apiKey,
	}, nil
}

func validateRequest(req *VerifyRequest) error {
	if err := validation.ValidateAddress(req.Address); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Address = validation.NormalizeAddress(req.Address)
	if err := validation.ValidateContractName(req.ContractName); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateSourcePath(req.SourcePath); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateCompilerVersion(req.CompilerVersion); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(req.StandardJSONInput) == 0 {
		return fmt.Errorf("%w: standard JSON input is required", ErrInvalidRequest)
	}
	if err := validation.ValidateConstructorArgs(req.ConstructorArguments); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.ConstructorArguments = validation.NormalizeConstructorArgs(req.ConstructorArguments)
	return nil
}

func (s *Service) record(ctx context.Context, j *job) (*storage.Attempt, error) {
	now := s.now()
	a := &storage.Attempt{
		ChainID:         j.chainID,
		Network:         j.network,
		Address:         j.req.Address,
		ContractName:    j.req.ContractName,
		SourcePath:      j.req.SourcePath,
		CompilerVersion: j.req.CompilerVersion,
		APIURL:          j.endpoint.APIURL,
		BrowserURL:      j.endpoint.AddressURL(j.req.Address),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return nil, fmt.Errorf("recording attempt: %w", err)
	}
	return a, nil
}

// execute runs the pre-check, submission and polling of j and records the outcome on a.
func (s *Service) execute(ctx context.Context, j *job, a *storage.Attempt) (*Result, error) {
	start := time.Now()
	done := metrics.VerificationStarted()
	defer done()

	logger := s.logger.With("id", a.ID, "chain_id", j.chainID, "address", j.req.Address, "contract", j.req.ContractName)

	var precheck *chains.CompareResult
	if s.provider != nil {
		code, err := evm.RequireBytecode(ctx, s.provider, j.req.Address, j.network)
		if err != nil {
			return s.fail(ctx, a, start, err)
		}
		if j.req.DeployedBytecode != "" {
			precheck = evm.CompareBytecode(code, j.req.DeployedBytecode)
			if precheck.Match {
				logger.Debug("local bytecode comparison", "match_type", precheck.MatchType)
			} else {
				// the explorer still decides
				logger.Warn("local bytecode comparison", "match_type", precheck.MatchType, "message", precheck.Message)
			}
		}
	}

	params := explorer.VerifyParams{
		APIKey:               j.apiKey,
		ContractAddress:      j.req.Address,
		SourceCode:           string(j.req.StandardJSONInput),
		SourceName:           j.req.SourcePath,
		ContractName:         j.req.ContractName,
		CompilerVersion:      j.req.CompilerVersion,
		ConstructorArguments: j.req.ConstructorArguments,
	}
	submitted, err := s.explorer.Submit(ctx, j.endpoint.APIURL, explorer.NewVerifyRequest(params))
	switch {
	case errors.Is(err, explorer.ErrAlreadyVerified):
		metrics.ExplorerSubmit(j.chainID, string(StatusAlreadyVerified))
		return s.finish(ctx, a, start, StatusAlreadyVerified, submitted.Message, precheck)
	case errors.Is(err, explorer.ErrVerificationRejected):
		metrics.ExplorerSubmit(j.chainID, string(StatusRejected))
		return s.finish(ctx, a, start, StatusRejected, err.Error(), precheck)
	case err != nil:
		metrics.ExplorerSubmit(j.chainID, "error")
		return s.fail(ctx, a, start, err)
	}
	metrics.ExplorerSubmit(j.chainID, "accepted")

	a.GUID = submitted.Message
	a.Status = StatusSubmitted
	a.UpdatedAt = s.now()
	if err := s.store.UpdateAttempt(ctx, a); err != nil {
		logger.Warn("failed to record submission", "guid", a.GUID, "error", err)
	}
	logger.Info("verification submitted", "guid", a.GUID)

	resp, err := s.explorer.PollStatus(ctx, j.endpoint.APIURL, explorer.NewCheckStatusRequest(j.apiKey, a.GUID))
	if err != nil {
		return s.fail(ctx, a, start, err)
	}
	return s.finish(ctx, a, start, statusOf(resp), resp.Message, precheck)
}

// statusOf maps a terminal poll response to an attempt status.
func statusOf(resp *explorer.Response) Status {
	switch {
	case resp.IsVerificationFailure():
		return StatusRejected
	case resp.IsAlreadyVerified():
		return StatusAlreadyVerified
	case resp.IsPending():
		return StatusSubmitted
	case resp.IsOK():
		return StatusVerified
	}
	return StatusError
}

func (s *Service) finish(ctx context.Context, a *storage.Attempt, start time.Time, status Status, message string, precheck *chains.CompareResult) (*Result, error) {
	a.Status = status
	a.Message = message
	a.UpdatedAt = s.now()

	// the outcome is recorded even when ctx ended mid-flight
	if err := s.store.UpdateAttempt(context.WithoutCancel(ctx), a); err != nil {
		return nil, fmt.Errorf("recording attempt %s: %w", a.ID, err)
	}
	metrics.VerificationFinished(a.ChainID, string(status), time.Since(start))

	s.logger.Info("verification finished",
		"id", a.ID,
		"status", status,
		"message", message,
		"browser_url", a.BrowserURL,
		"duration", time.Since(start),
	)

	result := resultFromAttempt(a)
	result.Precheck = precheck
	return result, nil
}

func (s *Service) fail(ctx context.Context, a *storage.Attempt, start time.Time, cause error) (*Result, error) {
	msg := cause.Error()
	if errors.Is(cause, context.Canceled) && s.ctx.Err() != nil {
		msg = ErrShuttingDown.Error() + ": " + msg
	}
	result, err := s.finish(ctx, a, start, StatusError, msg, nil)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return result, cause
}
