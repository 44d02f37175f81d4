// Package evm reads contract state from EVM JSON-RPC nodes.
package evm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pendergraft/explorerverify/internal/chains"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultAttempts    = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// ErrNoBytecode is returned when an address holds no contract code
var ErrNoBytecode = errors.New("address has no bytecode")

// ErrInvalidAddress is returned for malformed addresses
var ErrInvalidAddress = errors.New("invalid address")

// ethClient is the subset of *ethclient.Client the provider needs
type ethClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Provider implements chains.Provider over JSON-RPC.
type Provider struct {
	client      ethClient
	callTimeout time.Duration
	attempts    uint
	retryDelay  time.Duration
	logger      *slog.Logger
}

var _ chains.Provider = (*Provider)(nil)

// Option configures a Provider
type Option func(*Provider)

// WithCallTimeout bounds every single RPC call
func WithCallTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.callTimeout = d
	}
}

// WithRetry sets how often a failing RPC call is attempted and the delay between tries.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(p *Provider) {
		if attempts < 1 {
			attempts = 1
		}
		p.attempts = attempts
		p.retryDelay = delay
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("rpc url is required")
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	cl, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc %s: %w", rpcURL, err)
	}
	return newProvider(cl, opts...), nil
}

func newProvider(client ethClient, opts ...Option) *Provider {
	p := &Provider{
		client:      client,
		callTimeout: defaultCallTimeout,
		attempts:    defaultAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases the RPC connection
func (p *Provider) Close() {
	p.client.Close()
}

// ChainID returns the chain ID reported by the node
func (p *Provider) ChainID(ctx context.Context) (uint64, error) {
	var id *big.Int
	err := p.call(ctx, "eth_chainId", func(callCtx context.Context) error {
		var err error
		id, err = p.client.ChainID(callCtx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fetching chain id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id %s does not fit in uint64", id)
	}
	return id.Uint64(), nil
}

// GetDeployedBytecode fetches the runtime code at address from the latest block
func (p *Provider) GetDeployedBytecode(ctx context.Context, address string) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	account := common.HexToAddress(address)

	var code []byte
	err := p.call(ctx, "eth_getCode", func(callCtx context.Context) error {
		var err error
		code, err = p.client.CodeAt(callCtx, account, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching code at %s: %w", account.Hex(), err)
	}
	return code, nil
}

// call runs fn with a per-call timeout, retrying while the parent context is alive.
func (p *Provider) call(ctx context.Context, method string, fn func(context.Context) error) error {
	return retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			return fn(callCtx)
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("rpc call failed, retrying", "method", method, "attempt", n+1, "error", err)
		}),
	)
}

// RequireBytecode fails with ErrNoBytecode when nothing is deployed at address.
// network only makes the error readable.
func RequireBytecode(ctx context.Context, provider chains.Provider, address, network string) ([]byte, error) {
	code, err := provider.GetDeployedBytecode(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: the address %s has no bytecode. Is the contract deployed to this network? "+
			"The selected network is %s", ErrNoBytecode, address, network)
	}
	return code, nil
}
