//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pendergraft/explorerverify/internal/config"
	"github.com/pendergraft/explorerverify/internal/endpoints"
	"github.com/pendergraft/explorerverify/internal/server"
	"github.com/pendergraft/explorerverify/internal/storage"
	"github.com/pendergraft/explorerverify/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// devnetChainID is served by the fake explorer.
const devnetChainID = 424242

// Addresses the fake explorer treats specially
const (
	addrVerified        = "0x00000000000000000000000000000000000000a1"
	addrRejected        = "0x00000000000000000000000000000000000000a2"
	addrAlreadyVerified = "0x00000000000000000000000000000000000000a3"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	ExplorerServer    *httptest.Server
	Explorer          *fakeExplorer
	Store             storage.Store

	shutdown func()
}

// fakeExplorer is an Etherscan-compatible verification API. Each GUID
// reports pending once, then the outcome chosen by contract address.
type fakeExplorer struct {
	mu      sync.Mutex
	jobs    map[string]string // guid -> address
	polls   map[string]int
	apiKeys []string
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{
		jobs:  make(map[string]string),
		polls: make(map[string]int),
	}
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		f.apiKeys = append(f.apiKeys, r.PostForm.Get("apikey"))
		address := strings.ToLower(r.PostForm.Get("contractaddress"))
		if address == addrAlreadyVerified {
			writeEnvelope(w, "0", "Contract source code already verified")
			return
		}
		guid := fmt.Sprintf("guid%d", len(f.jobs)+1)
		f.jobs[guid] = address
		writeEnvelope(w, "1", guid)
		return
	}

	guid := r.URL.Query().Get("guid")
	address, ok := f.jobs[guid]
	if !ok {
		writeEnvelope(w, "0", "Unknown UID")
		return
	}
	f.polls[guid]++
	if f.polls[guid] < 2 {
		writeEnvelope(w, "0", "Pending in queue")
		return
	}
	if address == addrRejected {
		writeEnvelope(w, "0", "Fail - Unable to verify")
		return
	}
	writeEnvelope(w, "1", "Pass - Verified")
}

func writeEnvelope(w http.ResponseWriter, status, result string) {
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "message": "", "result": result})
}

// setupPostgresE starts a Postgres container and returns the connection string (error-returning variant for TestMain)
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("explorerverify"),
		postgres.WithUsername("explorerverify"),
		postgres.WithPassword("explorerverify"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE starts the explorerverify server in-process against Postgres
// and the fake explorer (error-returning variant for TestMain)
func startServerE(connString, explorerURL string) (*httptest.Server, storage.Store, func(), error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			RequestTimeout: 30,
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
		Explorer: config.ExplorerConfig{
			APIKey:       "server-key",
			PollInterval: 10 * time.Millisecond,
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	networks, err := endpoints.Default().With(endpoints.Network{
		ChainID:    devnetChainID,
		Name:       "devnet",
		APIURL:     explorerURL + "/api",
		BrowserURL: "https://explorer.devnet.example",
	})
	if err != nil {
		return nil, nil, nil, err
	}

	srv, err := server.New(cfg, store, logger, server.WithNetworks(networks))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = store.Close()
	}

	return httptest.NewServer(srv.Handler()), store, shutdown, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey, client.WithPollInterval(20*time.Millisecond))
}

// verificationRequest is a devnet request for address
func verificationRequest(address string) client.VerificationRequest {
	return client.VerificationRequest{
		ChainID:           devnetChainID,
		Network:           "devnet",
		Address:           address,
		ContractName:      "Token",
		SourcePath:        "src/Token.sol",
		CompilerVersion:   "v0.8.20+commit.a1b2c3d4",
		StandardJSONInput: json.RawMessage(`{"language":"Solidity","sources":{"src/Token.sol":{"content":"contract Token {}"}},"settings":{}}`),
	}
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
