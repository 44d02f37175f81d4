// Package cli implements the explorerverify command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorerverify/pkg/client"
)

// Environment variables read by the CLI
const (
	envServer  = "EXPLORERVERIFY_SERVER"
	envNetwork = "EXPLORERVERIFY_NETWORK"
	envRPCURL  = "RPC_URL"
	envAPIKey  = "EXPLORER_API_KEY"
	envToken   = "EXPLORERVERIFY_TOKEN"
)

var (
	cfgFile string
	server  string
	apiKey  string
	token   string
	verbose bool
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:   "explorerverify",
		Short: "Verify deployed contracts on block explorers",
		Long: `explorerverify submits the source of deployed contracts to Etherscan-compatible
block explorers and waits for the explorer to confirm the verification.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: explorerverify.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "explorerverify server URL (default: verify locally)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "explorer API key")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for the server")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log explorer and RPC traffic")

	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createNetworksCmd())
	rootCmd.AddCommand(createHistoryCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createCredentialsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// getServer returns the server URL from flag, env or config files. An empty
// result means verify locally.
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv(envServer); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Global config file (YAML)
	return loadGlobalConfigSilent().Server
}

// getAPIKey returns the explorer API key for apiURL from flag, env or the
// credentials file.
func getAPIKey(apiURL string) string {
	if apiKey != "" {
		return apiKey
	}

	if env := os.Getenv(envAPIKey); env != "" {
		return env
	}

	if apiURL == "" {
		return ""
	}
	return getCredential(apiHost(apiURL))
}

// newServerClient returns a client for serverURL carrying the bearer token
// from --token or the environment.
func newServerClient(serverURL, explorerKey string) *client.Client {
	opts := []client.Option{}
	if t := firstNonEmpty(token, os.Getenv(envToken)); t != "" {
		opts = append(opts, client.WithToken(t))
	}
	return client.New(serverURL, explorerKey, opts...)
}

// target is the network a command acts on, before chain ID resolution.
type target struct {
	ChainID uint64
	Network string
	RPCURL  string
}

// selectNetwork applies flag > env > project config > global config precedence.
func selectNetwork(chainID uint64, network, rpcURL string, pc *ProjectConfig) target {
	if pc == nil {
		pc = &ProjectConfig{}
	}

	t := target{ChainID: chainID, Network: network, RPCURL: rpcURL}
	if t.ChainID == 0 {
		t.ChainID = pc.ChainID
	}
	if t.Network == "" {
		t.Network = firstNonEmpty(os.Getenv(envNetwork), pc.Network, loadGlobalConfigSilent().Network)
	}
	if t.RPCURL == "" {
		t.RPCURL = firstNonEmpty(os.Getenv(envRPCURL), pc.RPCURL)
	}
	return t
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
