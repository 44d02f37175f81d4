package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/explorerverify/internal/endpoints"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"explorerverify.toml", ".explorerverify.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server       string `toml:"server,omitempty"`
	Network      string `toml:"network,omitempty"`
	ChainID      uint64 `toml:"chain_id,omitempty"`
	RPCURL       string `toml:"rpc_url,omitempty"`
	ArtifactsDir string `toml:"artifacts_dir,omitempty"`
	// Networks adds or overrides explorer endpoints for this project
	Networks []NetworkTOML `toml:"networks,omitempty"`
}

// NetworkTOML is one [[networks]] entry
type NetworkTOML struct {
	ChainID    uint64 `toml:"chain_id"`
	Name       string `toml:"name"`
	APIURL     string `toml:"api_url"`
	BrowserURL string `toml:"browser_url"`
}

// GlobalConfig is stored in ~/.explorerverify/config.yaml
type GlobalConfig struct {
	Server  string `yaml:"server,omitempty"`
	Network string `yaml:"network,omitempty"`
	// EndpointsFile is a YAML endpoint table merged over the built-in one
	EndpointsFile string `yaml:"endpoints_file,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var network string
	var rpcURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create an explorerverify.toml configuration file in the current directory.

This file stores project-specific settings like the target network, the
RPC endpoint used for chain checks and extra explorer endpoints.

EXAMPLES:
  # Create config targeting mainnet
  explorerverify config init

  # Create config for another network
  explorerverify config init --network polygon --rpc-url https://polygon-rpc.com

  # Overwrite existing config
  explorerverify config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(network, rpcURL, force)
		},
	}

	cmd.Flags().StringVar(&network, "network", "mainnet", "network name")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "JSON-RPC endpoint of the network")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows the local project config (explorerverify.toml), the global config
from ~/.explorerverify/config.yaml and the saved explorer keys.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}
}

func runConfigInit(network, rpcURL string, force bool) error {
	configPath := projectConfigFiles[0]

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", name)
		}
	}

	if network == endpoints.SimulatedNetwork {
		return endpoints.ErrSimulatedNetwork
	}

	rpcLine := `# rpc_url = "https://rpc.example.org"`
	if rpcURL != "" {
		rpcLine = fmt.Sprintf("rpc_url = %q", rpcURL)
	}

	content := fmt.Sprintf(`# explorerverify project configuration

network = %q
%s

# Foundry project root holding foundry.toml, out/ and cache/
artifacts_dir = "."

# Verify through a shared server instead of calling the explorer directly
# server = "http://localhost:8080"

# Extra or overriding explorer endpoints
# [[networks]]
# chain_id = 424242
# name = "devnet"
# api_url = "https://explorer.devnet.example/api"
# browser_url = "https://explorer.devnet.example"
`, network, rpcLine)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Run 'explorerverify credentials set %s' to save an explorer key\n", network)
	fmt.Println("  2. Run 'forge build' so artifacts and build info exist")
	fmt.Println("  3. Run 'explorerverify verify --contract <Name> --address <0x...>'")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	fmt.Println("1. Command line flags")
	fmt.Println("   --server, --token, --api-key, --config, --network, --chain-id, --rpc-url")
	fmt.Println()

	fmt.Println("2. Environment variables")
	for _, name := range []string{envServer, envNetwork, envRPCURL} {
		if v := os.Getenv(name); v != "" {
			fmt.Printf("   %s=%s\n", name, v)
		} else {
			fmt.Printf("   %s=(not set)\n", name)
		}
	}
	for _, name := range []string{envAPIKey, envToken} {
		if v := os.Getenv(name); v != "" {
			fmt.Printf("   %s=%s\n", name, maskAPIKey(v))
		} else {
			fmt.Printf("   %s=(not set)\n", name)
		}
	}
	fmt.Println()

	fmt.Println("3. Local project config (explorerverify.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		fmt.Printf("   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Printf("   server: %s\n", projectConfig.Server)
		}
		if projectConfig.Network != "" {
			fmt.Printf("   network: %s\n", projectConfig.Network)
		}
		if projectConfig.ChainID != 0 {
			fmt.Printf("   chain_id: %d\n", projectConfig.ChainID)
		}
		if projectConfig.RPCURL != "" {
			fmt.Printf("   rpc_url: %s\n", projectConfig.RPCURL)
		}
		if projectConfig.ArtifactsDir != "" {
			fmt.Printf("   artifacts_dir: %s\n", projectConfig.ArtifactsDir)
		}
		for _, n := range projectConfig.Networks {
			fmt.Printf("   network %d (%s): %s\n", n.ChainID, n.Name, n.APIURL)
		}
	}
	fmt.Println()

	fmt.Println("4. Global config (~/.explorerverify/config.yaml)")
	globalConfig, err := loadGlobalConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		if globalConfig.Server != "" {
			fmt.Printf("   server: %s\n", globalConfig.Server)
		}
		if globalConfig.Network != "" {
			fmt.Printf("   network: %s\n", globalConfig.Network)
		}
		if globalConfig.EndpointsFile != "" {
			fmt.Printf("   endpoints_file: %s\n", globalConfig.EndpointsFile)
		}
	}
	fmt.Println()

	fmt.Println("5. Credentials (~/.explorerverify/credentials)")
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else if len(creds.Explorers) == 0 {
		fmt.Println("   (no keys stored)")
	} else {
		for host, cred := range creds.Explorers {
			fmt.Printf("   %s: %s\n", host, maskAPIKey(cred.APIKey))
		}
	}
	fmt.Println()

	fmt.Println("Effective configuration:")
	if s := getServer(); s != "" {
		fmt.Printf("   Server:  %s\n", s)
	} else {
		fmt.Println("   Server:  (none, verifying locally)")
	}
	sel := selectNetwork(0, "", "", projectConfig)
	if sel.Network != "" {
		fmt.Printf("   Network: %s\n", sel.Network)
	} else {
		fmt.Println("   Network: (not set)")
	}

	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but warns about parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}

func globalConfigPath() string {
	return filepath.Join(stateDir(), "config.yaml")
}

func loadGlobalConfig() (*GlobalConfig, error) {
	data, err := os.ReadFile(globalConfigPath())
	if err != nil {
		return nil, err
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", globalConfigPath(), err)
	}
	return &config, nil
}

func loadGlobalConfigSilent() *GlobalConfig {
	config, err := loadGlobalConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load global config: %v\n", err)
		}
		return &GlobalConfig{}
	}
	return config
}

// networkTable is the built-in endpoint table with the global endpoints file
// and the project's [[networks]] merged over it.
func networkTable(pc *ProjectConfig) (*endpoints.Table, error) {
	table := endpoints.Default()

	if path := loadGlobalConfigSilent().EndpointsFile; path != "" {
		merged, err := table.MergeFile(path)
		if err != nil {
			return nil, err
		}
		table = merged
	}

	if pc == nil || len(pc.Networks) == 0 {
		return table, nil
	}

	extra := make([]endpoints.Network, 0, len(pc.Networks))
	for _, n := range pc.Networks {
		extra = append(extra, endpoints.Network{
			ChainID:    n.ChainID,
			Name:       n.Name,
			APIURL:     n.APIURL,
			BrowserURL: n.BrowserURL,
		})
	}
	merged, err := table.With(extra...)
	if err != nil {
		return nil, fmt.Errorf("project networks: %w", err)
	}
	return merged, nil
}
