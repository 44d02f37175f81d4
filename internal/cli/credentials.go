package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Credentials stores explorer API keys per explorer API host
type Credentials struct {
	Explorers map[string]ExplorerCredential `yaml:"explorers"`
}

// ExplorerCredential stores the key for a single explorer
type ExplorerCredential struct {
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name,omitempty"` // network the key was saved for
}

func createCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage explorer API keys",
	}

	cmd.AddCommand(createCredentialsSetCmd())
	cmd.AddCommand(createCredentialsRemoveCmd())
	cmd.AddCommand(createCredentialsListCmd())

	return cmd
}

func createCredentialsSetCmd() *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "set <network|chain-id|host>",
		Short: "Save an explorer API key",
		Long: `Save the API key for a block explorer.

Keys are stored per explorer API host in ~/.explorerverify/credentials
with secure file permissions, so one key serves every network that shares
an explorer.

EXAMPLES:
  # Interactive (prompts for the key)
  explorerverify credentials set polygon

  # Non-interactive (for CI)
  explorerverify credentials set 137 --api-key $POLYGONSCAN_KEY

  # A host that is not in the network table
  explorerverify credentials set api.explorer.example.org
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentialsSet(args[0], keyFlag)
		},
	}

	cmd.Flags().StringVar(&keyFlag, "api-key", "", "explorer API key (prompts if not provided)")

	return cmd
}

func createCredentialsRemoveCmd() *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "remove [network|chain-id|host]",
		Short: "Remove a saved explorer API key",
		Long: `Remove saved explorer API keys.

EXAMPLES:
  explorerverify credentials remove polygon
  explorerverify credentials remove --all
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return runCredentialsRemove(target, allFlag)
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "remove all saved keys")

	return cmd
}

func createCredentialsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved explorer API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentialsList()
		},
	}
}

func runCredentialsSet(target, key string) error {
	host, name, err := resolveCredentialTarget(target)
	if err != nil {
		return err
	}

	if key == "" {
		fmt.Printf("Enter API key for %s: ", host)
		key, err = readSecret(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}

	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := saveCredential(host, name, key); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("✅ Saved key %s for %s\n", maskAPIKey(key), host)
	fmt.Printf("   Credentials saved to %s\n", credentialsFilePath())
	return nil
}

func runCredentialsRemove(target string, all bool) error {
	if all {
		path := credentialsFilePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		fmt.Println("✅ All credentials cleared")
		return nil
	}

	if target == "" {
		return fmt.Errorf("pass a network, chain ID or host, or --all")
	}

	host, _, err := resolveCredentialTarget(target)
	if err != nil {
		return err
	}

	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No credentials found for %s\n", host)
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if _, exists := creds.Explorers[host]; !exists {
		fmt.Printf("No credentials found for %s\n", host)
		return nil
	}

	delete(creds.Explorers, host)

	if err := writeCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("✅ Removed key for %s\n", host)
	return nil
}

func runCredentialsList() error {
	creds, err := loadCredentials()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if creds == nil || len(creds.Explorers) == 0 {
		fmt.Println("No explorer API keys saved")
		fmt.Println("\nRun 'explorerverify credentials set <network>' to add one")
		return nil
	}

	hosts := make([]string, 0, len(creds.Explorers))
	for host := range creds.Explorers {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	fmt.Println("Saved explorer API keys:")
	for _, host := range hosts {
		cred := creds.Explorers[host]
		masked := maskAPIKey(cred.APIKey)
		if cred.Name != "" {
			fmt.Printf("  • %s (%s, key: %s)\n", host, cred.Name, masked)
		} else {
			fmt.Printf("  • %s (key: %s)\n", host, masked)
		}
	}

	return nil
}

// resolveCredentialTarget turns a network name, chain ID, URL or bare host
// into the API host credentials are keyed by.
func resolveCredentialTarget(target string) (host, name string, err error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", "", fmt.Errorf("network, chain ID or host is required")
	}

	table, err := networkTable(loadProjectConfigSilent())
	if err != nil {
		return "", "", err
	}

	if n, ok := table.LookupName(target); ok {
		return apiHost(n.APIURL), n.Name, nil
	}
	if id, err := strconv.ParseUint(target, 10, 64); err == nil {
		n, ok := table.Lookup(id)
		if !ok {
			return "", "", fmt.Errorf("no explorer known for chain ID %d", id)
		}
		return apiHost(n.APIURL), n.Name, nil
	}
	if strings.ContainsAny(target, "./:") {
		return apiHost(target), "", nil
	}
	return "", "", fmt.Errorf("unknown network %q (run 'explorerverify networks' to list them)", target)
}

// apiHost is the credentials key for an explorer API URL.
func apiHost(apiURL string) string {
	if !strings.Contains(apiURL, "://") {
		apiURL = "https://" + apiURL
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return apiURL
	}
	return strings.ToLower(u.Host)
}

// readSecret reads a key without echo from a terminal, or one line from a pipe.
func readSecret(in *os.File) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Credential file helpers

func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".explorerverify"
	}
	return filepath.Join(home, ".explorerverify")
}

func credentialsFilePath() string {
	return filepath.Join(stateDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(credentialsFilePath())
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", credentialsFilePath(), err)
	}

	if creds.Explorers == nil {
		creds.Explorers = make(map[string]ExplorerCredential)
	}

	return &creds, nil
}

func writeCredentials(creds *Credentials) error {
	if err := os.MkdirAll(stateDir(), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	return os.WriteFile(credentialsFilePath(), data, 0600)
}

func saveCredential(host, name, key string) error {
	creds, err := loadCredentials()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		creds = &Credentials{Explorers: make(map[string]ExplorerCredential)}
	}

	creds.Explorers[host] = ExplorerCredential{APIKey: key, Name: name}
	return writeCredentials(creds)
}

func getCredential(host string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	return creds.Explorers[host].APIKey
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
