package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorerverify/internal/chains"
	"github.com/pendergraft/explorerverify/internal/chains/evm"
	"github.com/pendergraft/explorerverify/internal/chains/evm/foundry"
	"github.com/pendergraft/explorerverify/internal/endpoints"
	"github.com/pendergraft/explorerverify/internal/verification/domain"
	"github.com/pendergraft/explorerverify/pkg/client"
)

type verifyOptions struct {
	contract        string
	address         string
	constructorArgs string
	project         string
	network         string
	chainID         uint64
	rpcURL          string
	noWait          bool
}

func createVerifyCmd() *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a deployed contract on its block explorer",
		Long: `Submit the source of a deployed contract to the network's block explorer
and wait until the explorer has verified or rejected it.

The contract is read from the Foundry build output (out/ and build info),
so run 'forge build' first. With --rpc-url the chain ID is read from the
node and the on-chain bytecode is compared with the artifact before
anything is submitted.

With --server the job runs on an explorerverify server instead.

EXAMPLES:
  # Verify on a named network
  explorerverify verify --network polygon \
    --contract Token --address 0x1234...

  # Let the node tell us the chain
  explorerverify verify --rpc-url https://rpc.example.org \
    --contract src/Token.sol:Token --address 0x1234... \
    --constructor-args 0x000000000000000000000000000000000000000000000000000000000000002a

  # Queue the job on a server and return immediately
  explorerverify verify --server https://verify.example.com --no-wait \
    --chain-id 137 --contract Token --address 0x1234...
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name or path:Name (required)")
	cmd.Flags().StringVar(&opts.address, "address", "", "deployed contract address (required)")
	cmd.Flags().StringVar(&opts.constructorArgs, "constructor-args", "", "ABI-encoded constructor arguments (hex)")
	cmd.Flags().StringVar(&opts.project, "project", "", "Foundry project root (default from config or .)")
	cmd.Flags().StringVar(&opts.network, "network", "", "network name")
	cmd.Flags().Uint64Var(&opts.chainID, "chain-id", 0, "EIP-155 chain ID")
	cmd.Flags().StringVar(&opts.rpcURL, "rpc-url", "", "JSON-RPC endpoint for chain ID and bytecode checks")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "with --server, return once the job is queued")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

func runVerify(ctx context.Context, opts verifyOptions) error {
	pc := loadProjectConfigSilent()
	tgt := selectNetwork(opts.chainID, opts.network, opts.rpcURL, pc)
	if strings.EqualFold(tgt.Network, endpoints.SimulatedNetwork) {
		return endpoints.ErrSimulatedNetwork
	}

	table, err := networkTable(pc)
	if err != nil {
		return err
	}

	dir := opts.project
	if dir == "" && pc != nil {
		dir = pc.ArtifactsDir
	}
	if dir == "" {
		dir = "."
	}
	if ok, err := foundry.Detect(dir); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("no foundry.toml in %s (pass --project)", dir)
	}

	artifact, err := foundry.Load(dir, opts.contract)
	if err != nil {
		return fmt.Errorf("loading %s: %w", opts.contract, err)
	}

	req := domain.RequestFromArtifact(artifact)
	req.Address = opts.address
	req.ConstructorArguments = opts.constructorArgs
	req.Network = tgt.Network

	fmt.Printf("🔍 Verifying %s\n", artifact.QualifiedName())
	fmt.Printf("   Address:  %s\n", opts.address)
	fmt.Printf("   Compiler: %s\n", artifact.CompilerVersion)

	if serverURL := getServer(); serverURL != "" {
		return runVerifyRemote(ctx, serverURL, req, tgt, table, opts.noWait)
	}
	return runVerifyLocal(ctx, req, tgt, table)
}

func runVerifyLocal(ctx context.Context, req domain.VerifyRequest, tgt target, table *endpoints.Table) error {
	logger := newLogger()

	var provider chains.Provider
	if tgt.RPCURL != "" {
		p, err := evm.Dial(ctx, tgt.RPCURL, evm.WithLogger(logger))
		if err != nil {
			return err
		}
		defer p.Close()
		provider = p
	}

	chainID, err := resolveChainID(ctx, tgt, table, provider)
	if err != nil {
		return err
	}
	req.ChainID = chainID

	endpoint, err := table.Resolve(chainID, tgt.Network)
	if err != nil {
		return err
	}
	fmt.Printf("   Chain:    %d (%s)\n", chainID, endpoint.APIURL)

	key := getAPIKey(endpoint.APIURL)
	if key == "" {
		fmt.Printf("   ⚠️  No API key for %s; run 'explorerverify credentials set'\n", apiHost(endpoint.APIURL))
	}

	store, err := openHistory(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svcOpts := []domain.Option{
		domain.WithAPIKey(key),
		domain.WithLogger(logger),
	}
	if provider != nil {
		svcOpts = append(svcOpts, domain.WithProvider(provider))
	}
	svc := domain.NewService(store, table, newExplorerClient(logger), svcOpts...)

	result, err := svc.Verify(ctx, req)
	if result != nil {
		if perr := printOutcome(outcomeFromResult(result)); err == nil {
			err = perr
		}
	}
	return err
}

func runVerifyRemote(ctx context.Context, serverURL string, req domain.VerifyRequest, tgt target, table *endpoints.Table, noWait bool) error {
	// Zero lets the server ask its own node.
	chainID, _ := resolveChainID(ctx, tgt, table, nil)

	// The server may hold its own key; only forward one we have.
	var key string
	if n, ok := table.Lookup(chainID); ok {
		key = getAPIKey(n.APIURL)
	} else {
		key = getAPIKey("")
	}

	c := newServerClient(serverURL, key)
	v, err := c.StartVerification(ctx, client.VerificationRequest{
		ChainID:              chainID,
		Network:              req.Network,
		Address:              req.Address,
		ContractName:         req.ContractName,
		SourcePath:           req.SourcePath,
		CompilerVersion:      req.CompilerVersion,
		StandardJSONInput:    req.StandardJSONInput,
		ConstructorArguments: req.ConstructorArguments,
		DeployedBytecode:     req.DeployedBytecode,
	})
	if err != nil {
		return fmt.Errorf("starting verification on %s: %w", serverURL, err)
	}

	fmt.Printf("   Job:      %s on %s\n", v.ID, serverURL)
	if noWait {
		fmt.Printf("\nRun 'explorerverify history --server %s' to follow it\n", serverURL)
		return nil
	}

	id := v.ID
	v, err = c.WaitForVerification(ctx, id)
	if err != nil {
		return fmt.Errorf("waiting for verification %s: %w", id, err)
	}
	return printOutcome(outcomeFromVerification(v))
}

// errNoNetwork means none of --chain-id, --network or --rpc-url selected a chain.
var errNoNetwork = errors.New("no network selected: pass --network, --chain-id or --rpc-url")

// resolveChainID prefers an explicit chain ID, then the node, then the network name.
func resolveChainID(ctx context.Context, tgt target, table *endpoints.Table, provider chains.Provider) (uint64, error) {
	if tgt.ChainID != 0 {
		return tgt.ChainID, nil
	}
	if provider != nil {
		id, err := provider.ChainID(ctx)
		if err != nil {
			return 0, fmt.Errorf("getting chain ID from %s: %w", tgt.RPCURL, err)
		}
		return id, nil
	}
	if tgt.Network != "" {
		n, ok := table.LookupName(tgt.Network)
		if !ok {
			return 0, fmt.Errorf("%w: unknown network %q", endpoints.ErrEndpointNotFound, tgt.Network)
		}
		return n.ChainID, nil
	}
	return 0, errNoNetwork
}

// outcome is the printable part of a local result or a server verification.
type outcome struct {
	Contract   string
	Address    string
	Status     string
	Message    string
	GUID       string
	BrowserURL string
	Precheck   *chains.CompareResult
}

func outcomeFromResult(r *domain.Result) outcome {
	return outcome{
		Contract:   r.ContractName,
		Address:    r.Address,
		Status:     string(r.Status),
		Message:    r.Message,
		GUID:       r.GUID,
		BrowserURL: r.BrowserURL,
		Precheck:   r.Precheck,
	}
}

func outcomeFromVerification(v *client.Verification) outcome {
	o := outcome{
		Contract:   v.ContractName,
		Address:    v.Address,
		Status:     v.Status,
		Message:    v.Message,
		GUID:       v.GUID,
		BrowserURL: v.BrowserURL,
	}
	if v.Precheck != nil {
		o.Precheck = &chains.CompareResult{
			Match:     v.Precheck.Match,
			MatchType: v.Precheck.MatchType,
			Message:   v.Precheck.Message,
		}
	}
	return o
}

// printOutcome reports o and returns an error unless the contract ended up verified.
func printOutcome(o outcome) error {
	fmt.Println()
	if o.Precheck != nil && o.Precheck.MatchType != chains.MatchSkipped {
		fmt.Printf("   Bytecode: %s match (%s)\n", o.Precheck.MatchType, o.Precheck.Message)
	}
	if o.GUID != "" {
		fmt.Printf("   GUID:     %s\n", o.GUID)
	}

	switch domain.Status(o.Status) {
	case domain.StatusVerified:
		fmt.Printf("✅ Successfully verified contract %s on the block explorer.\n", o.Contract)
	case domain.StatusAlreadyVerified:
		fmt.Printf("✅ Contract %s is already verified.\n", o.Contract)
	case domain.StatusRejected:
		fmt.Printf("❌ The explorer could not verify %s: %s\n", o.Contract, o.Message)
		return fmt.Errorf("verification of %s was rejected", o.Contract)
	case domain.StatusError:
		fmt.Printf("❌ Verification of %s failed: %s\n", o.Contract, o.Message)
		return fmt.Errorf("verification of %s failed", o.Contract)
	default:
		fmt.Printf("⏳ Verification of %s is %s\n", o.Contract, o.Status)
		return nil
	}

	if o.BrowserURL != "" {
		fmt.Printf("   %s\n", o.BrowserURL)
	}
	return nil
}
