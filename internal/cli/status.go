package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorerverify/internal/verification/domain"
)

func createStatusCmd() *cobra.Command {
	var guid string
	var network string
	var chainID uint64

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check a submitted verification job",
		Long: `Ask the explorer for the status of a verification job submitted earlier,
for example by a run that was interrupted while waiting.

EXAMPLES:
  explorerverify status --network polygon --guid ezq878u486pzijkvvmerl6a9mzwhv6sefgvqi5tkwceejc7tvn
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), guid, network, chainID)
		},
	}

	cmd.Flags().StringVar(&guid, "guid", "", "job GUID returned by the explorer (required)")
	cmd.Flags().StringVar(&network, "network", "", "network name")
	cmd.Flags().Uint64Var(&chainID, "chain-id", 0, "EIP-155 chain ID")
	_ = cmd.MarkFlagRequired("guid")

	return cmd
}

func runStatus(ctx context.Context, guid, network string, chainID uint64) error {
	pc := loadProjectConfigSilent()
	// The RPC URL is ignored: the job already names its chain by GUID.
	tgt := selectNetwork(chainID, network, "", pc)

	table, err := networkTable(pc)
	if err != nil {
		return err
	}

	id, err := resolveChainID(ctx, tgt, table, nil)
	if err != nil {
		return err
	}

	endpoint, err := table.Resolve(id, tgt.Network)
	if err != nil {
		return err
	}

	logger := newLogger()
	// Nothing is recorded for a status check.
	svc := domain.NewService(nil, table, newExplorerClient(logger),
		domain.WithAPIKey(getAPIKey(endpoint.APIURL)),
		domain.WithLogger(logger),
	)

	result, err := svc.Check(ctx, domain.CheckRequest{
		ChainID: id,
		Network: tgt.Network,
		GUID:    guid,
	})
	if err != nil {
		return err
	}

	fmt.Printf("GUID:    %s\n", result.GUID)
	fmt.Printf("Chain:   %d\n", result.ChainID)
	fmt.Printf("Status:  %s\n", result.Status)
	if result.Message != "" {
		fmt.Printf("Message: %s\n", result.Message)
	}

	if result.Status == domain.StatusRejected || result.Status == domain.StatusError {
		return fmt.Errorf("verification job %s did not succeed", guid)
	}
	return nil
}
