package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorerverify/pkg/client"
)

func createNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List networks with a known block explorer",
		Long: `List every network a contract can be verified on.

Locally this is the built-in table plus the global endpoints file and the
project's [[networks]] entries. With --server the server's table is shown.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetworks(cmd.Context())
		},
	}
}

func runNetworks(ctx context.Context) error {
	var rows []client.Network

	if serverURL := getServer(); serverURL != "" {
		networks, err := newServerClient(serverURL, "").ListNetworks(ctx)
		if err != nil {
			return fmt.Errorf("listing networks on %s: %w", serverURL, err)
		}
		rows = networks
	} else {
		table, err := networkTable(loadProjectConfigSilent())
		if err != nil {
			return err
		}
		for _, n := range table.All() {
			rows = append(rows, client.Network{
				ChainID:    n.ChainID,
				Name:       n.Name,
				APIURL:     n.APIURL,
				BrowserURL: n.BrowserURL,
			})
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN ID\tNAME\tAPI URL\tBROWSER URL")
	for _, n := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ChainID, n.Name, n.APIURL, n.BrowserURL)
	}
	return w.Flush()
}
