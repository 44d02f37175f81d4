package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorerverify/internal/verification/domain"
	"github.com/pendergraft/explorerverify/pkg/client"
)

type historyOptions struct {
	chainID uint64
	address string
	status  string
	limit   int
	cursor  string
}

// historyRow is one printed attempt.
type historyRow struct {
	ID        string
	ChainID   uint64
	Contract  string
	Address   string
	Status    string
	UpdatedAt time.Time
}

func createHistoryCmd() *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past verification attempts",
		Long: `List verification attempts, newest first.

Local runs are recorded in ~/.explorerverify/history.db. With --server the
server's attempts are listed instead.

EXAMPLES:
  explorerverify history
  explorerverify history --chain-id 137 --status rejected
  explorerverify history --server https://verify.example.com --limit 50
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts)
		},
	}

	cmd.Flags().Uint64Var(&opts.chainID, "chain-id", 0, "only this chain")
	cmd.Flags().StringVar(&opts.address, "address", "", "only this contract address")
	cmd.Flags().StringVar(&opts.status, "status", "", "only this status (pending, submitted, verified, rejected, already_verified, error)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of attempts")
	cmd.Flags().StringVar(&opts.cursor, "cursor", "", "continue from a previous page")

	return cmd
}

func runHistory(ctx context.Context, opts historyOptions) error {
	var (
		rows []historyRow
		next string
		err  error
	)

	if serverURL := getServer(); serverURL != "" {
		rows, next, err = remoteHistory(ctx, serverURL, opts)
	} else {
		rows, next, err = localHistory(ctx, opts)
	}
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("No verification attempts found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHAIN\tCONTRACT\tADDRESS\tSTATUS\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.ChainID, r.Contract, truncateAddress(r.Address), r.Status,
			r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if next != "" {
		fmt.Printf("\nMore attempts: --cursor %s\n", next)
	}
	return nil
}

func localHistory(ctx context.Context, opts historyOptions) ([]historyRow, string, error) {
	if _, err := os.Stat(historyPath()); os.IsNotExist(err) {
		return nil, "", nil
	}

	logger := newLogger()
	store, err := openHistory(ctx, logger)
	if err != nil {
		return nil, "", err
	}
	defer store.Close()

	// Listing needs neither a resolver nor an explorer.
	svc := domain.NewService(store, nil, nil, domain.WithLogger(logger))
	page, err := svc.List(ctx, domain.ListFilter{
		ChainID: opts.chainID,
		Address: opts.address,
		Status:  domain.Status(opts.status),
		Limit:   opts.limit,
		Cursor:  opts.cursor,
	})
	if err != nil {
		return nil, "", err
	}

	rows := make([]historyRow, 0, len(page.Results))
	for _, r := range page.Results {
		rows = append(rows, historyRow{
			ID:        r.ID,
			ChainID:   r.ChainID,
			Contract:  r.ContractName,
			Address:   r.Address,
			Status:    string(r.Status),
			UpdatedAt: r.UpdatedAt,
		})
	}
	return rows, page.NextCursor, nil
}

func remoteHistory(ctx context.Context, serverURL string, opts historyOptions) ([]historyRow, string, error) {
	page, err := newServerClient(serverURL, "").ListVerifications(ctx, client.ListOptions{
		ChainID: opts.chainID,
		Address: opts.address,
		Status:  opts.status,
		Limit:   opts.limit,
		Cursor:  opts.cursor,
	})
	if err != nil {
		return nil, "", fmt.Errorf("listing verifications on %s: %w", serverURL, err)
	}

	rows := make([]historyRow, 0, len(page.Data))
	for _, v := range page.Data {
		rows = append(rows, historyRow{
			ID:        v.ID,
			ChainID:   v.ChainID,
			Contract:  v.ContractName,
			Address:   v.Address,
			Status:    v.Status,
			UpdatedAt: v.UpdatedAt,
		})
	}
	return rows, page.Pagination.NextCursor, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncateAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
