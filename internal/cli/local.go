package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pendergraft/explorerverify/internal/explorer"
	"github.com/pendergraft/explorerverify/internal/storage"
)

func historyPath() string {
	return filepath.Join(stateDir(), "history.db")
}

// openHistory opens the local attempt history, creating it on first use.
func openHistory(ctx context.Context, logger *slog.Logger) (*storage.SQLiteStore, error) {
	if err := os.MkdirAll(stateDir(), 0700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", stateDir(), err)
	}

	store, err := storage.NewSQLiteStore(historyPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating history: %w", err)
	}
	return store, nil
}

// newExplorerClient prints a line for every poll that finds the job still queued.
func newExplorerClient(logger *slog.Logger) *explorer.Client {
	return explorer.New(
		explorer.WithLogger(logger),
		explorer.WithPollObserver(func(attempt int, resp *explorer.Response) {
			if resp.IsPending() {
				fmt.Printf("   ⏳ Waiting for the explorer (check %d)\n", attempt)
			}
		}),
	)
}
