package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so TEXT ordering matches time ordering
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Background jobs update rows while requests read them
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS verification_attempts (
		id TEXT PRIMARY KEY,
		chain_id INTEGER NOT NULL,
		network TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		source_path TEXT NOT NULL DEFAULT '',
		compiler_version TEXT NOT NULL DEFAULT '',
		api_url TEXT NOT NULL DEFAULT '',
		browser_url TEXT NOT NULL DEFAULT '',
		guid TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_lookup ON verification_attempts(chain_id, address);
	CREATE INDEX IF NOT EXISTS idx_attempts_status ON verification_attempts(status);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON verification_attempts(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateAttempt inserts a, assigning ID and timestamps when unset
func (s *SQLiteStore) CreateAttempt(ctx context.Context, a *Attempt) error {
	if a.ID == "" {
		a.ID = generateID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO verification_attempts (id, chain_id, network, address, contract_name, source_path, compiler_version,
			api_url, browser_url, guid, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, int64(a.ChainID), a.Network, a.Address, a.ContractName, a.SourcePath, a.CompilerVersion,
		a.APIURL, a.BrowserURL, a.GUID, string(a.Status), a.Message,
		a.CreatedAt.UTC().Format(sqliteTimeLayout), a.UpdatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// UpdateAttempt stores the mutable fields of a
func (s *SQLiteStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE verification_attempts
		SET chain_id = ?, api_url = ?, browser_url = ?, guid = ?, status = ?, message = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		int64(a.ChainID), a.APIURL, a.BrowserURL, a.GUID, string(a.Status), a.Message,
		a.UpdatedAt.Format(sqliteTimeLayout), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const sqliteAttemptColumns = `id, chain_id, network, address, contract_name, source_path, compiler_version,
	api_url, browser_url, guid, status, message, created_at, updated_at`

// GetAttempt retrieves an attempt by ID
func (s *SQLiteStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sqliteAttemptColumns+" FROM verification_attempts WHERE id = ?", id)
	a, err := scanSQLiteAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAttempts lists attempts, newest first
func (s *SQLiteStore) ListAttempts(ctx context.Context, filter AttemptFilter, pagination PaginationParams) (*PaginatedResult[Attempt], error) {
	limit, offset, err := normalizePagination(pagination)
	if err != nil {
		return nil, err
	}

	where, args := attemptWhere(filter, questionMark)
	query := "SELECT " + sqliteAttemptColumns + " FROM verification_attempts" + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanSQLiteAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginate(attempts, limit, offset), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAttempt(row scanner) (*Attempt, error) {
	var (
		a                Attempt
		chainID          int64
		status           string
		created, updated string
	)
	err := row.Scan(&a.ID, &chainID, &a.Network, &a.Address, &a.ContractName, &a.SourcePath, &a.CompilerVersion,
		&a.APIURL, &a.BrowserURL, &a.GUID, &status, &a.Message, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.ChainID = uint64(chainID)
	a.Status = Status(status)
	if a.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(sqliteTimeLayout, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}
