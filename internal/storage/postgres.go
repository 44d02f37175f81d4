package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS verification_attempts (
		id UUID PRIMARY KEY,
		chain_id BIGINT NOT NULL,
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
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_lookup ON verification_attempts(chain_id, LOWER(address));
	CREATE INDEX IF NOT EXISTS idx_attempts_status ON verification_attempts(status);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON verification_attempts(created_at DESC);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateAttempt inserts a, assigning ID and timestamps when unset
func (s *PostgresStore) CreateAttempt(ctx context.Context, a *Attempt) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, int64(a.ChainID), a.Network, a.Address, a.ContractName, a.SourcePath, a.CompilerVersion,
		a.APIURL, a.BrowserURL, a.GUID, string(a.Status), a.Message, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// UpdateAttempt stores the mutable fields of a
func (s *PostgresStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE verification_attempts
		SET chain_id = $1, api_url = $2, browser_url = $3, guid = $4, status = $5, message = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := s.db.ExecContext(ctx, query,
		int64(a.ChainID), a.APIURL, a.BrowserURL, a.GUID, string(a.Status), a.Message, a.UpdatedAt, a.ID,
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

const postgresAttemptColumns = `id::text, chain_id, network, address, contract_name, source_path, compiler_version,
	api_url, browser_url, guid, status, message, created_at, updated_at`

// GetAttempt retrieves an attempt by ID
func (s *PostgresStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	// A malformed UUID can never match; avoid a cast error from postgres
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+postgresAttemptColumns+" FROM verification_attempts WHERE id = $1", id)
	a, err := scanPostgresAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAttempts lists attempts, newest first
func (s *PostgresStore) ListAttempts(ctx context.Context, filter AttemptFilter, pagination PaginationParams) (*PaginatedResult[Attempt], error) {
	limit, offset, err := normalizePagination(pagination)
	if err != nil {
		return nil, err
	}

	where, args := attemptWhere(filter, dollar)
	n := len(args)
	query := "SELECT " + postgresAttemptColumns + " FROM verification_attempts" + where +
		" ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	args = append(args, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanPostgresAttempt(rows)
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

func scanPostgresAttempt(row scanner) (*Attempt, error) {
	var (
		a       Attempt
		chainID int64
		status  string
	)
	err := row.Scan(&a.ID, &chainID, &a.Network, &a.Address, &a.ContractName, &a.SourcePath, &a.CompilerVersion,
		&a.APIURL, &a.BrowserURL, &a.GUID, &status, &a.Message, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ChainID = uint64(chainID)
	a.Status = Status(status)
	return &a, nil
}
