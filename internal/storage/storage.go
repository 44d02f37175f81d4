package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/explorerverify/internal/config"
)

// Status is the lifecycle state of a verification attempt
type Status string

// Attempt statuses
const (
	StatusPending         Status = "pending"
	StatusSubmitted       Status = "submitted"
	StatusVerified        Status = "verified"
	StatusRejected        Status = "rejected"
	StatusAlreadyVerified Status = "already_verified"
	StatusError           Status = "error"
)

// Terminal reports whether no further transitions can happen
func (s Status) Terminal() bool {
	switch s {
	case StatusVerified, StatusRejected, StatusAlreadyVerified, StatusError:
		return true
	}
	return false
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSubmitted || s.Terminal()
}

// AttemptStore handles verification attempt records
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *Attempt) error
	UpdateAttempt(ctx context.Context, a *Attempt) error
	GetAttempt(ctx context.Context, id string) (*Attempt, error)
	ListAttempts(ctx context.Context, filter AttemptFilter, pagination PaginationParams) (*PaginatedResult[Attempt], error)
}

// Store combines the storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	AttemptStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Attempt is one verification of one contract on one explorer
type Attempt struct {
	ID              string
	ChainID         uint64
	Network         string
	Address         string
	ContractName    string
	SourcePath      string
	CompilerVersion string
	APIURL          string
	BrowserURL      string
	GUID            string
	Status          Status
	Message         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AttemptFilter contains filter options for listing attempts
type AttemptFilter struct {
	ChainID uint64
	Address string
	Status  Status
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
