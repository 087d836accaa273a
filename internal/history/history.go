// Package history records merge runs so they can be listed later.
//
// Every run, successful or not, produces one Entry. Entries are kept in a
// Store: in memory for tests and one-off CLI use, in a local SQLite file, or
// in PostgreSQL when the server shares a database with other services.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a merge run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusDryRun    Status = "dry_run"
	StatusFailed    Status = "failed"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Entry describes one merge run.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Target     string    `json:"target"`
	Sources    []string  `json:"sources"`
	Mode       string    `json:"mode"`
	RowsRead   int       `json:"rowsRead"`
	RowsOut    int       `json:"rowsOut"`
	Duplicates int       `json:"duplicates"`
	Status     Status    `json:"status"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

// Duration returns how long the run took.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store persists entries.
type Store interface {
	// Record saves an entry. Entries with a zero ID get a new one.
	Record(ctx context.Context, e Entry) error

	// List returns up to limit entries, most recent first.
	List(ctx context.Context, limit int) ([]Entry, error)

	Close() error
}

// Open returns the store selected by dsn:
//
//	""                          in-memory store
//	postgres://... postgresql:// PostgreSQL via pgx
//	sqlite:path or a file path  SQLite file
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn, PoolOptions{})
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLite(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("unsupported history store %q", dsn)
	default:
		return OpenSQLite(dsn)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func prepare(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Sources == nil {
		e.Sources = []string{}
	}
	return e
}
