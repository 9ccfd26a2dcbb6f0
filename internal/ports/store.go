package ports

import (
	"context"

	"github.com/sgmartin/ltdbot/internal/domain"
)

// Fields is a partial multi-field update applied atomically to one row.
// Keys are store column names; implementations reject unknown columns.
type Fields map[string]any

// MatchStore persists the current-matches table and the append-only archive.
type MatchStore interface {
	// ListCurrent returns every in-flight match, kickoff ascending.
	ListCurrent(ctx context.Context) ([]domain.MatchRecord, error)

	// FetchCurrent returns the match by event id, or nil if absent.
	FetchCurrent(ctx context.Context, eventID string) (*domain.MatchRecord, error)

	// UpdateCurrent applies the field updates to one row in a single statement.
	UpdateCurrent(ctx context.Context, eventID string, updates Fields) error

	// InsertCurrent adds a newly discovered match and reports whether a row
	// was created. Inserting an event id that already exists is a no-op.
	InsertCurrent(ctx context.Context, rec domain.MatchRecord) (bool, error)

	// ArchiveMatch moves the row from current to archive in one transaction.
	// The row must have a result set; a missing row is an error.
	ArchiveMatch(ctx context.Context, eventID string) error

	// DeleteFromCurrent removes the row without archiving it.
	DeleteFromCurrent(ctx context.Context, eventID string) error

	// ListArchive returns finalized matches, most recently archived first.
	ListArchive(ctx context.Context, limit int) ([]domain.MatchRecord, error)

	// Close releases the underlying database.
	Close() error
}
