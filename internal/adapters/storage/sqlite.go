package storage

// sqlite.go: persistence for the match lifecycle.
//
// Two tables:
//   current_matches: one row per in-flight match, mutated every tick
//   archive:         append-only history of finalized matches
//
// A match lives in exactly one of the two: ArchiveMatch moves the row in a
// single transaction. SQLite busy/locked errors surface as ErrBusy so the
// scheduler can retry them.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
	_ "modernc.org/sqlite"
)

// ErrBusy marks transient SQLite contention (database locked/busy).
var ErrBusy = errors.New("storage: database busy")

// ErrNotFound is returned when the event id has no current row.
var ErrNotFound = errors.New("storage: match not found")

const schema = `
CREATE TABLE IF NOT EXISTS current_matches (
    event_id      TEXT PRIMARY KEY,
    event_name    TEXT NOT NULL DEFAULT '',
    comp          TEXT NOT NULL DEFAULT '',
    market_id     TEXT NOT NULL DEFAULT '',
    kickoff       DATETIME,
    bot_version   TEXT NOT NULL DEFAULT '',

    inplay_status TEXT NOT NULL DEFAULT '',
    time_elapsed  INTEGER,
    h_score       INTEGER,
    a_score       INTEGER,
    h_red_cards   INTEGER,
    a_red_cards   INTEGER,

    h_back        REAL,
    a_back        REAL,
    d_back        REAL,
    h_lay         REAL,
    a_lay         REAL,
    d_lay         REAL,
    market_state  TEXT NOT NULL DEFAULT '',

    h_sp          REAL,
    a_sp          REAL,
    d_sp          REAL,
    fav           INTEGER,

    h_goals15 INTEGER, a_goals15 INTEGER,
    h_goals30 INTEGER, a_goals30 INTEGER,
    h_goals45 INTEGER, a_goals45 INTEGER,
    h_goals60 INTEGER, a_goals60 INTEGER,
    h_goals75 INTEGER, a_goals75 INTEGER,
    h_goals90 INTEGER, a_goals90 INTEGER,

    ft_score      TEXT NOT NULL DEFAULT '',
    result        INTEGER,
    strategy      TEXT NOT NULL DEFAULT '',
    pnl           REAL,

    e1_price      REAL,
    e1_stake      REAL,
    e1_matched    REAL,
    e1_remaining  REAL,
    e1_status     TEXT,
    e1_bet_id     TEXT,
    e1_placed_at  DATETIME,

    e2_price      REAL,
    e2_stake      REAL,
    e2_matched    REAL,
    e2_remaining  REAL,
    e2_status     TEXT,
    e2_bet_id     TEXT,
    e2_placed_at  DATETIME,

    liability     REAL NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS current_kickoff ON current_matches(kickoff);
CREATE INDEX IF NOT EXISTS current_strategy ON current_matches(strategy);

CREATE TABLE IF NOT EXISTS archive (
    event_id      TEXT PRIMARY KEY,
    event_name    TEXT NOT NULL DEFAULT '',
    comp          TEXT NOT NULL DEFAULT '',
    market_id     TEXT NOT NULL DEFAULT '',
    kickoff       DATETIME,
    bot_version   TEXT NOT NULL DEFAULT '',
    inplay_status TEXT NOT NULL DEFAULT '',
    time_elapsed  INTEGER,
    h_score       INTEGER,
    a_score       INTEGER,
    h_red_cards   INTEGER,
    a_red_cards   INTEGER,
    h_back REAL, a_back REAL, d_back REAL,
    h_lay  REAL, a_lay  REAL, d_lay  REAL,
    market_state  TEXT NOT NULL DEFAULT '',
    h_sp REAL, a_sp REAL, d_sp REAL,
    fav  INTEGER,
    h_goals15 INTEGER, a_goals15 INTEGER,
    h_goals30 INTEGER, a_goals30 INTEGER,
    h_goals45 INTEGER, a_goals45 INTEGER,
    h_goals60 INTEGER, a_goals60 INTEGER,
    h_goals75 INTEGER, a_goals75 INTEGER,
    h_goals90 INTEGER, a_goals90 INTEGER,
    ft_score      TEXT NOT NULL DEFAULT '',
    result        INTEGER,
    strategy      TEXT NOT NULL DEFAULT '',
    pnl           REAL,
    e1_price REAL, e1_stake REAL, e1_matched REAL, e1_remaining REAL,
    e1_status TEXT, e1_bet_id TEXT, e1_placed_at DATETIME,
    e2_price REAL, e2_stake REAL, e2_matched REAL, e2_remaining REAL,
    e2_status TEXT, e2_bet_id TEXT, e2_placed_at DATETIME,
    liability     REAL NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL,
    archived_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS archive_at ON archive(archived_at DESC);
`

// matchCols is the shared column list, in MatchRecord scan order.
const matchCols = `event_id, event_name, comp, market_id, kickoff, bot_version,
	inplay_status, time_elapsed, h_score, a_score, h_red_cards, a_red_cards,
	h_back, a_back, d_back, h_lay, a_lay, d_lay, market_state,
	h_sp, a_sp, d_sp, fav,
	h_goals15, a_goals15, h_goals30, a_goals30, h_goals45, a_goals45,
	h_goals60, a_goals60, h_goals75, a_goals75, h_goals90, a_goals90,
	ft_score, result, strategy, pnl,
	e1_price, e1_stake, e1_matched, e1_remaining, e1_status, e1_bet_id, e1_placed_at,
	e2_price, e2_stake, e2_matched, e2_remaining, e2_status, e2_bet_id, e2_placed_at,
	liability`

// allowedColumns guards UpdateCurrent against typos and non-columns.
var allowedColumns = buildAllowed()

func buildAllowed() map[string]bool {
	m := make(map[string]bool)
	for _, c := range strings.Split(matchCols, ",") {
		m[strings.TrimSpace(c)] = true
	}
	delete(m, "event_id") // identity is immutable
	return m
}

// SQLiteStore implements ports.MatchStore on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListCurrent returns all in-flight matches ordered by kickoff ascending.
// NULL kickoffs sort last so freshly discovered rows don't jump the queue.
func (s *SQLiteStore) ListCurrent(ctx context.Context) ([]domain.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchCols+` FROM current_matches
		 ORDER BY kickoff IS NULL, kickoff ASC, event_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListCurrent: %w", wrapBusy(err))
	}
	defer rows.Close()
	return scanMatches(rows)
}

// FetchCurrent returns one match, or nil when the row is absent.
func (s *SQLiteStore) FetchCurrent(ctx context.Context, eventID string) (*domain.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchCols+` FROM current_matches WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("storage.FetchCurrent: %w", wrapBusy(err))
	}
	defer rows.Close()

	recs, err := scanMatches(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// UpdateCurrent applies a partial multi-field update in one statement.
func (s *SQLiteStore) UpdateCurrent(ctx context.Context, eventID string, updates ports.Fields) error {
	if len(updates) == 0 {
		return nil
	}

	cols := make([]string, 0, len(updates))
	for c := range updates {
		if !allowedColumns[c] {
			return fmt.Errorf("storage.UpdateCurrent: unknown column %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols) // deterministic statement text

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, normalizeArg(updates[c]))
	}
	args = append(args, eventID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE current_matches SET `+strings.Join(sets, ", ")+` WHERE event_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("storage.UpdateCurrent %s: %w", eventID, wrapBusy(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateCurrent %s: %w", eventID, ErrNotFound)
	}
	return nil
}

// InsertCurrent adds a discovered match and reports whether a row was
// created. Existing event ids are left alone.
func (s *SQLiteStore) InsertCurrent(ctx context.Context, rec domain.MatchRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO current_matches
		  (event_id, event_name, comp, market_id, kickoff, bot_version, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		rec.EventID, rec.EventName, rec.Comp, rec.MarketID,
		nullTimePtr(rec.Kickoff), rec.BotVersion, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("storage.InsertCurrent %s: %w", rec.EventID, wrapBusy(err))
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ArchiveMatch moves a settled row from current to archive atomically.
// The row must exist and must have its result set.
func (s *SQLiteStore) ArchiveMatch(ctx context.Context, eventID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.ArchiveMatch %s: begin: %w", eventID, wrapBusy(err))
	}
	defer tx.Rollback()

	var result sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT result FROM current_matches WHERE event_id = ?`, eventID).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("storage.ArchiveMatch %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage.ArchiveMatch %s: %w", eventID, wrapBusy(err))
	}
	if !result.Valid {
		return fmt.Errorf("storage.ArchiveMatch %s: result not set", eventID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archive (`+matchCols+`, created_at, archived_at)
		SELECT `+matchCols+`, created_at, ? FROM current_matches WHERE event_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), eventID,
	); err != nil {
		return fmt.Errorf("storage.ArchiveMatch %s: insert: %w", eventID, wrapBusy(err))
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM current_matches WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("storage.ArchiveMatch %s: delete: %w", eventID, wrapBusy(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.ArchiveMatch %s: commit: %w", eventID, wrapBusy(err))
	}
	return nil
}

// DeleteFromCurrent removes an unusable row without archiving it.
func (s *SQLiteStore) DeleteFromCurrent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM current_matches WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("storage.DeleteFromCurrent %s: %w", eventID, wrapBusy(err))
	}
	return nil
}

// ListArchive returns finalized matches, newest first.
func (s *SQLiteStore) ListArchive(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchCols+` FROM archive ORDER BY archived_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListArchive: %w", wrapBusy(err))
	}
	defer rows.Close()
	return scanMatches(rows)
}

// IsBusy reports whether err is transient SQLite contention.
func IsBusy(err error) bool {
	if errors.Is(err, ErrBusy) {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func wrapBusy(err error) error {
	if err != nil && IsBusy(err) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// normalizeArg converts domain pointer fields to driver-friendly values.
func normalizeArg(v any) any {
	switch t := v.(type) {
	case *int:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case domain.InplayStatus:
		return string(t)
	default:
		return v
	}
}

// Times are stored as RFC 3339 UTC text so string ordering matches time
// ordering and round-trips are driver-independent.
func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
