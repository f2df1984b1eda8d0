// Package sqlite keeps the latest video identifier tally in a SQLite
// database so it can be queried after tubecount exits.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360/tubewatch/aggregate"
	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/storage"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

var _ storage.CountStore = (*Store)(nil)

// Store holds the video_counts table
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies migrations
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "Open", "validate path")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WrapFatal(err, "Store", "Open", "create directory")
		}
	}

	// Pragmas in the connection string apply to every pooled connection
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "Open", "open database")
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "Store", "Open", "verify journal mode")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "Store", "Open", "migrate schema")
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations based on user_version
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS video_counts (
		  video_id   TEXT PRIMARY KEY,
		  count      INTEGER NOT NULL,
		  updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_video_counts_count
		ON video_counts(count DESC, video_id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// ReplaceCounts swaps the stored tally for entries in one transaction.
// updated_at is stored as unix seconds.
func (s *Store) ReplaceCounts(ctx context.Context, entries []aggregate.Entry, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "Store", "ReplaceCounts", "begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM video_counts"); err != nil {
		return errors.WrapTransient(err, "Store", "ReplaceCounts", "clear snapshot")
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO video_counts (video_id, count, updated_at) VALUES (?, ?, ?)")
	if err != nil {
		return errors.WrapTransient(err, "Store", "ReplaceCounts", "prepare insert")
	}
	defer stmt.Close()

	updated := now.Unix()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.VideoID, e.Count, updated); err != nil {
			return errors.WrapTransient(err, "Store", "ReplaceCounts", "insert "+e.VideoID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "Store", "ReplaceCounts", "commit")
	}
	return nil
}

// Counts returns the stored tally sorted by video identifier
func (s *Store) Counts(ctx context.Context) ([]aggregate.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT video_id, count FROM video_counts ORDER BY video_id")
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Counts", "query")
	}
	defer rows.Close()

	entries := []aggregate.Entry{}
	for rows.Next() {
		var e aggregate.Entry
		if err := rows.Scan(&e.VideoID, &e.Count); err != nil {
			return nil, errors.WrapTransient(err, "Store", "Counts", "scan row")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "Counts", "iterate rows")
	}
	return entries, nil
}

// UpdatedAt returns when the stored tally was written. ok is false when the
// table is empty.
func (s *Store) UpdatedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var unix sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM video_counts").Scan(&unix); err != nil {
		return time.Time{}, false, errors.WrapTransient(err, "Store", "UpdatedAt", "query")
	}
	if !unix.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(unix.Int64, 0), true, nil
}
