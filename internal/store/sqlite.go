package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the KV interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the store's time source. Used by tests to age
// entries past their TTL without sleeping.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get returns the entry for key within namespace.
func (s *SQLiteStore) Get(
	ctx context.Context,
	namespace, key string,
) (Entry, bool, error) {
	var (
		data      string
		writtenAt time.Time
	)

	row := s.db.QueryRowxContext(ctx,
		"SELECT data, written_at FROM kv_entries WHERE namespace = ? AND k = ?",
		namespace, key,
	)
	if err := row.Scan(&data, &writtenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf(
			"reading kv entry %s/%s: %w", namespace, key, err,
		)
	}

	return Entry{Data: []byte(data), WrittenAt: writtenAt}, true, nil
}

// Set writes the entry for key within namespace, stamping the current time.
func (s *SQLiteStore) Set(
	ctx context.Context,
	namespace, key string,
	data []byte,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO kv_entries (namespace, k, data, written_at)
		VALUES (?, ?, ?, ?)`,
		namespace, key, string(data), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing kv entry %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Remove deletes a single entry.
func (s *SQLiteStore) Remove(
	ctx context.Context,
	namespace, key string,
) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE namespace = ? AND k = ?",
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("removing kv entry %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Clear deletes every entry in a namespace.
func (s *SQLiteStore) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE namespace = ?", namespace,
	)
	if err != nil {
		return fmt.Errorf("clearing kv namespace %s: %w", namespace, err)
	}
	return nil
}
