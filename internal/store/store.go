package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on attempts.query_id
// 2 - Added runs.status so interrupted runs are closed as aborted
const currentSchemaVersion = 2

// migrations[v] upgrades a database from user_version v to v+1.
var migrations = []func(*sql.Tx) error{
	migrateToV1,
	migrateToV2,
}

// Store is the run log: a SQLite database written once per convert run and
// read back by the runs command.
type Store struct {
	db *sql.DB
}

// Open creates or opens the run log at path and brings its schema up to
// date. Opening an up-to-date log is a no-op, so several convert runs may
// share one file.
//
// Connection settings travel in the DSN, so go-sqlite3 applies them to
// every connection the pool opens:
//   - WAL journal, so `kgbridge runs` can read while a convert writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for a second writer on the same file
//   - foreign keys on, so attempts cannot outlive their run
//   - immediate transactions, since CompleteRun checks the run row before
//     writing
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The pool is opened lazily; fail here on a bad path, not on first write.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A run is written by one goroutine after the batch completes. One
	// connection also keeps ":memory:" databases from splitting per
	// connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

// applySchema creates the v0 tables if they don't exist, then migrates.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies one migration per transaction and bumps
// user_version in the same transaction. The version is read under the
// write lock, so two processes opening an old log migrate it once.
func runMigrations(db *sql.DB) error {
	for {
		done, err := migrateStep(db)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func migrateStep(db *sql.DB) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return false, fmt.Errorf("get user_version: %w", err)
	}
	if version >= len(migrations) {
		return true, nil
	}

	if err := migrations[version](tx); err != nil {
		return false, err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
		return false, fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration to v%d: %w", version+1, err)
	}
	return false, nil
}

// migrateToV1 indexes attempts by query id for `kgbridge runs --query-id`.
func migrateToV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_attempts_query
		ON attempts(query_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// migrateToV2 adds runs.status. Logs written before v2 only know open and
// finished runs, which finished_at already tells apart.
func migrateToV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE runs ADD COLUMN status TEXT NOT NULL DEFAULT 'open'
		CHECK (status IN ('open', 'finished', 'aborted'))
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	if _, err := tx.Exec(`UPDATE runs SET status = 'finished' WHERE finished_at IS NOT NULL`); err != nil {
		return fmt.Errorf("migrate to v2: backfill status: %w", err)
	}
	return nil
}
