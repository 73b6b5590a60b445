package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"runs", "attempts", "missing_ids"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDSN_ConnectionSettings(t *testing.T) {
	got := dsn("runs.db")
	for _, want := range []string{"_journal_mode=WAL", "_synchronous=NORMAL", "_busy_timeout=5000", "_foreign_keys=on", "_txlock=immediate"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn() = %q, missing %q", got, want)
		}
	}
	if !strings.HasPrefix(got, "runs.db?") {
		t.Errorf("dsn() = %q, want path then parameters", got)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"runs":        {"id", "input_path", "output_path", "started_at", "status", "finished_at", "examples", "converted", "tally"},
		"attempts":    {"run_id", "seq", "example", "parse", "query_id", "outcome", "detail"},
		"missing_ids": {"run_id", "kind", "local_id"},
	}
	for table, cols := range expected {
		columns := getTableColumns(t, s.db, table)
		for _, col := range cols {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	if !contains(getTableIndexes(t, s.db, "runs"), "idx_runs_started") {
		t.Error("runs table missing index idx_runs_started")
	}
	indexes := getTableIndexes(t, s.db, "attempts")
	for _, idx := range []string{"idx_attempts_outcome", "idx_attempts_query"} {
		if !contains(indexes, idx) {
			t.Errorf("attempts table missing index %q", idx)
		}
	}
}

func TestConstraint_AttemptRequiresRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO attempts (run_id, seq, example, parse, query_id, outcome)
		VALUES ('missing', 1, 0, 0, 'q', 'success')
	`)
	if err == nil {
		t.Error("expected foreign key violation, got nil")
	}
}

func TestConstraint_MissingKind(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO runs (id, input_path, output_path, started_at) VALUES ('r1', 'in', 'out', 't')`); err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}
	_, err := s.db.Exec(`INSERT INTO missing_ids (run_id, kind, local_id) VALUES ('r1', 'literal', 'x')`)
	if err == nil {
		t.Error("expected CHECK violation for unknown kind, got nil")
	}
}

func TestConstraint_RunStatus(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO runs (id, input_path, output_path, started_at, status) VALUES ('r1', 'in', 'out', 't', 'paused')`)
	if err == nil {
		t.Error("expected CHECK violation for unknown status, got nil")
	}
}

// Migration tests

func TestMigration_OnePerVersion(t *testing.T) {
	if len(migrations) != currentSchemaVersion {
		t.Errorf("len(migrations) = %d, want %d", len(migrations), currentSchemaVersion)
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// Schema without migrations simulates a pre-migration database
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if !contains(getTableIndexes(t, s.db, "attempts"), "idx_attempts_query") {
		t.Error("expected idx_attempts_query after migration")
	}
	if !contains(getTableColumns(t, s.db, "runs"), "status") {
		t.Error("expected runs.status after migration")
	}
}

func TestMigration_UpgradeFromV1BackfillsStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// A v1 log with one finished and one open run
	stmts := []string{
		schemaSQL,
		`CREATE INDEX idx_attempts_query ON attempts(query_id)`,
		`INSERT INTO runs (id, input_path, output_path, started_at, finished_at) VALUES ('done', 'in', 'out', 't0', 't1')`,
		`INSERT INTO runs (id, input_path, output_path, started_at) VALUES ('left', 'in', 'out', 't2')`,
		`PRAGMA user_version = 1`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to build v1 database: %v", err)
		}
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	want := map[string]string{"done": "finished", "left": "open"}
	for id, status := range want {
		var got string
		if err := s.db.QueryRow(`SELECT status FROM runs WHERE id = ?`, id).Scan(&got); err != nil {
			t.Fatalf("failed to read status of %s: %v", id, err)
		}
		if got != status {
			t.Errorf("run %s status = %q, want %q", id, got, status)
		}
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
