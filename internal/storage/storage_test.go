package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tabrefresh.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	// Verify the kv table exists.
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('theme', 'dark')`); err != nil {
		t.Fatalf("insert into kv: %v", err)
	}
}

func TestOpenDB_MigrationsRunOnce(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "twice.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	NewKV(db).Set("selectedUrl", "https://example.com")
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("schema_migrations has %d rows, want %d", count, len(migrations))
	}

	v, ok, err := NewKV(db).Get("selectedUrl")
	if err != nil || !ok || v != "https://example.com" {
		t.Errorf("value lost across reopen: %q ok=%v err=%v", v, ok, err)
	}
}

func TestDBPath(t *testing.T) {
	got := DBPath("/data")
	if got != filepath.Join("/data", "tabrefresh.db") {
		t.Errorf("DBPath = %q", got)
	}
}
