package db

import (
	"os"
	"path/filepath"
	"testing"
)

// migrationsDir locates db/migrations relative to the test's working
// directory, walking up toward the repository root.
func migrationsDir(t *testing.T) string {
	t.Helper()
	candidates := []string{
		"db/migrations",
		"../../db/migrations",    // from internal/db/
		"../../../db/migrations", // deeper packages
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			abs, err := filepath.Abs(c)
			if err != nil {
				t.Fatalf("resolve migrations dir: %v", err)
			}
			return abs
		}
	}
	t.Fatal("cannot find db/migrations - run tests from repository root")
	return ""
}

// newTestDB opens a migrated database in a per-test temp directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.MigrateUp(migrationsDir(t)); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	return db
}
