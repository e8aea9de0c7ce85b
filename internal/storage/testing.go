package storage

import (
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated database in a temporary directory and closes it
// when the test finishes. It is exported for use in other package tests.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	config := DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	config.AutoMigrate = true

	db, err := Open(config)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
