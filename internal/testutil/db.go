// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/tiagofur/ordo-todo-sub018/internal/db"
	"github.com/tiagofur/ordo-todo-sub018/migrations"
)

// OpenDB returns a migrated SQLite database in a per-test temp dir.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if _, err := db.RunMigrations(context.Background(), database, migrations.FS); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}
