package db

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"
)

func TestRunMigrationsIsIncremental(t *testing.T) {
	ctx := context.Background()
	database, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "m.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer database.Close()

	first := fstest.MapFS{
		"0001_a.sql": {Data: []byte(`CREATE TABLE a (id INTEGER PRIMARY KEY);`)},
		"README.md":  {Data: []byte("not a migration")},
	}
	applied, err := RunMigrations(ctx, database, first)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !slices.Equal(applied, []string{"0001_a.sql"}) {
		t.Fatalf("first run applied %v", applied)
	}

	second := fstest.MapFS{
		"0002_b.sql": {Data: []byte(`CREATE TABLE b (id INTEGER PRIMARY KEY); INSERT INTO b (id) VALUES (1);`)},
		"0001_a.sql": first["0001_a.sql"],
	}
	applied, err = RunMigrations(ctx, database, second)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !slices.Equal(applied, []string{"0002_b.sql"}) {
		t.Fatalf("second run applied %v", applied)
	}

	applied, err = RunMigrations(ctx, database, second)
	if err != nil || len(applied) != 0 {
		t.Fatalf("third run: applied %v, err %v", applied, err)
	}

	var rows int
	if err := database.QueryRow(`SELECT COUNT(1) FROM b`).Scan(&rows); err != nil {
		t.Fatalf("query b: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected migration 0002 to run exactly once, got %d rows", rows)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	database, err := OpenSQLite(filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer database.Close()

	broken := fstest.MapFS{
		"0001_ok.sql":  {Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"0002_bad.sql": {Data: []byte(`CREATE TABLE c (id INTEGER); SELECT * FROM missing_table;`)},
	}
	applied, err := RunMigrations(context.Background(), database, broken)
	if err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if !slices.Equal(applied, []string{"0001_ok.sql"}) {
		t.Fatalf("expected only the good migration to be reported, got %v", applied)
	}

	var recorded int
	if err := database.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&recorded); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if recorded != 1 {
		t.Fatalf("failed migration must not be recorded, got %d rows", recorded)
	}
}
