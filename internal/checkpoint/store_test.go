package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/testutil"
)

func sampleCheckpoint() model.Checkpoint {
	at := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	return model.Checkpoint{
		Version:                   model.CheckpointVersion,
		Mode:                      model.ModeWork,
		Status:                    model.StatusRunning,
		RemainingSeconds:          1200,
		PlannedSeconds:            1500,
		CheckpointAt:              at,
		CompletedPomodorosInCycle: 2,
		SelectedTaskID:            "task-42",
		Config:                    model.DefaultTimerConfig(),
		PauseCount:                1,
		SessionID:                 "b4b7c1e4-1111-4c59-9f59-000000000001",
		SessionStartedAt:          at.Add(-5 * time.Minute),
	}
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": NewSQLiteStore(testutil.OpenDB(t)),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "state", "checkpoint.yaml")),
	}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound on empty store, got %v", name, err)
		}

		want := sampleCheckpoint()
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		want.RemainingSeconds = 1100
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("%s: overwrite: %v", name, err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if got.RemainingSeconds != 1100 || got.SelectedTaskID != want.SelectedTaskID || got.Mode != want.Mode {
			t.Fatalf("%s: unexpected checkpoint %+v", name, got)
		}
		if !got.CheckpointAt.Equal(want.CheckpointAt) {
			t.Fatalf("%s: checkpoint time changed: %v vs %v", name, got.CheckpointAt, want.CheckpointAt)
		}
		if got.Config != want.Config {
			t.Fatalf("%s: config changed: %+v", name, got.Config)
		}

		if err := store.Clear(ctx); err != nil {
			t.Fatalf("%s: clear: %v", name, err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("%s: second clear: %v", name, err)
		}
		if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound after clear, got %v", name, err)
		}
	}
}

func TestRestoreMissingRecord(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.yaml"))
	if _, ok := Restore(context.Background(), store, logger.Discard()); ok {
		t.Fatal("expected no checkpoint")
	}
}

func TestRestoreDiscardsUndecodableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.yaml")
	if err := os.WriteFile(path, []byte("mode: [unterminated"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	store := NewFileStore(path)

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, ok := Restore(context.Background(), store, logger.Discard()); ok {
		t.Fatal("corrupt checkpoint should not restore")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("corrupt file should be cleared, stat err=%v", err)
	}
}

func TestRestoreDiscardsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	database := testutil.OpenDB(t)
	store := NewSQLiteStore(database)

	invalid := []func(cp *model.Checkpoint){
		func(cp *model.Checkpoint) { cp.Mode = "nap" },
		func(cp *model.Checkpoint) { cp.Status = "spinning" },
		func(cp *model.Checkpoint) { cp.RemainingSeconds = cp.PlannedSeconds + 1 },
		func(cp *model.Checkpoint) { cp.Config.WorkSeconds = 0 },
		func(cp *model.Checkpoint) { cp.Version = 99 },
		func(cp *model.Checkpoint) { cp.CompletedPomodorosInCycle = cp.Config.PomodorosUntilLongBreak },
	}
	for i, mutate := range invalid {
		cp := sampleCheckpoint()
		mutate(&cp)
		if err := store.Save(ctx, cp); err != nil {
			t.Fatalf("case %d: save: %v", i, err)
		}
		if _, ok := Restore(ctx, store, logger.Discard()); ok {
			t.Fatalf("case %d: invalid checkpoint restored", i)
		}
		if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("case %d: invalid checkpoint not cleared: %v", i, err)
		}
	}

	if _, err := database.Exec(`INSERT INTO timer_checkpoints (id, record, updated_at) VALUES (1, '{not json', '')`); err != nil {
		t.Fatalf("insert garbage: %v", err)
	}
	if _, ok := Restore(ctx, store, logger.Discard()); ok {
		t.Fatal("garbage row restored")
	}
}

func TestRestoreValidRecord(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(testutil.OpenDB(t))
	if err := store.Save(ctx, sampleCheckpoint()); err != nil {
		t.Fatalf("save: %v", err)
	}
	cp, ok := Restore(ctx, store, logger.Discard())
	if !ok {
		t.Fatal("expected checkpoint to restore")
	}
	if cp.CompletedPomodorosInCycle != 2 || cp.Status != model.StatusRunning {
		t.Fatalf("unexpected restored checkpoint %+v", cp)
	}
}
