package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/checkpoint"
	"github.com/tiagofur/ordo-todo-sub018/internal/clock"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/testutil"
	"github.com/tiagofur/ordo-todo-sub018/internal/timer"
)

type memoryQueue struct {
	mu     sync.Mutex
	events []model.SessionRecord
}

func (q *memoryQueue) EnqueueSession(ctx context.Context, record model.SessionRecord) (model.PendingSyncAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, record)
	return model.PendingSyncAction{ID: record.SessionID}, nil
}

func (q *memoryQueue) recorded() []model.SessionRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.SessionRecord(nil), q.events...)
}

type engineFixture struct {
	clock   *clock.Manual
	store   checkpoint.Store
	hub     *broadcast.Broadcaster
	queue   *memoryQueue
	service *TimerService
}

func newEngine(t *testing.T, store checkpoint.Store, clk *clock.Manual) *engineFixture {
	t.Helper()
	hub := broadcast.New(16, logger.Discard())
	queue := &memoryQueue{}
	svc := NewTimerService(clk, store, hub, queue, logger.Discard(), TimerOptions{
		Config:       model.DefaultTimerConfig(),
		TickInterval: time.Hour,
	})
	t.Cleanup(svc.Close)
	return &engineFixture{clock: clk, store: store, hub: hub, queue: queue, service: svc}
}

func engineStart() time.Time {
	return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
}

func TestStartPublishesAndCheckpoints(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	f.service.Restore(ctx)

	sub := f.hub.Subscribe("floating-1", model.SurfaceFloating)
	primed := <-sub.Envelopes()
	if primed.Snapshot == nil || primed.Snapshot.Status != model.StatusIdle {
		t.Fatalf("expected idle priming snapshot, got %+v", primed)
	}

	snapshot, err := f.hub.Dispatch(ctx, "floating-1", model.Command{Type: model.CommandStart, TaskID: "task-7"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snapshot.Status != model.StatusRunning || snapshot.Phase != string(model.ModeWork) || snapshot.SelectedTaskID != "task-7" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Version <= primed.Snapshot.Version {
		t.Fatalf("expected version to advance, got %d after %d", snapshot.Version, primed.Snapshot.Version)
	}

	published := <-sub.Envelopes()
	if published.Snapshot == nil || published.Snapshot.Version != snapshot.Version {
		t.Fatalf("expected the start snapshot to be published, got %+v", published)
	}
	if !f.service.driver.Running() {
		t.Fatalf("expected tick driver to run while a session runs")
	}

	cp, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if cp.Status != model.StatusRunning || cp.SelectedTaskID != "task-7" {
		t.Fatalf("expected running checkpoint, got %+v", cp)
	}
}

func TestTickCompletesWorkAndQueuesEvent(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	f.service.Restore(ctx)

	if _, err := f.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.Advance(1499 * time.Second)
	if !f.service.onTick(f.clock.Now()) {
		t.Fatalf("expected ticking to continue before the end")
	}
	if got := f.service.Snapshot().RemainingSeconds; got != 1 {
		t.Fatalf("expected 1s remaining, got %d", got)
	}

	f.clock.Advance(time.Second)
	f.service.onTick(f.clock.Now())

	events := f.queue.recorded()
	if len(events) != 1 {
		t.Fatalf("expected one session event, got %d", len(events))
	}
	if events[0].Mode != model.ModeWork || events[0].Reason != model.ReasonCompleted || events[0].ActualSeconds != 1500 {
		t.Fatalf("unexpected event %+v", events[0])
	}

	snapshot := f.service.Snapshot()
	if snapshot.Mode != model.ModeShortBreak || snapshot.Status != model.StatusRunning || snapshot.CompletedPomodorosInCycle != 1 {
		t.Fatalf("expected auto-started short break, got %+v", snapshot)
	}
}

func TestNoOpCommandDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	before := f.service.Restore(ctx)

	for _, cmd := range []model.CommandType{model.CommandPause, model.CommandResume, model.CommandSkip, model.CommandStop} {
		snapshot, err := f.service.Apply(ctx, model.Command{Type: cmd})
		if err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
		if snapshot.Version != before.Version || snapshot.Status != model.StatusIdle {
			t.Fatalf("%s while idle must not change anything, got %+v", cmd, snapshot)
		}
	}
	if len(f.queue.recorded()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	f.service.Restore(ctx)

	if _, err := f.service.Apply(ctx, model.Command{Type: "rewind"}); !errors.Is(err, broadcast.ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestRestoreAbsorbsDowntime(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewSQLiteStore(testutil.OpenDB(t))
	clk := clock.NewManual(engineStart())

	first := newEngine(t, store, clk)
	first.service.Restore(ctx)
	if _, err := first.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	first.service.Close()

	clk.Advance(40 * time.Second)
	second := newEngine(t, store, clk)
	snapshot := second.service.Restore(ctx)
	if snapshot.Status != model.StatusRunning || snapshot.RemainingSeconds != 1460 {
		t.Fatalf("expected running with 1460s left, got %+v", snapshot)
	}
	if !second.service.driver.Running() {
		t.Fatalf("expected ticking to resume after restore")
	}
}

func TestRestoreReportsSessionsEndedWhileDown(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewSQLiteStore(testutil.OpenDB(t))
	clk := clock.NewManual(engineStart())

	first := newEngine(t, store, clk)
	first.service.Restore(ctx)
	if _, err := first.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	first.service.Close()

	clk.Advance(2 * time.Hour)
	second := newEngine(t, store, clk)
	second.service.Restore(ctx)

	events := second.queue.recorded()
	if len(events) != 1 || events[0].Reason != model.ReasonCompleted {
		t.Fatalf("expected the interrupted work session to complete on restore, got %+v", events)
	}
	if want := engineStart().Add(25 * time.Minute); !events[0].EndedAt.Equal(want) {
		t.Fatalf("expected endedAt %s, got %s", want, events[0].EndedAt)
	}
}

func TestRestoreIgnoresCorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewSQLiteStore(testutil.OpenDB(t))
	bad := model.Checkpoint{Version: 99}
	if err := store.Save(ctx, bad); err != nil {
		t.Fatalf("save: %v", err)
	}

	f := newEngine(t, store, clock.NewManual(engineStart()))
	snapshot := f.service.Restore(ctx)
	if snapshot.Status != model.StatusIdle || snapshot.Mode != model.ModeWork || snapshot.RemainingSeconds != model.DefaultWorkSeconds {
		t.Fatalf("expected fresh idle state, got %+v", snapshot)
	}
}

func TestUpdateConfigOnlyWhileIdle(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	f.service.Restore(ctx)

	config := model.DefaultTimerConfig()
	config.WorkSeconds = 50 * 60
	snapshot, err := f.service.UpdateConfig(ctx, config)
	if err != nil {
		t.Fatalf("update config: %v", err)
	}
	if snapshot.RemainingSeconds != 3000 || snapshot.Config.WorkSeconds != 3000 {
		t.Fatalf("expected new work duration armed, got %+v", snapshot)
	}

	if _, err := f.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.UpdateConfig(ctx, model.DefaultTimerConfig()); !errors.Is(err, timer.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	config.ShortBreakSeconds = 0
	if _, err := f.service.UpdateConfig(ctx, config); !errors.Is(err, model.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestShortenedCycleSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewSQLiteStore(testutil.OpenDB(t))
	clk := clock.NewManual(engineStart())

	first := newEngine(t, store, clk)
	first.service.Restore(ctx)
	for i := 0; i < 3; i++ {
		if _, err := first.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		clk.Advance(model.DefaultWorkSeconds * time.Second)
		first.service.onTick(clk.Now())
		clk.Advance(model.DefaultShortBreakSeconds * time.Second)
		first.service.onTick(clk.Now())
	}

	config := model.DefaultTimerConfig()
	config.PomodorosUntilLongBreak = 3
	if _, err := first.service.UpdateConfig(ctx, config); err != nil {
		t.Fatalf("update config: %v", err)
	}
	first.service.Close()

	second := newEngine(t, store, clk)
	restored := second.service.Restore(ctx)
	if restored.Config.PomodorosUntilLongBreak != 3 || restored.CompletedPomodorosInCycle != 2 {
		t.Fatalf("expected shortened cycle and progress restored, got %+v", restored)
	}

	if _, err := second.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(model.DefaultWorkSeconds * time.Second)
	second.service.onTick(clk.Now())
	if snapshot := second.service.Snapshot(); snapshot.Mode != model.ModeLongBreak {
		t.Fatalf("expected long break to close the shortened cycle, got %+v", snapshot)
	}
}

func TestStopEndsTickingAndReportsPartialSession(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	f.service.Restore(ctx)

	if _, err := f.service.Apply(ctx, model.Command{Type: model.CommandStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(10 * time.Minute)
	snapshot, err := f.service.Apply(ctx, model.Command{Type: model.CommandStop})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if snapshot.Status != model.StatusIdle || f.service.driver.Running() {
		t.Fatalf("expected idle without ticking, got %+v", snapshot)
	}

	events := f.queue.recorded()
	if len(events) != 1 || !events[0].Interrupted || events[0].ActualSeconds != 600 {
		t.Fatalf("expected interrupted 600s session, got %+v", events)
	}
}

func TestClosedServiceRejectsCommands(t *testing.T) {
	ctx := context.Background()
	f := newEngine(t, checkpoint.NewSQLiteStore(testutil.OpenDB(t)), clock.NewManual(engineStart()))
	f.service.Restore(ctx)
	f.service.Close()

	if _, err := f.service.Apply(ctx, model.Command{Type: model.CommandStart}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
