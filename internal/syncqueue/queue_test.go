package syncqueue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/clock"
	"github.com/tiagofur/ordo-todo-sub018/internal/db"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/remote"
	"github.com/tiagofur/ordo-todo-sub018/internal/repository"
	"github.com/tiagofur/ordo-todo-sub018/internal/testutil"
	"github.com/tiagofur/ordo-todo-sub018/migrations"
)

type fakeRecorder struct {
	mu    sync.Mutex
	fail  error
	calls []string
	keys  []string
}

func (f *fakeRecorder) RecordSession(ctx context.Context, key string, record model.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, record.SessionID)
	f.keys = append(f.keys, key)
	return f.fail
}

func (f *fakeRecorder) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRecorder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var start = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newQueue(t *testing.T, recorder remote.SessionRecorder, opts Options) (*Queue, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(start)
	store := repository.NewSyncActionRepository(testutil.OpenDB(t))
	return New(store, NewSessionDeliverer(recorder), clk, logger.Discard(), opts), clk
}

func record(id string) model.SessionRecord {
	return model.SessionRecord{
		SessionID:      id,
		Mode:           model.ModeWork,
		PlannedSeconds: 1500,
		ActualSeconds:  1500,
		Reason:         model.ReasonCompleted,
		StartedAt:      start,
		EndedAt:        start.Add(25 * time.Minute),
	}
}

func TestOfflineEnqueueThenDrainInOrder(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	queue, _ := newQueue(t, recorder, Options{MaxRetries: 3, StartOnline: false})

	for _, id := range []string{"A", "B", "C"} {
		if _, err := queue.EnqueueSession(ctx, record(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	result, err := queue.Drain(ctx)
	if err != nil {
		t.Fatalf("drain offline: %v", err)
	}
	if !result.Offline || recorder.callCount() != 0 {
		t.Fatalf("expected no delivery while offline, got %+v calls=%d", result, recorder.callCount())
	}
	if pending, _ := queue.PendingCount(ctx); pending != 3 {
		t.Fatalf("expected 3 pending, got %d", pending)
	}

	queue.SetOnline(true)
	result, err = queue.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Delivered != 3 {
		t.Fatalf("expected 3 delivered, got %+v", result)
	}
	if got := recorder.calls; got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Fatalf("expected FIFO delivery A,B,C got %v", got)
	}
	if pending, _ := queue.PendingCount(ctx); pending != 0 {
		t.Fatalf("expected empty queue, got %d", pending)
	}

	status, err := queue.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Online || status.LastSyncAt == nil || status.LastError != "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestIdempotencyKeyIsStableAcrossRetries(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{fail: errors.New("unreachable")}
	queue, clk := newQueue(t, recorder, Options{MaxRetries: 3, BackoffBase: time.Second, StartOnline: true})

	action, err := queue.EnqueueSession(ctx, record("A"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := queue.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	recorder.setFail(nil)
	clk.Advance(time.Second)
	if _, err := queue.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(recorder.keys) != 2 || recorder.keys[0] != action.ID || recorder.keys[1] != action.ID {
		t.Fatalf("expected both attempts keyed %s, got %v", action.ID, recorder.keys)
	}
}

func TestRetryBoundThenDeadLetter(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{fail: errors.New("503")}
	queue, clk := newQueue(t, recorder, Options{
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffMax:  time.Minute,
		StartOnline: true,
	})

	if _, err := queue.EnqueueSession(ctx, record("A")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := queue.Drain(ctx); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
		clk.Advance(time.Minute)
	}

	if got := recorder.callCount(); got != 4 {
		t.Fatalf("expected maxRetries+1 = 4 attempts, got %d", got)
	}

	status, err := queue.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Pending != 0 || status.DeadLetters != 1 {
		t.Fatalf("expected one dead letter and nothing pending, got %+v", status)
	}
	if status.LastError != "503" {
		t.Fatalf("expected last error surfaced, got %q", status.LastError)
	}

	dead, err := queue.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(dead) != 1 || dead[0].RetryCount != 4 || dead[0].DeadLetteredAt == nil {
		t.Fatalf("unexpected dead letters %+v", dead)
	}
}

func TestBackoffSchedulesNextAttempt(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{fail: errors.New("timeout")}
	queue, clk := newQueue(t, recorder, Options{
		MaxRetries:  5,
		BackoffBase: 2 * time.Second,
		BackoffMax:  10 * time.Second,
		StartOnline: true,
	})

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, d := range want {
		if got := queue.Backoff(i + 1); got != d {
			t.Fatalf("backoff(%d): expected %s got %s", i+1, d, got)
		}
	}

	if _, err := queue.EnqueueSession(ctx, record("A")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := queue.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	clk.Advance(1999 * time.Millisecond)
	result, err := queue.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !result.Waiting || recorder.callCount() != 1 {
		t.Fatalf("expected head to wait out its backoff, got %+v calls=%d", result, recorder.callCount())
	}

	clk.Advance(time.Millisecond)
	if _, err := queue.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if recorder.callCount() != 2 {
		t.Fatalf("expected retry once backoff elapsed, got %d calls", recorder.callCount())
	}
}

func TestFailureAtHeadBlocksLaterActions(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{fail: errors.New("down")}
	queue, _ := newQueue(t, recorder, Options{MaxRetries: 3, StartOnline: true})

	for _, id := range []string{"A", "B"} {
		if _, err := queue.EnqueueSession(ctx, record(id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	result, err := queue.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Failed != 1 || recorder.callCount() != 1 || recorder.calls[0] != "A" {
		t.Fatalf("expected only A attempted, got %+v calls=%v", result, recorder.calls)
	}
}

func TestPermanentFailureSkipsRetryBudget(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{fail: remote.ErrRejected}
	queue, _ := newQueue(t, recorder, Options{MaxRetries: 5, StartOnline: true})

	if _, err := queue.EnqueueSession(ctx, record("A")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := queue.EnqueueSession(ctx, record("B")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := queue.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.DeadLettered != 2 {
		t.Fatalf("expected both rejected actions dead-lettered, got %+v", result)
	}
}

func TestReusedKeyIsDeadLetteredNotDropped(t *testing.T) {
	ctx := context.Background()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"idempotency_key_reused","message":"key already used"}}`))
	}))
	defer backend.Close()

	queue, _ := newQueue(t, remote.NewClient(backend.URL, "", time.Second), Options{MaxRetries: 5, StartOnline: true})
	action, err := queue.EnqueueSession(ctx, record("A"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := queue.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Delivered != 0 || result.DeadLettered != 1 {
		t.Fatalf("expected the conflicting action dead-lettered, got %+v", result)
	}

	dead, err := queue.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != action.ID || dead[0].LastError == "" {
		t.Fatalf("expected the action kept as a dead letter, got %+v", dead)
	}
}

type blockingDeliverer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingDeliverer) Deliver(ctx context.Context, action model.PendingSyncAction) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestConcurrentDrainIsSkipped(t *testing.T) {
	ctx := context.Background()
	deliverer := &blockingDeliverer{started: make(chan struct{}, 1), release: make(chan struct{})}
	store := repository.NewSyncActionRepository(testutil.OpenDB(t))
	queue := New(store, deliverer, clock.NewManual(start), logger.Discard(), Options{MaxRetries: 1, StartOnline: true})

	if _, err := queue.EnqueueSession(ctx, record("A")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan DrainResult, 1)
	go func() {
		result, _ := queue.Drain(ctx)
		done <- result
	}()
	<-deliverer.started

	status, err := queue.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Syncing {
		t.Fatalf("expected syncing during drain")
	}

	second, err := queue.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if !second.Skipped {
		t.Fatalf("expected concurrent drain to be skipped, got %+v", second)
	}

	close(deliverer.release)
	if first := <-done; first.Delivered != 1 {
		t.Fatalf("expected first drain to deliver, got %+v", first)
	}
}

func TestDeadLetterRetryMovesToTail(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{fail: remote.ErrRejected}
	queue, _ := newQueue(t, recorder, Options{MaxRetries: 2, StartOnline: true})

	dead, err := queue.EnqueueSession(ctx, record("A"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := queue.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	queue.SetOnline(false)
	if _, err := queue.EnqueueSession(ctx, record("B")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := queue.Retry(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	requeued, err := queue.Retry(ctx, dead.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if requeued.ID != dead.ID || requeued.RetryCount != 0 || requeued.Seq <= dead.Seq {
		t.Fatalf("expected same key at the tail with reset budget, got %+v", requeued)
	}

	recorder.setFail(nil)
	recorder.calls = nil
	queue.SetOnline(true)
	if _, err := queue.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(recorder.calls) != 2 || recorder.calls[0] != "B" || recorder.calls[1] != "A" {
		t.Fatalf("expected B then requeued A, got %v", recorder.calls)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	open := func() *Queue {
		database, err := db.OpenSQLite(path)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = database.Close() })
		if _, err := db.RunMigrations(context.Background(), database, migrations.FS); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		store := repository.NewSyncActionRepository(database)
		return New(store, NewSessionDeliverer(&fakeRecorder{}), clock.NewManual(start), logger.Discard(), Options{})
	}

	first := open()
	for _, id := range []string{"A", "B"} {
		if _, err := first.EnqueueSession(ctx, record(id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	second := open()
	pending, err := second.PendingCount(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending != 2 {
		t.Fatalf("expected queued actions to survive reopen, got %d", pending)
	}
}

func TestRunDrainsWhenConnectivityReturns(t *testing.T) {
	recorder := &fakeRecorder{}
	queue, _ := newQueue(t, recorder, Options{MaxRetries: 1, Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := queue.EnqueueSession(ctx, record("A")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		queue.Run(ctx)
		close(done)
	}()

	queue.SetOnline(true)
	deadline := time.Now().Add(2 * time.Second)
	for recorder.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected runner to drain after reconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}
