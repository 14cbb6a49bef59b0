// Package syncqueue holds session events until the session repository has
// acknowledged them. Actions are persisted before anything else happens and
// are delivered strictly in enqueue order.
package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tiagofur/ordo-todo-sub018/internal/clock"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/repository"
)

const (
	DefaultMaxRetries  = 5
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 5 * time.Minute
	DefaultInterval    = 30 * time.Second

	deadLetterListLimit = 200
)

var (
	ErrNotFound    = errors.New("sync action not found")
	ErrUnknownKind = errors.New("unknown sync action kind")
)

type Store interface {
	Insert(ctx context.Context, action *model.PendingSyncAction) error
	NextPending(ctx context.Context) (*model.PendingSyncAction, error)
	Delete(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, retryCount int, lastError string, nextAttemptAt time.Time) error
	MarkDeadLetter(ctx context.Context, id string, retryCount int, lastError string, at time.Time) error
	Requeue(ctx context.Context, id string, now time.Time) (*model.PendingSyncAction, error)
	Counts(ctx context.Context) (pending int, deadLetters int, err error)
	ListByStatus(ctx context.Context, status model.ActionStatus, limit int) ([]model.PendingSyncAction, error)
}

// Deliverer performs the remote side effect of one action. Errors wrapping
// ErrPermanent skip the remaining retry budget.
type Deliverer interface {
	Deliver(ctx context.Context, action model.PendingSyncAction) error
}

var ErrPermanent = errors.New("permanent delivery failure")

type Options struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Interval    time.Duration
	StartOnline bool
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.BackoffMax < o.BackoffBase {
		o.BackoffMax = o.BackoffBase
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Skipped      bool `json:"skipped"`
	Offline      bool `json:"offline"`
	Delivered    int  `json:"delivered"`
	Failed       int  `json:"failed"`
	DeadLettered int  `json:"deadLettered"`
	Waiting      bool `json:"waiting"`
}

type Queue struct {
	store     Store
	deliverer Deliverer
	clock     clock.Clock
	log       *logger.Logger
	opts      Options

	draining atomic.Bool
	nudge    chan struct{}

	mu         sync.Mutex
	online     bool
	lastSyncAt *time.Time
	lastError  string
}

func New(store Store, deliverer Deliverer, clk clock.Clock, log *logger.Logger, opts Options) *Queue {
	if clk == nil {
		clk = clock.System{}
	}
	opts = opts.withDefaults()
	return &Queue{
		store:     store,
		deliverer: deliverer,
		clock:     clk,
		log:       log,
		opts:      opts,
		nudge:     make(chan struct{}, 1),
		online:    opts.StartOnline,
	}
}

// Enqueue persists a new action under a fresh idempotency key and wakes the
// runner.
func (q *Queue) Enqueue(ctx context.Context, kind model.ActionKind, payload interface{}) (model.PendingSyncAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.PendingSyncAction{}, fmt.Errorf("encode payload: %w", err)
	}

	now := q.clock.Now().UTC()
	action := model.PendingSyncAction{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       raw,
		Status:        model.ActionPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := q.store.Insert(ctx, &action); err != nil {
		return model.PendingSyncAction{}, err
	}

	q.log.Debug("sync action enqueued", "id", action.ID, "kind", kind, "seq", action.Seq)
	q.trigger()
	return action, nil
}

func (q *Queue) EnqueueSession(ctx context.Context, record model.SessionRecord) (model.PendingSyncAction, error) {
	return q.Enqueue(ctx, model.ActionRecordSession, record)
}

// Drain delivers due actions in FIFO order until the queue is empty, the head
// is still backing off, or the head fails. Only one drain runs at a time.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{Skipped: true}, nil
	}
	defer q.draining.Store(false)

	result := DrainResult{}
	if !q.Online() {
		result.Offline = true
		return result, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !q.Online() {
			result.Offline = true
			return result, nil
		}

		action, err := q.store.NextPending(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		if err != nil {
			return result, err
		}

		now := q.clock.Now()
		if action.NextAttemptAt.After(now) {
			result.Waiting = true
			return result, nil
		}

		deliverErr := q.deliverer.Deliver(ctx, *action)
		if deliverErr == nil {
			if err := q.store.Delete(ctx, action.ID); err != nil {
				return result, err
			}
			result.Delivered++
			q.markSynced(now)
			continue
		}

		result.Failed++
		dead, err := q.fail(ctx, action, deliverErr, now)
		if err != nil {
			return result, err
		}
		if !dead {
			return result, nil
		}
		// The dead letter left the head; the next action may proceed.
		result.DeadLettered++
	}
}

func (q *Queue) fail(ctx context.Context, action *model.PendingSyncAction, deliverErr error, now time.Time) (bool, error) {
	retry := action.RetryCount + 1
	message := deliverErr.Error()
	q.setLastError(message)

	if errors.Is(deliverErr, ErrPermanent) || retry > q.opts.MaxRetries {
		if err := q.store.MarkDeadLetter(ctx, action.ID, retry, message, now.UTC()); err != nil {
			return false, err
		}
		q.log.Error("sync action dead-lettered", "id", action.ID, "kind", action.Kind, "retries", retry, "error", message)
		return true, nil
	}

	next := now.Add(q.Backoff(retry)).UTC()
	if err := q.store.RecordFailure(ctx, action.ID, retry, message, next); err != nil {
		return false, err
	}
	q.log.Info("sync delivery failed", "id", action.ID, "retry", retry, "nextAttemptAt", next.Format(time.RFC3339), "error", message)
	return false, nil
}

// Backoff returns the delay after the given failed attempt:
// min(base * 2^(retry-1), max).
func (q *Queue) Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := q.opts.BackoffBase
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= q.opts.BackoffMax || delay <= 0 {
			return q.opts.BackoffMax
		}
	}
	if delay > q.opts.BackoffMax {
		return q.opts.BackoffMax
	}
	return delay
}

// SetOnline records connectivity. Recovering connectivity wakes the runner.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	previous := q.online
	q.online = online
	q.mu.Unlock()

	if previous == online {
		return
	}
	q.log.Info("connectivity changed", "online", online)
	if online {
		q.trigger()
	}
}

func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Run drains on nudges and periodically while online, until ctx is done.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.opts.Interval)
	defer ticker.Stop()

	q.trigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.nudge:
			q.drainAndLog(ctx)
		case <-ticker.C:
			if q.Online() {
				q.drainAndLog(ctx)
			}
		}
	}
}

func (q *Queue) drainAndLog(ctx context.Context) {
	result, err := q.Drain(ctx)
	if err != nil {
		if ctx.Err() == nil {
			q.log.Error("sync drain failed", "error", err)
		}
		return
	}
	if result.Delivered > 0 || result.DeadLettered > 0 {
		q.log.Info("sync drain finished", "delivered", result.Delivered, "deadLettered", result.DeadLettered, "waiting", result.Waiting)
	}
}

func (q *Queue) trigger() {
	select {
	case q.nudge <- struct{}{}:
	default:
	}
}

func (q *Queue) Status(ctx context.Context) (model.SyncStatus, error) {
	pending, dead, err := q.store.Counts(ctx)
	if err != nil {
		return model.SyncStatus{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	status := model.SyncStatus{
		Online:      q.online,
		Syncing:     q.draining.Load(),
		Pending:     pending,
		DeadLetters: dead,
		LastError:   q.lastError,
	}
	if q.lastSyncAt != nil {
		at := *q.lastSyncAt
		status.LastSyncAt = &at
	}
	return status, nil
}

func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	pending, _, err := q.store.Counts(ctx)
	return pending, err
}

func (q *Queue) DeadLetters(ctx context.Context) ([]model.PendingSyncAction, error) {
	return q.store.ListByStatus(ctx, model.ActionDeadLetter, deadLetterListLimit)
}

// Retry moves a dead letter back to the tail with a fresh retry budget.
func (q *Queue) Retry(ctx context.Context, id string) (model.PendingSyncAction, error) {
	action, err := q.store.Requeue(ctx, id, q.clock.Now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return model.PendingSyncAction{}, ErrNotFound
	}
	if err != nil {
		return model.PendingSyncAction{}, err
	}
	q.log.Info("dead letter requeued", "id", action.ID, "seq", action.Seq)
	q.trigger()
	return *action, nil
}

func (q *Queue) markSynced(at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	at = at.UTC()
	q.lastSyncAt = &at
	q.lastError = ""
}

func (q *Queue) setLastError(message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastError = message
}
