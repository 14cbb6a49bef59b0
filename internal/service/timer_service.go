package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/checkpoint"
	"github.com/tiagofur/ordo-todo-sub018/internal/clock"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/ticker"
	"github.com/tiagofur/ordo-todo-sub018/internal/timer"
)

var ErrClosed = errors.New("timer service closed")

// SessionQueue receives session-complete events in the order they happened.
type SessionQueue interface {
	EnqueueSession(ctx context.Context, record model.SessionRecord) (model.PendingSyncAction, error)
}

type TimerOptions struct {
	Config       model.TimerConfig
	TickInterval time.Duration
}

// TimerService is the single authority over the focus session. Commands from
// every surface and ticks from the driver are serialized on one mutex; after
// each change the session is checkpointed, its events are queued and the new
// snapshot is published.
type TimerService struct {
	mu      sync.Mutex
	machine *timer.Machine
	version int64
	closed  bool

	clock  clock.Clock
	store  checkpoint.Store
	hub    *broadcast.Broadcaster
	queue  SessionQueue
	driver *ticker.Driver
	log    *logger.Logger
}

func NewTimerService(
	clk clock.Clock,
	store checkpoint.Store,
	hub *broadcast.Broadcaster,
	queue SessionQueue,
	log *logger.Logger,
	opts TimerOptions,
) *TimerService {
	if clk == nil {
		clk = clock.System{}
	}
	s := &TimerService{
		machine: timer.New(clk, opts.Config),
		clock:   clk,
		store:   store,
		hub:     hub,
		queue:   queue,
		log:     log,
	}
	s.driver = ticker.New(opts.TickInterval, s.onTick)
	hub.SetHandler(s)
	return s
}

// Restore resumes from the stored checkpoint, or stays idle when there is
// none. Time that passed while the process was down is applied at once, so
// sessions that ended during downtime are reported now.
func (s *TimerService) Restore(ctx context.Context) model.Snapshot {
	cp, ok := checkpoint.Restore(ctx, s.store, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.machine = timer.FromCheckpoint(s.clock, cp)
		s.log.Info("timer restored", "mode", cp.Mode, "status", cp.Status, "remaining", cp.RemainingSeconds)
	}
	events := s.machine.Tick()
	return s.commitLocked(ctx, events)
}

// Apply implements broadcast.CommandHandler.
func (s *TimerService) Apply(ctx context.Context, cmd model.Command) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Snapshot{}, ErrClosed
	}

	before := s.machine.Checkpoint()
	var events []model.SessionRecord
	switch cmd.Type {
	case model.CommandStart:
		events = s.machine.Start(cmd.TaskID)
	case model.CommandPause:
		events = s.machine.Pause()
	case model.CommandResume:
		events = s.machine.Resume()
	case model.CommandSkip:
		events = s.machine.Skip()
	case model.CommandStop:
		events = s.machine.Stop(cmd.Discard)
	default:
		return s.snapshotLocked(), broadcast.ErrUnknownCommand
	}

	if len(events) == 0 && s.machine.Checkpoint() == before {
		s.log.Debug("command had no effect", "command", cmd.Type, "surface", cmd.SurfaceID, "status", s.machine.Status())
		return s.snapshotLocked(), nil
	}
	s.log.Info("command applied", "command", cmd.Type, "surface", cmd.SurfaceID, "mode", s.machine.Mode(), "status", s.machine.Status())
	return s.commitLocked(ctx, events), nil
}

// UpdateConfig replaces the timer durations. It is rejected while a session
// is running or paused.
func (s *TimerService) UpdateConfig(ctx context.Context, config model.TimerConfig) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Snapshot{}, ErrClosed
	}
	if err := s.machine.UpdateConfig(config); err != nil {
		return s.snapshotLocked(), err
	}
	return s.commitLocked(ctx, nil), nil
}

func (s *TimerService) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops ticking and waits for an in-progress tick to finish. The last
// checkpoint stays on disk for the next Restore.
func (s *TimerService) Close() {
	s.mu.Lock()
	s.closed = true
	s.driver.Stop()
	s.mu.Unlock()
	s.driver.Wait()
}

func (s *TimerService) onTick(time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	events := s.machine.Tick()
	s.commitLocked(context.Background(), events)
	return s.machine.Status() == model.StatusRunning
}

func (s *TimerService) commitLocked(ctx context.Context, events []model.SessionRecord) model.Snapshot {
	if err := s.store.Save(ctx, s.machine.Checkpoint()); err != nil {
		s.log.Error("save checkpoint", "error", err)
	}

	for _, event := range events {
		s.log.Info("session ended", "session", event.SessionID, "mode", event.Mode, "reason", event.Reason, "actual", event.ActualSeconds)
		if s.queue == nil {
			continue
		}
		if _, err := s.queue.EnqueueSession(ctx, event); err != nil {
			s.log.Error("enqueue session", "session", event.SessionID, "error", err)
		}
	}

	s.version++
	snapshot := s.snapshotLocked()
	s.hub.Publish(snapshot)

	if s.machine.Status() == model.StatusRunning {
		s.driver.Start()
	} else {
		s.driver.Stop()
	}
	return snapshot
}

func (s *TimerService) snapshotLocked() model.Snapshot {
	snapshot := s.machine.Snapshot()
	snapshot.Version = s.version
	return snapshot
}
