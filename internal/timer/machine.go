// Package timer implements the pomodoro state machine. It performs no I/O:
// every command reads the injected clock, mutates the session and returns the
// session-complete events it produced.
package timer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tiagofur/ordo-todo-sub018/internal/clock"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

var ErrSessionActive = errors.New("session is running or paused")

// Machine is not safe for concurrent use; the owner serializes access.
type Machine struct {
	clock  clock.Clock
	config model.TimerConfig

	mode             model.Mode
	status           model.Status
	remaining        int
	checkpointAt     time.Time
	planned          int
	completed        int
	pauseCount       int
	taskID           string
	sessionID        string
	sessionStartedAt time.Time
}

// New returns an idle machine with WORK armed. An invalid config falls back
// to the defaults.
func New(clk clock.Clock, config model.TimerConfig) *Machine {
	if config.Validate() != nil {
		config = model.DefaultTimerConfig()
	}
	m := &Machine{
		clock:  clk,
		config: config,
		mode:   model.ModeWork,
		status: model.StatusIdle,
	}
	m.planned = config.DurationFor(model.ModeWork)
	m.remaining = m.planned
	m.checkpointAt = clk.Now()
	return m
}

// FromCheckpoint rebuilds a machine from a validated checkpoint. A running
// session keeps its checkpoint instant so the next tick absorbs downtime.
func FromCheckpoint(clk clock.Clock, cp model.Checkpoint) *Machine {
	return &Machine{
		clock:            clk,
		config:           cp.Config,
		mode:             cp.Mode,
		status:           cp.Status,
		remaining:        cp.RemainingSeconds,
		checkpointAt:     cp.CheckpointAt,
		planned:          cp.PlannedSeconds,
		completed:        cp.CompletedPomodorosInCycle,
		pauseCount:       cp.PauseCount,
		taskID:           cp.SelectedTaskID,
		sessionID:        cp.SessionID,
		sessionStartedAt: cp.SessionStartedAt,
	}
}

func (m *Machine) Status() model.Status {
	return m.status
}

func (m *Machine) Mode() model.Mode {
	return m.mode
}

func (m *Machine) Config() model.TimerConfig {
	return m.config
}

func (m *Machine) Checkpoint() model.Checkpoint {
	return model.Checkpoint{
		Version:                   model.CheckpointVersion,
		Mode:                      m.mode,
		Status:                    m.status,
		RemainingSeconds:          m.remaining,
		PlannedSeconds:            m.planned,
		CheckpointAt:              m.checkpointAt,
		CompletedPomodorosInCycle: m.completed,
		SelectedTaskID:            m.taskID,
		Config:                    m.config,
		PauseCount:                m.pauseCount,
		SessionID:                 m.sessionID,
		SessionStartedAt:          m.sessionStartedAt,
	}
}

// Snapshot derives the read model at the current instant without mutating
// the session.
func (m *Machine) Snapshot() model.Snapshot {
	now := m.clock.Now()
	phase := model.PhaseIdle
	if m.status != model.StatusIdle {
		phase = string(m.mode)
	}
	return model.Snapshot{
		Phase:                     phase,
		Mode:                      m.mode,
		Status:                    m.status,
		RemainingSeconds:          m.currentRemainingSeconds(now),
		PlannedSeconds:            m.planned,
		CompletedPomodorosInCycle: m.completed,
		PauseCount:                m.pauseCount,
		SelectedTaskID:            m.taskID,
		SessionID:                 m.sessionID,
		Config:                    m.config,
		ServerTime:                now,
	}
}

// Start begins the armed mode. An empty taskID keeps the current selection.
func (m *Machine) Start(taskID string) []model.SessionRecord {
	if m.status != model.StatusIdle {
		return nil
	}
	now := m.clock.Now()
	if taskID != "" {
		m.taskID = taskID
	}
	m.begin(m.mode, now)
	return nil
}

func (m *Machine) Pause() []model.SessionRecord {
	if m.status != model.StatusRunning {
		return nil
	}
	now := m.clock.Now()
	events := m.advance(now)
	if m.status != model.StatusRunning {
		return events
	}
	m.status = model.StatusPaused
	m.checkpointAt = now
	m.pauseCount++
	return events
}

func (m *Machine) Resume() []model.SessionRecord {
	if m.status != model.StatusPaused {
		return nil
	}
	m.status = model.StatusRunning
	m.checkpointAt = m.clock.Now()
	return nil
}

// Skip ends the current mode early. Skipped work never counts toward the
// cycle. If the mode had already run out, that natural completion is
// reported instead and nothing further is skipped.
func (m *Machine) Skip() []model.SessionRecord {
	if m.status == model.StatusIdle {
		return nil
	}
	now := m.clock.Now()
	if events := m.advance(now); len(events) > 0 {
		return events
	}
	return m.completeMode(now, now, model.ReasonSkipped)
}

// Tick applies the wall-clock time elapsed since the last checkpoint.
func (m *Machine) Tick() []model.SessionRecord {
	return m.advance(m.clock.Now())
}

// Stop resets the session to idle with WORK armed. Unless discard is set,
// the partial session is reported as interrupted.
func (m *Machine) Stop(discard bool) []model.SessionRecord {
	if m.status == model.StatusIdle {
		return nil
	}
	now := m.clock.Now()
	events := m.advance(now)
	if len(events) == 0 && !discard {
		events = append(events, m.record(model.ReasonStopped, now))
	}
	m.reset(now)
	return events
}

// UpdateConfig replaces the durations and cycle settings between sessions.
// Progress already made in the cycle is kept, but never beyond the new
// cycle length: the next completed pomodoro then earns the long break.
func (m *Machine) UpdateConfig(config model.TimerConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if m.status != model.StatusIdle {
		return ErrSessionActive
	}
	m.config = config
	if m.completed >= config.PomodorosUntilLongBreak {
		m.completed = config.PomodorosUntilLongBreak - 1
	}
	m.planned = config.DurationFor(m.mode)
	m.remaining = m.planned
	return nil
}

func (m *Machine) advance(now time.Time) []model.SessionRecord {
	if m.status != model.StatusRunning {
		return nil
	}

	elapsed := now.Sub(m.checkpointAt)
	if elapsed < 0 {
		m.checkpointAt = now
		return nil
	}

	whole := int(elapsed / time.Second)
	if m.remaining > 0 && whole < m.remaining {
		if whole > 0 {
			m.remaining -= whole
			m.checkpointAt = m.checkpointAt.Add(time.Duration(whole) * time.Second)
		}
		return nil
	}

	endedAt := m.checkpointAt.Add(time.Duration(m.remaining) * time.Second)
	m.remaining = 0
	return m.completeMode(now, endedAt, model.ReasonCompleted)
}

func (m *Machine) completeMode(now, endedAt time.Time, reason model.EndReason) []model.SessionRecord {
	if m.status == model.StatusRunning && reason != model.ReasonCompleted {
		m.remaining = m.currentRemainingSeconds(now)
	}
	record := m.record(reason, endedAt)

	next := model.ModeWork
	if m.mode == model.ModeWork {
		next = model.ModeShortBreak
		if reason == model.ReasonCompleted {
			m.completed++
			if m.completed%m.config.PomodorosUntilLongBreak == 0 {
				next = model.ModeLongBreak
			}
		}
	}
	if next == model.ModeLongBreak {
		m.completed = 0
	}

	autoStart := m.config.AutoStartPomodoros
	if next.IsBreak() {
		autoStart = m.config.AutoStartBreaks
	}
	if autoStart {
		m.begin(next, now)
	} else {
		m.arm(next, now)
	}
	return []model.SessionRecord{record}
}

func (m *Machine) begin(mode model.Mode, now time.Time) {
	m.arm(mode, now)
	m.status = model.StatusRunning
	m.sessionID = uuid.NewString()
	m.sessionStartedAt = now
}

func (m *Machine) arm(mode model.Mode, now time.Time) {
	m.mode = mode
	m.status = model.StatusIdle
	m.planned = m.config.DurationFor(mode)
	m.remaining = m.planned
	m.checkpointAt = now
	m.pauseCount = 0
	m.sessionID = ""
	m.sessionStartedAt = time.Time{}
}

func (m *Machine) reset(now time.Time) {
	m.completed = 0
	m.arm(model.ModeWork, now)
}

func (m *Machine) record(reason model.EndReason, endedAt time.Time) model.SessionRecord {
	actual := m.planned - m.remaining
	if actual < 0 {
		actual = 0
	}
	if actual > m.planned {
		actual = m.planned
	}
	// a wall clock stepped backwards can put now before the start
	if endedAt.Before(m.sessionStartedAt) {
		endedAt = m.sessionStartedAt
	}
	return model.SessionRecord{
		SessionID:      m.sessionID,
		Mode:           m.mode,
		PlannedSeconds: m.planned,
		ActualSeconds:  actual,
		Interrupted:    reason != model.ReasonCompleted,
		Reason:         reason,
		PauseCount:     m.pauseCount,
		TaskID:         m.taskID,
		StartedAt:      m.sessionStartedAt,
		EndedAt:        endedAt,
	}
}

func (m *Machine) currentRemainingSeconds(now time.Time) int {
	if m.status != model.StatusRunning {
		if m.remaining < 0 {
			return 0
		}
		return m.remaining
	}

	elapsed := int(now.Sub(m.checkpointAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := m.remaining - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
