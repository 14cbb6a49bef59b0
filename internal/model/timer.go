package model

import (
	"errors"
	"fmt"
	"time"
)

type Mode string

const (
	ModeWork       Mode = "work"
	ModeShortBreak Mode = "short_break"
	ModeLongBreak  Mode = "long_break"
)

func (m Mode) Valid() bool {
	return m == ModeWork || m == ModeShortBreak || m == ModeLongBreak
}

func (m Mode) IsBreak() bool {
	return m == ModeShortBreak || m == ModeLongBreak
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

func (s Status) Valid() bool {
	return s == StatusIdle || s == StatusRunning || s == StatusPaused
}

// PhaseIdle is reported as the snapshot phase while nothing is counting down.
const PhaseIdle = "idle"

const (
	DefaultWorkSeconds             = 25 * 60
	DefaultShortBreakSeconds       = 5 * 60
	DefaultLongBreakSeconds        = 15 * 60
	DefaultPomodorosUntilLongBreak = 4
)

var ErrInvalidConfig = errors.New("invalid timer config")

type TimerConfig struct {
	WorkSeconds             int  `json:"workSeconds" yaml:"work_seconds" mapstructure:"work_seconds"`
	ShortBreakSeconds       int  `json:"shortBreakSeconds" yaml:"short_break_seconds" mapstructure:"short_break_seconds"`
	LongBreakSeconds        int  `json:"longBreakSeconds" yaml:"long_break_seconds" mapstructure:"long_break_seconds"`
	PomodorosUntilLongBreak int  `json:"pomodorosUntilLongBreak" yaml:"pomodoros_until_long_break" mapstructure:"pomodoros_until_long_break"`
	AutoStartBreaks         bool `json:"autoStartBreaks" yaml:"auto_start_breaks" mapstructure:"auto_start_breaks"`
	AutoStartPomodoros      bool `json:"autoStartPomodoros" yaml:"auto_start_pomodoros" mapstructure:"auto_start_pomodoros"`
}

func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		WorkSeconds:             DefaultWorkSeconds,
		ShortBreakSeconds:       DefaultShortBreakSeconds,
		LongBreakSeconds:        DefaultLongBreakSeconds,
		PomodorosUntilLongBreak: DefaultPomodorosUntilLongBreak,
		AutoStartBreaks:         true,
		AutoStartPomodoros:      false,
	}
}

func (c TimerConfig) Validate() error {
	if c.WorkSeconds <= 0 || c.ShortBreakSeconds <= 0 || c.LongBreakSeconds <= 0 {
		return fmt.Errorf("%w: all durations must be positive seconds", ErrInvalidConfig)
	}
	if c.PomodorosUntilLongBreak <= 0 {
		return fmt.Errorf("%w: pomodorosUntilLongBreak must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c TimerConfig) DurationFor(mode Mode) int {
	switch mode {
	case ModeShortBreak:
		return c.ShortBreakSeconds
	case ModeLongBreak:
		return c.LongBreakSeconds
	default:
		return c.WorkSeconds
	}
}

// Snapshot is the full read model handed to every surface.
type Snapshot struct {
	Phase                     string      `json:"phase"`
	Mode                      Mode        `json:"mode"`
	Status                    Status      `json:"status"`
	RemainingSeconds          int         `json:"remainingSeconds"`
	PlannedSeconds            int         `json:"plannedSeconds"`
	CompletedPomodorosInCycle int         `json:"completedPomodorosInCycle"`
	PauseCount                int         `json:"pauseCount"`
	SelectedTaskID            string      `json:"selectedTaskId,omitempty"`
	SessionID                 string      `json:"sessionId,omitempty"`
	Config                    TimerConfig `json:"config"`
	Version                   int64       `json:"version"`
	ServerTime                time.Time   `json:"serverTime"`
}

type EndReason string

const (
	ReasonCompleted EndReason = "completed"
	ReasonSkipped   EndReason = "skipped"
	ReasonStopped   EndReason = "stopped"
)

// SessionRecord is the session-complete event produced on terminal
// transitions and the payload delivered to the session repository.
type SessionRecord struct {
	SessionID      string    `json:"sessionId"`
	Mode           Mode      `json:"mode"`
	PlannedSeconds int       `json:"plannedSeconds"`
	ActualSeconds  int       `json:"actualSeconds"`
	Interrupted    bool      `json:"interrupted"`
	Reason         EndReason `json:"reason"`
	PauseCount     int       `json:"pauseCount"`
	TaskID         string    `json:"taskId,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
}

const CheckpointVersion = 1

// Checkpoint is the persisted subset of the session needed to resume after
// a restart.
type Checkpoint struct {
	Version                   int         `json:"version" yaml:"version"`
	Mode                      Mode        `json:"mode" yaml:"mode"`
	Status                    Status      `json:"status" yaml:"status"`
	RemainingSeconds          int         `json:"remainingSeconds" yaml:"remaining_seconds"`
	PlannedSeconds            int         `json:"plannedSeconds" yaml:"planned_seconds"`
	CheckpointAt              time.Time   `json:"checkpointAt" yaml:"checkpoint_at"`
	CompletedPomodorosInCycle int         `json:"completedPomodorosInCycle" yaml:"completed_pomodoros_in_cycle"`
	SelectedTaskID            string      `json:"selectedTaskId,omitempty" yaml:"selected_task_id,omitempty"`
	Config                    TimerConfig `json:"config" yaml:"config"`
	PauseCount                int         `json:"pauseCount" yaml:"pause_count"`
	SessionID                 string      `json:"sessionId,omitempty" yaml:"session_id,omitempty"`
	SessionStartedAt          time.Time   `json:"sessionStartedAt" yaml:"session_started_at"`
}

var ErrInvalidCheckpoint = errors.New("invalid checkpoint")

// Validate reports whether a restored checkpoint can safely seed a session.
func (c Checkpoint) Validate() error {
	if c.Version != CheckpointVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidCheckpoint, c.Version)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidCheckpoint, c.Mode)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidCheckpoint, c.Status)
	}
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	if c.PlannedSeconds <= 0 || c.RemainingSeconds < 0 || c.RemainingSeconds > c.PlannedSeconds {
		return fmt.Errorf("%w: remaining %d outside 0..%d", ErrInvalidCheckpoint, c.RemainingSeconds, c.PlannedSeconds)
	}
	if c.CompletedPomodorosInCycle < 0 || c.CompletedPomodorosInCycle >= c.Config.PomodorosUntilLongBreak {
		return fmt.Errorf("%w: cycle count %d out of range", ErrInvalidCheckpoint, c.CompletedPomodorosInCycle)
	}
	if c.Status != StatusIdle && c.CheckpointAt.IsZero() {
		return fmt.Errorf("%w: active session without checkpoint time", ErrInvalidCheckpoint)
	}
	return nil
}
