package surface

import (
	"context"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

type Notification struct {
	Title string     `json:"title"`
	Body  string     `json:"body"`
	Mode  model.Mode `json:"mode"`
	At    time.Time  `json:"at"`
}

// Sink shows a notification to the user.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the process log.
type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Notify(ctx context.Context, n Notification) error {
	s.Log.Info("notification", "title", n.Title, "body", n.Body)
	return nil
}

// Notifier announces phase changes.
type Notifier struct {
	hub  *broadcast.Broadcaster
	id   string
	sink Sink
	log  *logger.Logger

	prev *model.Snapshot
}

func NewNotifier(hub *broadcast.Broadcaster, id string, sink Sink, log *logger.Logger) *Notifier {
	if id == "" {
		id = "notifications"
	}
	if sink == nil {
		sink = LogSink{Log: log}
	}
	return &Notifier{hub: hub, id: id, sink: sink, log: log}
}

func (n *Notifier) Run(ctx context.Context) {
	follow(ctx, n.hub, n.id, model.SurfaceNotification, func(s model.Snapshot) {
		n.observe(ctx, s)
	})
}

func (n *Notifier) observe(ctx context.Context, next model.Snapshot) {
	prev := n.prev
	if prev != nil && next.Version <= prev.Version {
		return
	}
	n.prev = &next
	if prev == nil {
		return
	}

	note, ok := Detect(*prev, next)
	if !ok {
		return
	}
	if err := n.sink.Notify(ctx, note); err != nil {
		n.log.Error("notify", "title", note.Title, "error", err)
	}
}

// Detect reports the notification for a transition between two consecutive
// snapshots, if any. Only a change of mode is announced.
func Detect(prev, next model.Snapshot) (Notification, bool) {
	if prev.Mode == next.Mode {
		return Notification{}, false
	}

	note := Notification{Mode: next.Mode, At: next.ServerTime}
	switch {
	case next.Mode.IsBreak() && !workCounted(prev, next):
		note.Title = "Work session skipped"
		note.Body = "Not counted toward the cycle. Time for a short break."
	case next.Mode == model.ModeShortBreak:
		note.Title = "Work session complete"
		note.Body = "Time for a short break."
	case next.Mode == model.ModeLongBreak:
		note.Title = "Work session complete"
		note.Body = "Cycle done. Time for a long break."
	default:
		note.Title = "Break over"
		note.Body = "Ready to focus?"
		if next.Status == model.StatusRunning {
			note.Body = "Focus session started."
		}
	}
	if next.Mode.IsBreak() && next.Status != model.StatusRunning {
		note.Body += " Start it when you are ready."
	}
	return note, true
}

// workCounted reports whether the work session that ended before next
// counted toward the cycle. A completed session moves the cycle counter,
// or resets it when the long break begins; a skipped one leaves it alone.
func workCounted(prev, next model.Snapshot) bool {
	return next.Mode == model.ModeLongBreak ||
		next.CompletedPomodorosInCycle != prev.CompletedPomodorosInCycle
}
