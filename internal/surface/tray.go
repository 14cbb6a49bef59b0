package surface

import (
	"context"
	"fmt"
	"sync"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

// Tray keeps a compact, always-current title for a system tray or menu bar.
type Tray struct {
	hub *broadcast.Broadcaster
	id  string

	mu    sync.RWMutex
	title string
}

func NewTray(hub *broadcast.Broadcaster, id string) *Tray {
	if id == "" {
		id = "tray"
	}
	return &Tray{hub: hub, id: id, title: "Idle"}
}

// Run follows the broadcast until ctx is done.
func (t *Tray) Run(ctx context.Context) {
	follow(ctx, t.hub, t.id, model.SurfaceTray, t.update)
}

func (t *Tray) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// Command forwards a tray menu action to the authoritative timer.
func (t *Tray) Command(ctx context.Context, cmd model.Command) (model.Snapshot, error) {
	return t.hub.Dispatch(ctx, t.id, cmd)
}

func (t *Tray) update(s model.Snapshot) {
	title := Title(s)
	t.mu.Lock()
	t.title = title
	t.mu.Unlock()
}

// Title renders a snapshot as "▶ 24:59 Work", "⏸ 12:00 Short break" or
// "Idle · 2/4".
func Title(s model.Snapshot) string {
	switch s.Status {
	case model.StatusRunning:
		return fmt.Sprintf("▶ %s %s", Clock(s.RemainingSeconds), modeLabel(s.Mode))
	case model.StatusPaused:
		return fmt.Sprintf("⏸ %s %s", Clock(s.RemainingSeconds), modeLabel(s.Mode))
	default:
		return fmt.Sprintf("Idle · %d/%d", s.CompletedPomodorosInCycle, s.Config.PomodorosUntilLongBreak)
	}
}

// Clock formats seconds as mm:ss; minutes are not wrapped into hours.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
