// Package surface holds the built-in, in-process surfaces: the tray title and
// desktop notifications. Both are ordinary broadcast subscribers.
package surface

import (
	"context"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

// follow feeds every snapshot for surfaceID to fn until ctx ends or the
// subscription is closed.
func follow(ctx context.Context, hub *broadcast.Broadcaster, surfaceID string, kind model.SurfaceKind, fn func(model.Snapshot)) {
	sub := hub.Subscribe(surfaceID, kind)
	defer hub.Release(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.Envelopes():
			if !ok {
				return
			}
			if env.Snapshot != nil {
				fn(*env.Snapshot)
			}
		}
	}
}

func modeLabel(mode model.Mode) string {
	switch mode {
	case model.ModeShortBreak:
		return "Short break"
	case model.ModeLongBreak:
		return "Long break"
	default:
		return "Work"
	}
}
