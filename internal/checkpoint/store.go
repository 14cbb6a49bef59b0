// Package checkpoint persists the subset of timer state needed to resume a
// session after a restart.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

var (
	ErrNotFound = errors.New("checkpoint not found")
	ErrCorrupt  = errors.New("checkpoint corrupt")
)

type Store interface {
	Load(ctx context.Context) (model.Checkpoint, error)
	Save(ctx context.Context, cp model.Checkpoint) error
	Clear(ctx context.Context) error
}

// Restore loads and validates the stored checkpoint. It never fails: a
// missing record reports ok=false, and a corrupt or unreadable record is
// logged, cleared and also reported as ok=false so the caller starts idle.
func Restore(ctx context.Context, store Store, log *logger.Logger) (model.Checkpoint, bool) {
	cp, err := store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return model.Checkpoint{}, false
	}
	if err == nil {
		err = cp.Validate()
	}
	if err != nil {
		log.Error("discarding unusable checkpoint", "error", err)
		if clearErr := store.Clear(ctx); clearErr != nil {
			log.Error("clear checkpoint", "error", clearErr)
		}
		return model.Checkpoint{}, false
	}
	return cp, true
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}
