package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/remote"
)

// SessionDeliverer forwards record_session actions to a session recorder,
// using the action id as the idempotency key.
type SessionDeliverer struct {
	recorder remote.SessionRecorder
}

func NewSessionDeliverer(recorder remote.SessionRecorder) *SessionDeliverer {
	return &SessionDeliverer{recorder: recorder}
}

func (d *SessionDeliverer) Deliver(ctx context.Context, action model.PendingSyncAction) error {
	if action.Kind != model.ActionRecordSession {
		return fmt.Errorf("%w: %w %q", ErrPermanent, ErrUnknownKind, action.Kind)
	}

	var record model.SessionRecord
	if err := json.Unmarshal(action.Payload, &record); err != nil {
		return fmt.Errorf("%w: decode session payload: %v", ErrPermanent, err)
	}

	err := d.recorder.RecordSession(ctx, action.ID, record)
	if errors.Is(err, remote.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return err
}
