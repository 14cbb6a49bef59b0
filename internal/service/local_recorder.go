package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/remote"
	"github.com/tiagofur/ordo-todo-sub018/internal/repository"
)

const (
	LocalUserID    = "local"
	localUserEmail = "local@localhost"
)

// LocalRecorder delivers queued sessions straight into this process's own
// session repository, for single-machine deployments.
type LocalRecorder struct {
	sessions *SessionService
	userID   string
}

// NewLocalRecorder makes sure the local owner account exists. The account
// has no usable password and cannot log in.
func NewLocalRecorder(ctx context.Context, users *repository.UserRepository, sessions *SessionService) (*LocalRecorder, error) {
	now := time.Now().UTC()
	err := users.Ensure(ctx, &model.User{
		ID:           LocalUserID,
		Email:        localUserEmail,
		PasswordHash: "!",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure local user: %w", err)
	}
	return &LocalRecorder{sessions: sessions, userID: LocalUserID}, nil
}

func (r *LocalRecorder) RecordSession(ctx context.Context, idempotencyKey string, record model.SessionRecord) error {
	_, _, apiErr := r.sessions.Record(ctx, r.userID, idempotencyKey, record)
	if apiErr == nil {
		return nil
	}
	if !apiErr.Temporary() {
		return fmt.Errorf("%w: %s", remote.ErrRejected, apiErr.Message)
	}
	return apiErr
}
