package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/repository"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// SessionService is the backend side of session recording. Clients retry
// freely; the idempotency key makes each session land exactly once.
type SessionService struct {
	repo *repository.SessionRepository
}

func NewSessionService(repo *repository.SessionRepository) *SessionService {
	return &SessionService{repo: repo}
}

// Record stores a session under idempotencyKey. created is false when the key
// was already recorded; the stored session is returned either way.
func (s *SessionService) Record(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	record model.SessionRecord,
) (session *model.RecordedSession, created bool, apiErr *apperrors.APIError) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return nil, false, apperrors.BadRequest("missing_idempotency_key", "Idempotency-Key header is required")
	}
	if apiErr := validateRecord(record); apiErr != nil {
		return nil, false, apiErr
	}

	recorded := model.RecordedSession{
		ID:             key,
		UserID:         userID,
		SessionID:      record.SessionID,
		Mode:           record.Mode,
		PlannedSeconds: record.PlannedSeconds,
		ActualSeconds:  record.ActualSeconds,
		Interrupted:    record.Interrupted,
		Reason:         record.Reason,
		PauseCount:     record.PauseCount,
		TaskID:         record.TaskID,
		StartedAt:      record.StartedAt.UTC(),
		EndedAt:        record.EndedAt.UTC(),
		CreatedAt:      time.Now().UTC(),
	}

	err := s.repo.Insert(ctx, &recorded)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, getErr := s.repo.Get(ctx, key)
		if getErr != nil {
			return nil, false, apperrors.Internal("failed to load recorded session")
		}
		if existing.UserID != userID {
			return nil, false, apperrors.Conflict("idempotency_key_reused", "idempotency key already used", nil)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Internal("failed to record session")
	}
	return &recorded, true, nil
}

func (s *SessionService) History(ctx context.Context, userID string, limit int) ([]model.RecordedSession, *apperrors.APIError) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, apperrors.BadRequest("invalid_limit", "limit must be between 1 and 200")
	}

	sessions, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list sessions")
	}
	return sessions, nil
}

func validateRecord(record model.SessionRecord) *apperrors.APIError {
	if !record.Mode.Valid() {
		return apperrors.BadRequest("invalid_session", "mode must be work, short_break or long_break")
	}
	switch record.Reason {
	case model.ReasonCompleted, model.ReasonSkipped, model.ReasonStopped:
	default:
		return apperrors.BadRequest("invalid_session", "reason must be completed, skipped or stopped")
	}
	if record.PlannedSeconds <= 0 {
		return apperrors.BadRequest("invalid_session", "plannedSeconds must be positive")
	}
	if record.ActualSeconds < 0 || record.ActualSeconds > record.PlannedSeconds {
		return apperrors.BadRequest("invalid_session", "actualSeconds must be between 0 and plannedSeconds")
	}
	if record.PauseCount < 0 {
		return apperrors.BadRequest("invalid_session", "pauseCount must not be negative")
	}
	if record.StartedAt.IsZero() || record.EndedAt.IsZero() || record.EndedAt.Before(record.StartedAt) {
		return apperrors.BadRequest("invalid_session", "endedAt must not precede startedAt")
	}
	return nil
}
