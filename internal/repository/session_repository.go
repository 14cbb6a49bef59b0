package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

// SessionRepository stores sessions reported by timer clients. The row id is
// the client's idempotency key.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const recordedSessionColumns = `id, user_id, session_id, mode, planned_seconds, actual_seconds,
	interrupted, reason, pause_count, task_id, started_at, ended_at, created_at`

// Insert stores the session unless its id is already present, in which case
// it returns ErrDuplicate and leaves the stored row untouched.
func (r *SessionRepository) Insert(ctx context.Context, session *model.RecordedSession) error {
	var taskID interface{}
	if session.TaskID != "" {
		taskID = session.TaskID
	}

	result, err := r.db.ExecContext(
		ctx,
		`INSERT INTO recorded_sessions (`+recordedSessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		session.ID,
		session.UserID,
		session.SessionID,
		string(session.Mode),
		session.PlannedSeconds,
		session.ActualSeconds,
		session.Interrupted,
		string(session.Reason),
		session.PauseCount,
		taskID,
		formatTime(session.StartedAt),
		formatTime(session.EndedAt),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert recorded session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert recorded session: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*model.RecordedSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordedSessionColumns+` FROM recorded_sessions WHERE id = ?`, id)
	return scanRecordedSession(row)
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.RecordedSession, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+recordedSessionColumns+`
		 FROM recorded_sessions
		 WHERE user_id = ?
		 ORDER BY ended_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.RecordedSession, 0, limit)
	for rows.Next() {
		session, scanErr := scanRecordedSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanRecordedSession(s scanner) (*model.RecordedSession, error) {
	session := model.RecordedSession{}
	var mode, reason string
	var taskID sql.NullString
	var startedAt, endedAt, createdAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&session.SessionID,
		&mode,
		&session.PlannedSeconds,
		&session.ActualSeconds,
		&session.Interrupted,
		&reason,
		&session.PauseCount,
		&taskID,
		&startedAt,
		&endedAt,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	session.Mode = model.Mode(mode)
	session.Reason = model.EndReason(reason)
	session.TaskID = taskID.String

	if session.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	if session.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse session ended_at: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}

	return &session, nil
}
