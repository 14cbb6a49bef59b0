package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

// SyncActionRepository is the durable FIFO behind the offline action queue.
type SyncActionRepository struct {
	db *sql.DB
}

func NewSyncActionRepository(db *sql.DB) *SyncActionRepository {
	return &SyncActionRepository{db: db}
}

const syncActionColumns = `seq, id, kind, payload, status, retry_count, last_error,
	next_attempt_at, created_at, dead_lettered_at`

func (r *SyncActionRepository) Insert(ctx context.Context, action *model.PendingSyncAction) error {
	result, err := r.db.ExecContext(
		ctx,
		`INSERT INTO sync_actions (id, kind, payload, status, retry_count, last_error, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID,
		string(action.Kind),
		string(action.Payload),
		string(action.Status),
		action.RetryCount,
		action.LastError,
		formatTime(action.NextAttemptAt),
		formatTime(action.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert sync action: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sync action seq: %w", err)
	}
	action.Seq = seq
	return nil
}

// NextPending returns the oldest pending action regardless of its backoff.
func (r *SyncActionRepository) NextPending(ctx context.Context) (*model.PendingSyncAction, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+syncActionColumns+`
		 FROM sync_actions
		 WHERE status = ?
		 ORDER BY seq ASC
		 LIMIT 1`,
		string(model.ActionPending),
	)
	return scanSyncAction(row)
}

func (r *SyncActionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete sync action: %w", err)
	}
	return nil
}

func (r *SyncActionRepository) RecordFailure(ctx context.Context, id string, retryCount int, lastError string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE sync_actions
		 SET retry_count = ?, last_error = ?, next_attempt_at = ?
		 WHERE id = ?`,
		retryCount,
		lastError,
		formatTime(nextAttemptAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("record sync failure: %w", err)
	}
	return nil
}

func (r *SyncActionRepository) MarkDeadLetter(ctx context.Context, id string, retryCount int, lastError string, at time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE sync_actions
		 SET status = ?, retry_count = ?, last_error = ?, dead_lettered_at = ?
		 WHERE id = ?`,
		string(model.ActionDeadLetter),
		retryCount,
		lastError,
		formatTime(at),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark dead letter: %w", err)
	}
	return nil
}

// Requeue moves a dead letter to the tail of the pending queue with a fresh
// retry budget. The payload and idempotency key are preserved.
func (r *SyncActionRepository) Requeue(ctx context.Context, id string, now time.Time) (*model.PendingSyncAction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	action, err := scanSyncAction(tx.QueryRowContext(
		ctx,
		`SELECT `+syncActionColumns+` FROM sync_actions WHERE id = ? AND status = ?`,
		id,
		string(model.ActionDeadLetter),
	))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_actions WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("remove dead letter: %w", err)
	}

	action.Status = model.ActionPending
	action.RetryCount = 0
	action.NextAttemptAt = now
	action.DeadLetteredAt = nil
	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO sync_actions (id, kind, payload, status, retry_count, last_error, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID,
		string(action.Kind),
		string(action.Payload),
		string(action.Status),
		action.RetryCount,
		action.LastError,
		formatTime(action.NextAttemptAt),
		formatTime(action.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("requeue sync action: %w", err)
	}
	if action.Seq, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("sync action seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit requeue: %w", err)
	}
	return action, nil
}

func (r *SyncActionRepository) Counts(ctx context.Context) (pending int, deadLetters int, err error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sync_actions GROUP BY status`)
	if err != nil {
		return 0, 0, fmt.Errorf("count sync actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, fmt.Errorf("scan sync action count: %w", err)
		}
		switch model.ActionStatus(status) {
		case model.ActionPending:
			pending = count
		case model.ActionDeadLetter:
			deadLetters = count
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate sync action counts: %w", err)
	}
	return pending, deadLetters, nil
}

func (r *SyncActionRepository) ListByStatus(ctx context.Context, status model.ActionStatus, limit int) ([]model.PendingSyncAction, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+syncActionColumns+`
		 FROM sync_actions
		 WHERE status = ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		string(status),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync actions: %w", err)
	}
	defer rows.Close()

	actions := make([]model.PendingSyncAction, 0)
	for rows.Next() {
		action, scanErr := scanSyncAction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		actions = append(actions, *action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync actions: %w", err)
	}
	return actions, nil
}

func scanSyncAction(s scanner) (*model.PendingSyncAction, error) {
	action := model.PendingSyncAction{}
	var kind, payload, status string
	var lastError, deadLetteredAt sql.NullString
	var nextAttemptAt, createdAt string
	err := s.Scan(
		&action.Seq,
		&action.ID,
		&kind,
		&payload,
		&status,
		&action.RetryCount,
		&lastError,
		&nextAttemptAt,
		&createdAt,
		&deadLetteredAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan sync action: %w", err)
	}

	action.Kind = model.ActionKind(kind)
	action.Payload = []byte(payload)
	action.Status = model.ActionStatus(status)
	action.LastError = lastError.String

	if action.NextAttemptAt, err = parseTime(nextAttemptAt); err != nil {
		return nil, fmt.Errorf("parse sync action next_attempt_at: %w", err)
	}
	if action.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse sync action created_at: %w", err)
	}
	if action.DeadLetteredAt, err = parseNullTime(deadLetteredAt); err != nil {
		return nil, fmt.Errorf("parse sync action dead_lettered_at: %w", err)
	}
	return &action, nil
}
