package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

// SQLiteStore keeps the checkpoint as a single JSON row.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context) (model.Checkpoint, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM timer_checkpoints WHERE id = 1`).Scan(&record)
	if err == sql.ErrNoRows {
		return model.Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal([]byte(record), &cp); err != nil {
		return model.Checkpoint{}, corrupt(err)
	}
	return cp, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cp model.Checkpoint) error {
	record, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO timer_checkpoints (id, record, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		string(record),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM timer_checkpoints WHERE id = 1`); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
