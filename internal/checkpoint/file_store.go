package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

// FileStore keeps the checkpoint in a YAML file, replaced atomically on
// every save.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (model.Checkpoint, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Checkpoint{}, ErrNotFound
		}
		return model.Checkpoint{}, fmt.Errorf("read checkpoint file: %w", err)
	}

	var cp model.Checkpoint
	if err := yaml.Unmarshal(raw, &cp); err != nil {
		return model.Checkpoint{}, corrupt(err)
	}
	return cp, nil
}

func (s *FileStore) Save(_ context.Context, cp model.Checkpoint) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	serialized, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint yaml: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(serialized); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint file: %w", err)
	}
	return nil
}
