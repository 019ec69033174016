package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps ItemState in a JSON file. A missing file is an empty
// state. Save writes a sibling .tmp file and renames it over the target.
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the state file. A missing file yields an empty state.
func (s *FileStore) Load(ctx context.Context) (ItemState, error) {
	if err := ctx.Err(); err != nil {
		return ItemState{}, err
	}
	if strings.TrimSpace(s.Path) == "" {
		return ItemState{}, errors.New("item state path is empty")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ItemState{}, nil
		}
		return ItemState{}, fmt.Errorf("failed to read item state: %w", err)
	}
	var state ItemState
	if err := json.Unmarshal(data, &state); err != nil {
		return ItemState{}, fmt.Errorf("failed to decode item state %s: %w", s.Path, err)
	}
	return state, nil
}

// Save replaces the state file atomically.
func (s *FileStore) Save(ctx context.Context, state ItemState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("item state path is empty")
	}
	if state.ItemIDs == nil {
		state.ItemIDs = []string{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create item state dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write item state: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace item state: %w", err)
	}
	return nil
}
