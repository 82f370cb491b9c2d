package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last processed timestamp.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps named progress entries in one local JSON file, so
// aggregators with different windows can share it like the state table.
// An empty Name uses "default".
type FileStateStore struct {
	Path string
	Name string
}

type stateEntry struct {
	LastProcessedTs uint64 `json:"last_processed_ts"`
	UpdatedAt       string `json:"updated_at"`
}

func (s *FileStateStore) name() string {
	if s.Name == "" {
		return "default"
	}
	return s.Name
}

func (s *FileStateStore) readAll() (map[string]stateEntry, error) {
	entries := make(map[string]stateEntry)
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return entries, nil
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	entries, err := s.readAll()
	if err != nil {
		return 0, false, err
	}
	entry, ok := entries[s.name()]
	return entry.LastProcessedTs, ok, nil
}

func (s *FileStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[s.name()] = stateEntry{
		LastProcessedTs: ts,
		UpdatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
