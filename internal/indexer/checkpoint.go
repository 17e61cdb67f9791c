package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"lpBacktest/internal/storage"
)

// Checkpoint marks the exclusive end of the last completed fetch window.
type Checkpoint struct {
	LastProcessed int64  `json:"last_processed_ts"`
	UpdatedAt     string `json:"updated_at"`
}

// Checkpointer loads and saves named fetch progress.
type Checkpointer interface {
	Load(ctx context.Context, name string) (int64, bool, error)
	Save(ctx context.Context, name string, ts int64) error
}

// CheckpointStore persists checkpoints to a JSON file keyed by name.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled}
}

func (c *CheckpointStore) Load(_ context.Context, name string) (int64, bool, error) {
	if !c.enabled {
		return 0, false, nil
	}

	all, err := c.readAll()
	if err != nil {
		return 0, false, err
	}
	cp, ok := all[name]
	if !ok {
		return 0, false, nil
	}
	return cp.LastProcessed, true, nil
}

func (c *CheckpointStore) Save(_ context.Context, name string, ts int64) error {
	if !c.enabled {
		return nil
	}

	all, err := c.readAll()
	if err != nil {
		return err
	}
	all[name] = Checkpoint{
		LastProcessed: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

func (c *CheckpointStore) readAll() (map[string]Checkpoint, error) {
	all := make(map[string]Checkpoint)

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return all, nil
}

// stateCheckpointer keeps checkpoints in the store's fetch_state table.
type stateCheckpointer struct {
	state storage.StateStore
}

func (s stateCheckpointer) Load(ctx context.Context, name string) (int64, bool, error) {
	return s.state.LoadState(ctx, name)
}

func (s stateCheckpointer) Save(ctx context.Context, name string, ts int64) error {
	return s.state.SaveState(ctx, name, ts)
}

func checkpointName(protocol, address string, from int64) string {
	return "fetch:" + protocol + ":" + address + ":" + strconv.FormatInt(from, 10)
}
