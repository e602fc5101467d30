// Package fs persists agent snapshots and state as JSON files.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/bft-labs/stableopt/internal/domain"
)

const (
	snapshotFileName = "snapshot.json"
	stateFileName    = "status.json"
)

// SnapshotFileRepository implements ports.SnapshotRepository using JSON
// files in one directory.
type SnapshotFileRepository struct {
	dir string
}

// NewSnapshotFileRepository creates a repository for the given directory.
func NewSnapshotFileRepository(dir string) *SnapshotFileRepository {
	return &SnapshotFileRepository{dir: dir}
}

// LoadSnapshot retrieves the last saved snapshot.
// Returns an empty snapshot and nil error if no snapshot file exists.
func (r *SnapshotFileRepository) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := r.load(snapshotFileName, &snap); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// SaveSnapshot persists the snapshot atomically.
func (r *SnapshotFileRepository) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	return r.save(snapshotFileName, snap)
}

// LoadState retrieves the last saved state.
// Returns an empty state and nil error if no state file exists.
func (r *SnapshotFileRepository) LoadState(ctx context.Context) (domain.State, error) {
	var state domain.State
	if err := r.load(stateFileName, &state); err != nil {
		return domain.State{}, err
	}
	return state, nil
}

// SaveState persists the state atomically.
func (r *SnapshotFileRepository) SaveState(ctx context.Context, state domain.State) error {
	return r.save(stateFileName, state)
}

func (r *SnapshotFileRepository) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// save writes to a temp file and renames it over the target.
func (r *SnapshotFileRepository) save(name string, v any) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	path := filepath.Join(r.dir, name)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SnapshotPath returns the full path to the snapshot file.
func (r *SnapshotFileRepository) SnapshotPath() string {
	return filepath.Join(r.dir, snapshotFileName)
}

// StatePath returns the full path to the state file.
func (r *SnapshotFileRepository) StatePath() string {
	return filepath.Join(r.dir, stateFileName)
}
