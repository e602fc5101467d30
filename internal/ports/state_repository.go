package ports

import (
	"context"

	"github.com/bft-labs/stableopt/internal/domain"
)

// SnapshotRepository handles snapshot and state persistence for restarts.
// Implementations must write atomically (write to temp file, then rename).
type SnapshotRepository interface {
	// LoadSnapshot returns the last saved snapshot, or an empty snapshot
	// and nil error if none exists.
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)

	// SaveSnapshot persists the snapshot atomically.
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error

	// LoadState returns the last saved state, or an empty state and nil
	// error if none exists.
	LoadState(ctx context.Context) (domain.State, error)

	// SaveState persists the state atomically.
	SaveState(ctx context.Context, state domain.State) error
}
