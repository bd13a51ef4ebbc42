package persistence

import "context"

// SnapshotRepository stores whole-directory snapshots. Snapshots are
// immutable once saved; the newest one is authoritative.
type SnapshotRepository interface {
	// SaveSnapshot stores snapshot and returns it with its id, save time, and
	// digest filled in.
	SaveSnapshot(ctx context.Context, snapshot Snapshot) (Snapshot, error)
	// LatestSnapshot returns the newest snapshot, ErrNotFound when none exists,
	// or ErrCorruptSnapshot when its contents no longer match the digest.
	LatestSnapshot(ctx context.Context) (Snapshot, error)
	// ListSnapshots returns summaries ordered newest first.
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	// PruneSnapshots deletes all but the newest keep snapshots and returns
	// how many were removed. keep <= 0 disables pruning.
	PruneSnapshots(ctx context.Context, keep int) (int, error)
}
