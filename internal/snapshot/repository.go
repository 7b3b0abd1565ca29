package snapshot

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/thoreinstein/rsnap/internal/errors"
)

// Repository enumerates, allocates and persists snapshots under a target
// root. It is the ground truth for which backups exist; everything it knows
// comes from the directory layout and the per-snapshot manifests, so two
// processes looking at the same target always agree.
type Repository struct {
	io   IO
	root string
}

// NewRepository creates a repository for the given target root.
func NewRepository(io IO, root string) *Repository {
	return &Repository{io: io, root: root}
}

// Root returns the target root directory.
func (r *Repository) Root() string {
	return r.root
}

// List returns all snapshots under the target root, ascending by ID.
// A missing root means no backups yet and is not an error; any other
// listing failure is reported as ErrTargetUnreachable.
func (r *Repository) List(ctx context.Context) ([]Snapshot, error) {
	exists, err := r.io.Exists(ctx, r.root)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTargetUnreachable, "checking target root: %v", err)
	}
	if !exists {
		return nil, nil
	}

	names, err := r.io.ReadDir(ctx, r.root)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTargetUnreachable, "listing target root: %v", err)
	}

	snapshots := make([]Snapshot, 0, len(names))
	for _, name := range names {
		if !IsID(name) {
			continue
		}

		snap, err := r.load(ctx, name)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})

	return snapshots, nil
}

// Get returns the snapshot with the given ID.
func (r *Repository) Get(ctx context.Context, id string) (Snapshot, error) {
	if !IsID(id) {
		return Snapshot{}, errors.Wrapf(errors.ErrSnapshotNotFound, "invalid snapshot id %q", id)
	}

	exists, err := r.io.Exists(ctx, path.Join(r.root, id))
	if err != nil {
		return Snapshot{}, errors.Wrapf(errors.ErrTargetUnreachable, "checking snapshot %s: %v", id, err)
	}
	if !exists {
		return Snapshot{}, errors.Wrapf(errors.ErrSnapshotNotFound, "snapshot %s", id)
	}

	return r.load(ctx, id)
}

// load builds a Snapshot from a directory entry known to look like an ID.
// A directory without a readable manifest is classified in_progress: the
// run that created it died before recording a status, and it must never be
// trusted as a baseline.
func (r *Repository) load(ctx context.Context, id string) (Snapshot, error) {
	dir := path.Join(r.root, id)

	snap := Snapshot{
		ID:     id,
		Path:   dir,
		Status: StatusInProgress,
	}
	if t, err := ParseID(id); err == nil {
		snap.CreatedAt = t
	}

	m, err := readManifest(ctx, r.io, dir)
	if err != nil {
		// Missing or unparseable manifests classify the snapshot as
		// in_progress; reconciliation will flip it to failed.
		return snap, nil
	}

	snap.Status = m.Status
	if !m.CreatedAt.IsZero() {
		snap.CreatedAt = m.CreatedAt
	}
	if m.FinishedAt != nil {
		snap.FinishedAt = *m.FinishedAt
	}
	snap.FailedPaths = m.FailedPaths

	return snap, nil
}

// Allocate creates a new in_progress snapshot whose ID is derived from the
// given timestamp. If a snapshot with that ID already exists (two runs in
// the same second), a numeric suffix keeps the ID unique while still
// sorting after the base label. The data directory is created eagerly so
// the transfer step has somewhere to write.
func (r *Repository) Allocate(ctx context.Context, now time.Time) (Snapshot, error) {
	base := now.Format(IDFormat)

	id := base
	for n := 1; ; n++ {
		exists, err := r.io.Exists(ctx, path.Join(r.root, id))
		if err != nil {
			return Snapshot{}, errors.Wrapf(errors.ErrTargetUnreachable, "checking snapshot id %s: %v", id, err)
		}
		if !exists {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}

	dir := path.Join(r.root, id)
	if err := r.io.MkdirAll(ctx, path.Join(dir, DataDirName)); err != nil {
		return Snapshot{}, errors.Wrapf(errors.ErrTargetUnreachable, "creating snapshot directory: %v", err)
	}

	snap := Snapshot{
		ID:        id,
		Path:      dir,
		Status:    StatusInProgress,
		CreatedAt: now,
	}

	m := &manifest{
		Version:   ManifestVersion,
		Status:    StatusInProgress,
		CreatedAt: now,
	}
	if err := writeManifest(ctx, r.io, dir, m); err != nil {
		return Snapshot{}, errors.Wrapf(errors.ErrTargetUnreachable, "recording snapshot status: %v", err)
	}

	return snap, nil
}

// Finalize transitions a snapshot out of in_progress, durably recording the
// outcome. failedPaths carries the per-file failures of a partial transfer
// and is only meaningful with StatusComplete. If the manifest cannot be
// written the whole run must be considered failed, because an unconfirmed
// snapshot cannot be trusted as a future baseline.
func (r *Repository) Finalize(ctx context.Context, snap *Snapshot, status Status, failedPaths []string) error {
	if status != StatusComplete && status != StatusFailed {
		return errors.Newf("cannot finalize snapshot %s to status %q", snap.ID, status)
	}

	finished := time.Now().UTC()
	m := &manifest{
		Version:     ManifestVersion,
		Status:      status,
		CreatedAt:   snap.CreatedAt,
		FinishedAt:  &finished,
		FailedPaths: failedPaths,
	}

	if err := writeManifest(ctx, r.io, snap.Path, m); err != nil {
		return errors.Wrapf(errors.ErrTargetUnreachable, "recording snapshot status: %v", err)
	}

	snap.Status = status
	snap.FinishedAt = finished
	snap.FailedPaths = failedPaths

	return nil
}

// Delete removes a snapshot's entire subtree. Failures are wrapped in
// ErrDeleteFailed and are non-fatal to the surrounding run: a partially
// removed snapshot still has its manifest or at least its ID directory and
// will be retried by a later prune.
func (r *Repository) Delete(ctx context.Context, snap Snapshot) error {
	if err := r.io.RemoveAll(ctx, snap.Path); err != nil {
		return errors.Wrapf(errors.ErrDeleteFailed, "removing snapshot %s: %v", snap.ID, err)
	}
	return nil
}

// Reconcile sweeps pre-existing in_progress snapshots, marking each as
// failed. An abandoned run's snapshot is neither a valid baseline nor
// silently resumed; flipping it to failed makes the abandonment explicit
// while keeping the partial tree inspectable. Returns the snapshots that
// were reconciled.
func (r *Repository) Reconcile(ctx context.Context) ([]Snapshot, error) {
	snapshots, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var reconciled []Snapshot
	for i := range snapshots {
		if snapshots[i].Status != StatusInProgress {
			continue
		}
		if err := r.Finalize(ctx, &snapshots[i], StatusFailed, nil); err != nil {
			return reconciled, err
		}
		reconciled = append(reconciled, snapshots[i])
	}

	return reconciled, nil
}
