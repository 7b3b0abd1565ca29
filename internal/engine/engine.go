package engine

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/logging"
	"github.com/thoreinstein/rsnap/internal/retention"
	"github.com/thoreinstein/rsnap/internal/snapshot"
	"github.com/thoreinstein/rsnap/internal/transfer"
)

// Engine drives backup runs against a single target: baseline selection,
// transfer, finalization and retention pruning, in that order, under the
// target's advisory lock.
type Engine struct {
	repo    *snapshot.Repository
	io      snapshot.IO
	target  transfer.Path
	invoker transfer.Invoker
	policy  *retention.Policy
	logger  *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// New creates an engine for the given target root. target.Path is the
// snapshot root on the (possibly remote) machine reached through io.
func New(io snapshot.IO, target transfer.Path, invoker transfer.Invoker, policy *retention.Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Engine{
		repo:    snapshot.NewRepository(io, target.Path),
		io:      io,
		target:  target,
		invoker: invoker,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
}

// Job describes one backup run.
type Job struct {
	// Sources are the absolute local paths to back up.
	Sources []string
	// Excludes are rsync exclude patterns.
	Excludes []string
	// DryRun reports what the run would do without allocating a snapshot
	// or writing to the target.
	DryRun bool
}

// Report summarizes a finished backup run.
type Report struct {
	SnapshotID  string
	Status      snapshot.Status
	BaselineID  string
	FailedPaths []string
	Reconciled  []string
	Pruned      []string
	PruneFailed []string
	DryRun      bool
	StartedAt   time.Time
	Duration    time.Duration
}

// Backup executes one full run. Partial per-file failures still produce a
// complete snapshot and a nil error; a fatal transfer, an unreachable
// target or a held lock return an error alongside whatever report could
// be assembled.
func (e *Engine) Backup(ctx context.Context, job Job) (*Report, error) {
	if len(job.Sources) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "backup job has no sources")
	}

	started := e.now()
	report := &Report{DryRun: job.DryRun, StartedAt: started}
	defer func() { report.Duration = e.now().Sub(started) }()

	lock, err := AcquireLock(ctx, e.io, e.target.Path)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			e.logger.Warn("releasing lock", "error", err)
		}
	}()

	// Abandoned in_progress snapshots from interrupted runs are settled
	// before baseline selection so they can never be linked against.
	if !job.DryRun {
		reconciled, err := e.repo.Reconcile(ctx)
		if err != nil {
			return report, err
		}
		for _, s := range reconciled {
			e.logger.Warn("marked abandoned snapshot as failed", "snapshot", s.ID)
			report.Reconciled = append(report.Reconciled, s.ID)
		}
	}

	snapshots, err := e.repo.List(ctx)
	if err != nil {
		return report, err
	}

	baseline := snapshot.Baseline(snapshots)
	var linkDest string
	if baseline != nil {
		report.BaselineID = baseline.ID
		linkDest = baseline.DataPath()
		e.logger.Info("hard-linking against baseline", "baseline", baseline.ID)
	} else {
		e.logger.Info("no complete snapshot found, full copy")
	}

	var snap snapshot.Snapshot
	if job.DryRun {
		// Nothing is allocated; the destination is where the snapshot
		// would land.
		snap = snapshot.Snapshot{
			ID:     started.Format(snapshot.IDFormat),
			Path:   path.Join(e.target.Path, started.Format(snapshot.IDFormat)),
			Status: snapshot.StatusInProgress,
		}
	} else {
		snap, err = e.repo.Allocate(ctx, started)
		if err != nil {
			return report, err
		}
	}
	report.SnapshotID = snap.ID
	report.Status = snap.Status

	result, err := e.invoker.Run(ctx, transfer.Request{
		Sources:  localPaths(job.Sources),
		Excludes: job.Excludes,
		Target:   transfer.Path{Path: snap.DataPath(), Host: e.target.Host, User: e.target.User},
		LinkDest: linkDest,
		Delete:   true,
		DryRun:   job.DryRun,
	})
	if err != nil {
		if !job.DryRun {
			if ferr := e.repo.Finalize(ctx, &snap, snapshot.StatusFailed, nil); ferr != nil {
				e.logger.Error("recording failed snapshot", "snapshot", snap.ID, "error", ferr)
			}
			report.Status = snapshot.StatusFailed
		}
		return report, err
	}
	report.FailedPaths = result.FailedPaths

	if job.DryRun {
		return report, nil
	}

	switch result.Outcome {
	case transfer.OutcomeSuccess, transfer.OutcomePartial:
		// An unrecorded status must not be trusted as a baseline, so a
		// finalize failure turns a successful transfer into a failed run.
		if err := e.repo.Finalize(ctx, &snap, snapshot.StatusComplete, result.FailedPaths); err != nil {
			report.Status = snapshot.StatusFailed
			return report, err
		}
		report.Status = snapshot.StatusComplete
		if result.Outcome == transfer.OutcomePartial {
			e.logger.Warn("snapshot complete with skipped files",
				"snapshot", snap.ID,
				"skipped", len(result.FailedPaths))
		}
	default:
		if err := e.repo.Finalize(ctx, &snap, snapshot.StatusFailed, result.FailedPaths); err != nil {
			e.logger.Error("recording failed snapshot", "snapshot", snap.ID, "error", err)
		}
		report.Status = snapshot.StatusFailed
		return report, errors.Newf("transfer failed: %s (exit code %d)", result.Message(), result.ExitCode)
	}

	// Pruning observes a listing taken strictly after finalize so the
	// just-finished snapshot is part of the view.
	pruned, failed := e.prune(ctx, false)
	report.Pruned = pruned
	report.PruneFailed = failed

	return report, nil
}

// prune re-lists the repository, asks the policy for redundant snapshots
// and deletes them one at a time. Deletion failures are reported, never
// escalated: a snapshot that would not die is retried on the next run.
// Callers must hold the target lock.
func (e *Engine) prune(ctx context.Context, dryRun bool) (pruned []string, failed []string) {
	if e.policy == nil {
		return nil, nil
	}

	snapshots, err := e.repo.List(ctx)
	if err != nil {
		e.logger.Warn("listing snapshots for pruning", "error", err)
		return nil, nil
	}

	for _, s := range e.policy.Prune(snapshots, e.now()) {
		if dryRun {
			pruned = append(pruned, s.ID)
			continue
		}
		if err := e.repo.Delete(ctx, s); err != nil {
			e.logger.Warn("pruning snapshot", "snapshot", s.ID, "error", err)
			failed = append(failed, s.ID)
			continue
		}
		e.logger.Info("pruned snapshot", "snapshot", s.ID)
		pruned = append(pruned, s.ID)
	}
	return pruned, failed
}

// PruneReport summarizes a standalone prune invocation.
type PruneReport struct {
	Pruned []string
	Failed []string
	DryRun bool
}

// Prune applies the retention policy outside of a backup run. With
// dryRun, the candidates are reported but nothing is deleted.
func (e *Engine) Prune(ctx context.Context, dryRun bool) (*PruneReport, error) {
	lock, err := AcquireLock(ctx, e.io, e.target.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			e.logger.Warn("releasing lock", "error", err)
		}
	}()

	pruned, failed := e.prune(ctx, dryRun)
	return &PruneReport{Pruned: pruned, Failed: failed, DryRun: dryRun}, nil
}

// List enumerates the target's snapshots, ascending by ID.
func (e *Engine) List(ctx context.Context) ([]snapshot.Snapshot, error) {
	return e.repo.List(ctx)
}

// Get looks up a single snapshot by ID.
func (e *Engine) Get(ctx context.Context, id string) (snapshot.Snapshot, error) {
	return e.repo.Get(ctx, id)
}

// Remove deletes the named snapshots under the target lock. Each
// deletion is independent; failures are collected, not fatal.
func (e *Engine) Remove(ctx context.Context, ids []string) (removed []string, failed []string, err error) {
	lock, err := AcquireLock(ctx, e.io, e.target.Path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if rerr := lock.Release(ctx); rerr != nil {
			e.logger.Warn("releasing lock", "error", rerr)
		}
	}()

	for _, id := range ids {
		snap, err := e.repo.Get(ctx, id)
		if err != nil {
			e.logger.Warn("removing snapshot", "snapshot", id, "error", err)
			failed = append(failed, id)
			continue
		}
		if err := e.repo.Delete(ctx, snap); err != nil {
			e.logger.Warn("removing snapshot", "snapshot", id, "error", err)
			failed = append(failed, id)
			continue
		}
		removed = append(removed, id)
	}
	return removed, failed, nil
}

// RestoreJob describes a restore from one snapshot.
type RestoreJob struct {
	// SnapshotID names the snapshot to restore from.
	SnapshotID string
	// Items are the original absolute paths to restore. Empty means the
	// whole snapshot.
	Items []string
	// Destination is the local directory to restore into. "/" restores
	// files to their original locations.
	Destination string
	// DryRun reports what would be restored without writing.
	DryRun bool
}

// Restore copies files from a complete snapshot back to the local
// machine. The snapshot's directory layout mirrors the original absolute
// paths, so restoring into "/" puts every file back where it came from.
func (e *Engine) Restore(ctx context.Context, job RestoreJob) (transfer.Result, error) {
	snap, err := e.repo.Get(ctx, job.SnapshotID)
	if err != nil {
		return transfer.Result{}, err
	}
	if snap.Status != snapshot.StatusComplete {
		return transfer.Result{}, errors.Newf("snapshot %s is %s, only complete snapshots can be restored", snap.ID, snap.Status)
	}

	items := job.Items
	if len(items) == 0 {
		items = []string{"/"}
	}
	dest := job.Destination
	if dest == "" {
		dest = "/"
	}

	sources := make([]transfer.Path, 0, len(items))
	for _, item := range items {
		// The "/./" marker caps the path components rsync reproduces
		// under the destination (see rsync's --relative). Built by hand
		// because path.Join would clean the dot away.
		sources = append(sources, transfer.Path{
			Path: snap.DataPath() + "/./" + strings.TrimPrefix(item, "/"),
			Host: e.target.Host,
			User: e.target.User,
		})
	}

	return e.invoker.Run(ctx, transfer.Request{
		Sources: sources,
		Target:  transfer.Path{Path: dest},
		DryRun:  job.DryRun,
	})
}

func localPaths(paths []string) []transfer.Path {
	out := make([]transfer.Path, 0, len(paths))
	for _, p := range paths {
		out = append(out, transfer.Path{Path: p})
	}
	return out
}
