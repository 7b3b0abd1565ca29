package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	rsnaperrors "github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/retention"
	"github.com/thoreinstein/rsnap/internal/snapshot"
	"github.com/thoreinstein/rsnap/internal/transfer"
)

// fakeInvoker records requests and plays back canned results. When the
// result is not fatal it also drops a file into the destination so the
// snapshot directory looks like a real transfer happened.
type fakeInvoker struct {
	results  []transfer.Result
	err      error
	requests []transfer.Request
}

func (f *fakeInvoker) Run(_ context.Context, req transfer.Request) (transfer.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return transfer.Result{}, f.err
	}

	result := transfer.Result{Outcome: transfer.OutcomeSuccess}
	if len(f.results) > 0 {
		result = f.results[0]
		f.results = f.results[1:]
	}

	if result.Outcome != transfer.OutcomeFatal && !req.DryRun {
		_ = os.WriteFile(filepath.Join(req.Target.Path, "payload"), []byte("x"), 0644)
	}
	return result, nil
}

func newTestEngine(t *testing.T, invoker transfer.Invoker, rules []retention.Rule) *Engine {
	t.Helper()
	root := filepath.Join(t.TempDir(), "backups")
	e := New(snapshot.Local{}, transfer.Path{Path: root}, invoker, retention.NewPolicy(rules), nil)
	e.now = func() time.Time {
		return time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local)
	}
	return e
}

func TestEngine_Backup_FirstRun(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, nil)

	report, err := e.Backup(context.Background(), Job{Sources: []string{"/etc"}})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	if report.BaselineID != "" {
		t.Errorf("first run got baseline %q", report.BaselineID)
	}
	if report.Status != snapshot.StatusComplete {
		t.Errorf("status = %q, want complete", report.Status)
	}

	if len(invoker.requests) != 1 {
		t.Fatalf("got %d transfer requests", len(invoker.requests))
	}
	req := invoker.requests[0]
	if req.LinkDest != "" {
		t.Errorf("first run passed link-dest %q", req.LinkDest)
	}
	if !req.Delete {
		t.Error("backup transfer must mirror deletions")
	}

	snapshots, err := e.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 || snapshots[0].Status != snapshot.StatusComplete {
		t.Errorf("listing after first run: %v", snapshots)
	}
}

func TestEngine_Backup_UsesNewestCompleteBaseline(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 8, 28, 2, 0, 0, 0, time.Local),
		time.Date(2026, 8, 29, 2, 0, 0, 0, time.Local),
	}
	for i, now := range times {
		now := now
		e.now = func() time.Time { return now }
		report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if i == 1 && report.BaselineID != "20260828T020000" {
			t.Errorf("run 1 baseline = %q", report.BaselineID)
		}
	}

	// The second transfer must link against the first snapshot's data dir.
	req := invoker.requests[1]
	if filepath.Base(filepath.Dir(req.LinkDest)) != "20260828T020000" {
		t.Errorf("link-dest = %q", req.LinkDest)
	}
}

func TestEngine_Backup_FatalTransfer(t *testing.T) {
	invoker := &fakeInvoker{results: []transfer.Result{
		{ExitCode: 255, Outcome: transfer.OutcomeFatal},
	}}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}})
	if err == nil {
		t.Fatal("fatal transfer must surface as an error")
	}
	if report.Status != snapshot.StatusFailed {
		t.Errorf("status = %q, want failed", report.Status)
	}

	// The failed snapshot is kept for inspection but never a baseline.
	snapshots, err := e.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 || snapshots[0].Status != snapshot.StatusFailed {
		t.Fatalf("listing after fatal run: %v", snapshots)
	}
	if b := snapshot.Baseline(snapshots); b != nil {
		t.Errorf("failed snapshot selected as baseline: %s", b.ID)
	}
}

func TestEngine_Backup_PartialTransfer(t *testing.T) {
	invoker := &fakeInvoker{results: []transfer.Result{
		{ExitCode: 23, Outcome: transfer.OutcomePartial, FailedPaths: []string{"/etc/shadow"}},
	}}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}})
	if err != nil {
		t.Fatalf("partial transfer must still succeed, got %v", err)
	}
	if report.Status != snapshot.StatusComplete {
		t.Errorf("status = %q, want complete", report.Status)
	}
	if len(report.FailedPaths) != 1 || report.FailedPaths[0] != "/etc/shadow" {
		t.Errorf("FailedPaths = %v", report.FailedPaths)
	}

	// The recorded paths survive a fresh listing.
	got, err := e.Get(ctx, report.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.FailedPaths) != 1 {
		t.Errorf("persisted FailedPaths = %v", got.FailedPaths)
	}
}

func TestEngine_Backup_ReconcilesAbandoned(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	// An in_progress snapshot left behind by an interrupted run.
	abandoned, err := e.repo.Allocate(ctx, time.Date(2026, 8, 29, 2, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}

	report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}})
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Reconciled) != 1 || report.Reconciled[0] != abandoned.ID {
		t.Errorf("Reconciled = %v, want [%s]", report.Reconciled, abandoned.ID)
	}
	if report.BaselineID != "" {
		t.Errorf("abandoned snapshot used as baseline %q", report.BaselineID)
	}
}

func TestEngine_Backup_LockContention(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	lock, err := AcquireLock(ctx, snapshot.Local{}, e.target.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			t.Fatal(err)
		}
	}()

	_, err = e.Backup(ctx, Job{Sources: []string{"/etc"}})
	if !rsnaperrors.Is(err, rsnaperrors.ErrRunInProgress) {
		t.Fatalf("error = %v, want ErrRunInProgress", err)
	}

	// Failing fast means no snapshot directory was created.
	if len(invoker.requests) != 0 {
		t.Error("transfer ran despite held lock")
	}
	snapshots, err := e.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Errorf("snapshot allocated despite held lock: %v", snapshots)
	}
}

func TestEngine_Backup_DryRun(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, []retention.Rule{{Period: retention.PeriodDaily, Keep: 1}})
	ctx := context.Background()

	report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !report.DryRun {
		t.Error("report not marked dry-run")
	}
	if !invoker.requests[0].DryRun {
		t.Error("transfer request not marked dry-run")
	}

	snapshots, err := e.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Errorf("dry run allocated snapshots: %v", snapshots)
	}
}

func TestEngine_Backup_AppliesRetention(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, []retention.Rule{{Period: retention.PeriodDaily, Keep: 3}})
	ctx := context.Background()

	for d := 26; d <= 30; d++ {
		now := time.Date(2026, 8, d, 2, 0, 0, 0, time.Local)
		e.now = func() time.Time { return now }
		if _, err := e.Backup(ctx, Job{Sources: []string{"/etc"}}); err != nil {
			t.Fatalf("day %d: %v", d, err)
		}
	}

	snapshots, err := e.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("got %d snapshots after retention, want 3", len(snapshots))
	}
	if snapshots[0].ID != "20260828T020000" {
		t.Errorf("oldest survivor = %q, want 20260828T020000", snapshots[0].ID)
	}
}

func TestEngine_Backup_NoSources(t *testing.T) {
	e := newTestEngine(t, &fakeInvoker{}, nil)
	if _, err := e.Backup(context.Background(), Job{}); !rsnaperrors.Is(err, rsnaperrors.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestEngine_Prune_DryRun(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, []retention.Rule{{Period: retention.PeriodDaily, Keep: 1}})
	ctx := context.Background()

	for d := 28; d <= 29; d++ {
		now := time.Date(2026, 8, d, 2, 0, 0, 0, time.Local)
		e.now = func() time.Time { return now }
		if _, err := e.Backup(ctx, Job{Sources: []string{"/etc"}}); err != nil {
			t.Fatal(err)
		}
	}

	e.now = func() time.Time { return time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local) }
	report, err := e.Prune(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Pruned) != 1 || report.Pruned[0] != "20260828T020000" {
		t.Errorf("dry-run candidates = %v", report.Pruned)
	}

	// Nothing actually deleted.
	snapshots, err := e.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 2 {
		t.Errorf("dry-run prune deleted snapshots: %v", snapshots)
	}
}

func TestEngine_Remove(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}})
	if err != nil {
		t.Fatal(err)
	}

	removed, failed, err := e.Remove(ctx, []string{report.SnapshotID, "20200101T000000"})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != report.SnapshotID {
		t.Errorf("removed = %v", removed)
	}
	if len(failed) != 1 || failed[0] != "20200101T000000" {
		t.Errorf("failed = %v", failed)
	}
}

func TestEngine_Restore(t *testing.T) {
	invoker := &fakeInvoker{}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	report, err := e.Backup(ctx, Job{Sources: []string{"/etc"}})
	if err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	if _, err := e.Restore(ctx, RestoreJob{
		SnapshotID:  report.SnapshotID,
		Items:       []string{"/etc/hosts"},
		Destination: dest,
	}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	req := invoker.requests[len(invoker.requests)-1]
	if req.Delete {
		t.Error("restore transfer must not mirror deletions")
	}
	if req.Target.Path != dest {
		t.Errorf("restore target = %q, want %q", req.Target.Path, dest)
	}
	src := req.Sources[0].Path
	if filepath.Base(src) != "hosts" {
		t.Errorf("restore source = %q", src)
	}
	if !containsDotAnchor(src) {
		t.Errorf("restore source missing relative anchor: %q", src)
	}
}

func containsDotAnchor(p string) bool {
	for i := 0; i+2 < len(p); i++ {
		if p[i:i+3] == "/./" {
			return true
		}
	}
	return false
}

func TestEngine_Restore_RejectsFailedSnapshot(t *testing.T) {
	invoker := &fakeInvoker{results: []transfer.Result{
		{ExitCode: 12, Outcome: transfer.OutcomeFatal},
	}}
	e := newTestEngine(t, invoker, nil)
	ctx := context.Background()

	report, _ := e.Backup(ctx, Job{Sources: []string{"/etc"}})

	if _, err := e.Restore(ctx, RestoreJob{SnapshotID: report.SnapshotID}); err == nil {
		t.Error("expected error restoring from a failed snapshot")
	}
}
