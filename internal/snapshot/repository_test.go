package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	rsnaperrors "github.com/thoreinstein/rsnap/internal/errors"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(Local{}, filepath.Join(t.TempDir(), "backups"))
}

func TestRepository_List_MissingRoot(t *testing.T) {
	repo := newTestRepo(t)

	snapshots, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() on missing root: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("expected empty listing, got %d snapshots", len(snapshots))
	}
}

func TestRepository_AllocateFinalizeRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local)
	snap, err := repo.Allocate(ctx, now)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if snap.ID != "20260830T020000" {
		t.Errorf("ID = %q", snap.ID)
	}
	if snap.Status != StatusInProgress {
		t.Errorf("Status = %q, want %q", snap.Status, StatusInProgress)
	}

	// Data directory exists eagerly so the transfer can write into it.
	if _, err := os.Stat(snap.DataPath()); err != nil {
		t.Errorf("data dir missing: %v", err)
	}

	if err := repo.Finalize(ctx, &snap, StatusComplete, nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if snap.FinishedAt.IsZero() {
		t.Error("FinishedAt not set by Finalize")
	}

	snapshots, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snapshots))
	}
	if snapshots[0].ID != snap.ID {
		t.Errorf("listed ID = %q, want %q", snapshots[0].ID, snap.ID)
	}
	if snapshots[0].Status != StatusComplete {
		t.Errorf("listed status = %q, want %q", snapshots[0].Status, StatusComplete)
	}
	if snapshots[0].FinishedAt.IsZero() {
		t.Error("listed FinishedAt is zero after finalize")
	}
}

func TestRepository_AllocateCollision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local)

	first, err := repo.Allocate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.Allocate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	third, err := repo.Allocate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == second.ID || second.ID == third.ID {
		t.Fatalf("collision produced duplicate IDs: %q %q %q", first.ID, second.ID, third.ID)
	}

	// Strictly increasing in allocation order.
	if !(first.ID < second.ID && second.ID < third.ID) {
		t.Errorf("IDs not strictly increasing: %q %q %q", first.ID, second.ID, third.ID)
	}
}

func TestRepository_AllocateIDsStrictlyIncreasing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 8, 28, 2, 0, 0, 0, time.Local),
		time.Date(2026, 8, 29, 2, 0, 0, 0, time.Local),
		time.Date(2026, 8, 29, 2, 0, 0, 0, time.Local), // same second
		time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local),
	}

	var prev string
	for _, now := range times {
		snap, err := repo.Allocate(ctx, now)
		if err != nil {
			t.Fatal(err)
		}
		if snap.ID <= prev {
			t.Errorf("ID %q not greater than previous %q", snap.ID, prev)
		}
		prev = snap.ID
	}
}

func TestRepository_FinalizeFailed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snap, err := repo.Allocate(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Finalize(ctx, &snap, StatusFailed, nil); err != nil {
		t.Fatal(err)
	}

	snapshots, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snapshots[0].Status != StatusFailed {
		t.Errorf("status = %q, want failed", snapshots[0].Status)
	}
	if got := Baseline(snapshots); got != nil {
		t.Errorf("failed snapshot selected as baseline: %v", got.ID)
	}
}

func TestRepository_FinalizeRecordsFailedPaths(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snap, err := repo.Allocate(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	failed := []string{"/etc/shadow", "/root/.ssh/id_ed25519"}
	if err := repo.Finalize(ctx, &snap, StatusComplete, failed); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.FailedPaths) != 2 {
		t.Fatalf("FailedPaths = %v", got.FailedPaths)
	}
	if got.Status != StatusComplete {
		t.Errorf("partial failure must still finalize complete, got %q", got.Status)
	}
}

func TestRepository_FinalizeRejectsInProgress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snap, err := repo.Allocate(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Finalize(ctx, &snap, StatusInProgress, nil); err == nil {
		t.Error("expected error finalizing to in_progress")
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snap, err := repo.Allocate(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Finalize(ctx, &snap, StatusComplete, nil); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, snap); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	snapshots, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Errorf("snapshot survived deletion: %v", snapshots)
	}
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "20260830T020000")
	if !rsnaperrors.Is(err, rsnaperrors.ErrSnapshotNotFound) {
		t.Errorf("error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestRepository_Reconcile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// A finished snapshot and an abandoned one.
	done, err := repo.Allocate(ctx, time.Date(2026, 8, 28, 2, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Finalize(ctx, &done, StatusComplete, nil); err != nil {
		t.Fatal(err)
	}
	abandoned, err := repo.Allocate(ctx, time.Date(2026, 8, 29, 2, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}

	reconciled, err := repo.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(reconciled) != 1 || reconciled[0].ID != abandoned.ID {
		t.Fatalf("reconciled = %v, want [%s]", reconciled, abandoned.ID)
	}

	snapshots, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range snapshots {
		if s.ID == abandoned.ID && s.Status != StatusFailed {
			t.Errorf("abandoned snapshot status = %q, want failed", s.Status)
		}
	}

	// The reconciled snapshot must not become a baseline.
	if b := Baseline(snapshots); b == nil || b.ID != done.ID {
		t.Errorf("baseline = %v, want %s", b, done.ID)
	}
}

func TestRepository_ManifestlessDirIsInProgress(t *testing.T) {
	root := filepath.Join(t.TempDir(), "backups")
	repo := NewRepository(Local{}, root)
	ctx := context.Background()

	// Simulate a run that died before writing any manifest.
	dir := filepath.Join(root, "20260830T020000")
	if err := os.MkdirAll(filepath.Join(dir, DataDirName), 0755); err != nil {
		t.Fatal(err)
	}

	snapshots, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("got %d snapshots", len(snapshots))
	}
	if snapshots[0].Status != StatusInProgress {
		t.Errorf("status = %q, want in_progress", snapshots[0].Status)
	}
}

func TestRepository_List_IgnoresForeignEntries(t *testing.T) {
	root := filepath.Join(t.TempDir(), "backups")
	repo := NewRepository(Local{}, root)

	if err := os.MkdirAll(filepath.Join(root, ".lock"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	snapshots, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Errorf("foreign entries listed as snapshots: %v", snapshots)
	}
}
