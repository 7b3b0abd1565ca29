package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/thoreinstein/rsnap/internal/engine"
	"github.com/thoreinstein/rsnap/internal/retention"
	"github.com/thoreinstein/rsnap/internal/snapshot"
	"github.com/thoreinstein/rsnap/internal/transfer"
)

// seedEngine builds an engine over a temp target with three complete and
// one failed snapshot.
func seedEngine(t *testing.T) *engine.Engine {
	t.Helper()
	root := filepath.Join(t.TempDir(), "backups")
	repo := snapshot.NewRepository(snapshot.Local{}, root)
	ctx := context.Background()

	for d := 27; d <= 29; d++ {
		snap, err := repo.Allocate(ctx, time.Date(2026, 8, d, 2, 0, 0, 0, time.Local))
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Finalize(ctx, &snap, snapshot.StatusComplete, nil); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := repo.Allocate(ctx, time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Finalize(ctx, &snap, snapshot.StatusFailed, nil); err != nil {
		t.Fatal(err)
	}

	return engine.New(snapshot.Local{}, transfer.Path{Path: root}, &transfer.Rsync{}, retention.NewPolicy(nil), nil)
}

func resetRemoveFlags(t *testing.T) {
	t.Helper()
	origKeep, origOlder, origFailed := removeAllButKeep, removeOlderThan, removeFailed
	t.Cleanup(func() {
		removeAllButKeep, removeOlderThan, removeFailed = origKeep, origOlder, origFailed
	})
	removeAllButKeep, removeOlderThan, removeFailed = 0, "", false
}

func TestSelectRemovals_Failed(t *testing.T) {
	resetRemoveFlags(t)
	removeFailed = true

	ids, err := selectRemovals(newTestCmd(), seedEngine(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "20260830T020000" {
		t.Errorf("ids = %v", ids)
	}
}

func TestSelectRemovals_AllButKeep(t *testing.T) {
	resetRemoveFlags(t)
	removeAllButKeep = 1

	ids, err := selectRemovals(newTestCmd(), seedEngine(t))
	if err != nil {
		t.Fatal(err)
	}
	// Three complete snapshots, keep the newest one.
	want := []string{"20260827T020000", "20260828T020000"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestSelectRemovals_AllButKeep_Enough(t *testing.T) {
	resetRemoveFlags(t)
	removeAllButKeep = 5

	ids, err := selectRemovals(newTestCmd(), seedEngine(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
}

func TestSelectRemovals_OlderThan(t *testing.T) {
	resetRemoveFlags(t)
	removeOlderThan = "3d"

	origNow := timeNow
	t.Cleanup(func() { timeNow = origNow })
	timeNow = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	}

	ids, err := selectRemovals(newTestCmd(), seedEngine(t))
	if err != nil {
		t.Fatal(err)
	}
	// Only the snapshot from the 27th predates the cutoff of Aug 27 12:00.
	if len(ids) != 1 || ids[0] != "20260827T020000" {
		t.Errorf("ids = %v", ids)
	}
}

func TestSelectRemovals_BadDuration(t *testing.T) {
	resetRemoveFlags(t)
	removeOlderThan = "soon"

	if _, err := selectRemovals(newTestCmd(), seedEngine(t)); err == nil {
		t.Error("expected error for invalid duration")
	}
}
