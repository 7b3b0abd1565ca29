package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	rsnaperrors "github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/snapshot"
)

func TestAcquireLock(t *testing.T) {
	root := filepath.Join(t.TempDir(), "backups")
	ctx := context.Background()

	lock, err := AcquireLock(ctx, snapshot.Local{}, root)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}

	// A second acquisition fails fast.
	if _, err := AcquireLock(ctx, snapshot.Local{}, root); !rsnaperrors.Is(err, rsnaperrors.ErrRunInProgress) {
		t.Errorf("second acquisition error = %v, want ErrRunInProgress", err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	// Released locks can be re-acquired.
	again, err := AcquireLock(ctx, snapshot.Local{}, root)
	if err != nil {
		t.Fatalf("re-acquisition after release: %v", err)
	}
	if err := again.Release(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireLock_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "backups")
	ctx := context.Background()

	lock, err := AcquireLock(ctx, snapshot.Local{}, root)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			t.Fatal(err)
		}
	}()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("target root not created: %v", err)
	}
}

func TestAcquireLock_RecordsOwner(t *testing.T) {
	root := filepath.Join(t.TempDir(), "backups")
	ctx := context.Background()

	lock, err := AcquireLock(ctx, snapshot.Local{}, root)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			t.Fatal(err)
		}
	}()

	info, err := os.ReadFile(filepath.Join(lock.Path(), "owner"))
	if err != nil {
		t.Fatalf("owner file: %v", err)
	}
	if len(info) == 0 {
		t.Error("owner file is empty")
	}
}
