package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/snapshot"
)

// LockDirName is the advisory lock directory under the target root.
// A directory is used instead of a file because mkdir is atomic both
// locally and over the ssh transport.
const LockDirName = ".lock"

// Lock is an acquired per-target advisory lock.
type Lock struct {
	io   snapshot.IO
	path string
}

// AcquireLock takes the advisory lock for a target root, creating the
// root if this is the first run against it. A held lock means another
// run is active and yields ErrRunInProgress immediately; callers are
// expected to fail fast, not queue.
func AcquireLock(ctx context.Context, io snapshot.IO, root string) (*Lock, error) {
	if err := io.MkdirAll(ctx, root); err != nil {
		return nil, errors.Wrapf(errors.ErrTargetUnreachable, "creating target root %s: %v", root, err)
	}

	lockPath := path.Join(root, LockDirName)
	if err := io.Mkdir(ctx, lockPath); err != nil {
		held, existsErr := io.Exists(ctx, lockPath)
		if existsErr == nil && held {
			return nil, errors.Wrapf(errors.ErrRunInProgress, "lock held at %s", lockPath)
		}
		return nil, errors.Wrapf(errors.ErrTargetUnreachable, "acquiring lock at %s: %v", lockPath, err)
	}

	lock := &Lock{io: io, path: lockPath}

	// Owner info is diagnostic only; failing to record it does not
	// invalidate the lock.
	hostname, _ := os.Hostname()
	info := fmt.Sprintf("host=%s pid=%d acquired=%s\n",
		hostname, os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	_ = io.WriteFile(ctx, path.Join(lockPath, "owner"), []byte(info))

	return lock, nil
}

// Release drops the lock. Safe to call once per acquired lock.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.io.RemoveAll(ctx, l.path); err != nil {
		return errors.Wrapf(err, "releasing lock at %s", l.path)
	}
	return nil
}

// Path returns the lock directory's location, for diagnostics.
func (l *Lock) Path() string {
	return l.path
}
