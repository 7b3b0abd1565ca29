package snapshot

import (
	"context"
	"os"

	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/pkg/fileutil"
)

// IO abstracts the file operations the repository needs on a target root.
// Two implementations exist: [Local] for directly reachable paths and
// [SSH] for remote targets reached through an ssh transport. The
// repository itself never cares which one it talks to.
//
// All paths are absolute paths on the target.
type IO interface {
	// ReadDir returns the entry names of a directory.
	ReadDir(ctx context.Context, dir string) ([]string, error)

	// ReadFile returns the contents of a small file.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile writes data to path, atomically where the transport
	// allows, creating or replacing the file.
	WriteFile(ctx context.Context, path string, data []byte) error

	// Mkdir creates a single directory and fails if it already exists.
	// This is the primitive the run lock is built on.
	Mkdir(ctx context.Context, dir string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(ctx context.Context, dir string) error

	// Remove removes a single file or empty directory.
	Remove(ctx context.Context, path string) error

	// RemoveAll removes a path and everything below it.
	RemoveAll(ctx context.Context, path string) error

	// Exists reports whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Local implements IO against the local filesystem.
type Local struct{}

var _ IO = Local{}

// ReadDir returns the entry names of a directory.
func (Local) ReadDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// ReadFile returns the contents of a small file.
func (Local) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return fileutil.ReadFileWithLimit(path)
}

// WriteFile writes data to path atomically (temp file + rename).
func (Local) WriteFile(ctx context.Context, path string, data []byte) error {
	return fileutil.AtomicWriteFile(path, data, 0644)
}

// Mkdir creates a single directory, failing if it already exists.
func (Local) Mkdir(ctx context.Context, dir string) error {
	return os.Mkdir(dir, 0755)
}

// MkdirAll creates a directory and any missing parents.
func (Local) MkdirAll(ctx context.Context, dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Remove removes a single file or empty directory.
func (Local) Remove(ctx context.Context, path string) error {
	return os.Remove(path)
}

// RemoveAll removes a path and everything below it.
func (Local) RemoveAll(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

// Exists reports whether a path exists.
func (Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %s", path)
}
