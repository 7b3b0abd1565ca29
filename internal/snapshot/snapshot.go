package snapshot

import (
	"path"
	"strings"
	"time"

	"github.com/thoreinstein/rsnap/internal/errors"
)

// IDFormat is the timestamp layout used for snapshot identifiers.
// Second resolution; collisions within a second get a numeric suffix.
const IDFormat = "20060102T150405"

// PrettyFormat is the layout used when presenting snapshot times to users.
const PrettyFormat = "2006-01-02 15:04:05"

// DataDirName is the subdirectory of a snapshot holding the mirrored tree.
// The manifest lives next to it, so the payload can never collide with
// repository bookkeeping.
const DataDirName = "data"

// Status describes the lifecycle state of a snapshot.
type Status string

const (
	// StatusInProgress marks a snapshot whose transfer has not finished.
	// Never a baseline candidate; a pre-existing one is abandoned and gets
	// reconciled to failed at the start of the next run.
	StatusInProgress Status = "in_progress"

	// StatusComplete marks a snapshot whose transfer finished and whose
	// manifest was durably recorded. Only complete snapshots serve as
	// hard-link baselines.
	StatusComplete Status = "complete"

	// StatusFailed marks a snapshot whose transfer failed fatally. Kept on
	// disk for inspection until explicitly removed.
	StatusFailed Status = "failed"
)

// Snapshot is one backup run's representation on the target.
type Snapshot struct {
	// ID is the timestamp label, unique per target and strictly increasing
	// in creation order.
	ID string

	// Path is the snapshot's directory under the target root.
	Path string

	// Status is the lifecycle state recorded in the manifest.
	Status Status

	// CreatedAt is when the snapshot was allocated.
	CreatedAt time.Time

	// FinishedAt is when the snapshot left in_progress. Zero until then.
	FinishedAt time.Time

	// FailedPaths lists files that could not be transferred when the
	// snapshot was finalized complete after a partial transfer.
	FailedPaths []string
}

// DataPath returns the directory holding the snapshot's mirrored tree.
func (s Snapshot) DataPath() string {
	return path.Join(s.Path, DataDirName)
}

// ParseID extracts the creation time from a snapshot identifier,
// ignoring any collision suffix.
func ParseID(id string) (time.Time, error) {
	base := id
	if i := strings.IndexByte(base, '-'); i >= 0 {
		base = base[:i]
	}

	t, err := time.ParseInLocation(IDFormat, base, time.Local)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing snapshot id %q", id)
	}
	return t, nil
}

// IsID reports whether name looks like a snapshot identifier.
// Directory entries on the target that don't match are ignored by listing.
func IsID(name string) bool {
	_, err := ParseID(name)
	return err == nil
}

// Baseline returns the most recent complete snapshot, or nil when no
// complete snapshot exists (first-ever run). in_progress and failed
// snapshots are never eligible: an incomplete tree may be missing files,
// and hard-linking against it would silently drop them from the new
// snapshot as well.
func Baseline(snapshots []Snapshot) *Snapshot {
	for i := len(snapshots) - 1; i >= 0; i-- {
		if snapshots[i].Status == StatusComplete {
			return &snapshots[i]
		}
	}
	return nil
}
