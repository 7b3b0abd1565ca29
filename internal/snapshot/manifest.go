package snapshot

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/thoreinstein/rsnap/internal/errors"
)

// ManifestVersion is the manifest format version for forward compatibility.
const ManifestVersion = 1

// manifestName is the status sidecar stored in each snapshot directory.
const manifestName = "manifest.json"

// manifest is the on-target status record for a snapshot. It is written
// atomically so listing can always classify a snapshot without side-channel
// state; a snapshot directory without a readable manifest is treated as
// in_progress (the writer died before recording anything).
type manifest struct {
	Version     int        `json:"version"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	FailedPaths []string   `json:"failed_paths,omitempty"`
}

func manifestPath(snapshotDir string) string {
	return path.Join(snapshotDir, manifestName)
}

// readManifest loads and parses the manifest of the snapshot at dir.
func readManifest(ctx context.Context, io IO, dir string) (*manifest, error) {
	data, err := io.ReadFile(ctx, manifestPath(dir))
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}
	return &m, nil
}

// writeManifest records the manifest for the snapshot at dir.
func writeManifest(ctx context.Context, io IO, dir string, m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling manifest")
	}
	data = append(data, '\n')

	return io.WriteFile(ctx, manifestPath(dir), data)
}
