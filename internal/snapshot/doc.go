// Package snapshot manages the on-target representation of backups.
//
// A target root holds one directory per snapshot, named by a timestamp
// label (format 20060102T150405, with a numeric suffix on same-second
// collisions). Each snapshot directory contains:
//
//	<target root>/
//	└── 20260830T020000/
//	    ├── manifest.json    status sidecar: in_progress | complete | failed
//	    └── data/            the mirrored source tree
//
// The manifest is written atomically, so a listing can always classify a
// snapshot without any side-channel state. A snapshot directory without a
// readable manifest is treated as in_progress: the run that created it died
// before recording anything, and the next run reconciles it to failed.
//
// # Repository
//
// [Repository] is the ground truth for which backups exist. It lists,
// allocates, finalizes and deletes snapshots through a narrow [IO]
// interface with a [Local] implementation for directly reachable targets
// and an [SSH] implementation that shells out to ssh for remote ones.
//
// # Baseline selection
//
// [Baseline] picks the most recent complete snapshot as the hard-link
// reference for the next run. in_progress and failed snapshots are never
// eligible: their trees may be missing files, and linking against them
// would silently drop those files from the new snapshot too.
package snapshot
