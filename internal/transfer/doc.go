// Package transfer runs mirror transfers into snapshot data directories.
//
// The only production implementation shells out to the system rsync binary
// in archive mode with --delete, hard-linking unchanged files against the
// previous snapshot via --link-dest. Remote targets are reached through
// ssh as rsync's remote shell.
//
// rsync's exit code decides the snapshot's fate: 0 is a clean run, 23 and
// 24 are partial runs (some files unreadable or vanished) that still yield
// a usable snapshot, and everything else is fatal. Partial runs carry the
// affected paths, parsed from rsync's stderr, so they can be recorded in
// the snapshot manifest.
package transfer
