// Package engine orchestrates backup runs.
//
// A run is a single sequential pipeline executed under the target's
// advisory lock: reconcile abandoned snapshots, select the hard-link
// baseline, allocate a new snapshot, run the transfer, finalize the
// snapshot as complete or failed, then apply retention pruning against a
// listing taken after the finalize. At most one run is active per target;
// a concurrent invocation fails immediately instead of queuing.
//
// The engine also carries the non-backup operations that need the same
// wiring: restore, standalone pruning and snapshot removal.
package engine
