// Package retention implements generational (GFS-style) pruning of
// snapshots.
//
// A policy is an ordered list of rules, each keeping the newest snapshot
// of the most recent N calendar buckets of a period (daily, weekly,
// monthly, yearly). A snapshot surviving under any rule survives overall,
// and the globally newest complete snapshot is always kept because it is
// the hard-link baseline for the next backup run.
//
// Bucket boundaries are calendar-aligned: days, ISO weeks, months and
// years, evaluated in local time. The prune computation is pure and
// deterministic; actual deletions are applied by the snapshot repository,
// one snapshot at a time.
package retention
