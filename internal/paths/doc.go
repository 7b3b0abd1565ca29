// Package paths centralizes filesystem path resolution for rsnap.
//
// All locations follow the XDG base directory specification via
// github.com/adrg/xdg: configuration lives under ~/.config/rsnap and
// run logs under ~/.cache/rsnap.
package paths
