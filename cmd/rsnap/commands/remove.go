package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/engine"
	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/snapshot"
)

var (
	// removeAllButKeep holds the value of the remove --all-but-keep flag.
	removeAllButKeep int

	// removeOlderThan holds the value of the remove --older-than flag.
	removeOlderThan string

	// removeFailed holds the value of the remove --failed flag.
	removeFailed bool

	// removeYes holds the value of the remove --yes flag.
	removeYes bool
)

func init() {
	removeCmd.Flags().IntVar(&removeAllButKeep, "all-but-keep", 0,
		"remove all complete snapshots except the newest N")
	removeCmd.Flags().StringVar(&removeOlderThan, "older-than", "",
		"remove complete snapshots older than a duration (e.g. 30d, 12w)")
	removeCmd.Flags().BoolVar(&removeFailed, "failed", false,
		"remove all failed snapshots")
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false,
		"skip the confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}

var removeCmd = &cobra.Command{
	Use:   "remove [snapshot...]",
	Short: "Remove snapshots from the target",
	Long: `Remove snapshots by name or by selection flag.

The newest complete snapshot is protected from bulk selections
(--all-but-keep, --older-than) because it is the hard-link baseline for
the next backup; name it explicitly if it really has to go. Failed
snapshots hold no retention value and can be cleared with --failed.`,
	Example: `  # Remove one snapshot by name
  rsnap remove 20260830T020000

  # Keep only the 10 newest complete snapshots
  rsnap remove --all-but-keep 10

  # Remove complete snapshots older than 12 weeks
  rsnap remove --older-than 12w

  # Clear failed snapshots
  rsnap remove --failed

  See Also:
    rsnap list  - List snapshots on the target
    rsnap prune - Apply the retention policy instead`,
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	return runRemoveWithStreams(cmd, os.Stdin, os.Stdout, args)
}

func runRemoveWithStreams(cmd *cobra.Command, in io.Reader, out io.Writer, args []string) error {
	selections := 0
	if removeAllButKeep > 0 {
		selections++
	}
	if removeOlderThan != "" {
		selections++
	}
	if removeFailed {
		selections++
	}
	if selections > 1 || (selections == 1 && len(args) > 0) {
		return errors.NewUserError(nil, "use snapshot names, --all-but-keep, --older-than or --failed, not a combination")
	}
	if selections == 0 && len(args) == 0 {
		return errors.NewUserError(nil, "nothing selected; pass snapshot names or a selection flag")
	}

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	ids := args
	if selections == 1 {
		ids, err = selectRemovals(cmd, eng)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "Nothing to remove.")
			return nil
		}
	}

	if !removeYes {
		prompt := fmt.Sprintf("Remove %d snapshot(s)? This cannot be undone", len(ids))
		if !confirm(in, out, prompt) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	removed, failed, err := eng.Remove(cmd.Context(), ids)
	if err != nil {
		return asExitError(err)
	}

	for _, id := range removed {
		fmt.Fprintf(out, "%s✓ removed %s%s\n", colorGreen, id, colorReset)
	}
	for _, id := range failed {
		fmt.Fprintf(out, "%s✗ could not remove %s%s\n", colorYellow, id, colorReset)
	}
	if len(failed) > 0 {
		return errors.NewSystemError(errors.Newf("%d snapshot(s) could not be removed", len(failed)), "")
	}
	return nil
}

// selectRemovals resolves the bulk selection flags into snapshot IDs.
// The newest complete snapshot survives every bulk selection.
func selectRemovals(cmd *cobra.Command, eng *engine.Engine) ([]string, error) {
	snapshots, err := eng.List(cmd.Context())
	if err != nil {
		return nil, asExitError(err)
	}

	if removeFailed {
		var ids []string
		for _, s := range snapshots {
			if s.Status == snapshot.StatusFailed {
				ids = append(ids, s.ID)
			}
		}
		return ids, nil
	}

	var complete []snapshot.Snapshot
	for _, s := range snapshots {
		if s.Status == snapshot.StatusComplete {
			complete = append(complete, s)
		}
	}
	if len(complete) == 0 {
		return nil, nil
	}
	// The baseline for the next run is never part of a bulk selection.
	candidates := complete[:len(complete)-1]

	if removeAllButKeep > 0 {
		if len(complete) <= removeAllButKeep {
			return nil, nil
		}
		cut := len(complete) - removeAllButKeep
		ids := make([]string, 0, cut)
		for _, s := range complete[:cut] {
			ids = append(ids, s.ID)
		}
		return ids, nil
	}

	age, err := parseDuration(removeOlderThan)
	if err != nil {
		return nil, errors.NewUserError(err, "durations look like 60s, 5m, 24h, 30d or 12w")
	}
	cutoff := timeNow().Add(-age)

	var ids []string
	for _, s := range candidates {
		if s.CreatedAt.Before(cutoff) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}
