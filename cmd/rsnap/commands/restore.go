package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/engine"
	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/snapshot"
	"github.com/thoreinstein/rsnap/internal/transfer"
)

var (
	// restoreTarget holds the value of the restore --target flag.
	restoreTarget string

	// restoreYes holds the value of the restore --yes flag.
	restoreYes bool

	// restoreDryRun holds the value of the restore --dry-run flag.
	restoreDryRun bool
)

func init() {
	restoreCmd.Flags().StringVarP(&restoreTarget, "target", "t", "/",
		"directory to restore into (default: original locations)")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false,
		"skip the confirmation prompt")
	restoreCmd.Flags().BoolVarP(&restoreDryRun, "dry-run", "n", false,
		"show what would be restored without writing")
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore [snapshot] [path...]",
	Short: "Restore files from a snapshot",
	Long: `Restore files from a complete snapshot back to this machine.

Without a snapshot argument, an interactive picker lists the complete
snapshots on the target. Without path arguments, the whole snapshot is
restored. Paths are the original absolute paths at backup time.

By default files are restored to their original locations, which
overwrites whatever is there now; use --target to restore into a
different directory instead.`,
	Example: `  # Pick a snapshot interactively, restore everything
  rsnap restore

  # Restore two paths from a specific snapshot
  rsnap restore 20260830T020000 /etc/hosts /home/jan/notes.txt

  # Restore into a scratch directory
  rsnap restore 20260830T020000 /etc --target /tmp/recovered

  See Also:
    rsnap list - List snapshots on the target`,
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	return runRestoreWithStreams(cmd, os.Stdin, os.Stdout, args)
}

func runRestoreWithStreams(cmd *cobra.Command, in io.Reader, out io.Writer, args []string) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	var id string
	var items []string
	if len(args) > 0 {
		id = args[0]
		items = args[1:]
	} else {
		id, err = pickSnapshot(cmd, eng)
		if err != nil {
			return err
		}
	}

	if !restoreYes && !restoreDryRun {
		what := "the whole snapshot"
		if len(items) > 0 {
			what = strings.Join(items, ", ")
		}
		prompt := fmt.Sprintf("Restore %s from %s into %s? Existing files will be overwritten", what, id, restoreTarget)
		if !confirm(in, out, prompt) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	result, err := eng.Restore(cmd.Context(), engine.RestoreJob{
		SnapshotID:  id,
		Items:       items,
		Destination: restoreTarget,
		DryRun:      restoreDryRun,
	})
	if err != nil {
		return asExitError(err)
	}

	switch result.Outcome {
	case transfer.OutcomeSuccess:
		if restoreDryRun {
			fmt.Fprintf(out, "%sDry run, nothing was written.%s\n", colorYellow, colorReset)
		} else {
			fmt.Fprintf(out, "%s✓ restored from %s%s\n", colorGreen, id, colorReset)
		}
	case transfer.OutcomePartial:
		fmt.Fprintf(out, "%s✓ restored from %s, %d path(s) skipped:%s\n",
			colorYellow, id, len(result.FailedPaths), colorReset)
		for _, p := range result.FailedPaths {
			fmt.Fprintf(out, "  %s\n", p)
		}
	default:
		return errors.NewSystemError(
			errors.Newf("restore failed: %s (exit code %d)", result.Message(), result.ExitCode), "")
	}
	return nil
}

// pickSnapshot lets the user choose a complete snapshot interactively.
func pickSnapshot(cmd *cobra.Command, eng *engine.Engine) (string, error) {
	snapshots, err := eng.List(cmd.Context())
	if err != nil {
		return "", asExitError(err)
	}

	var complete []snapshot.Snapshot
	for _, s := range snapshots {
		if s.Status == snapshot.StatusComplete {
			complete = append(complete, s)
		}
	}
	if len(complete) == 0 {
		return "", errors.NewUserError(errors.New("no complete snapshot to restore from"), "Run: rsnap backup")
	}

	// Newest first in the picker.
	idx, err := fuzzyfinder.Find(
		complete,
		func(i int) string {
			s := complete[len(complete)-1-i]
			return fmt.Sprintf("%s (%s)", s.ID, formatTime(s.CreatedAt))
		},
	)
	if err != nil {
		return "", errors.NewUserError(err, "Pass the snapshot ID directly: rsnap restore <snapshot>")
	}
	return complete[len(complete)-1-idx].ID, nil
}
