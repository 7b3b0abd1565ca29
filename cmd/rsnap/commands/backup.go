package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/engine"
)

// backupDryRun holds the value of the backup --dry-run flag.
var backupDryRun bool

func init() {
	backupCmd.Flags().BoolVarP(&backupDryRun, "dry-run", "n", false,
		"show what would be transferred without writing to the target")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a new snapshot",
	Long: `Create a new snapshot of the configured include paths on the target.

Files unchanged since the most recent complete snapshot are stored as
hard links against it and cost no transfer time or disk space. After a
successful run the retention policy is applied and redundant snapshots
are pruned.

A snapshot with individual unreadable files is still recorded as
complete; the skipped files are listed in the run report. Only a failed
transfer as a whole marks the snapshot as failed.`,
	Example: `  # Run a backup
  rsnap backup

  # See what would be transferred
  rsnap backup --dry-run

  See Also:
    rsnap list  - List snapshots on the target
    rsnap prune - Apply retention without backing up`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, _ []string) error {
	return runBackupWithWriter(cmd, os.Stdout)
}

func runBackupWithWriter(cmd *cobra.Command, w io.Writer) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	report, err := eng.Backup(cmd.Context(), engine.Job{
		Sources:  cfg.Includes,
		Excludes: cfg.Excludes,
		DryRun:   backupDryRun,
	})
	if err != nil {
		return asExitError(err)
	}

	printBackupReport(w, report)
	return nil
}

func printBackupReport(w io.Writer, report *engine.Report) {
	if report.DryRun {
		fmt.Fprintf(w, "%sDry run, nothing was written.%s\n", colorYellow, colorReset)
		return
	}

	fmt.Fprintf(w, "%s✓ snapshot %s %s%s (took %s)\n",
		colorGreen, report.SnapshotID, report.Status, colorReset,
		report.Duration.Round(durationPrecision))

	if report.BaselineID != "" {
		fmt.Fprintf(w, "  linked against %s\n", report.BaselineID)
	} else {
		fmt.Fprintln(w, "  first snapshot, full copy")
	}

	for _, id := range report.Reconciled {
		fmt.Fprintf(w, "  %smarked abandoned snapshot %s as failed%s\n", colorYellow, id, colorReset)
	}

	if len(report.FailedPaths) > 0 {
		fmt.Fprintf(w, "  %s%d path(s) could not be transferred:%s\n",
			colorYellow, len(report.FailedPaths), colorReset)
		for _, p := range report.FailedPaths {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}

	for _, id := range report.Pruned {
		fmt.Fprintf(w, "  %spruned %s%s\n", colorGray, id, colorReset)
	}
	for _, id := range report.PruneFailed {
		fmt.Fprintf(w, "  %scould not prune %s, will retry next run%s\n", colorYellow, id, colorReset)
	}
}
