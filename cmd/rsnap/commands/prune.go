package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// pruneDryRun holds the value of the prune --dry-run flag.
var pruneDryRun bool

func init() {
	pruneCmd.Flags().BoolVarP(&pruneDryRun, "dry-run", "n", false,
		"show which snapshots would be pruned without deleting")
	rootCmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy",
	Long: `Apply the configured generational retention policy without running a
backup first.

The newest complete snapshot always survives, regardless of the rules:
it is the hard-link baseline for the next backup run.`,
	Example: `  # See what would be pruned
  rsnap prune --dry-run

  # Prune for real
  rsnap prune

  See Also:
    rsnap remove - Remove snapshots by name or age`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, _ []string) error {
	return runPruneWithWriter(cmd, os.Stdout)
}

func runPruneWithWriter(cmd *cobra.Command, w io.Writer) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	report, err := eng.Prune(cmd.Context(), pruneDryRun)
	if err != nil {
		return asExitError(err)
	}

	if len(report.Pruned) == 0 && len(report.Failed) == 0 {
		fmt.Fprintln(w, "Nothing to prune.")
		return nil
	}

	for _, id := range report.Pruned {
		if report.DryRun {
			fmt.Fprintf(w, "%swould prune %s%s\n", colorYellow, id, colorReset)
		} else {
			fmt.Fprintf(w, "%s✓ pruned %s%s\n", colorGreen, id, colorReset)
		}
	}
	for _, id := range report.Failed {
		fmt.Fprintf(w, "%s✗ could not prune %s, will retry next run%s\n", colorYellow, id, colorReset)
	}
	return nil
}
