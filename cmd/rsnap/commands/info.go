package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var infoJSON bool

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info <snapshot>",
	Short: "Show details of one snapshot",
	Example: `  # Show a snapshot
  rsnap info 20260830T020000

  # Output as JSON
  rsnap info 20260830T020000 --json

  See Also:
    rsnap list - List snapshots on the target`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	return runInfoWithWriter(cmd, os.Stdout, args[0])
}

func runInfoWithWriter(cmd *cobra.Command, w io.Writer, id string) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	snap, err := eng.Get(cmd.Context(), id)
	if err != nil {
		return asExitError(err)
	}

	if infoJSON {
		entry := snapshotOutput{
			ID:          snap.ID,
			Status:      string(snap.Status),
			CreatedAt:   snap.CreatedAt,
			FailedPaths: snap.FailedPaths,
		}
		if !snap.FinishedAt.IsZero() {
			finished := snap.FinishedAt
			entry.FinishedAt = &finished
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}

	fmt.Fprintf(w, "%s%s%s\n", colorBold, snap.ID, colorReset)
	fmt.Fprintf(w, "  Status:   %s%s%s\n", statusColor(snap.Status), snap.Status, colorReset)
	fmt.Fprintf(w, "  Path:     %s\n", snap.Path)
	fmt.Fprintf(w, "  Created:  %s\n", formatTime(snap.CreatedAt))
	fmt.Fprintf(w, "  Finished: %s\n", formatTime(snap.FinishedAt))
	if len(snap.FailedPaths) > 0 {
		fmt.Fprintf(w, "  %sSkipped paths:%s\n", colorYellow, colorReset)
		for _, p := range snap.FailedPaths {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}
	return nil
}
