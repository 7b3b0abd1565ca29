package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/snapshot"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots on the target",
	Long: `List all snapshots on the target in chronological order, oldest first.

Each snapshot is shown with its status: complete snapshots are usable
baselines and restore sources, failed ones are kept for inspection until
removed, and an in_progress snapshot belongs to a currently running (or
interrupted) backup.`,
	Example: `  # List all snapshots
  rsnap list

  # Output as JSON
  rsnap list --json

  See Also:
    rsnap info   - Show details of one snapshot
    rsnap remove - Remove snapshots`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// snapshotOutput represents a single snapshot in JSON output.
type snapshotOutput struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	FailedPaths []string   `json:"failed_paths,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	return runListWithWriter(cmd, os.Stdout)
}

func runListWithWriter(cmd *cobra.Command, w io.Writer) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	snapshots, err := eng.List(cmd.Context())
	if err != nil {
		return asExitError(err)
	}

	if listJSON {
		return outputListJSON(w, snapshots)
	}
	return outputListTabular(w, snapshots)
}

func outputListJSON(w io.Writer, snapshots []snapshot.Snapshot) error {
	output := make([]snapshotOutput, 0, len(snapshots))
	for _, s := range snapshots {
		entry := snapshotOutput{
			ID:          s.ID,
			Status:      string(s.Status),
			CreatedAt:   s.CreatedAt,
			FailedPaths: s.FailedPaths,
		}
		if !s.FinishedAt.IsZero() {
			finished := s.FinishedAt
			entry.FinishedAt = &finished
		}
		output = append(output, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputListTabular(w io.Writer, snapshots []snapshot.Snapshot) error {
	if len(snapshots) == 0 {
		fmt.Fprintln(w, "No snapshots on the target yet. Run: rsnap backup")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%sID\tSTATUS\tCREATED\tFINISHED%s\n", colorBold, colorReset)
	for _, s := range snapshots {
		fmt.Fprintf(tw, "%s\t%s%s%s\t%s\t%s\n",
			s.ID,
			statusColor(s.Status), s.Status, colorReset,
			formatTime(s.CreatedAt),
			formatTime(s.FinishedAt))
	}
	return tw.Flush()
}
