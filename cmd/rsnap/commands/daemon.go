package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/engine"
	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/logging"
)

func init() {
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run backups on a schedule",
	Long: `Run in the foreground and trigger a backup on the configured cron
schedule. A run that would overlap a still-active one is skipped, not
queued.

The schedule uses standard five-field cron syntax and comes from the
"schedule" key in the config file.`,
	Example: `  # Back up every night at 02:00 (config: schedule: "0 2 * * *")
  rsnap daemon

  See Also:
    rsnap backup - Run a single backup now`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	return runDaemonWithWriter(cmd, os.Stdout)
}

func runDaemonWithWriter(cmd *cobra.Command, w io.Writer) error {
	if cfg.Schedule == "" {
		return errors.NewConfigError(errors.New("no schedule configured"))
	}

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	logger := logging.FromContext(cmd.Context())

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Schedule, func() {
		logger.Info("scheduled backup starting")
		report, err := eng.Backup(cmd.Context(), engine.Job{
			Sources:  cfg.Includes,
			Excludes: cfg.Excludes,
		})
		switch {
		case errors.Is(err, errors.ErrRunInProgress):
			logger.Warn("previous run still active, skipping this trigger")
		case err != nil:
			logger.Error("scheduled backup failed", "error", err)
		default:
			logger.Info("scheduled backup finished",
				"snapshot", report.SnapshotID,
				"status", string(report.Status),
				"pruned", len(report.Pruned),
				"duration", report.Duration.Round(durationPrecision).String())
		}
	})
	if err != nil {
		return errors.NewConfigError(errors.Wrapf(err, "schedule %q", cfg.Schedule))
	}

	fmt.Fprintf(w, "Scheduling backups at %q, press Ctrl+C to stop.\n", cfg.Schedule)
	scheduler.Start()
	defer scheduler.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-cmd.Context().Done():
	}

	fmt.Fprintln(w, "Shutting down.")
	return nil
}
