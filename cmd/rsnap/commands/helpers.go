package commands

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/config"
	"github.com/thoreinstein/rsnap/internal/engine"
	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/logging"
	"github.com/thoreinstein/rsnap/internal/paths"
	"github.com/thoreinstein/rsnap/internal/retention"
	"github.com/thoreinstein/rsnap/internal/snapshot"
	"github.com/thoreinstein/rsnap/internal/transfer"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// statusColor picks a display color for a snapshot status.
func statusColor(s snapshot.Status) string {
	switch s {
	case snapshot.StatusComplete:
		return colorGreen
	case snapshot.StatusFailed:
		return colorRed
	default:
		return colorYellow
	}
}

// targetIO returns the IO implementation matching the configured target.
func targetIO(c *config.Config) snapshot.IO {
	if !c.Target.IsRemote() {
		return snapshot.Local{}
	}
	return &snapshot.SSH{
		Host:           c.Target.Host,
		User:           c.Target.User,
		Port:           c.Target.Port,
		Binary:         c.Rsync.SSHBinary,
		ConfigFile:     paths.ExpandHome(c.Target.SSHConfigFile),
		KeyFile:        paths.ExpandHome(c.Target.SSHKeyFile),
		KnownHostsFile: paths.ExpandHome(c.Target.SSHKnownHosts),
	}
}

// buildEngine wires an engine from the loaded configuration.
func buildEngine(cmd *cobra.Command) (*engine.Engine, error) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return nil, errors.NewConfigError(errors.Newf("invalid configuration: %s", strings.Join(msgs, "; ")))
	}

	logger := logging.FromContext(cmd.Context())

	invoker := &transfer.Rsync{
		Binary:            orDefault(cfg.Rsync.Binary, transfer.DefaultRsyncBinary),
		SSHBinary:         orDefault(cfg.Rsync.SSHBinary, transfer.DefaultSSHBinary),
		SSHConfigFile:     paths.ExpandHome(cfg.Target.SSHConfigFile),
		SSHKeyFile:        paths.ExpandHome(cfg.Target.SSHKeyFile),
		SSHKnownHostsFile: paths.ExpandHome(cfg.Target.SSHKnownHosts),
		SSHPort:           cfg.Target.Port,
		ACLs:              cfg.Rsync.ACLs,
		XAttrs:            cfg.Rsync.XAttrs,
		PruneEmptyDirs:    cfg.Rsync.PruneEmptyDirs,
		Logger:            logger,
	}

	target := transfer.Path{
		Path: paths.ExpandHome(cfg.Target.Path),
		Host: cfg.Target.Host,
		User: cfg.Target.User,
	}

	policy := retention.NewPolicy([]retention.Rule(cfg.Retention))

	return engine.New(targetIO(cfg), target, invoker, policy, logger), nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// durationPrecision is how finely run durations are reported.
const durationPrecision = 100 * time.Millisecond

// timeNow is swapped out in tests.
var timeNow = time.Now

// asExitError maps engine errors onto CLI exit codes. Lock contention and
// unreachable or failing targets are system errors; bad input stays a
// user error.
func asExitError(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *errors.ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	switch {
	case errors.Is(err, errors.ErrRunInProgress):
		return errors.NewSystemError(err, "Wait for the active run to finish, or check for a stale lock with: rsnap doctor")
	case errors.Is(err, errors.ErrTargetUnreachable):
		return errors.NewSystemError(err, "Check connectivity and the target path, then run: rsnap doctor")
	case errors.Is(err, errors.ErrInvalidConfig):
		return errors.NewConfigError(err)
	case errors.Is(err, errors.ErrSnapshotNotFound):
		return errors.NewUserError(err, "Run: rsnap list")
	default:
		return errors.NewExitError(err, errors.ExitSystem)
	}
}

// confirm asks a yes/no question on the command's streams.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	reader := bufio.NewReader(in)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// parseDuration parses durations of the form "60s", "5m", "24h", "7d"
// or "2w". Unlike time.ParseDuration it supports days and weeks, which
// are the units that matter for backup retention.
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, errors.Newf("invalid duration %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num < 0 {
		return 0, errors.Newf("invalid duration %q", s)
	}

	switch s[len(s)-1] {
	case 's':
		return time.Duration(num) * time.Second, nil
	case 'm':
		return time.Duration(num) * time.Minute, nil
	case 'h':
		return time.Duration(num) * time.Hour, nil
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	}
	return 0, errors.Newf("invalid duration %q (expected s, m, h, d or w suffix)", s)
}

// formatTime renders a timestamp for human output.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
