package transfer

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/logging"
)

// Default binary locations, overridable through configuration.
const (
	DefaultRsyncBinary = "/usr/bin/rsync"
	DefaultSSHBinary   = "/usr/bin/ssh"
)

// Rsync invokes the system rsync binary in archive + mirror mode.
type Rsync struct {
	// Binary is the rsync executable. Defaults to DefaultRsyncBinary.
	Binary string
	// SSHBinary is the ssh executable used as the remote shell for
	// remote targets. Defaults to DefaultSSHBinary.
	SSHBinary string
	// SSHConfigFile, SSHKeyFile and SSHKnownHostsFile are forwarded to
	// ssh when set.
	SSHConfigFile     string
	SSHKeyFile        string
	SSHKnownHostsFile string
	// SSHPort is the remote port, 0 meaning ssh's default.
	SSHPort int

	// ACLs, XAttrs and PruneEmptyDirs toggle the matching rsync flags.
	ACLs           bool
	XAttrs         bool
	PruneEmptyDirs bool

	// Logger receives the rsync command line and per-run summaries.
	Logger *slog.Logger
}

var _ Invoker = (*Rsync)(nil)

func (r *Rsync) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return DefaultRsyncBinary
}

func (r *Rsync) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.NewDiscard()
}

// sshCommand builds the -e remote shell string for remote targets.
func (r *Rsync) sshCommand() string {
	bin := r.SSHBinary
	if bin == "" {
		bin = DefaultSSHBinary
	}
	parts := []string{bin, "-o", "BatchMode=yes", "-o", "NumberOfPasswordPrompts=0"}
	if r.SSHConfigFile != "" {
		parts = append(parts, "-F", r.SSHConfigFile)
	}
	if r.SSHKeyFile != "" {
		parts = append(parts, "-i", r.SSHKeyFile)
	}
	if r.SSHKnownHostsFile != "" {
		parts = append(parts, "-o", "UserKnownHostsFile="+r.SSHKnownHostsFile)
	}
	if r.SSHPort != 0 {
		parts = append(parts, "-p", strconv.Itoa(r.SSHPort))
	}
	return strings.Join(parts, " ")
}

// args assembles the full rsync argument list for a request.
func (r *Rsync) args(req Request) []string {
	args := []string{"--archive", "--relative", "--human-readable", "--stats"}

	if req.DryRun {
		args = append([]string{"--dry-run"}, args...)
	}
	if req.Delete {
		args = append(args, "--delete")
	}
	if r.ACLs {
		args = append(args, "--acls")
	}
	if r.XAttrs {
		args = append(args, "--xattrs")
	}
	if r.PruneEmptyDirs {
		args = append(args, "--prune-empty-dirs")
	}
	remote := !req.Target.IsLocal()
	for _, src := range req.Sources {
		if !src.IsLocal() {
			remote = true
		}
	}
	if remote {
		args = append(args, "-e", r.sshCommand())
	}
	if req.LinkDest != "" {
		args = append(args, "--link-dest", req.LinkDest)
	}
	for _, pattern := range req.Excludes {
		args = append(args, "--exclude", pattern)
	}
	for _, src := range req.Sources {
		args = append(args, src.Resolved())
	}
	args = append(args, req.Target.Resolved())
	return args
}

// Run executes rsync and classifies the outcome. A non-zero rsync exit is
// not an error: partial and fatal exits are reported through the Result so
// the caller can decide how to finalize the snapshot.
func (r *Rsync) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Sources) == 0 {
		return Result{}, errors.New("transfer request has no sources")
	}

	args := r.args(req)
	log := r.logger()
	log.Debug("invoking rsync", "binary", r.binary(), "args", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary(), args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return Result{}, errors.Wrap(ctx.Err(), "transfer cancelled")
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// rsync never started at all, e.g. a missing binary.
			return Result{}, errors.Wrap(err, "starting rsync")
		}
	}

	code := cmd.ProcessState.ExitCode()
	result := Result{
		ExitCode:    code,
		Outcome:     Classify(code),
		FailedPaths: parseFailedPaths(stderr.Bytes()),
	}

	switch result.Outcome {
	case OutcomeSuccess:
		log.Debug("transfer finished", "exit_code", code)
	case OutcomePartial:
		log.Warn("transfer finished with skipped files",
			"exit_code", code,
			"reason", result.Message(),
			"failed_paths", len(result.FailedPaths))
	default:
		log.Error("transfer failed",
			"exit_code", code,
			"reason", result.Message())
	}

	return result, nil
}

// failedPathPattern extracts the quoted path from rsync error lines such as
//
//	rsync: [sender] send_files failed to open "/etc/shadow": Permission denied (13)
//	file has vanished: "/var/tmp/build.lock"
var failedPathPattern = regexp.MustCompile(`"([^"]+)"`)

// parseFailedPaths collects the paths rsync reported as unreadable or
// vanished. Best effort: an unparsable line is skipped, not fatal.
func parseFailedPaths(stderr []byte) []string {
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(stderr))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "rsync: ") && !strings.HasPrefix(line, "file has vanished: ") {
			continue
		}
		m := failedPathPattern.FindStringSubmatch(line)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		paths = append(paths, m[1])
	}
	return paths
}
