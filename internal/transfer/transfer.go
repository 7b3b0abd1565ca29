package transfer

import (
	"context"
	"fmt"
)

// Path names a local or remote transfer endpoint.
type Path struct {
	Path string
	Host string
	User string
}

// IsLocal reports whether the path refers to the local machine.
func (p Path) IsLocal() bool {
	return p.Host == ""
}

// Resolved renders the path in rsync's endpoint notation:
// the bare path for local endpoints, [user@]host:path for remote ones.
func (p Path) Resolved() string {
	if p.IsLocal() {
		return p.Path
	}
	if p.User != "" {
		return fmt.Sprintf("%s@%s:%s", p.User, p.Host, p.Path)
	}
	return fmt.Sprintf("%s:%s", p.Host, p.Path)
}

// Outcome classifies a finished transfer.
type Outcome int

const (
	// OutcomeSuccess means every file was transferred.
	OutcomeSuccess Outcome = iota
	// OutcomePartial means the transfer finished but some files could not
	// be read or vanished mid-run. The snapshot is still usable.
	OutcomePartial
	// OutcomeFatal means the transfer as a whole failed and the snapshot
	// must not be trusted.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// exitMessages maps rsync exit codes to human-readable descriptions.
// 255 is produced by ssh itself when the connection fails.
var exitMessages = map[int]string{
	0:   "success",
	1:   "syntax or usage error",
	2:   "protocol incompatibility",
	3:   "errors selecting input/output files, dirs",
	4:   "requested action not supported",
	5:   "error starting client-server protocol",
	6:   "daemon unable to append to log-file",
	10:  "error in socket I/O",
	11:  "error in file I/O",
	12:  "error in rsync protocol data stream",
	13:  "errors with program diagnostics",
	14:  "error in IPC code",
	20:  "received SIGUSR1 or SIGINT",
	21:  "some error returned by waitpid()",
	22:  "error allocating core memory buffers",
	23:  "partial transfer due to error",
	24:  "partial transfer due to vanished source files",
	25:  "the --max-delete limit stopped deletions",
	30:  "timeout in data send/receive",
	35:  "timeout waiting for daemon connection",
	255: "the underlying connection failed",
}

// ExitMessage describes an rsync exit code.
func ExitMessage(code int) string {
	if msg, ok := exitMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown exit code %d", code)
}

// Classify maps an rsync exit code to an outcome. Exit codes 23 and 24
// mean individual files were skipped but everything else arrived, so the
// run still produces a usable snapshot.
func Classify(code int) Outcome {
	switch code {
	case 0:
		return OutcomeSuccess
	case 23, 24:
		return OutcomePartial
	default:
		return OutcomeFatal
	}
}

// Request describes a single mirror transfer. Backups copy local sources
// into a possibly remote snapshot directory; restores copy snapshot
// contents back out, so either side may be remote.
type Request struct {
	// Sources are the paths to copy.
	Sources []Path
	// Excludes are rsync exclude patterns.
	Excludes []string
	// Target is the snapshot data directory to mirror into.
	Target Path
	// LinkDest, when set, is the previous snapshot's data directory on the
	// target. Unchanged files become hard links into it.
	LinkDest string
	// Delete mirrors deletions: files absent from the sources are removed
	// from the target. Set for backups, never for restores.
	Delete bool
	// DryRun asks rsync to report what it would do without writing.
	DryRun bool
}

// Result reports how a transfer ended.
type Result struct {
	ExitCode    int
	Outcome     Outcome
	FailedPaths []string
}

// Message describes the result's exit code.
func (r Result) Message() string {
	return ExitMessage(r.ExitCode)
}

// Invoker runs mirror transfers. Implementations return an error only
// when the transfer could not be started or was cancelled; an rsync
// process that ran and exited non-zero is reported through the Result.
type Invoker interface {
	Run(ctx context.Context, req Request) (Result, error)
}
