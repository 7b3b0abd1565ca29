package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Exit codes for the rsnap CLI.
const (
	// ExitSuccess indicates the command completed successfully. A backup run
	// that finalized its snapshot as complete exits with this code even when
	// individual files failed to transfer.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (invalid input, configuration, etc.).
	ExitUser = 1

	// ExitSystem indicates a system-related error (I/O, transfer, lock contention, etc.).
	ExitSystem = 2
)

// Sentinel errors for common failure conditions.
var (
	// ErrTargetUnreachable indicates the backup target could not be listed
	// or written. A run that hits this is failed end-to-end.
	ErrTargetUnreachable = errors.New("target unreachable")

	// ErrRunInProgress indicates another backup run holds the target lock.
	ErrRunInProgress = errors.New("another run is in progress")

	// ErrSnapshotNotFound indicates the requested snapshot does not exist on the target.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists indicates a snapshot directory already exists for the
	// identifier being allocated.
	ErrSnapshotExists = errors.New("snapshot already exists")

	// ErrDeleteFailed indicates a snapshot could not be fully removed.
	// Deletion failures never fail the surrounding run; the removal is
	// retried on a later invocation.
	ErrDeleteFailed = errors.New("snapshot delete failed")

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Re-exports so most callers only need this package.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// ExitError wraps an error with an exit code and optional suggestion for the CLI.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
// If err is nil, the returned ExitError will have a nil Err field.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{
		Err:  err,
		Code: code,
	}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitSystem,
		Suggestion: suggestion,
	}
}

// NewConfigError creates an ExitError with ExitUser code and a standard suggestion.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: "Run: rsnap doctor",
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}
