// Package errors provides error handling conventions for the rsnap CLI.
//
// This package defines sentinel errors for common failure conditions,
// an ExitError type for CLI exit code handling, and exit code constants
// following standard Unix conventions. It also re-exports the wrapping
// helpers from github.com/cockroachdb/errors so most code only needs a
// single errors import.
//
// # Sentinel Errors
//
// Sentinel errors allow callers to check for specific error conditions
// using [Is]:
//
//	if errors.Is(err, rsnaperrors.ErrRunInProgress) {
//	    // another process is backing up to the same target
//	}
//
// # Exit Codes
//
//   - ExitSuccess (0): Command completed successfully. This includes backup
//     runs with per-file partial failures, as long as the snapshot was
//     finalized complete.
//   - ExitUser (1): User-related error (invalid input, configuration, etc.)
//   - ExitSystem (2): System-related error (I/O, fatal transfer error,
//     lock contention, etc.)
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. The CLI entry point unwraps it with [As] to decide the
// process exit status:
//
//	var exitErr *rsnaperrors.ExitError
//	if errors.As(err, &exitErr) {
//	    if exitErr.Suggestion != "" {
//	        fmt.Println("Suggestion:", exitErr.Suggestion)
//	    }
//	    os.Exit(exitErr.Code)
//	}
package errors
