package crier

import (
	"errors"
	"fmt"
)

// Error is a declared application error, carrying everything needed to
// present a failure to the user: the message itself, optional details
// for the log and debug modes, a suggested resolution, a documentation
// link, and the process return code to exit with.
//
// An Error never crashes the Emitter; it is rendered per the
// classification rules and the run is then finished.
type Error struct {
	// Message is the user-facing description of the failure.
	Message string

	// Details holds extra information captured for postmortem analysis;
	// shown on screen only at Debug or Trace, always logged.
	Details string

	// Resolution suggests what the user can do to fix the problem.
	Resolution string

	// DocsURL links to documentation about this failure.
	DocsURL string

	// Reportable indicates the error should be reported as a bug to the
	// application's authors.
	Reportable bool

	// RetCode is the process return code declared for this error.
	// Zero means "use the default" (1).
	RetCode int

	// Err is the underlying cause, if any.
	Err error
}

// NewError creates an Error with the given user-facing message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// returnCode resolves the process exit code for this error.
func (e *Error) returnCode() int {
	if e.RetCode != 0 {
		return e.RetCode
	}
	return 1
}

// UsageError reports that the Emitter was driven out of lifecycle
// order: emitting before Init, calling Init twice, or emitting after
// the run already ended. These are programming errors in the host
// application, so the Emitter panics with a *UsageError instead of
// returning it.
type UsageError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("emitter usage error in %s: %s", e.Op, e.Reason)
}

// IsUsageError reports whether err is a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
