// Package crier coordinates all terminal and log file output for a
// command line application.
//
// A single Emitter owns the terminal and the run's log file. Application
// code calls Init once, then emits records through the public operations
// (Message, Progress, ProgressBar, Verbose, Debug, Trace, OpenStream,
// Error). Each record is classified against the current verbosity mode
// to decide whether it reaches the screen, whether it may be overwritten
// by later output, and whether it carries a timestamp; every record is
// appended to the log file regardless of what the screen shows (with the
// exceptions noted in the classification table).
package crier

import (
	"fmt"
	"strings"
)

// Mode is the user-selectable verbosity level of the Emitter.
// Higher modes show a superset of what lower modes show on screen.
type Mode int

const (
	// Quiet shows nothing on screen except errors.
	Quiet Mode = iota
	// Brief is the default: final messages and transient progress.
	Brief
	// Verbose additionally shows verbose records and captured logs,
	// and makes progress lines permanent.
	Verbose
	// Debug additionally shows debug records, with timestamps.
	Debug
	// Trace shows everything, including subprocess output.
	Trace
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case Quiet:
		return "quiet"
	case Brief:
		return "brief"
	case Verbose:
		return "verbose"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name to a Mode. Names are matched
// case-insensitively. Returns an error for unknown names.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "quiet":
		return Quiet, nil
	case "brief":
		return Brief, nil
	case "verbose":
		return Verbose, nil
	case "debug":
		return Debug, nil
	case "trace":
		return Trace, nil
	default:
		return Brief, fmt.Errorf("invalid verbosity %q (expected quiet, brief, verbose, debug or trace)", name)
	}
}

// valid reports whether m is one of the defined modes.
func (m Mode) valid() bool {
	return m >= Quiet && m <= Trace
}
