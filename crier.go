package crier

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"

	"github.com/harrison/crier/internal/logfile"
	"github.com/harrison/crier/internal/printer"
)

// lifecycle states of the Emitter
type state int

const (
	stateUninitialized state = iota
	stateActive
	statePaused
	stateStopped
)

// Emitter is the single coordinator for everything the application
// tells the user, on screen and in the run's log file.
//
// One Emitter is created per process (with New), initialized once with
// Init, and passed by reference to whatever needs to emit. All public
// operations are safe for concurrent use; a single internal lock
// serializes terminal and log writes so records from background
// producers never interleave with main-thread output.
//
// Driving the Emitter out of lifecycle order (emitting before Init or
// after the run ended, initializing twice) panics with a *UsageError.
// Failures while rendering (a full disk on the log append, a closed
// terminal) never propagate to the caller.
type Emitter struct {
	mu    sync.Mutex
	state state
	mode  Mode

	appName  string
	greeting string

	printer *printer.Printer
	sink    *logfile.Sink

	greetingShown bool
	prevSlog      *slog.Logger
}

// New returns an uninitialized Emitter. Call Init before emitting.
func New() *Emitter {
	return &Emitter{}
}

type options struct {
	logPath        string
	maxLogFiles    int
	stdout         io.Writer
	stderr         io.Writer
	disableSpinner bool
	forceTerminal  bool
	width          int
	noLogCapture   bool
}

// Option adjusts Init behavior.
type Option func(*options)

// WithLogPath makes the Emitter adopt an explicit log file instead of
// a managed one. Adopted logs are never rotated or deleted.
func WithLogPath(path string) Option {
	return func(o *options) { o.logPath = path }
}

// WithMaxLogFiles overrides the managed log retention count.
func WithMaxLogFiles(n int) Option {
	return func(o *options) { o.maxLogFiles = n }
}

// WithStreams replaces the process stdout/stderr, mainly for tests.
func WithStreams(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithoutSpinner disables the long-message spinner, so captured output
// in tests is deterministic.
func WithoutSpinner() Option {
	return func(o *options) { o.disableSpinner = true }
}

// WithForcedTerminal treats the streams as an interactive terminal of
// the given width, regardless of what they really are.
func WithForcedTerminal(width int) Option {
	return func(o *options) {
		o.forceTerminal = true
		o.width = width
	}
}

// WithoutLogCapture leaves the ambient slog default logger untouched.
func WithoutLogCapture() Option {
	return func(o *options) { o.noLogCapture = true }
}

// Init transitions the Emitter from uninitialized to active: it opens
// (or adopts) the log file, records the greeting, captures the ambient
// logging facility, and applies the initial verbosity mode. It must be
// called exactly once; a second call panics with a *UsageError.
func (e *Emitter) Init(mode Mode, appName, greeting string, opts ...Option) error {
	if !mode.valid() {
		panic(&UsageError{Op: "Init", Reason: fmt.Sprintf("invalid mode %d", int(mode))})
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateUninitialized {
		panic(&UsageError{Op: "Init", Reason: "already initialized"})
	}

	var (
		sink *logfile.Sink
		err  error
	)
	if o.logPath != "" {
		sink, err = logfile.Adopt(o.logPath)
	} else {
		sink, err = logfile.NewManaged(appName, o.maxLogFiles)
	}
	if err != nil {
		return fmt.Errorf("initialize emitter log: %w", err)
	}

	e.appName = appName
	e.greeting = greeting
	e.sink = sink
	e.printer = printer.New(printer.Options{
		Stdout:         o.stdout,
		Stderr:         o.stderr,
		Sink:           sink,
		DisableSpinner: o.disableSpinner,
		ForceTerminal:  o.forceTerminal,
		Width:          o.width,
	})

	// the greeting goes to the file before anything else; the screen
	// only sees it if the mode escalates visibility
	e.printer.Show(printer.Message{Target: printer.TargetNone, Text: greeting})

	if !o.noLogCapture {
		e.prevSlog = installBridge(e)
	}

	e.state = stateActive
	e.setModeLocked(mode)
	return nil
}

// SetMode changes the verbosity level at runtime.
func (e *Emitter) SetMode(mode Mode) {
	if !mode.valid() {
		panic(&UsageError{Op: "SetMode", Reason: fmt.Sprintf("invalid mode %d", int(mode))})
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.check("SetMode")
	e.setModeLocked(mode)
}

// setModeLocked applies the mode and, the first time visibility is
// escalated to Verbose or beyond, sends the greeting and the log
// location to the screen. The guard makes that a one-shot: exactly one
// greeting line ever reaches the screen, no matter how often SetMode
// is called.
func (e *Emitter) setModeLocked(mode Mode) {
	e.mode = mode
	if mode < Verbose || e.greetingShown {
		return
	}
	e.greetingShown = true
	for _, text := range []string{
		e.greeting,
		fmt.Sprintf("Logging execution to %q", e.sink.Path()),
	} {
		e.printer.Show(printer.Message{
			Target:      printer.TargetStderr,
			Text:        text,
			Timestamped: true,
			EndLine:     true,
			AvoidLog:    true,
		})
	}
}

// Mode returns the current verbosity level.
func (e *Emitter) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// LogPath returns the location of the current run's log file.
func (e *Emitter) LogPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.check("LogPath")
	return e.sink.Path()
}

// SetSecrets installs strings that are masked out of every line shown
// or logged from here on.
func (e *Emitter) SetSecrets(secrets []string) {
	e.mu.Lock()
	p := e.printer
	e.mu.Unlock()
	if p != nil {
		p.SetSecrets(secrets)
	}
}

// Message shows a final-output message to the user: the result of a
// command. It is never overwritten by later output.
func (e *Emitter) Message(text string) {
	e.mu.Lock()
	if err := e.stateErr("Message"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	e.mu.Unlock()
	e.emit(kindMessage, text)
}

// Progress shows one step of a multi-step operation. By default the
// line is transient and the next progress line overwrites it; with
// permanent set (or at Verbose and beyond) the line stays.
func (e *Emitter) Progress(text string, permanent bool) {
	e.mu.Lock()
	if err := e.stateErr("Progress"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	e.mu.Unlock()
	k := kindProgress
	if permanent {
		k = kindProgressPermanent
	}
	e.emit(k, text)
}

// Verbose records information for users that want to follow along.
func (e *Emitter) Verbose(text string) {
	e.mu.Lock()
	if err := e.stateErr("Verbose"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	e.mu.Unlock()
	e.emit(kindVerbose, text)
}

// Debug records internal information for postmortem analysis.
func (e *Emitter) Debug(text string) {
	e.mu.Lock()
	if err := e.stateErr("Debug"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	e.mu.Unlock()
	e.emit(kindDebug, text)
}

// Trace records developer-level noise; it is only persisted when the
// run is already in Trace mode.
func (e *Emitter) Trace(text string) {
	e.mu.Lock()
	if err := e.stateErr("Trace"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	e.mu.Unlock()
	e.emit(kindTrace, text)
}

// ProgressBar starts tracking a potentially long single step (a
// download, a provisioning run) against a declared total. With delta
// set, Advance amounts accumulate; otherwise each Advance reports the
// running total itself. Release the returned Progresser with Done.
func (e *Emitter) ProgressBar(text string, total float64, delta bool) *Progresser {
	e.mu.Lock()
	if err := e.stateErr("ProgressBar"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	b := classify(kindBarTick, e.mode)
	p := e.printer
	e.mu.Unlock()

	if total <= 0 {
		panic(&UsageError{Op: "ProgressBar", Reason: "the total progress must be greater than zero"})
	}

	// only this label line reaches the log; the bar's ticks do not
	target := printer.TargetNone
	if b.show {
		target = printer.TargetStderr
	}
	p.Show(printer.Message{
		Target:      target,
		Text:        text,
		Ephemeral:   b.transient,
		Timestamped: b.timestamped,
	})

	return &Progresser{
		emitter: e,
		text:    text,
		total:   total,
		delta:   delta,
	}
}

// OpenStream opens a sink for a subprocess's combined output. Each
// line arriving on it is re-emitted as a trace record tagged with the
// given label. Close the returned Stream to drain it.
func (e *Emitter) OpenStream(label string) (*Stream, error) {
	e.mu.Lock()
	if err := e.stateErr("OpenStream"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	b := classify(kindProgress, e.mode)
	p := e.printer
	e.mu.Unlock()

	// announce what the subprocess is doing; this is the only line of
	// the stream that is logged below Trace
	target := printer.TargetNone
	if b.show {
		target = printer.TargetStderr
	}
	p.Show(printer.Message{
		Target:      target,
		Text:        label,
		Ephemeral:   b.transient,
		Timestamped: b.timestamped,
	})

	return openStream(e, label)
}

// Pause fully returns the terminal to the caller: the transient line
// is erased, the cursor restored, and every record emitted until
// resume is silently dropped (the Emitter does not control the
// terminal during that window, so recording would lie). The returned
// resume function must be called on every exit path, typically via
// defer; it re-takes the terminal and restores normal operation.
func (e *Emitter) Pause() (resume func()) {
	e.mu.Lock()
	if err := e.stateErr("Pause"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	if e.state == statePaused {
		e.mu.Unlock()
		panic(&UsageError{Op: "Pause", Reason: "already paused"})
	}
	p := e.printer
	e.state = statePaused
	e.mu.Unlock()

	// full barrier: waits for any in-flight emission before returning
	p.Suspend()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.state != statePaused {
				return
			}
			e.printer.Resume()
			e.state = stateActive
		})
	}
}

// Error reports a run-ending failure. The error's message, resolution
// and documentation link always reach the screen; details and the
// underlying cause only at Debug or Trace (they are always logged).
// Unless the mode was already that verbose, the final screen line
// points at the full execution log. The Emitter then stops.
func (e *Emitter) Error(err *Error) {
	e.mu.Lock()
	if err := e.stateErr("Error"); err != nil {
		e.mu.Unlock()
		panic(err)
	}
	mode := e.mode
	p := e.printer
	logPath := e.sink.Path()
	e.mu.Unlock()

	ts := mode >= Debug
	show := func(text string, c *color.Color, target printer.Target) {
		p.Show(printer.Message{
			Target:      target,
			Text:        text,
			Timestamped: ts,
			EndLine:     true,
			Color:       c,
		})
	}

	detailTarget := printer.TargetNone
	if mode >= Debug {
		detailTarget = printer.TargetStderr
	}

	show(err.Error(), color.New(color.FgRed), printer.TargetStderr)
	if err.Details != "" {
		show("Detailed information: "+err.Details, nil, detailTarget)
	}
	if err.Err != nil {
		show(fmt.Sprintf("Caused by: %+v", err.Err), nil, detailTarget)
	}
	if err.Resolution != "" {
		show("Recommended resolution: "+err.Resolution, nil, printer.TargetStderr)
	}
	if err.DocsURL != "" {
		show("For more information, check out: "+err.DocsURL, nil, printer.TargetStderr)
	}
	if err.Reportable {
		show(fmt.Sprintf("This is likely a bug in %s; consider reporting it.", e.appName), nil, printer.TargetStderr)
	}
	if mode < Debug {
		show(fmt.Sprintf("Full execution log: %q", logPath), nil, printer.TargetStderr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// EndedOK finishes the run gracefully: the terminal is restored to a
// sane state and the log handle released.
func (e *Emitter) EndedOK() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.check("EndedOK")
	e.stopLocked()
}

// stopLocked restores the ambient logging facility and shuts the
// printer down. Callers hold e.mu.
func (e *Emitter) stopLocked() {
	if e.prevSlog != nil {
		slog.SetDefault(e.prevSlog)
		e.prevSlog = nil
	}
	e.state = stateStopped
	e.printer.Stop()
}

// check panics with a *UsageError when the Emitter is driven out of
// lifecycle order. Callers hold e.mu. Paused is allowed: emissions
// made while paused are dropped further down, by design.
func (e *Emitter) check(op string) {
	if err := e.stateErr(op); err != nil {
		panic(err)
	}
}

// stateErr reports the usage error check would panic with, or nil.
// Callers that hold e.mu without a deferred unlock use it to release
// the mutex before panicking. Callers hold e.mu.
func (e *Emitter) stateErr(op string) *UsageError {
	switch e.state {
	case stateUninitialized:
		return &UsageError{Op: op, Reason: "emitter must be initialized first"}
	case stateStopped:
		return &UsageError{Op: op, Reason: "emitter already ended"}
	}
	return nil
}

// emit classifies and presents one record.
func (e *Emitter) emit(k kind, text string) {
	e.mu.Lock()
	b := classify(k, e.mode)
	p := e.printer
	e.mu.Unlock()
	if p == nil {
		return
	}

	target := printer.TargetNone
	if b.show {
		if k == kindMessage {
			target = printer.TargetStdout
		} else {
			target = printer.TargetStderr
		}
	}
	p.Show(printer.Message{
		Target:      target,
		Text:        text,
		Ephemeral:   b.transient,
		Timestamped: b.timestamped,
		AvoidLog:    !b.logged,
	})
}

// emitIfActive is the tolerant variant used by background producers
// (the logging bridge): after the run ends their records are dropped
// instead of panicking, to avoid secondary crashes during teardown.
func (e *Emitter) emitIfActive(k kind, text string) {
	e.mu.Lock()
	running := e.state == stateActive || e.state == statePaused
	e.mu.Unlock()
	if !running {
		return
	}
	e.emit(k, text)
}
