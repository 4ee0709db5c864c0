// Package printer handles writing messages to the terminal and the log
// file. It owns the state of the last terminal line, so it can decide
// whether new output overwrites a transient line, completes it, or
// starts clean, and it keeps a spinner on messages that stay too long.
package printer

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/harrison/crier/internal/logfile"
)

const (
	// char used to draw the filled part of the progress bar
	barSymbol = "█"

	// fallback when the terminal width cannot be determined
	defaultWidth = 80

	ansiClearLineToEnd = "\x1b[K"
	ansiHideCursor     = "\x1b[?25l"
	ansiShowCursor     = "\x1b[?25h"
)

// Target selects where a message's screen output goes. Log-only
// messages use TargetNone.
type Target int

const (
	// TargetNone means the message is not shown on screen.
	TargetNone Target = iota
	// TargetStdout is for final output (the application's results).
	TargetStdout
	// TargetStderr is for everything else.
	TargetStderr
)

// Message is one unit of text to present, with everything the printer
// needs to decide how to write it.
type Message struct {
	Target      Target
	Text        string
	Ephemeral   bool // may be overwritten by later output
	Timestamped bool // prefix the screen line with the creation time
	EndLine     bool // terminate the line even if ephemeral
	AvoidLog    bool // do not append to the log file
	Color       *color.Color
	CreatedAt   time.Time

	barProgress float64
	barTotal    float64
	hasBar      bool
}

// Options configures a Printer.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Sink   *logfile.Sink

	// DisableSpinner turns off the long-message spinner; used by tests
	// so slow runs do not pollute captured output.
	DisableSpinner bool

	// ForceTerminal treats both streams as interactive regardless of
	// what they really are, with Width as the terminal width.
	ForceTerminal bool
	Width         int
}

// Printer serializes all writes to the terminal streams and the log
// sink behind one mutex. The mutex is held only for the duration of a
// single render plus log append, never across blocking waits.
type Printer struct {
	mu sync.Mutex

	stdout io.Writer
	stderr io.Writer
	sink   *logfile.Sink

	termOut bool
	termErr bool
	widthFn func() int

	prvMsg     *Message
	unfinished io.Writer
	secrets    []string

	suspended bool
	stopped   bool

	spinner *spinner
}

// New creates a Printer over the given streams and log sink. On an
// interactive stderr the cursor is hidden until Stop or Suspend.
func New(opts Options) *Printer {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	p := &Printer{
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		sink:    opts.Sink,
		termOut: opts.ForceTerminal || isTerminal(opts.Stdout),
		termErr: opts.ForceTerminal || isTerminal(opts.Stderr),
	}
	p.widthFn = terminalWidthFn(opts)

	if !opts.DisableSpinner {
		p.spinner = newSpinner(p)
		p.spinner.start()
	}
	if p.termErr && supportsANSI() {
		fmt.Fprint(p.stderr, ansiHideCursor)
	}
	return p
}

// SetSecrets installs the strings masked out of all output.
func (p *Printer) SetSecrets(secrets []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secrets = append([]string(nil), secrets...)
}

// Show presents a message on its target stream and appends it to the
// log, per the message's flags. It is safe for concurrent use.
func (p *Printer) Show(m Message) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Text = p.maskSecrets(strings.TrimRight(m.Text, " \t\r\n"))

	p.mu.Lock()
	if p.stopped || p.suspended {
		p.mu.Unlock()
		return
	}
	p.render(&m)
	if !m.AvoidLog && p.sink != nil {
		p.sink.Append(m.CreatedAt, m.Text)
	}
	p.mu.Unlock()

	// Supervised outside the lock: the spinner re-acquires it when (and
	// if) it needs to redraw.
	if m.Target != TargetNone {
		p.supervise(&m)
	}
}

// ShowBar presents a progress bar tick. Bar ticks are ephemeral and
// never logged; the bar's label line is shown separately by the caller.
func (p *Printer) ShowBar(m Message, progress, total float64) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Text = p.maskSecrets(strings.TrimRight(m.Text, " \t\r\n"))
	m.Ephemeral = true
	m.hasBar = true
	m.barProgress = progress
	m.barTotal = total

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.suspended {
		return
	}
	p.render(&m)
	// Not a spinnable message; clear any pending supervision.
	p.superviseLocked(nil)
}

// Suspend fully restores the terminal to the caller: the transient
// line (if any) is erased, the cursor is shown, and all output is
// dropped until Resume. It waits for any in-flight render to finish.
func (p *Printer) Suspend() {
	p.supervise(nil)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.suspended {
		return
	}
	p.finishLine()
	if p.termErr && supportsANSI() {
		fmt.Fprint(p.stderr, ansiShowCursor)
	}
	p.suspended = true
}

// Resume re-takes exclusive control of the terminal after Suspend.
func (p *Printer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || !p.suspended {
		return
	}
	if p.termErr && supportsANSI() {
		fmt.Fprint(p.stderr, ansiHideCursor)
	}
	p.suspended = false
	p.prvMsg = nil
	p.unfinished = nil
}

// Stop shuts the printing infrastructure down: the spinner is joined,
// the cursor restored, any unfinished line completed or erased, and
// the log file closed. Stop is idempotent.
func (p *Printer) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	// join the spinner goroutine before touching the final line
	if p.spinner != nil {
		p.spinner.stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLine()
	if p.termErr && supportsANSI() {
		fmt.Fprint(p.stderr, ansiShowCursor)
	}
	if p.sink != nil {
		p.sink.Close() //nolint:errcheck // log close failures have no fallback
	}
}

// finishLine leaves the terminal on a clean line: an unfinished
// transient line is erased in place, an unfinished permanent line is
// completed with a newline. Callers hold p.mu.
func (p *Printer) finishLine() {
	if p.unfinished == nil {
		return
	}
	if p.prvMsg != nil && p.prvMsg.Ephemeral {
		width := p.widthFn()
		fmt.Fprint(p.unfinished, "\r"+strings.Repeat(" ", width-1)+"\r")
	} else {
		fmt.Fprintln(p.unfinished)
	}
	p.unfinished = nil
	p.prvMsg = nil
}

// render writes one message to its stream. Callers hold p.mu.
func (p *Printer) render(m *Message) {
	if m.Target == TargetNone {
		return
	}
	stream, isTerm := p.stream(m.Target)
	if !isTerm {
		p.writeCaptured(stream, m)
		return
	}
	if m.hasBar {
		p.writeBarTerminal(stream, m)
		return
	}
	p.writeLineTerminal(stream, m, "")
}

func (p *Printer) stream(t Target) (io.Writer, bool) {
	if t == TargetStdout {
		return p.stdout, p.termOut
	}
	return p.stderr, p.termErr
}

// writeCaptured handles the non-interactive degradation: every line
// ends, and bar ticks are dropped entirely (only the label line, shown
// through Show, survives).
func (p *Printer) writeCaptured(stream io.Writer, m *Message) {
	if m.hasBar {
		return
	}
	fmt.Fprintln(stream, m.decorated())
	p.prvMsg = m
	p.unfinished = nil
}

// writeLineTerminal writes a line to an interactive terminal, taking
// the previous line's state into account. spintext, when not empty,
// forces an overwrite of the supervised message to draw the spinner.
func (p *Printer) writeLineTerminal(stream io.Writer, m *Message, spintext string) {
	text := m.decorated()

	var lineEnd string
	switch {
	case spintext != "":
		lineEnd = "\r"
	case p.prvMsg == nil || p.prvMsg.EndLine:
		lineEnd = ""
	case p.prvMsg.Ephemeral:
		lineEnd = "\r"
	default:
		// previous permanent line was left unfinished, complete it
		prvStream, _ := p.stream(p.prvMsg.Target)
		fmt.Fprintln(prvStream)
		lineEnd = ""
	}

	if p.prvMsg != nil && p.prvMsg.Ephemeral && lineEnd == "\r" {
		prvStream, _ := p.stream(p.prvMsg.Target)
		if prvStream != stream {
			// return the carriage on the stream that owns the line
			fmt.Fprint(prvStream, "\r")
			lineEnd = ""
		}
	}

	width := p.widthFn()
	usable := width - runewidth.StringWidth(spintext) - 1 // 1 for the cursor
	if runewidth.StringWidth(text) > usable {
		if m.Ephemeral {
			text = runewidth.Truncate(text, usable, "…")
		} else if spintext != "" {
			// multiline permanent message being spinned: only its last
			// terminal row is rewritten
			remaining := runewidth.StringWidth(text) % width
			text = truncateLeft(text, remaining)
			if runewidth.StringWidth(text) > usable {
				text = runewidth.Truncate(text, usable, "…")
			}
		}
	}

	if m.Color != nil {
		text = m.Color.Sprint(text)
	}
	fmt.Fprint(stream, lineEnd+fillLine(text+spintext, width))

	if m.EndLine {
		fmt.Fprintln(stream)
		p.unfinished = nil
	} else {
		p.unfinished = stream
	}
	p.prvMsg = m
}

// writeBarTerminal draws a progress bar sized to the available width.
// When the terminal is too narrow for a bar, only the text is shown.
func (p *Printer) writeBarTerminal(stream io.Writer, m *Message) {
	var lineEnd string
	switch {
	case p.prvMsg == nil || p.prvMsg.EndLine:
		lineEnd = ""
	case p.prvMsg.Ephemeral:
		lineEnd = "\r"
	default:
		prvStream, _ := p.stream(p.prvMsg.Target)
		fmt.Fprintln(prvStream)
		lineEnd = ""
	}

	text := m.decorated()
	numerical := formatNum(m.barProgress) + "/" + formatNum(m.barTotal)
	fraction := m.barProgress / m.barTotal
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}

	// width minus the text, the numbers, the cursor, two brackets and
	// the two separating spaces
	width := p.widthFn()
	barWidth := width - runewidth.StringWidth(text) - len(numerical) - 5

	var line string
	if barWidth > 0 {
		filled := int(fraction * float64(barWidth))
		line = fmt.Sprintf("%s [%s%s] %s",
			text,
			strings.Repeat(barSymbol, filled),
			strings.Repeat(" ", barWidth-filled),
			numerical,
		)
	} else {
		line = runewidth.Truncate(text, width-1, "…")
	}
	if m.Color != nil {
		line = m.Color.Sprint(line)
	}
	fmt.Fprint(stream, lineEnd+fillLine(line, width))

	p.unfinished = stream
	p.prvMsg = m
}

// spin rewrites the supervised message with a spinner suffix. It only
// redraws while that message is still the last thing on the terminal.
func (p *Printer) spin(m *Message, spintext string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.suspended || p.prvMsg != m {
		return
	}
	stream, isTerm := p.stream(m.Target)
	if !isTerm {
		return
	}
	p.writeLineTerminal(stream, m, spintext)
}

func (p *Printer) supervise(m *Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.superviseLocked(m)
}

func (p *Printer) superviseLocked(m *Message) {
	if p.spinner != nil && !p.stopped {
		p.spinner.supervise(m)
	}
}

func (p *Printer) maskSecrets(text string) string {
	p.mu.Lock()
	secrets := p.secrets
	p.mu.Unlock()
	for _, secret := range secrets {
		text = strings.ReplaceAll(text, secret, "*****")
	}
	return text
}

// decorated returns the message text with its timestamp prefix, if any.
func (m *Message) decorated() string {
	if !m.Timestamped {
		return m.Text
	}
	return m.CreatedAt.Format("2006-01-02 15:04:05.000") + " " + m.Text
}

// fillLine turns text into a line that covers the whole terminal row,
// clearing leftovers of a previous longer message.
func fillLine(text string, width int) string {
	if supportsANSI() {
		return text + ansiClearLineToEnd
	}
	pad := width - runewidth.StringWidth(text)%width - 1
	if pad < 0 {
		pad = 0
	}
	return text + strings.Repeat(" ", pad)
}

// truncateLeft keeps the trailing cells of text up to the given
// display width.
func truncateLeft(text string, width int) string {
	for runewidth.StringWidth(text) > width && text != "" {
		_, size := utf8.DecodeRuneInString(text)
		text = text[size:]
	}
	return text
}

// formatNum renders bar numbers: integers without decimals, fractional
// totals (byte counts given as floats) with one.
func formatNum(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// isTerminal reports whether the writer is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// supportsANSI reports whether the environment honors ANSI escape
// sequences. Windows Terminal does; legacy Windows consoles do not.
func supportsANSI() bool {
	if runtime.GOOS != "windows" {
		return true
	}
	_, ok := os.LookupEnv("WT_SESSION")
	return ok
}

// terminalWidthFn builds the width probe for the configured streams.
// The terminal is queried on every call, so resizes are picked up.
func terminalWidthFn(opts Options) func() int {
	if opts.Width > 0 {
		w := opts.Width
		return func() int { return w }
	}
	probe := func(candidate io.Writer) (int, bool) {
		f, ok := candidate.(*os.File)
		if !ok {
			return 0, false
		}
		w, _, err := term.GetSize(int(f.Fd()))
		if err != nil || w <= 0 {
			return 0, false
		}
		return w, true
	}
	stderr, stdout := opts.Stderr, opts.Stdout
	return func() int {
		if w, ok := probe(stderr); ok {
			return w
		}
		if w, ok := probe(stdout); ok {
			return w
		}
		return defaultWidth
	}
}
