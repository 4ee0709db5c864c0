package crier

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Stream is a writable sink for a subprocess's combined output,
// obtained from Emitter.OpenStream. Everything written to it is split
// on line boundaries by a background consumer and re-emitted as
// trace-classified records tagged with the stream's label.
//
// The write end is a real file descriptor, so it can be handed
// directly to exec.Cmd as Stdout/Stderr. Close the stream (normally
// via defer, after the subprocess is waited on) to drain the remaining
// buffered lines; Close does not return before every line has been
// emitted.
type Stream struct {
	emitter *Emitter
	label   string

	pw   *os.File
	done chan struct{}
	once sync.Once
	err  error
}

// Write implements io.Writer for callers that feed the stream
// directly rather than through a subprocess.
func (s *Stream) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

// File returns the write end of the pipe, for wiring into an
// exec.Cmd's Stdout and Stderr.
func (s *Stream) File() *os.File {
	return s.pw
}

// Close closes the write end and waits for the background consumer to
// drain and emit all buffered lines, including a trailing partial line
// with no newline. Close is idempotent.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.err = s.pw.Close()
		<-s.done
	})
	return s.err
}

// openStream builds the pipe pair and spawns the line consumer.
func openStream(e *Emitter, label string) (*Stream, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("open stream pipe: %w", err)
	}

	s := &Stream{
		emitter: e,
		label:   label,
		pw:      pw,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer pr.Close() //nolint:errcheck

		// Lines are forwarded as soon as their newline arrives; only a
		// trailing partial line waits, and it is flushed at EOF. The
		// subprocess is throttled by nothing but normal pipe
		// back-pressure.
		reader := bufio.NewReader(pr)
		for {
			line, err := reader.ReadString('\n')
			if line != "" || err == nil {
				e.streamLine(label, strings.TrimRight(line, "\r\n"))
			}
			if err != nil {
				return
			}
		}
	}()

	return s, nil
}

// streamLine emits one subprocess output line as a trace record.
func (e *Emitter) streamLine(label, line string) {
	e.mu.Lock()
	if e.state != stateActive && e.state != statePaused {
		// late writes after the run ended are dropped, not fatal: the
		// subprocess does not share our lifecycle
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.emit(kindTrace, fmt.Sprintf("%s :: %s", label, line))
}
