package printer

import (
	"fmt"
	"sync"
	"time"
)

const (
	// how long a message must stay on screen before it gets a spinner
	spinnerThreshold = 2 * time.Second

	// time between spinner redraws
	spinnerDelay = 100 * time.Millisecond
)

var spinnerChars = []byte(`-\|/`)

// spinner is a supervisor goroutine that repeats long-standing messages
// with a spinning char and the elapsed time beside them, so the user
// knows the application is still alive during a slow step.
//
// The printer hands it every shown message (nil when the current
// output, like a bar tick, is not spinnable). When a message stays
// beyond spinnerThreshold the printer's spin method is called
// repeatedly to redraw it; a final call with a space cleans the
// spinner up once newer output arrives.
type spinner struct {
	printer *Printer
	msgs    chan *Message
	quit    chan struct{}
	done    chan struct{}

	mu         sync.Mutex
	supervised *Message
}

func newSpinner(p *Printer) *spinner {
	return &spinner{
		printer: p,
		msgs:    make(chan *Message, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *spinner) start() {
	go s.run()
}

// supervise hands a new message to the spinner. Repeats of the message
// already under supervision are ignored so bar-style redraws do not
// reset the elapsed counter.
func (s *spinner) supervise(m *Message) {
	s.mu.Lock()
	if m == s.supervised {
		s.mu.Unlock()
		return
	}
	s.supervised = m
	s.mu.Unlock()
	// Non-blocking: the caller may hold the printer lock that a
	// spinning redraw is waiting on. A dropped handoff only means the
	// stale message keeps being supervised, and stale redraws are
	// no-ops anyway.
	select {
	case s.msgs <- m:
	default:
	}
}

// stop terminates the supervisor and waits for it to exit.
func (s *spinner) stop() {
	close(s.quit)
	<-s.done
}

func (s *spinner) run() {
	defer close(s.done)

	var current *Message
	start := time.Now()
	threshold := time.NewTimer(spinnerThreshold)
	defer threshold.Stop()

	for {
		select {
		case <-s.quit:
			return
		case m := <-s.msgs:
			current = m
			start = time.Now()
			resetTimer(threshold, spinnerThreshold)
		case <-threshold.C:
			if current == nil || current.EndLine {
				resetTimer(threshold, spinnerThreshold)
				continue
			}
			if s.spinUntilNext(current, start) {
				return
			}
			current = nil
			start = time.Now()
			resetTimer(threshold, spinnerThreshold)
		}
	}
}

// spinUntilNext redraws the message with a live spinner until a new
// message arrives or the printer stops. Returns true on shutdown.
func (s *spinner) spinUntilNext(m *Message, start time.Time) bool {
	tick := time.NewTicker(spinnerDelay)
	defer tick.Stop()

	i := 0
	for {
		select {
		case <-s.quit:
			s.printer.spin(m, " ")
			return true
		case next := <-s.msgs:
			// newer output took the line; wipe the spinner remnants
			s.printer.spin(m, " ")
			// hand the new message back to the main loop
			select {
			case s.msgs <- next:
			default:
			}
			return false
		case <-tick.C:
			elapsed := time.Since(start).Seconds()
			spintext := fmt.Sprintf(" %c (%.1fs)", spinnerChars[i%len(spinnerChars)], elapsed)
			s.printer.spin(m, spintext)
			i++
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
