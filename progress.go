package crier

import (
	"fmt"
	"sync"

	"github.com/fatih/color"

	"github.com/harrison/crier/internal/printer"
)

// Progresser tracks one long-running operation against a declared
// total and renders a progress bar for it. It is obtained from
// Emitter.ProgressBar and must be released with Done (normally via
// defer), which forces the bar to completion and writes one permanent
// closing line even if the operation under-reported its progress.
type Progresser struct {
	emitter *Emitter
	text    string
	total   float64
	delta   bool

	mu          sync.Mutex
	accumulated float64
	done        bool
}

// Advance reports forward progress. In delta mode (the default) amount
// is added to the accumulated progress; in absolute mode amount
// replaces it. The accumulated value is clamped to [0, total]: amounts
// summing beyond the total render as 100% without failing. Negative
// amounts are a usage error.
func (p *Progresser) Advance(amount float64) {
	if amount < 0 {
		panic(&UsageError{Op: "Advance", Reason: "the advance amount cannot be negative"})
	}

	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	if p.delta {
		p.accumulated += amount
	} else {
		p.accumulated = amount
	}
	if p.accumulated > p.total {
		p.accumulated = p.total
	}
	accumulated := p.accumulated
	p.mu.Unlock()

	p.emitter.barTick(p.text, accumulated, p.total, nil)
}

// Done releases the progress session: the bar is forced to 100% and a
// single permanent completion line is emitted. Done is idempotent and
// safe on every exit path, including when the tracked operation failed
// before reporting all its progress.
func (p *Progresser) Done() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.mu.Unlock()

	p.emitter.barTick(p.text, p.total, p.total, nil)
	p.emitter.barCompleted(fmt.Sprintf("%s (100%%)", p.text), color.New(color.FgGreen))
}

// barTick renders one bar update on screen. Ticks never reach the log;
// only the bar's label line (written when the bar was opened) does.
func (e *Emitter) barTick(text string, progress, total float64, c *color.Color) {
	e.mu.Lock()
	b := classify(kindBarTick, e.mode)
	p := e.printer
	e.mu.Unlock()
	if p == nil {
		return
	}

	target := printer.TargetNone
	if b.show {
		target = printer.TargetStderr
	}
	p.ShowBar(printer.Message{
		Target:      target,
		Text:        text,
		Timestamped: b.timestamped,
		Color:       c,
	}, progress, total)
}

// barCompleted writes the bar's permanent completion line.
func (e *Emitter) barCompleted(text string, c *color.Color) {
	e.mu.Lock()
	b := classify(kindBarTick, e.mode)
	p := e.printer
	e.mu.Unlock()
	if p == nil {
		return
	}

	target := printer.TargetNone
	if b.show {
		target = printer.TargetStderr
	}
	p.Show(printer.Message{
		Target:      target,
		Text:        text,
		Timestamped: b.timestamped,
		EndLine:     true,
		AvoidLog:    true,
		Color:       c,
	})
}
