package crier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// bridgeHandler reroutes the ambient logging facility (log/slog, which
// the stdlib log package also funnels into) through the Emitter, so
// library-level logging obeys the same classification as everything
// else instead of bypassing to the raw console.
//
// It is installed as the process's default handler at Init, replacing
// whatever was there (that replacement is what detaches every other
// path to the screen), and the previous default is restored when the
// run ends.
type bridgeHandler struct {
	emitter *Emitter
	attrs   []slog.Attr
	groups  []string
}

// Enabled accepts every record: the Emitter's classification table,
// not the handler, decides what reaches the screen, and everything is
// wanted in the log file.
func (h *bridgeHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle converts one captured record into an Emitter record. Severity
// above the debug threshold maps to the informational captured-log
// class; debug and below map to the deeper class only surfaced at
// Debug/Trace.
func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Message)

	appendAttr := func(a slog.Attr) {
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&sb, " %s=%v", key, a.Value)
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	k := kindCapturedInfo
	if r.Level < slog.LevelInfo {
		k = kindCapturedDebug
	}
	// Drop quietly once the run ended: background code may keep
	// logging during teardown and must not crash the host.
	h.emitter.emitIfActive(k, sb.String())
	return nil
}

// WithAttrs implements slog.Handler.
func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// installBridge makes the Emitter the only path by which ambient
// logging reaches the screen, returning the logger to restore later.
func installBridge(e *Emitter) *slog.Logger {
	prev := slog.Default()
	slog.SetDefault(slog.New(&bridgeHandler{emitter: e}))
	return prev
}
