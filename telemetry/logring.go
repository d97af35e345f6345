package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LogRing is a fixed-capacity buffer of recent log lines with oldest-first
// eviction. It backs the /status endpoint so operators can see what the
// pipeline did recently without scraping container logs.
type LogRing struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewLogRing returns a ring holding up to capacity lines.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = 20
	}
	return &LogRing{lines: make([]string, capacity)}
}

// Append records a line, evicting the oldest when full.
func (r *LogRing) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Lines returns the buffered lines, oldest first.
func (r *LogRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]string, r.next)
		copy(out, r.lines[:r.next])
		return out
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	out = append(out, r.lines[:r.next]...)
	return out
}

// RingHandler is a slog.Handler that forwards to a base handler and also
// appends a rendered line to a LogRing.
type RingHandler struct {
	base slog.Handler
	ring *LogRing
}

// NewRingHandler wraps base so every record also lands in ring.
func NewRingHandler(base slog.Handler, ring *LogRing) *RingHandler {
	return &RingHandler{base: base, ring: ring}
}

func (h *RingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *RingHandler) Handle(ctx context.Context, rec slog.Record) error {
	line := fmt.Sprintf("%s %s %s", rec.Time.Format(time.DateTime), rec.Level, rec.Message)
	rec.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	h.ring.Append(line)
	return h.base.Handle(ctx, rec)
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RingHandler{base: h.base.WithAttrs(attrs), ring: h.ring}
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	return &RingHandler{base: h.base.WithGroup(name), ring: h.ring}
}
