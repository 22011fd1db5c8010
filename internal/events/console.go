package events

import (
	"fmt"
	"io"
	"sync"
)

// ConsoleSink projects events as short human-readable lines, one per
// event. It is the live counterpart of the replay view.
type ConsoleSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewConsoleSink creates a console projection writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Emit writes a one-line summary of the event.
func (c *ConsoleSink) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := e.Timestamp.Format("15:04:05")

	switch e.Type {
	case TypeRunStart:
		fmt.Fprintf(c.w, "[%s] run started: %s\n", ts, e.Content)
	case TypeRunEnd:
		fmt.Fprintf(c.w, "[%s] run finished: %s\n", ts, e.Content)
	case TypePhaseStart:
		fmt.Fprintf(c.w, "[%s] ── %s (iteration %d)\n", ts, e.Phase, e.Iteration)
	case TypePhaseComplete:
		fmt.Fprintf(c.w, "[%s] ── %s done in %dms\n", ts, e.Phase, e.DurationMs)
	case TypeToolCall:
		fmt.Fprintf(c.w, "[%s]   → %s\n", ts, e.Tool)
	case TypeToolResult:
		status := "ok"
		if e.Success != nil && !*e.Success {
			status = "failed"
		}
		fmt.Fprintf(c.w, "[%s]   ← %s (%s, %dms)\n", ts, e.Tool, status, e.DurationMs)
	case TypeReworkRequest:
		fmt.Fprintf(c.w, "[%s]   ↩ %s: %s\n", ts, e.Phase, e.Content)
	case TypeResume:
		fmt.Fprintf(c.w, "[%s] resuming: %s\n", ts, e.Content)
	case TypeExport:
		fmt.Fprintf(c.w, "[%s] exported findings: %s\n", ts, e.Content)
	case TypeError:
		fmt.Fprintf(c.w, "[%s] error: %s\n", ts, e.Error)
	case TypeCheckpoint, TypeIteration:
		fmt.Fprintf(c.w, "[%s] %s: %s\n", ts, e.Type, e.Content)
	}
}

// Close is a no-op; the sink does not own its writer.
func (c *ConsoleSink) Close() error {
	return nil
}
