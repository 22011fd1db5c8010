package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"github.com/kestrelsec/kestrel/internal/events"
)

// Replayer formats a run's event log as a readable timeline.
type Replayer struct {
	out     io.Writer
	width   int
	verbose bool
}

// New creates a replayer writing to out. width bounds wrapped content;
// 0 means no wrapping.
func New(out io.Writer, width int, verbose bool) *Replayer {
	return &Replayer{out: out, width: width, verbose: verbose}
}

// ReplayFile renders a whole event log.
func (r *Replayer) ReplayFile(path string) error {
	evts, _, err := loadEvents(path, 0)
	if err != nil {
		return err
	}
	if len(evts) == 0 {
		return fmt.Errorf("no events in %s", path)
	}

	r.printHeader(evts[0].SessionID, path, len(evts))
	for _, e := range evts {
		r.printEvent(e)
	}
	r.printSummary(evts)
	return nil
}

// loadEvents parses JSONL events starting at byte offset. It returns
// the new offset so follow mode can read incrementally. A trailing
// partial line is left unread.
func loadEvents(path string, offset int64) ([]events.Event, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	var out []events.Event
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// Partial line without newline: a writer is mid-append.
			// Leave it for the next read.
			break
		}
		lineLen := int64(len(line))
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var e events.Event
			if jsonErr := json.Unmarshal(line, &e); jsonErr == nil {
				out = append(out, e)
			}
		}
		offset += lineLen
	}
	return out, offset, nil
}

func (r *Replayer) printHeader(sessionID, path string, count int) {
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(sessionID))
	fmt.Fprintln(r.out, divider)
	fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("Log:   "), valueStyle.Render(path))
	fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("Events:"), valueStyle.Render(fmt.Sprintf("%d", count)))
	fmt.Fprintln(r.out)
}

func (r *Replayer) printEvent(e events.Event) {
	seq := seqStyle.Render(fmt.Sprintf("%d", e.SeqID))
	ts := dimStyle.Render(e.Timestamp.Format("15:04:05"))

	var body string
	switch e.Type {
	case events.TypeRunStart:
		body = titleStyle.Render("RUN START ") + valueStyle.Render(e.Content)
	case events.TypeRunEnd:
		body = titleStyle.Render("RUN END ") + valueStyle.Render(e.Content) + r.duration(e)
	case events.TypePhaseStart:
		body = phaseStyle(e.Phase).Render(fmt.Sprintf("▶ %s", e.Phase)) + r.iteration(e)
	case events.TypePhaseComplete:
		body = phaseStyle(e.Phase).Render(fmt.Sprintf("■ %s complete", e.Phase)) + r.duration(e)
	case events.TypeIteration:
		body = dimStyle.Render(e.Content)
	case events.TypeToolCall:
		body = toolStyle.Render("→ "+e.Tool) + r.args(e)
	case events.TypeToolResult:
		status := successStyle.Render("ok")
		if e.Success != nil && !*e.Success {
			status = errorStyle.Render("failed")
		}
		body = toolStyle.Render("← "+e.Tool) + " " + status + r.duration(e)
		if e.Error != "" {
			body += " " + errorStyle.Render(e.Error)
		}
	case events.TypeReworkRequest:
		body = reworkStyle.Render(fmt.Sprintf("↩ %s requested %s", e.Phase, e.Content))
	case events.TypeCheckpoint:
		body = dimStyle.Render(e.Content)
	case events.TypeResume:
		body = reworkStyle.Render("⟲ " + e.Content)
	case events.TypeExport:
		body = successStyle.Render("⇑ " + e.Content)
	case events.TypeError:
		body = errorStyle.Render("✗ " + e.Error)
	default:
		body = valueStyle.Render(e.Content)
	}

	line := fmt.Sprintf("%s %s %s", seq, ts, body)
	if r.width > 0 {
		line = wordwrap.String(line, r.width)
	}
	fmt.Fprintln(r.out, line)
}

func (r *Replayer) printSummary(evts []events.Event) {
	var toolCalls, toolFailures, reworks int
	var start, end time.Time
	for _, e := range evts {
		switch e.Type {
		case events.TypeRunStart:
			start = e.Timestamp
		case events.TypeRunEnd:
			end = e.Timestamp
		case events.TypeToolResult:
			toolCalls++
			if e.Success != nil && !*e.Success {
				toolFailures++
			}
		case events.TypeReworkRequest:
			reworks++
		}
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, divider)
	fmt.Fprintf(r.out, "%s %d tool calls (%d failed), %d rework requests\n",
		labelStyle.Render("Summary:"), toolCalls, toolFailures, reworks)
	if !start.IsZero() && !end.IsZero() {
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("Elapsed:"), end.Sub(start).Round(time.Second))
	}
}

func (r *Replayer) duration(e events.Event) string {
	if e.DurationMs <= 0 {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf(" (%dms)", e.DurationMs))
}

func (r *Replayer) iteration(e events.Event) string {
	if e.Iteration <= 0 {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf(" iteration %d", e.Iteration))
}

func (r *Replayer) args(e events.Event) string {
	if !r.verbose || len(e.Args) == 0 {
		return ""
	}
	data, err := json.Marshal(e.Args)
	if err != nil {
		return ""
	}
	return " " + dimStyle.Render(string(data))
}
