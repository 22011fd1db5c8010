package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kestrelsec/kestrel/internal/events"
)

const sampleLog = `{"seq":1,"type":"run_start","timestamp":"2026-03-01T12:00:00Z","session_id":"session_demo","content":"Assess the demo API against http://localhost:8080"}
{"seq":2,"type":"phase_start","timestamp":"2026-03-01T12:00:01Z","session_id":"session_demo","phase":"recon","iteration":1}
{"seq":3,"type":"tool_call","timestamp":"2026-03-01T12:00:02Z","session_id":"session_demo","agent":"recon","phase":"recon","tool":"mcp_tools_http_probe","corr_id":"abcd1234"}
{"seq":4,"type":"tool_result","timestamp":"2026-03-01T12:00:03Z","session_id":"session_demo","tool":"mcp_tools_http_probe","corr_id":"abcd1234","success":false,"error":"connection refused","duration_ms":120}
{"seq":5,"type":"rework_request","timestamp":"2026-03-01T12:00:04Z","session_id":"session_demo","phase":"attack","content":"more_recon"}
{"seq":6,"type":"run_end","timestamp":"2026-03-01T12:05:00Z","session_id":"session_demo","content":"complete","duration_ms":300000}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session_demo.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayFileRendersTimeline(t *testing.T) {
	path := writeLog(t, sampleLog)

	var buf strings.Builder
	r := New(&buf, 0, false)
	if err := r.ReplayFile(path); err != nil {
		t.Fatalf("ReplayFile: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"session_demo",
		"recon",
		"mcp_tools_http_probe",
		"connection refused",
		"more_recon",
		"1 tool calls (1 failed), 1 rework requests",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestReplayFileEmptyLogFails(t *testing.T) {
	path := writeLog(t, "")
	r := New(&strings.Builder{}, 0, false)
	if err := r.ReplayFile(path); err == nil {
		t.Fatal("expected error for empty log")
	}
}

func TestLoadEventsSkipsMalformedLines(t *testing.T) {
	path := writeLog(t, `{"seq":1,"type":"run_start","session_id":"s"}
not json at all
{"seq":2,"type":"run_end","session_id":"s"}
`)

	evts, _, err := loadEvents(path, 0)
	if err != nil {
		t.Fatalf("loadEvents: %v", err)
	}
	if len(evts) != 2 {
		t.Errorf("events = %d", len(evts))
	}
}

func TestLoadEventsIncrementalOffset(t *testing.T) {
	path := writeLog(t, sampleLog)

	evts, offset, err := loadEvents(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 6 {
		t.Fatalf("events = %d", len(evts))
	}

	// Append two more lines and read from the saved offset.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"seq":7,"type":"export","session_id":"session_demo","content":"2 findings via local"}` + "\n")
	f.WriteString(`{"seq":8,"type":"checkpoint","session_id":"session_demo","content":"report checkpoint saved"}` + "\n")
	f.Close()

	fresh, _, err := loadEvents(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 2 {
		t.Errorf("fresh events = %d", len(fresh))
	}
	if fresh[0].Type != events.TypeExport {
		t.Errorf("first fresh type = %s", fresh[0].Type)
	}
}

func TestLoadEventsLeavesPartialLine(t *testing.T) {
	path := writeLog(t, `{"seq":1,"type":"run_start","session_id":"s"}
{"seq":2,"type":"phase_st`)

	evts, offset, err := loadEvents(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 {
		t.Fatalf("events = %d, partial line must not be parsed", len(evts))
	}

	// Completing the line makes it readable from the offset.
	f, _ := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	f.WriteString("art\",\"session_id\":\"s\"}\n")
	f.Close()

	fresh, _, err := loadEvents(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 1 {
		t.Errorf("fresh = %d", len(fresh))
	}
}
