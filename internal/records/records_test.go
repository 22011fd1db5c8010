package records

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestVulnerabilityPreservesUnknownFields(t *testing.T) {
	input := `{
		"severity": "high",
		"title": "SQL injection in login",
		"description": "Parameter username is injectable",
		"cvss": 8.6,
		"cwe": "CWE-89"
	}`

	var v Vulnerability
	if err := json.Unmarshal([]byte(input), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Severity != "high" {
		t.Errorf("severity = %q", v.Severity)
	}
	if v.Extra["cwe"] != "CWE-89" {
		t.Errorf("extra = %v", v.Extra)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"cvss":8.6`, `"cwe":"CWE-89"`, `"severity":"high"`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("marshaled %s missing %s", out, want)
		}
	}
}

func TestExtraNeverShadowsKnownFields(t *testing.T) {
	v := Vulnerability{
		Title: "typed title",
		Extra: map[string]any{"title": "rogue", "note": "kept"},
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var round map[string]any
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatal(err)
	}
	if round["title"] != "typed title" {
		t.Errorf("title = %v, typed field must win", round["title"])
	}
	if round["note"] != "kept" {
		t.Errorf("note = %v", round["note"])
	}
}

func TestSkippedAttackRecord(t *testing.T) {
	rec := SkippedAttackRecord("no exploitable surface")
	if !rec.Complete {
		t.Error("skipped record must be complete")
	}
	if !strings.Contains(rec.Notes, "skipped") || !strings.Contains(rec.Notes, "no exploitable surface") {
		t.Errorf("notes = %q", rec.Notes)
	}
	if len(rec.Attempted) != 0 || len(rec.Confirmed) != 0 {
		t.Error("skipped record must carry no attempts")
	}
}

func TestReconRequestTasksDedupes(t *testing.T) {
	rec := &AttackRecord{
		Requests: []ReworkRequest{
			{Type: RequestMoreRecon, Tasks: []string{"scan udp", "map admin panel"}},
			{Type: RequestReanalysis, Tasks: []string{"ignored"}},
			{Type: RequestMoreRecon, Tasks: []string{"scan udp", "fingerprint db"}},
		},
	}

	tasks := rec.ReconRequestTasks()
	want := []string{"scan udp", "map admin panel", "fingerprint db"}
	if len(tasks) != len(want) {
		t.Fatalf("tasks = %v", tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("tasks[%d] = %q, want %q", i, tasks[i], want[i])
		}
	}
}
