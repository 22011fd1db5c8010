package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/records"
)

func testReport() *records.Report {
	return &records.Report{
		ID:           "report-1",
		ScenarioName: "scenario-demo",
		TargetURL:    "http://localhost:8080",
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Attack: &records.AttackRecord{
			Confirmed: []records.Vulnerability{
				{Severity: "high", Title: "SQL injection", Description: "login form"},
			},
			NewFindings: []records.Vulnerability{
				{Severity: "weird", Title: "Odd behavior", Description: "500s on long input"},
			},
		},
	}
}

func TestFactorySelection(t *testing.T) {
	logger := logging.New()

	r, err := New(config.ExportConfig{Reporter: "none"}, t.TempDir(), logger)
	if err != nil || r.Name() != "none" {
		t.Fatalf("got %v, %v", r, err)
	}

	r, err = New(config.ExportConfig{Reporter: "local"}, t.TempDir(), logger)
	if err != nil || r.Name() != "local" {
		t.Fatalf("got %v, %v", r, err)
	}

	if _, err := New(config.ExportConfig{Reporter: "defectdojo"}, t.TempDir(), logger); err == nil {
		t.Fatal("defectdojo without url must fail")
	}

	if _, err := New(config.ExportConfig{Reporter: "jira"}, t.TempDir(), logger); err == nil {
		t.Fatal("unknown reporter must fail")
	}
}

func TestLocalExportWritesFindings(t *testing.T) {
	dir := t.TempDir()
	l := newLocal(dir, logging.New())

	if err := l.Export(context.Background(), testReport()); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "findings", "report-1.json"))
	if err != nil {
		t.Fatalf("reading findings: %v", err)
	}

	var payload struct {
		Findings []records.Vulnerability `json:"findings"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("parsing findings: %v", err)
	}
	if len(payload.Findings) != 2 {
		t.Errorf("findings = %d, want confirmed + new", len(payload.Findings))
	}
}

func TestDefectDojoExport(t *testing.T) {
	var posted []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/findings/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Token secret" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		posted = append(posted, body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	t.Setenv("REPORTER_TOKEN", "secret")
	d := newDefectDojo(config.ExportConfig{
		URL:      srv.URL,
		TokenEnv: "REPORTER_TOKEN",
		TestID:   7,
	}, logging.New())

	if err := d.Export(context.Background(), testReport()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(posted) != 2 {
		t.Fatalf("posted %d findings", len(posted))
	}
	if posted[0]["severity"] != "High" {
		t.Errorf("severity = %v", posted[0]["severity"])
	}
	// Unknown severities map to Info rather than failing.
	if posted[1]["severity"] != "Info" {
		t.Errorf("severity = %v", posted[1]["severity"])
	}
}

func TestDefectDojoRejectionSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := newDefectDojo(config.ExportConfig{URL: srv.URL}, logging.New())
	if err := d.Export(context.Background(), testReport()); err == nil {
		t.Fatal("expected error")
	}
}
