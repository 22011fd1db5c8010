package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/events"
	"github.com/kestrelsec/kestrel/internal/exporter"
	"github.com/kestrelsec/kestrel/internal/records"
	"github.com/kestrelsec/kestrel/internal/scenario"
	"github.com/kestrelsec/kestrel/internal/session"
	"github.com/kestrelsec/kestrel/internal/target"
)

const reconOK = `{
	"discovered_services": [{"name": "nginx", "port": 80}],
	"open_ports": [80],
	"endpoints": ["/api/users"],
	"recon_complete": true,
	"notes": "baseline survey"
}`

const reconAdditionalOK = `{
	"endpoints": ["/api/admin"],
	"recon_complete": true,
	"notes": "follow-up"
}`

const analysisOK = `{
	"vulnerabilities": [{"severity": "high", "title": "SQLi", "description": "login"}],
	"attack_plan": [{"action": "inject", "technique": "sqli", "target": "/api/users"}],
	"needs_more_recon": false,
	"skip_to_report": false,
	"analysis_complete": true,
	"notes": "ok"
}`

const attackOK = `{
	"attacks_attempted": [{"name": "sqli", "outcome": "success"}],
	"successful_attacks": [{"name": "sqli", "outcome": "success"}],
	"vulnerabilities_confirmed": [{"severity": "high", "title": "SQLi", "description": "login"}],
	"attack_complete": true,
	"notes": "done"
}`

const reportOK = `{"executive_summary": "one confirmed issue", "risk_rating": "high"}`

// scriptedProvider routes each chat call to a per-agent queue, keyed by
// a distinctive phrase in the system prompt.
type scriptedProvider struct {
	queues map[string][]string
	calls  map[string]int
}

func newScript() *scriptedProvider {
	return &scriptedProvider{
		queues: make(map[string][]string),
		calls:  make(map[string]int),
	}
}

func (s *scriptedProvider) queue(agent string, responses ...string) {
	s.queues[agent] = append(s.queues[agent], responses...)
}

func (s *scriptedProvider) provider(t *testing.T) llm.Provider {
	t.Helper()
	mock := llm.NewMockProvider()
	mock.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		agent := s.classify(req.Messages[0].Content)
		s.calls[agent]++
		q := s.queues[agent]
		if len(q) == 0 {
			return nil, fmt.Errorf("no scripted response left for %s", agent)
		}
		s.queues[agent] = q[1:]
		return &llm.ChatResponse{Content: q[0]}, nil
	}
	return mock
}

func (s *scriptedProvider) classify(system string) string {
	switch {
	case strings.Contains(system, "continuing an authorized"):
		return "recon-additional"
	case strings.Contains(system, "reconnaissance specialist"):
		return "recon"
	case strings.Contains(system, "vulnerability analyst"):
		return "analysis"
	case strings.Contains(system, "exploitation specialist"):
		return "attack"
	case strings.Contains(system, "report writer"):
		return "report"
	default:
		return "unknown"
	}
}

func newTestOrchestrator(t *testing.T, provider llm.Provider, maxIterations int) (*Orchestrator, *session.Store) {
	t.Helper()

	cfg := config.New()
	cfg.Orchestrator.MaxIterations = maxIterations

	tgt := &target.Config{
		Name: "demo",
		Network: target.Network{
			URL: "http://localhost:8080", Host: "localhost", Port: 8080, Protocol: "http",
		},
	}
	scen := &scenario.Definition{ID: "scenario-demo", Name: "Assess the demo API"}

	store, err := session.NewStore(t.TempDir(), "demo", scen.ID, scen.Name, tgt.Network.URL)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	log, err := events.NewLog(t.TempDir(), store.SessionID())
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	o := New(cfg, tgt, scen, store, log, provider, nil, exporter.Noop{}, logging.New())
	o.preflight = func(ctx context.Context) error { return nil }
	return o, store
}

func TestFullRunSavesAllPhaseCheckpoints(t *testing.T) {
	script := newScript()
	script.queue("recon", reconOK)
	script.queue("analysis", analysisOK)
	script.queue("attack", attackOK)
	script.queue("report", reportOK)

	o, store := newTestOrchestrator(t, script.provider(t), 3)
	result, err := o.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != StatusComplete {
		t.Errorf("status = %q", result.Status)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if result.SessionID != "session_demo" {
		t.Errorf("session id = %q", result.SessionID)
	}

	for _, phase := range []session.Phase{session.PhaseRecon, session.PhaseAnalysis, session.PhaseAttack, session.PhaseReport} {
		data, err := os.ReadFile(filepath.Join(store.Dir(), string(phase)+".json"))
		if err != nil {
			t.Fatalf("missing %s checkpoint: %v", phase, err)
		}
		var env session.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("corrupt %s checkpoint: %v", phase, err)
		}
		if env.SessionID != "session_demo" {
			t.Errorf("%s checkpoint session = %q", phase, env.SessionID)
		}
		if env.TargetURL != "http://localhost:8080" {
			t.Errorf("%s checkpoint target = %q", phase, env.TargetURL)
		}
	}

	if result.Report.Stats.Confirmed != 1 || result.Report.Stats.Attempts != 1 {
		t.Errorf("stats = %+v", result.Report.Stats)
	}
	if result.Report.Degraded {
		t.Errorf("clean run marked degraded: %v", result.Report.DegradedReasons)
	}
}

func TestSkipToReportSynthesizesAttackRecord(t *testing.T) {
	script := newScript()
	script.queue("recon", reconOK)
	script.queue("analysis", `{
		"vulnerabilities": [],
		"skip_to_report": true,
		"analysis_complete": true,
		"reasoning": "static site, nothing to attack",
		"notes": ""
	}`)
	script.queue("report", reportOK)

	o, _ := newTestOrchestrator(t, script.provider(t), 3)
	result, err := o.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if script.calls["attack"] != 0 {
		t.Error("attack agent ran despite skip_to_report")
	}
	if !result.Attack.Complete {
		t.Error("synthesized attack record must be complete")
	}
	if !strings.Contains(result.Attack.Notes, "skipped") {
		t.Errorf("notes = %q", result.Attack.Notes)
	}
}

func TestAnalysisMoreReconRetriesSameIteration(t *testing.T) {
	script := newScript()
	script.queue("recon", reconOK)
	script.queue("analysis", `{
		"needs_more_recon": true,
		"recon_requests": ["enumerate admin endpoints"],
		"analysis_complete": false,
		"notes": ""
	}`, analysisOK)
	script.queue("recon-additional", reconAdditionalOK)
	script.queue("attack", attackOK)
	script.queue("report", reportOK)

	o, _ := newTestOrchestrator(t, script.provider(t), 3)
	result, err := o.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Iterations != 1 {
		t.Errorf("iterations = %d, analysis retry must not consume one", result.Iterations)
	}
	if script.calls["analysis"] != 2 {
		t.Errorf("analysis calls = %d", script.calls["analysis"])
	}
	if len(result.Recon.Endpoints) != 2 {
		t.Errorf("recon endpoints = %v, want merged union", result.Recon.Endpoints)
	}
}

func TestAttackMoreReconRestartsLoop(t *testing.T) {
	script := newScript()
	script.queue("recon", reconOK)
	script.queue("analysis", analysisOK, analysisOK)
	script.queue("recon-additional", reconAdditionalOK)
	script.queue("attack", `{
		"attacks_attempted": [{"name": "sqli", "outcome": "blocked"}],
		"requests": [{"request_type": "more_recon", "reason": "need admin surface", "specific_tasks": ["map admin endpoints"]}],
		"attack_complete": false,
		"notes": ""
	}`, attackOK)
	script.queue("report", reportOK)

	o, _ := newTestOrchestrator(t, script.provider(t), 3)
	result, err := o.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Iterations != 2 {
		t.Errorf("iterations = %d, more-recon from attack must consume one", result.Iterations)
	}
	if script.calls["recon-additional"] != 1 {
		t.Errorf("additional recon calls = %d", script.calls["recon-additional"])
	}
	if script.calls["analysis"] != 2 {
		t.Errorf("analysis calls = %d, attack rework must trigger re-analysis", script.calls["analysis"])
	}
}

func TestIterationCapProducesDegradedReport(t *testing.T) {
	reanalyze := `{
		"attacks_attempted": [],
		"needs_reanalysis": true,
		"requests": [{"request_type": "reanalysis", "reason": "plan does not match target"}],
		"attack_complete": false,
		"notes": ""
	}`

	script := newScript()
	script.queue("recon", reconOK)
	script.queue("analysis", analysisOK, analysisOK)
	script.queue("attack", reanalyze, reanalyze)
	script.queue("report", reportOK)

	o, _ := newTestOrchestrator(t, script.provider(t), 2)
	result, err := o.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != StatusComplete {
		t.Errorf("status = %q, cap exhaustion still reports", result.Status)
	}
	if !result.Report.Degraded {
		t.Fatal("report not marked degraded")
	}
	found := false
	for _, r := range result.Report.DegradedReasons {
		if strings.Contains(r, "iteration cap") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v", result.Report.DegradedReasons)
	}
}

func TestResumeMissingPrerequisiteFails(t *testing.T) {
	o, _ := newTestOrchestrator(t, newScript().provider(t), 3)

	_, err := o.Run(context.Background(), "attack")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "cannot resume") {
		t.Errorf("error = %v", err)
	}
}

func TestResumeFromAttackUsesCheckpoints(t *testing.T) {
	script := newScript()
	script.queue("attack", attackOK)
	script.queue("report", reportOK)

	o, store := newTestOrchestrator(t, script.provider(t), 3)

	var recon records.ReconRecord
	if err := json.Unmarshal([]byte(reconOK), &recon); err != nil {
		t.Fatal(err)
	}
	var analysis records.AnalysisRecord
	if err := json.Unmarshal([]byte(analysisOK), &analysis); err != nil {
		t.Fatal(err)
	}
	if err := store.SavePhase(session.PhaseRecon, &recon); err != nil {
		t.Fatal(err)
	}
	if err := store.SavePhase(session.PhaseAnalysis, &analysis); err != nil {
		t.Fatal(err)
	}

	result, err := o.Run(context.Background(), "attack")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if script.calls["recon"] != 0 || script.calls["analysis"] != 0 {
		t.Errorf("resumed run re-ran earlier phases: %v", script.calls)
	}
	if len(result.Recon.Endpoints) != 1 {
		t.Errorf("loaded recon = %+v", result.Recon)
	}
}

func TestPreflightFailureLeavesNoCheckpoints(t *testing.T) {
	o, store := newTestOrchestrator(t, newScript().provider(t), 3)
	o.preflight = func(ctx context.Context) error {
		return fmt.Errorf("target localhost:8080 is unreachable")
	}

	if _, err := o.Run(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("checkpoints written despite failed preflight: %v", entries)
	}
}

func TestUnknownResumePhaseRejected(t *testing.T) {
	o, _ := newTestOrchestrator(t, newScript().provider(t), 3)
	if _, err := o.Run(context.Background(), "exploit"); err == nil {
		t.Fatal("expected error")
	}
}
