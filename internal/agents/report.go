package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/records"
	"github.com/kestrelsec/kestrel/internal/scenario"
	"github.com/kestrelsec/kestrel/internal/target"
)

// ReportAgent assembles the final report. The structured part is
// computed from the phase records; only the narrative synthesis comes
// from the model.
type ReportAgent struct {
	runner *Runner
	logger *logging.Logger
}

// NewReportAgent creates the report agent.
func NewReportAgent(runner *Runner, logger *logging.Logger) *ReportAgent {
	return &ReportAgent{
		runner: runner,
		logger: logger.WithComponent("report"),
	}
}

// Generate builds the report from whatever records exist. It always
// returns a report; a failed synthesis degrades to raw text rather than
// losing the assessment data.
func (a *ReportAgent) Generate(ctx context.Context, tgt *target.Config, scen *scenario.Definition, recon *records.ReconRecord, analysis *records.AnalysisRecord, attack *records.AttackRecord) (*records.Report, error) {
	report := &records.Report{
		ID:           uuid.NewString(),
		ScenarioName: scen.ID,
		Goal:         scen.Name,
		TargetURL:    tgt.Network.URL,
		Recon:        recon,
		Analysis:     analysis,
		Attack:       attack,
		Stats:        computeStats(recon, analysis, attack),
		GeneratedAt:  time.Now().UTC(),
	}

	synthesis, err := a.synthesize(ctx, scen, recon, analysis, attack)
	if err != nil {
		return nil, err
	}
	report.Synthesis = synthesis
	return report, nil
}

func (a *ReportAgent) synthesize(ctx context.Context, scen *scenario.Definition, recon *records.ReconRecord, analysis *records.AnalysisRecord, attack *records.AttackRecord) (map[string]any, error) {
	reconJSON, _ := json.Marshal(recon)
	analysisJSON, _ := json.Marshal(analysis)
	attackJSON, _ := json.Marshal(attack)

	var b strings.Builder
	fmt.Fprintf(&b, "Assessment goal: %s\n\n", scen.Name)
	fmt.Fprintf(&b, "Reconnaissance:\n%s\n\n", reconJSON)
	fmt.Fprintf(&b, "Analysis:\n%s\n\n", analysisJSON)
	fmt.Fprintf(&b, "Attack results:\n%s\n\n", attackJSON)
	b.WriteString("Write the report synthesis.")

	content, err := a.runner.Run(ctx, "report", "report", reportSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	synthesis, err := ExtractObject(content)
	if err != nil {
		a.logger.Warn("report synthesis not parseable, keeping raw text", map[string]interface{}{
			"error": err.Error(),
		})
		return map[string]any{"raw_text": content}, nil
	}
	return synthesis, nil
}

// computeStats derives the summary counts directly from the records so
// they always match the underlying lists.
func computeStats(recon *records.ReconRecord, analysis *records.AnalysisRecord, attack *records.AttackRecord) records.SummaryStats {
	var stats records.SummaryStats
	if recon != nil {
		stats.Services = len(recon.Services)
		stats.Endpoints = len(recon.Endpoints)
	}
	if analysis != nil {
		stats.Vulnerabilities = len(analysis.Vulnerabilities)
	}
	if attack != nil {
		stats.Attempts = len(attack.Attempted)
		stats.Successful = len(attack.Successful)
		stats.Confirmed = len(attack.Confirmed)
	}
	return stats
}
