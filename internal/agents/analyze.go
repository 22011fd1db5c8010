package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/records"
	"github.com/kestrelsec/kestrel/internal/scenario"
)

// AnalysisAgent turns recon data into vulnerabilities and an attack
// plan. It reasons without tools; everything it needs is in the recon
// record, and gaps come back as recon requests.
type AnalysisAgent struct {
	runner *Runner
	logger *logging.Logger
}

// NewAnalysisAgent creates the analysis agent.
func NewAnalysisAgent(runner *Runner, logger *logging.Logger) *AnalysisAgent {
	return &AnalysisAgent{
		runner: runner,
		logger: logger.WithComponent("analysis"),
	}
}

// Analyze produces a fresh analysis record from the current recon data.
// Re-analysis after new findings replaces the previous record entirely.
func (a *AnalysisAgent) Analyze(ctx context.Context, recon *records.ReconRecord, scen *scenario.Definition) (*records.AnalysisRecord, error) {
	reconJSON, _ := json.MarshalIndent(recon, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Assessment goal: %s\n\n", scen.Name)
	fmt.Fprintf(&b, "Reconnaissance data:\n%s\n\n", reconJSON)
	b.WriteString("Analyze the data and produce your findings and attack plan.")

	content, err := a.runner.Run(ctx, "analysis", "analyze", analysisSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var rec records.AnalysisRecord
	if err := DecodeInto(content, &rec); err != nil {
		a.logger.Warn("analysis output not parseable, keeping raw text", map[string]interface{}{
			"error": err.Error(),
		})
		return &records.AnalysisRecord{
			Complete:  false,
			Reasoning: content,
			Notes:     "agent output could not be parsed as JSON",
		}, nil
	}

	// A more-recon verdict with no concrete requests cannot be acted on.
	if rec.NeedsMoreRecon && len(rec.ReconRequests) == 0 {
		rec.NeedsMoreRecon = false
	}
	return &rec, nil
}
