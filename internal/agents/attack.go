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

// AttackAgent executes the attack plan against the live target and
// records every attempt and its outcome.
type AttackAgent struct {
	runner *Runner
	logger *logging.Logger
}

// NewAttackAgent creates the attack agent.
func NewAttackAgent(runner *Runner, logger *logging.Logger) *AttackAgent {
	return &AttackAgent{
		runner: runner,
		logger: logger.WithComponent("attack"),
	}
}

// Execute runs the planned exploits. Each pass produces a fresh record;
// the orchestrator decides what to do with rework requests.
func (a *AttackAgent) Execute(ctx context.Context, recon *records.ReconRecord, analysis *records.AnalysisRecord, scen *scenario.Definition) (*records.AttackRecord, error) {
	reconJSON, _ := json.Marshal(recon)
	analysisJSON, _ := json.MarshalIndent(analysis, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Assessment goal: %s\n\n", scen.Name)
	fmt.Fprintf(&b, "Reconnaissance data:\n%s\n\n", reconJSON)
	fmt.Fprintf(&b, "Analysis and attack plan:\n%s\n\n", analysisJSON)
	b.WriteString("Execute the attack plan against the target and report every attempt.")

	content, err := a.runner.Run(ctx, "attack", "attack", attackSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var rec records.AttackRecord
	if err := DecodeInto(content, &rec); err != nil {
		a.logger.Warn("attack output not parseable, keeping raw text", map[string]interface{}{
			"error": err.Error(),
		})
		return &records.AttackRecord{
			Complete: false,
			Notes:    "agent output could not be parsed as JSON\n" + content,
		}, nil
	}

	// Keep the boolean flags consistent with the structured requests so
	// the orchestrator can trust either form.
	for _, req := range rec.Requests {
		switch req.Type {
		case records.RequestMoreRecon:
			rec.NeedsMoreRecon = true
		case records.RequestReanalysis:
			rec.NeedsReanalysis = true
		}
	}
	return &rec, nil
}
