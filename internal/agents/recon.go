package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/records"
	"github.com/kestrelsec/kestrel/internal/scenario"
	"github.com/kestrelsec/kestrel/internal/target"
)

// ReconAgent surveys the target and produces the recon record the rest
// of the assessment builds on.
type ReconAgent struct {
	runner *Runner
	logger *logging.Logger
}

// NewReconAgent creates the reconnaissance agent.
func NewReconAgent(runner *Runner, logger *logging.Logger) *ReconAgent {
	return &ReconAgent{
		runner: runner,
		logger: logger.WithComponent("recon"),
	}
}

// GatherIntelligence runs a full reconnaissance pass against the target.
func (a *ReconAgent) GatherIntelligence(ctx context.Context, tgt *target.Config, scen *scenario.Definition) (*records.ReconRecord, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Assessment goal: %s\n\n", scen.Name)
	fmt.Fprintf(&b, "Target: %s (%s:%d, %s)\n", tgt.Network.URL, tgt.Network.Host, tgt.Network.Port, tgt.Network.Protocol)
	if tgt.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", tgt.Description)
	}
	if len(tgt.Endpoints) > 0 {
		b.WriteString("Known endpoints:\n")
		for name, path := range tgt.Endpoints {
			fmt.Fprintf(&b, "  - %s: %s\n", name, path)
		}
	}
	if len(tgt.KnownInfo) > 0 {
		info, _ := json.Marshal(tgt.KnownInfo)
		fmt.Fprintf(&b, "Known information: %s\n", info)
	}
	if len(scen.Steps) > 0 {
		b.WriteString("\nScenario hints:\n")
		for _, step := range scen.Steps {
			fmt.Fprintf(&b, "  - %s: %s\n", step.Name, step.Description)
		}
	}
	b.WriteString("\nSurvey the target and report your findings.")

	content, err := a.runner.Run(ctx, "recon", "recon", reconSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	rec := a.parse(content)
	rec.TargetURL = tgt.Network.URL
	rec.TargetHost = tgt.Network.Host
	rec.TargetPort = tgt.Network.Port
	return rec, nil
}

// GatherAdditional answers specific recon requests from a later phase
// and folds the new findings into the existing record.
func (a *ReconAgent) GatherAdditional(ctx context.Context, tgt *target.Config, existing *records.ReconRecord, requests []string) (*records.ReconRecord, error) {
	prior, _ := json.Marshal(existing)

	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n\n", tgt.Network.URL)
	fmt.Fprintf(&b, "Earlier findings:\n%s\n\n", prior)
	b.WriteString("Specific requests to fulfil:\n")
	for _, req := range requests {
		fmt.Fprintf(&b, "  - %s\n", req)
	}

	content, err := a.runner.Run(ctx, "recon", "recon", reconAdditionalPrompt, b.String())
	if err != nil {
		return nil, err
	}

	merged := *existing
	merged.Merge(a.parse(content))
	merged.TargetURL = tgt.Network.URL
	merged.TargetHost = tgt.Network.Host
	merged.TargetPort = tgt.Network.Port
	return &merged, nil
}

// parse decodes the agent's answer, degrading to an incomplete record
// with the raw text preserved when no JSON can be extracted.
func (a *ReconAgent) parse(content string) *records.ReconRecord {
	var rec records.ReconRecord
	if err := DecodeInto(content, &rec); err != nil {
		a.logger.Warn("recon output not parseable, keeping raw text", map[string]interface{}{
			"error": err.Error(),
		})
		return &records.ReconRecord{
			Raw:      map[string]any{"raw_text": content},
			Complete: false,
			Notes:    "agent output could not be parsed as JSON",
		}
	}
	return &rec
}
