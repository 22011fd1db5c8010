// Package scenario parses assessment scenario definitions.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one hint step of a scenario. The first example command becomes
// the step's default command.
type Step struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Command     string `json:"command"`
}

// Definition is an immutable assessment goal parsed from a scenario file.
type Definition struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Steps    []Step         `json:"steps"`
	Metadata map[string]any `json:"metadata"`
}

// rawScenario mirrors the on-disk scenario format.
type rawScenario struct {
	Goal         string         `json:"goal" yaml:"goal"`
	SystemPrompt string         `json:"system_prompt" yaml:"system_prompt"`
	Constraints  rawConstraints `json:"constraints" yaml:"constraints"`
	Steps        []rawStep      `json:"steps" yaml:"steps"`
	Examples     []string       `json:"examples" yaml:"examples"`
}

type rawConstraints struct {
	TimeoutSeconds     int      `json:"timeout_seconds" yaml:"timeout_seconds"`
	StoppingConditions []string `json:"stopping_conditions" yaml:"stopping_conditions"`
}

type rawStep struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples" yaml:"examples"`
}

// ParseFile reads and validates a scenario definition. JSON is the
// canonical format; .yaml/.yml files are accepted as well.
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var raw rawScenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", filepath.Base(path), err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}

	if raw.Goal == "" {
		return nil, fmt.Errorf("scenario %s: missing goal", filepath.Base(path))
	}

	def := &Definition{
		ID:       deriveID(path),
		Name:     raw.Goal,
		Category: "scenario",
		Metadata: map[string]any{
			"system_prompt":       raw.SystemPrompt,
			"timeout_seconds":     raw.Constraints.TimeoutSeconds,
			"stopping_conditions": raw.Constraints.StoppingConditions,
			"examples":            raw.Examples,
		},
	}

	for i, s := range raw.Steps {
		step := Step{
			Name:        s.Name,
			Description: s.Description,
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("step-%d", i+1)
		}
		if len(s.Examples) > 0 {
			step.Command = s.Examples[0]
		}
		def.Steps = append(def.Steps, step)
	}

	return def, nil
}

// deriveID builds a stable scenario id from the filename stem.
func deriveID(path string) string {
	stem := Stem(path)
	return "scenario-" + stem
}

// Stem returns the scenario filename without directory or extension.
// Session ids are derived from it, so it must be stable across runs.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TimeoutSeconds returns the per-step timeout constraint, or def if the
// scenario does not set one.
func (d *Definition) TimeoutSeconds(def int) int {
	if v, ok := d.Metadata["timeout_seconds"].(int); ok && v > 0 {
		return v
	}
	return def
}
