// Package records defines the data handed between assessment phases.
package records

import "encoding/json"

// Rework request types emitted by the attack agent.
const (
	RequestMoreRecon  = "more_recon"
	RequestReanalysis = "reanalysis"
)

// ReworkRequest asks the orchestrator to revisit an earlier phase.
type ReworkRequest struct {
	Type   string   `json:"request_type"`
	Reason string   `json:"reason"`
	Tasks  []string `json:"specific_tasks,omitempty"`
}

// ReconRecord accumulates everything the recon agent learned about the
// target. It is append-only across gather-additional calls: later phases
// may add discoveries but never remove them.
type ReconRecord struct {
	TargetURL  string `json:"target_url"`
	TargetHost string `json:"target_host"`
	TargetPort int    `json:"target_port"`

	Services     []ServiceInfo `json:"discovered_services"`
	OpenPorts    []int         `json:"open_ports"`
	Endpoints    []string      `json:"endpoints"`
	TechStack    []string      `json:"tech_stack"`
	Capabilities []string      `json:"system_capabilities"`

	// Raw holds the unparsed agent output for diagnosis.
	Raw map[string]any `json:"raw_outputs,omitempty"`

	Complete bool   `json:"recon_complete"`
	Notes    string `json:"notes"`
}

// ServiceInfo describes one discovered service.
type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Port        int    `json:"port,omitempty"`
	Description string `json:"description,omitempty"`

	Extra map[string]any `json:"-"`
}

// Vulnerability is an identified or confirmed weakness. Fields the
// orchestrator depends on are typed; anything else the model reports is
// preserved in Extra.
type Vulnerability struct {
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Extra map[string]any `json:"-"`
}

// PlanStep is one step of the attack plan produced by analysis.
type PlanStep struct {
	Action    string `json:"action"`
	Technique string `json:"technique,omitempty"`
	Target    string `json:"target,omitempty"`

	Extra map[string]any `json:"-"`
}

// AttackAttempt describes one attempted exploit and its outcome.
type AttackAttempt struct {
	Name    string `json:"name"`
	Command string `json:"command,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	Extra map[string]any `json:"-"`
}

// AnalysisRecord is produced fresh on every analysis pass; a re-analysis
// supersedes the previous record entirely.
type AnalysisRecord struct {
	Vulnerabilities []Vulnerability    `json:"vulnerabilities"`
	AttackPlan      []PlanStep         `json:"attack_plan"`
	Confidence      map[string]float64 `json:"confidence_scores,omitempty"`
	Risk            map[string]string  `json:"risk_assessment,omitempty"`

	NeedsMoreRecon bool     `json:"needs_more_recon"`
	ReconRequests  []string `json:"recon_requests,omitempty"`
	SkipToReport   bool     `json:"skip_to_report"`

	Complete  bool   `json:"analysis_complete"`
	Reasoning string `json:"reasoning,omitempty"`
	Notes     string `json:"notes"`
}

// AttackRecord is produced fresh on every attack pass.
type AttackRecord struct {
	Attempted  []AttackAttempt `json:"attacks_attempted"`
	Successful []AttackAttempt `json:"successful_attacks"`
	Failed     []AttackAttempt `json:"failed_attacks"`

	Confirmed   []Vulnerability `json:"vulnerabilities_confirmed"`
	Evidence    []string        `json:"evidence,omitempty"`
	NewFindings []Vulnerability `json:"new_findings,omitempty"`

	NeedsMoreRecon  bool            `json:"needs_more_recon"`
	NeedsReanalysis bool            `json:"needs_reanalysis"`
	Requests        []ReworkRequest `json:"requests,omitempty"`

	Complete bool   `json:"attack_complete"`
	Notes    string `json:"notes"`
}

// SkippedAttackRecord returns the trivial record used when analysis
// decides there is nothing worth attacking.
func SkippedAttackRecord(reason string) *AttackRecord {
	notes := "attack phase skipped: no exploitable vulnerabilities identified"
	if reason != "" {
		notes += " (" + reason + ")"
	}
	return &AttackRecord{Complete: true, Notes: notes}
}

// ReconRequestTasks collects the task lists of all more-recon rework
// requests, preserving order and dropping duplicates.
func (a *AttackRecord) ReconRequestTasks() []string {
	var tasks []string
	seen := make(map[string]bool)
	for _, req := range a.Requests {
		if req.Type != RequestMoreRecon {
			continue
		}
		for _, task := range req.Tasks {
			if !seen[task] {
				seen[task] = true
				tasks = append(tasks, task)
			}
		}
	}
	return tasks
}

// The four extras-carrying types share the same JSON round-trip scheme:
// known fields are typed, unknown fields survive in Extra. Aliases avoid
// recursing into the custom methods.

func marshalWithExtra(known any, extra map[string]any) ([]byte, error) {
	base, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(extra)+4)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func unmarshalWithExtra(data []byte, known any, knownKeys []string) (map[string]any, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range knownKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

type serviceInfoAlias ServiceInfo

func (s ServiceInfo) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(serviceInfoAlias(s), s.Extra)
}

func (s *ServiceInfo) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*serviceInfoAlias)(s),
		[]string{"name", "version", "port", "description"})
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

type vulnerabilityAlias Vulnerability

func (v Vulnerability) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(vulnerabilityAlias(v), v.Extra)
}

func (v *Vulnerability) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*vulnerabilityAlias)(v),
		[]string{"severity", "title", "description"})
	if err != nil {
		return err
	}
	v.Extra = extra
	return nil
}

type planStepAlias PlanStep

func (p PlanStep) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(planStepAlias(p), p.Extra)
}

func (p *PlanStep) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*planStepAlias)(p),
		[]string{"action", "technique", "target"})
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

type attackAttemptAlias AttackAttempt

func (a AttackAttempt) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(attackAttemptAlias(a), a.Extra)
}

func (a *AttackAttempt) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*attackAttemptAlias)(a),
		[]string{"name", "command", "outcome"})
	if err != nil {
		return err
	}
	a.Extra = extra
	return nil
}
