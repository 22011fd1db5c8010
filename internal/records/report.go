package records

import "time"

// SummaryStats are the counts surfaced in the final report. Each count
// must equal the length of the underlying list it summarizes.
type SummaryStats struct {
	Services        int `json:"services_count"`
	Endpoints       int `json:"endpoints_count"`
	Vulnerabilities int `json:"vulnerabilities_identified"`
	Attempts        int `json:"attacks_attempted"`
	Successful      int `json:"successful_exploits"`
	Confirmed       int `json:"confirmed_vulnerabilities"`
}

// Report is the consolidated output of the report phase: raw per-phase
// data plus the model's narrative synthesis.
type Report struct {
	ID           string `json:"report_id"`
	ScenarioName string `json:"scenario_name"`
	Goal         string `json:"goal"`
	TargetURL    string `json:"target_url"`

	Recon    *ReconRecord    `json:"reconnaissance"`
	Analysis *AnalysisRecord `json:"analysis"`
	Attack   *AttackRecord   `json:"attack"`

	Stats     SummaryStats   `json:"summary_stats"`
	Synthesis map[string]any `json:"synthesized,omitempty"`

	// Degraded marks a report assembled from incomplete records, either
	// because the iteration cap was hit or a phase output could not be
	// fully parsed. Reasons lists why.
	Degraded        bool     `json:"degraded,omitempty"`
	DegradedReasons []string `json:"degraded_reasons,omitempty"`

	Exported    bool      `json:"findings_exported"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AssessmentResult is the full outcome of one run, persisted as the
// final per-scenario artifact.
type AssessmentResult struct {
	SessionID    string `json:"session_id"`
	ScenarioID   string `json:"scenario_id"`
	ScenarioName string `json:"scenario_name"`
	TargetURL    string `json:"target_url"`
	Iterations   int    `json:"iterations"`
	Status       string `json:"status"`

	Recon    *ReconRecord    `json:"recon_data"`
	Analysis *AnalysisRecord `json:"analysis_data"`
	Attack   *AttackRecord   `json:"attack_data"`
	Report   *Report         `json:"report"`
}
