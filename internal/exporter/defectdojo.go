package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/records"
)

// DefectDojo pushes each confirmed vulnerability as a finding via the
// DefectDojo v2 API.
type DefectDojo struct {
	url    string
	token  string
	testID int
	client *http.Client
	logger *logging.Logger
}

func newDefectDojo(cfg config.ExportConfig, logger *logging.Logger) *DefectDojo {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DefectDojo{
		url:    strings.TrimRight(cfg.URL, "/"),
		token:  cfg.GetExportToken(),
		testID: cfg.TestID,
		client: &http.Client{Timeout: timeout},
		logger: logger.WithComponent("defectdojo"),
	}
}

func (d *DefectDojo) Name() string { return "defectdojo" }

// Export creates one finding per confirmed vulnerability. The first
// delivery failure aborts the batch; partial exports are reported.
func (d *DefectDojo) Export(ctx context.Context, report *records.Report) error {
	findings := confirmedFindings(report)
	if len(findings) == 0 {
		d.logger.Info("nothing to export", nil)
		return nil
	}

	for i, v := range findings {
		if err := d.createFinding(ctx, report, v); err != nil {
			return fmt.Errorf("exported %d/%d findings: %w", i, len(findings), err)
		}
	}

	d.logger.Info("findings exported", map[string]interface{}{
		"count": len(findings),
	})
	return nil
}

func (d *DefectDojo) createFinding(ctx context.Context, report *records.Report, v records.Vulnerability) error {
	payload := map[string]any{
		"title":       v.Title,
		"description": findingDescription(report, v),
		"severity":    dojoSeverity(v.Severity),
		"test":        d.testID,
		"active":      true,
		"verified":    true,
		"date":        report.GeneratedAt.Format("2006-01-02"),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url+"/api/v2/findings/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("tracker unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracker rejected finding %q: %s: %s", v.Title, resp.Status, msg)
	}
	return nil
}

func findingDescription(report *records.Report, v records.Vulnerability) string {
	var b strings.Builder
	b.WriteString(v.Description)
	fmt.Fprintf(&b, "\n\nTarget: %s\nScenario: %s\nSession report: %s", report.TargetURL, report.ScenarioName, report.ID)
	return b.String()
}

// dojoSeverity maps record severities onto the fixed DefectDojo set.
func dojoSeverity(s string) string {
	switch strings.ToLower(s) {
	case "critical":
		return "Critical"
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	default:
		return "Info"
	}
}

// confirmedFindings returns what is worth tracking: confirmed
// vulnerabilities plus anything new the attack phase surfaced.
func confirmedFindings(report *records.Report) []records.Vulnerability {
	if report.Attack == nil {
		return nil
	}
	findings := make([]records.Vulnerability, 0, len(report.Attack.Confirmed)+len(report.Attack.NewFindings))
	findings = append(findings, report.Attack.Confirmed...)
	findings = append(findings, report.Attack.NewFindings...)
	return findings
}
