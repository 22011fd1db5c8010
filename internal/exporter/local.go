package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/records"
)

// Local writes the findings next to the session results so air-gapped
// runs still produce a tracker-shaped artifact.
type Local struct {
	dir    string
	logger *logging.Logger
}

func newLocal(resultsDir string, logger *logging.Logger) *Local {
	return &Local{
		dir:    filepath.Join(resultsDir, "findings"),
		logger: logger.WithComponent("local-export"),
	}
}

func (l *Local) Name() string { return "local" }

// Export writes one JSON file per report, named after the report id.
func (l *Local) Export(ctx context.Context, report *records.Report) error {
	findings := confirmedFindings(report)

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create findings directory: %w", err)
	}

	payload := map[string]any{
		"report_id":  report.ID,
		"scenario":   report.ScenarioName,
		"target_url": report.TargetURL,
		"generated":  report.GeneratedAt,
		"findings":   findings,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(l.dir, report.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	l.logger.Info("findings written", map[string]interface{}{
		"path":  path,
		"count": len(findings),
	})
	return nil
}
