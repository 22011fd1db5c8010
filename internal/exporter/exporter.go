// Package exporter pushes confirmed findings to a vulnerability tracker.
package exporter

import (
	"context"
	"fmt"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/records"
)

// Reporter delivers the findings of a finished assessment somewhere
// useful. Export failures must not fail the run; the orchestrator logs
// them and keeps the report.
type Reporter interface {
	Name() string
	Export(ctx context.Context, report *records.Report) error
}

// New builds the reporter selected by configuration.
func New(cfg config.ExportConfig, resultsDir string, logger *logging.Logger) (Reporter, error) {
	switch cfg.Reporter {
	case "defectdojo":
		if cfg.URL == "" {
			return nil, fmt.Errorf("defectdojo reporter needs export.url")
		}
		return newDefectDojo(cfg, logger), nil
	case "local", "":
		return newLocal(resultsDir, logger), nil
	case "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown reporter %q (want defectdojo, local or none)", cfg.Reporter)
	}
}

// Noop discards findings.
type Noop struct{}

func (Noop) Name() string { return "none" }

func (Noop) Export(ctx context.Context, report *records.Report) error { return nil }
