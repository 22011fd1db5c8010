// Package main provides runtime wiring for assessment runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/kestrelsec/kestrel/internal/agents"
	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/events"
	"github.com/kestrelsec/kestrel/internal/exporter"
	"github.com/kestrelsec/kestrel/internal/gateway"
	"github.com/kestrelsec/kestrel/internal/orchestrator"
	"github.com/kestrelsec/kestrel/internal/scenario"
	"github.com/kestrelsec/kestrel/internal/session"
	"github.com/kestrelsec/kestrel/internal/target"
)

// runtime assembles the components of one assessment run.
type runtime struct {
	cfg            *config.Config
	tgt            *target.Config
	scen           *scenario.Definition
	stem           string
	exportFindings bool

	logger   *logging.Logger
	provider llm.Provider
	gw       agents.ToolGateway
	store    *session.Store
	log      *events.Log
	reporter exporter.Reporter
	telem    telemetry.Exporter

	// Cleanup
	closers []func()
}

// Run executes an assessment scenario.
func (c *RunCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Quiet {
		cfg.Events.Quiet = true
	}

	targetPath := cfg.Target.ConfigPath
	if c.Target != "" {
		targetPath = c.Target
	}
	tgt, err := target.LoadFile(targetPath)
	if err != nil {
		return err
	}

	scen, err := scenario.ParseFile(c.Scenario)
	if err != nil {
		return err
	}

	rt := newRuntime(cfg, tgt, scen, scenario.Stem(c.Scenario))
	rt.exportFindings = c.ExportFindings
	if err := rt.setup(); err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rt.run(ctx, c.ResumeFrom)
}

// loadConfig loads the named config file, or kestrel.toml / defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

// newRuntime creates a runtime from loaded configuration.
func newRuntime(cfg *config.Config, tgt *target.Config, scen *scenario.Definition, stem string) *runtime {
	return &runtime{
		cfg:    cfg,
		tgt:    tgt,
		scen:   scen,
		stem:   stem,
		logger: logging.New(),
	}
}

// setup initializes all runtime components. Returns error on failure.
func (rt *runtime) setup() error {
	if err := rt.createProvider(); err != nil {
		return err
	}
	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	if err := rt.setupSession(); err != nil {
		return err
	}
	if err := rt.setupEvents(); err != nil {
		return err
	}
	rt.setupGateway()
	return rt.setupExporter()
}

// createProvider creates the LLM provider shared by all agents.
func (rt *runtime) createProvider() error {
	providerName := rt.cfg.LLM.Provider
	if providerName == "" {
		providerName = llm.InferProviderFromModel(rt.cfg.LLM.Model)
	}
	if providerName == "" && rt.cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}

	apiKey := rt.cfg.GetAPIKey()
	if apiKey == "" && globalCreds != nil {
		apiKey = globalCreds.GetAPIKey(providerName)
	}

	var err error
	rt.provider, err = llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     rt.cfg.LLM.Model,
		APIKey:    apiKey,
		MaxTokens: rt.cfg.LLM.MaxTokens,
		BaseURL:   rt.cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	return nil
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// setupSession creates the checkpoint store for this scenario's session.
func (rt *runtime) setupSession() error {
	var err error
	rt.store, err = session.NewStore(rt.cfg.Storage.ResultsDir, rt.stem, rt.scen.ID, rt.scen.Name, rt.tgt.Network.URL)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	return nil
}

// setupEvents opens the JSONL run log and attaches configured sinks.
func (rt *runtime) setupEvents() error {
	var sinks []events.Sink
	if !rt.cfg.Events.Quiet {
		sinks = append(sinks, events.NewConsoleSink(os.Stderr))
	}
	if rt.cfg.Events.NATSURL != "" {
		nsink, err := events.NewNATSSink(rt.cfg.Events.NATSURL, rt.cfg.Events.Subject)
		if err != nil {
			// The JSONL log stays authoritative without it.
			fmt.Fprintf(os.Stderr, "warning: NATS sink disabled: %v\n", err)
		} else {
			sinks = append(sinks, nsink)
		}
	}

	var err error
	rt.log, err = events.NewLog(rt.cfg.Storage.LogsDir, rt.store.SessionID(), sinks...)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	rt.addCloser(func() { rt.log.Close() })
	return nil
}

// setupGateway starts the tool gateway when a tool server is configured.
func (rt *runtime) setupGateway() {
	if rt.cfg.Gateway.Command == "" {
		fmt.Fprintln(os.Stderr, "warning: no tool server configured; agents run without tools")
		return
	}
	gw := gateway.New(rt.cfg.Gateway, rt.logger)
	rt.gw = gw
	rt.addCloser(func() { gw.Close() })
}

// setupExporter selects the findings reporter. Without --export-findings
// the run keeps its report but pushes nothing.
func (rt *runtime) setupExporter() error {
	if !rt.exportFindings {
		rt.reporter = exporter.Noop{}
		return nil
	}
	var err error
	rt.reporter, err = exporter.New(rt.cfg.Export, rt.cfg.Storage.ResultsDir, rt.logger)
	if err != nil {
		return fmt.Errorf("creating findings reporter: %w", err)
	}
	return nil
}

// run executes the assessment and prints the result.
func (rt *runtime) run(ctx context.Context, resumeFrom string) error {
	fmt.Fprintf(os.Stderr, "Running assessment: %s (session: %s)\n", rt.scen.Name, rt.store.SessionID())
	fmt.Fprintf(os.Stderr, "Target: %s\n\n", rt.tgt.Network.URL)

	orch := orchestrator.New(rt.cfg, rt.tgt, rt.scen, rt.store, rt.log, rt.provider, rt.gw, rt.reporter, rt.logger)
	result, err := orch.Run(ctx, resumeFrom)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "\n✓ Assessment complete (%d iterations)\n", result.Iterations)
	output, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(output))
	return nil
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}
