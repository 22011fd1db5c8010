// Package orchestrator drives the multi-phase assessment state machine:
// recon, analysis, attack and report, with bounded feedback loops
// between them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/agents"
	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/events"
	"github.com/kestrelsec/kestrel/internal/exporter"
	"github.com/kestrelsec/kestrel/internal/records"
	"github.com/kestrelsec/kestrel/internal/scenario"
	"github.com/kestrelsec/kestrel/internal/session"
	"github.com/kestrelsec/kestrel/internal/target"
)

// Assessment status values.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Resume stages, in phase order.
const (
	stageRecon = iota
	stageAnalyze
	stageAttack
	stageReport
)

// How many same-iteration recon retries an analysis pass may trigger
// before its verdict is accepted as-is.
const maxAnalysisReconRetries = 2

// Orchestrator owns one assessment run end to end.
type Orchestrator struct {
	cfg    *config.Config
	tgt    *target.Config
	scen   *scenario.Definition
	store  *session.Store
	log    *events.Log
	logger *logging.Logger

	recon    *agents.ReconAgent
	analysis *agents.AnalysisAgent
	attack   *agents.AttackAgent
	report   *agents.ReportAgent

	reporter exporter.Reporter

	// preflight is replaceable so tests can run without a live target.
	preflight func(ctx context.Context) error
}

// New wires the orchestrator. Recon and attack agents get tool access;
// analysis and report reason over the records alone.
func New(cfg *config.Config, tgt *target.Config, scen *scenario.Definition, store *session.Store, log *events.Log, provider llm.Provider, gw agents.ToolGateway, reporter exporter.Reporter, logger *logging.Logger) *Orchestrator {
	oc := cfg.Orchestrator
	window := oc.ContextWindowTurns

	o := &Orchestrator{
		cfg:      cfg,
		tgt:      tgt,
		scen:     scen,
		store:    store,
		log:      log,
		logger:   logger.WithComponent("orchestrator"),
		recon:    agents.NewReconAgent(agents.NewRunner(provider, gw, logger, log, oc.MaxReconTurns, window), logger),
		analysis: agents.NewAnalysisAgent(agents.NewRunner(provider, nil, logger, log, oc.MaxAnalysisTurns, window), logger),
		attack:   agents.NewAttackAgent(agents.NewRunner(provider, gw, logger, log, oc.MaxAttackTurns, window), logger),
		report:   agents.NewReportAgent(agents.NewRunner(provider, nil, logger, log, oc.MaxAnalysisTurns, window), logger),
		reporter: reporter,
	}
	o.preflight = o.checkConnectivity
	return o
}

// Run executes the assessment, optionally resuming at a later phase
// from this session's checkpoints. resumeFrom is one of "", "recon",
// "analyze", "attack" or "report".
func (o *Orchestrator) Run(ctx context.Context, resumeFrom string) (*records.AssessmentResult, error) {
	stage, err := resumeStage(resumeFrom)
	if err != nil {
		return nil, err
	}

	ctx, span := o.startRunSpan(ctx)
	start := time.Now()

	result, err := o.run(ctx, stage)
	o.endRunSpan(span, result, err)

	if err != nil {
		o.log.Emit(events.Event{Type: events.TypeError, Error: err.Error()})
		return nil, err
	}

	o.log.Emit(events.Event{
		Type:       events.TypeRunEnd,
		Content:    result.Status,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, stage int) (*records.AssessmentResult, error) {
	o.log.Emit(events.Event{
		Type:    events.TypeRunStart,
		Content: fmt.Sprintf("%s against %s", o.scen.Name, o.tgt.Network.URL),
	})

	// Fail fast before touching any checkpoint.
	if err := o.preflight(ctx); err != nil {
		return nil, err
	}

	var (
		recon    *records.ReconRecord
		analysis *records.AnalysisRecord
		attack   *records.AttackRecord
	)

	if stage > stageRecon {
		recon = &records.ReconRecord{}
		if err := o.loadPrerequisite(session.PhaseRecon, recon, "recon"); err != nil {
			return nil, err
		}
	}
	if stage > stageAnalyze {
		analysis = &records.AnalysisRecord{}
		if err := o.loadPrerequisite(session.PhaseAnalysis, analysis, "analyze"); err != nil {
			return nil, err
		}
	}
	if stage > stageAttack {
		attack = &records.AttackRecord{}
		if err := o.loadPrerequisite(session.PhaseAttack, attack, "attack"); err != nil {
			return nil, err
		}
	}
	if stage > stageRecon {
		o.log.Emit(events.Event{
			Type:    events.TypeResume,
			Content: fmt.Sprintf("loaded checkpoints, continuing from %s", stageName(stage)),
		})
	}

	if stage <= stageRecon {
		var err error
		recon, err = o.runRecon(ctx)
		if err != nil {
			return nil, err
		}
	}

	// The recon requests already fulfilled this run. Repeating them
	// would burn turns on questions the target has already answered.
	asked := make(map[string]bool)

	var degradedReasons []string
	iterations := 0

	if stage < stageReport {
		reanalyze := analysis == nil
		converged := false

		for iterations < o.cfg.Orchestrator.MaxIterations {
			iterations++
			o.log.Emit(events.Event{
				Type:      events.TypeIteration,
				Iteration: iterations,
				Content:   fmt.Sprintf("iteration %d of %d", iterations, o.cfg.Orchestrator.MaxIterations),
			})

			if reanalyze {
				var err error
				analysis, recon, err = o.runAnalysis(ctx, recon, asked, iterations)
				if err != nil {
					return nil, err
				}
			}

			if analysis.SkipToReport {
				attack = records.SkippedAttackRecord(analysis.Reasoning)
				if err := o.savePhase(session.PhaseAttack, attack, iterations); err != nil {
					return nil, err
				}
				converged = true
				break
			}

			var err error
			attack, err = o.runAttack(ctx, recon, analysis, iterations)
			if err != nil {
				return nil, err
			}

			if attack.NeedsMoreRecon {
				tasks := filterNew(attack.ReconRequestTasks(), asked)
				o.emitRework("attack", records.RequestMoreRecon, iterations)
				if len(tasks) > 0 {
					recon, err = o.runAdditionalRecon(ctx, recon, tasks, iterations)
					if err != nil {
						return nil, err
					}
				}
				reanalyze = true
				continue
			}
			if attack.NeedsReanalysis {
				o.emitRework("attack", records.RequestReanalysis, iterations)
				reanalyze = true
				continue
			}

			converged = true
			break
		}

		if !converged {
			degradedReasons = append(degradedReasons,
				fmt.Sprintf("iteration cap (%d) reached before the attack phase converged", o.cfg.Orchestrator.MaxIterations))
		}
	}

	degradedReasons = append(degradedReasons, incompleteRecordReasons(recon, analysis, attack)...)

	report, err := o.runReport(ctx, recon, analysis, attack, degradedReasons)
	if err != nil {
		return nil, err
	}

	result := &records.AssessmentResult{
		SessionID:    o.store.SessionID(),
		ScenarioID:   o.scen.ID,
		ScenarioName: o.scen.Name,
		TargetURL:    o.tgt.Network.URL,
		Iterations:   iterations,
		Status:       StatusComplete,
		Recon:        recon,
		Analysis:     analysis,
		Attack:       attack,
		Report:       report,
	}
	if err := o.store.SaveResult(result); err != nil {
		return nil, err
	}
	return result, nil
}

// runRecon executes the initial reconnaissance pass.
func (o *Orchestrator) runRecon(ctx context.Context) (*records.ReconRecord, error) {
	ctx, span := o.startPhaseSpan(ctx, "recon")
	start := o.emitPhaseStart("recon", 1)

	recon, err := o.recon.GatherIntelligence(ctx, o.tgt, o.scen)
	o.endPhaseSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("recon phase: %w", err)
	}

	if err := o.savePhase(session.PhaseRecon, recon, 1); err != nil {
		return nil, err
	}
	o.emitPhaseComplete("recon", 1, start)
	return recon, nil
}

// runAnalysis analyzes the recon data, honoring same-iteration recon
// retries: when the analyst names concrete gaps, recon fills them and
// analysis runs again without consuming an iteration.
func (o *Orchestrator) runAnalysis(ctx context.Context, recon *records.ReconRecord, asked map[string]bool, iteration int) (*records.AnalysisRecord, *records.ReconRecord, error) {
	ctx, span := o.startPhaseSpan(ctx, "analyze")
	start := o.emitPhaseStart("analyze", iteration)

	var analysis *records.AnalysisRecord
	for retry := 0; ; retry++ {
		var err error
		analysis, err = o.analysis.Analyze(ctx, recon, o.scen)
		if err != nil {
			o.endPhaseSpan(span, err)
			return nil, nil, fmt.Errorf("analysis phase: %w", err)
		}

		if !analysis.NeedsMoreRecon || retry >= maxAnalysisReconRetries {
			break
		}
		tasks := filterNew(analysis.ReconRequests, asked)
		if len(tasks) == 0 {
			break
		}

		o.emitRework("analyze", records.RequestMoreRecon, iteration)
		recon, err = o.runAdditionalRecon(ctx, recon, tasks, iteration)
		if err != nil {
			o.endPhaseSpan(span, err)
			return nil, nil, err
		}
	}
	o.endPhaseSpan(span, nil)

	if err := o.savePhase(session.PhaseAnalysis, analysis, iteration); err != nil {
		return nil, nil, err
	}
	o.emitPhaseComplete("analyze", iteration, start)
	return analysis, recon, nil
}

// runAdditionalRecon fulfils specific recon requests and checkpoints
// the merged record.
func (o *Orchestrator) runAdditionalRecon(ctx context.Context, recon *records.ReconRecord, tasks []string, iteration int) (*records.ReconRecord, error) {
	merged, err := o.recon.GatherAdditional(ctx, o.tgt, recon, tasks)
	if err != nil {
		return nil, fmt.Errorf("additional recon: %w", err)
	}
	if err := o.savePhase(session.PhaseRecon, merged, iteration); err != nil {
		return nil, err
	}
	return merged, nil
}

func (o *Orchestrator) runAttack(ctx context.Context, recon *records.ReconRecord, analysis *records.AnalysisRecord, iteration int) (*records.AttackRecord, error) {
	ctx, span := o.startPhaseSpan(ctx, "attack")
	start := o.emitPhaseStart("attack", iteration)

	attack, err := o.attack.Execute(ctx, recon, analysis, o.scen)
	o.endPhaseSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("attack phase: %w", err)
	}

	if err := o.savePhase(session.PhaseAttack, attack, iteration); err != nil {
		return nil, err
	}
	o.emitPhaseComplete("attack", iteration, start)
	return attack, nil
}

func (o *Orchestrator) runReport(ctx context.Context, recon *records.ReconRecord, analysis *records.AnalysisRecord, attack *records.AttackRecord, degradedReasons []string) (*records.Report, error) {
	ctx, span := o.startPhaseSpan(ctx, "report")
	start := o.emitPhaseStart("report", 0)

	report, err := o.report.Generate(ctx, o.tgt, o.scen, recon, analysis, attack)
	o.endPhaseSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("report phase: %w", err)
	}

	if len(degradedReasons) > 0 {
		report.Degraded = true
		report.DegradedReasons = degradedReasons
	}

	o.export(ctx, report)

	if err := o.savePhase(session.PhaseReport, report, 0); err != nil {
		return nil, err
	}
	o.emitPhaseComplete("report", 0, start)
	return report, nil
}

// export pushes the findings. Delivery failure never fails the run.
func (o *Orchestrator) export(ctx context.Context, report *records.Report) {
	if o.reporter == nil {
		return
	}
	if err := o.reporter.Export(ctx, report); err != nil {
		o.logger.Warn("findings export failed", map[string]interface{}{
			"reporter": o.reporter.Name(),
			"error":    err.Error(),
		})
		o.log.Emit(events.Event{Type: events.TypeError, Error: "export failed: " + err.Error()})
		return
	}
	report.Exported = true
	o.log.Emit(events.Event{
		Type:    events.TypeExport,
		Content: fmt.Sprintf("%d findings via %s", len(report.Attack.Confirmed)+len(report.Attack.NewFindings), o.reporter.Name()),
	})
}

func (o *Orchestrator) savePhase(phase session.Phase, record any, iteration int) error {
	if err := o.store.SavePhase(phase, record); err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", phase, err)
	}
	o.log.Emit(events.Event{
		Type:      events.TypeCheckpoint,
		Phase:     string(phase),
		Iteration: iteration,
		Content:   fmt.Sprintf("%s checkpoint saved", phase),
	})
	return nil
}

// loadPrerequisite loads a checkpoint a resumed run depends on, turning
// an empty slot into an actionable error.
func (o *Orchestrator) loadPrerequisite(phase session.Phase, record any, stageFlag string) error {
	err := o.store.LoadPhase(phase, record)
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("cannot resume: no %s checkpoint exists for session %s; run without --resume-from or resume from %q",
			phase, o.store.SessionID(), stageFlag)
	}
	return err
}

func (o *Orchestrator) emitPhaseStart(phase string, iteration int) time.Time {
	o.logger.PhaseStart(phase, o.scen.Name, "")
	o.log.Emit(events.Event{
		Type:      events.TypePhaseStart,
		Phase:     phase,
		Iteration: iteration,
	})
	return time.Now()
}

func (o *Orchestrator) emitPhaseComplete(phase string, iteration int, start time.Time) {
	o.logger.PhaseComplete(phase, o.scen.Name, "", time.Since(start), "complete")
	o.log.Emit(events.Event{
		Type:       events.TypePhaseComplete,
		Phase:      phase,
		Iteration:  iteration,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func (o *Orchestrator) emitRework(phase, requestType string, iteration int) {
	o.log.Emit(events.Event{
		Type:      events.TypeReworkRequest,
		Phase:     phase,
		Iteration: iteration,
		Content:   requestType,
	})
}

// filterNew returns the tasks not asked before, marking them as asked.
func filterNew(tasks []string, asked map[string]bool) []string {
	var fresh []string
	for _, t := range tasks {
		if !asked[t] {
			asked[t] = true
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func incompleteRecordReasons(recon *records.ReconRecord, analysis *records.AnalysisRecord, attack *records.AttackRecord) []string {
	var reasons []string
	if recon != nil && !recon.Complete {
		reasons = append(reasons, "recon record incomplete")
	}
	if analysis != nil && !analysis.Complete {
		reasons = append(reasons, "analysis record incomplete")
	}
	if attack != nil && !attack.Complete {
		reasons = append(reasons, "attack record incomplete")
	}
	return reasons
}

func resumeStage(name string) (int, error) {
	switch name {
	case "", "recon":
		return stageRecon, nil
	case "analyze", "analysis":
		return stageAnalyze, nil
	case "attack":
		return stageAttack, nil
	case "report":
		return stageReport, nil
	default:
		return 0, fmt.Errorf("unknown resume phase %q (want recon, analyze, attack or report)", name)
	}
}

func stageName(stage int) string {
	switch stage {
	case stageAnalyze:
		return "analyze"
	case stageAttack:
		return "attack"
	case stageReport:
		return "report"
	default:
		return "recon"
	}
}
