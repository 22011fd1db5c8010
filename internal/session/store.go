// Package session provides resumable per-scenario persistence for
// assessment runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Phase names the checkpoint slot a record is saved under.
type Phase string

const (
	PhaseRecon    Phase = "recon"
	PhaseAnalysis Phase = "analysis"
	PhaseAttack   Phase = "attack"
	PhaseReport   Phase = "report"

	// PhaseResult labels the final consolidated artifact, which shares
	// the checkpoint envelope but lives outside the resume slots.
	PhaseResult Phase = "result"
)

// ErrNotFound is returned by LoadPhase when no checkpoint exists for
// the requested phase.
var ErrNotFound = errors.New("no checkpoint for phase")

// Envelope wraps a phase record with the identity of the run that
// produced it. Identity fields are validated on load so a checkpoint
// from a different scenario or target is never silently reused.
type Envelope struct {
	Phase        Phase           `json:"phase"`
	SessionID    string          `json:"session_id"`
	ScenarioID   string          `json:"scenario_id"`
	ScenarioName string          `json:"scenario_name"`
	TargetURL    string          `json:"target_url"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
}

// Store manages the single-slot phase checkpoints of one session.
// Each phase has exactly one file; saving a phase again overwrites it.
type Store struct {
	dir          string
	sessionID    string
	scenarioID   string
	scenarioName string
	targetURL    string
	mu           sync.Mutex
}

// DeriveSessionID builds the deterministic session id for a scenario
// filename stem. The same scenario always maps to the same session, so
// a rerun resumes rather than forks.
func DeriveSessionID(stem string) string {
	return "session_" + stem
}

// NewStore creates a session store rooted at resultsDir/<stem>.
func NewStore(resultsDir, stem, scenarioID, scenarioName, targetURL string) (*Store, error) {
	dir := filepath.Join(resultsDir, stem)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{
		dir:          dir,
		sessionID:    DeriveSessionID(stem),
		scenarioID:   scenarioID,
		scenarioName: scenarioName,
		targetURL:    targetURL,
	}, nil
}

// SessionID returns the deterministic id of this session.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Dir returns the directory holding this session's checkpoints.
func (s *Store) Dir() string {
	return s.dir
}

// SavePhase persists a phase record, overwriting any previous
// checkpoint for that phase.
func (s *Store) SavePhase(phase Phase, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEnveloped(phase, s.phasePath(phase), record)
}

// writeEnveloped persists a record wrapped in the session envelope.
// Callers must hold s.mu.
func (s *Store) writeEnveloped(phase Phase, path string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", phase, err)
	}

	env := Envelope{
		Phase:        phase,
		SessionID:    s.sessionID,
		ScenarioID:   s.scenarioID,
		ScenarioName: s.scenarioName,
		TargetURL:    s.targetURL,
		Timestamp:    time.Now().UTC(),
		Data:         raw,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadPhase reads a phase checkpoint into record. It returns
// ErrNotFound when the slot is empty and a validation error when the
// checkpoint belongs to a different session or target.
func (s *Store) LoadPhase(phase Phase, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.phasePath(phase))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, phase)
		}
		return fmt.Errorf("failed to read %s checkpoint: %w", phase, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("corrupt %s checkpoint: %w", phase, err)
	}

	if env.SessionID != s.sessionID {
		return fmt.Errorf("%s checkpoint belongs to session %q, not %q", phase, env.SessionID, s.sessionID)
	}
	if env.TargetURL != s.targetURL {
		return fmt.Errorf("%s checkpoint was recorded against target %q, current target is %q", phase, env.TargetURL, s.targetURL)
	}

	if err := json.Unmarshal(env.Data, record); err != nil {
		return fmt.Errorf("failed to decode %s record: %w", phase, err)
	}
	return nil
}

// HasPhase reports whether a checkpoint exists for a phase.
func (s *Store) HasPhase(phase Phase) bool {
	_, err := os.Stat(s.phasePath(phase))
	return err == nil
}

// SaveResult persists the final assessment artifact next to the phase
// checkpoints, wrapped in the same envelope as they are.
func (s *Store) SaveResult(result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEnveloped(PhaseResult, filepath.Join(s.dir, "assessment_result.json"), result)
}

func (s *Store) phasePath(phase Phase) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", phase))
}
