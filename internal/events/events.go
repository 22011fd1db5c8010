// Package events provides the structured run log for assessments.
// Every significant orchestrator action is emitted as one Event, written
// to an append-only JSONL file and fanned out to optional sinks.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types for the run log.
const (
	TypeRunStart      = "run_start"
	TypeRunEnd        = "run_end"
	TypePhaseStart    = "phase_start"
	TypePhaseComplete = "phase_complete"
	TypeIteration     = "iteration"
	TypeToolCall      = "tool_call"
	TypeToolResult    = "tool_result"
	TypeReworkRequest = "rework_request"
	TypeCheckpoint    = "checkpoint"
	TypeResume        = "resume"
	TypeExport        = "export"
	TypeError         = "error"
)

// Event is a single entry in the run log. This is the forensic record
// replay and analysis tools read from.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`

	// CorrelationID links related events, e.g. a tool_call to its
	// tool_result.
	CorrelationID string `json:"corr_id,omitempty"`

	Phase     string `json:"phase,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	Agent     string `json:"agent,omitempty"`

	Tool string         `json:"tool,omitempty"`
	Args map[string]any `json:"args,omitempty"`

	Content string `json:"content,omitempty"`

	Success    *bool  `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Sink receives every event emitted to a Log. Emit must not block the
// orchestrator for long; failures are swallowed because the JSONL file
// remains the source of truth.
type Sink interface {
	Emit(Event)
	Close() error
}

// Log writes events to a per-session JSONL file and mirrors them to
// attached sinks.
type Log struct {
	sessionID string
	path      string
	file      *os.File
	sinks     []Sink
	seq       uint64
	mu        sync.Mutex
}

// NewLog opens (or appends to) the event log for a session.
func NewLog(logsDir, sessionID string, sinks ...Sink) (*Log, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join(logsDir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &Log{
		sessionID: sessionID,
		path:      path,
		file:      f,
		sinks:     sinks,
	}, nil
}

// Path returns the JSONL file backing this log.
func (l *Log) Path() string {
	return l.path
}

// Emit records an event, assigning its sequence number and timestamp.
func (l *Log) Emit(e Event) {
	e.SeqID = atomic.AddUint64(&l.seq, 1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.SessionID = l.sessionID

	l.mu.Lock()
	if data, err := json.Marshal(e); err == nil {
		l.file.Write(data)
		l.file.WriteString("\n")
	}
	l.mu.Unlock()

	for _, s := range l.sinks {
		s.Emit(e)
	}
}

// StartCorrelation generates a new correlation ID for linking related events.
func (l *Log) StartCorrelation() string {
	return uuid.NewString()[:8]
}

// Close flushes the log file and closes all sinks.
func (l *Log) Close() error {
	l.mu.Lock()
	err := l.file.Close()
	l.mu.Unlock()

	for _, s := range l.sinks {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
