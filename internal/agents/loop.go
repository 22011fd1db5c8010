// Package agents implements the four assessment agents and the bounded
// reasoning loop they share.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/events"
)

// ToolGateway is the slice of the gateway the reasoning loop needs.
type ToolGateway interface {
	ListTools(ctx context.Context) ([]llm.ToolDef, error)
	Call(ctx context.Context, name string, args map[string]any) map[string]any
}

// Runner drives one agent's conversation with the LLM. Each phase pass
// gets a fresh conversation; tool access and turn budgets come from the
// orchestrator.
type Runner struct {
	provider llm.Provider
	gateway  ToolGateway
	logger   *logging.Logger
	events   *events.Log

	maxTurns int
	window   int
}

// NewRunner creates a reasoning loop runner. gateway may be nil for
// agents that reason without tools.
func NewRunner(provider llm.Provider, gateway ToolGateway, logger *logging.Logger, log *events.Log, maxTurns, window int) *Runner {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Runner{
		provider: provider,
		gateway:  gateway,
		logger:   logger,
		events:   log,
		maxTurns: maxTurns,
		window:   window,
	}
}

// Run executes the reasoning loop until the model answers without tool
// calls or the turn budget runs out. On exhaustion the model gets one
// final turn, without tools, to produce its answer.
func (r *Runner) Run(ctx context.Context, agent, phase, system, prompt string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}

	var toolDefs []llm.ToolDef
	if r.gateway != nil {
		defs, err := r.gateway.ListTools(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: %w", agent, err)
		}
		toolDefs = defs
	}

	for turn := 0; turn < r.maxTurns; turn++ {
		resp, err := r.provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("%s: LLM error: %w", agent, err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, r.executeTools(ctx, agent, phase, resp.ToolCalls)...)
		messages = truncate(messages, r.window)
	}

	// Budget exhausted. One last turn without tools forces the answer.
	r.logger.Warn("turn budget exhausted, forcing final answer", map[string]interface{}{
		"agent": agent,
		"turns": r.maxTurns,
	})
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: "Tool budget exhausted. Respond now with only your final JSON object based on everything gathered so far.",
	})
	resp, err := r.provider.Chat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("%s: LLM error on final turn: %w", agent, err)
	}
	return resp.Content, nil
}

// executeTools runs tool calls sequentially. Assessment tools hit a live
// target, so order is preserved and failures come back as tool output.
func (r *Runner) executeTools(ctx context.Context, agent, phase string, calls []llm.ToolCallResponse) []llm.Message {
	messages := make([]llm.Message, 0, len(calls))
	for _, tc := range calls {
		start := time.Now()
		corrID := r.correlation()

		r.emit(events.Event{
			Type:          events.TypeToolCall,
			CorrelationID: corrID,
			Agent:         agent,
			Phase:         phase,
			Tool:          tc.Name,
			Args:          tc.Args,
		})

		result := r.gateway.Call(ctx, tc.Name, tc.Args)
		duration := time.Since(start)

		success, _ := result["success"].(bool)
		evt := events.Event{
			Type:          events.TypeToolResult,
			CorrelationID: corrID,
			Agent:         agent,
			Phase:         phase,
			Tool:          tc.Name,
			Success:       &success,
			DurationMs:    duration.Milliseconds(),
		}
		if msg, ok := result["error"].(string); ok {
			evt.Error = msg
		}
		r.emit(evt)

		content, err := json.Marshal(result)
		if err != nil {
			content = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
		}
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: tc.ID,
			Content:    string(content),
		})
	}
	return messages
}

func (r *Runner) emit(e events.Event) {
	if r.events != nil {
		r.events.Emit(e)
	}
}

func (r *Runner) correlation() string {
	if r.events != nil {
		return r.events.StartCorrelation()
	}
	return ""
}

// truncate keeps the system message plus the most recent window of
// conversation turns. The cut never lands between an assistant message
// and its tool results; the slice grows backwards until the owning
// assistant message is included.
func truncate(messages []llm.Message, window int) []llm.Message {
	if window <= 0 || len(messages) <= window+1 {
		return messages
	}

	start := len(messages) - window
	for start > 1 && messages[start].Role == "tool" {
		start--
	}
	if start <= 1 {
		return messages
	}

	kept := make([]llm.Message, 0, len(messages)-start+1)
	kept = append(kept, messages[0])
	kept = append(kept, messages[start:]...)
	return kept
}
