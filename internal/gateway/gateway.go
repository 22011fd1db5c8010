// Package gateway mediates all tool access for the assessment agents.
// It owns the lifecycle of the tool server connection and converts every
// failure into data, so an agent's reasoning loop never aborts because a
// probe or exploit attempt misbehaved.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/mcp"

	"github.com/kestrelsec/kestrel/internal/config"
)

// ToolInfo describes one tool exposed by the transport.
type ToolInfo struct {
	Server      string
	Name        string
	Description string
	Schema      map[string]any
}

// transport abstracts the tool server connection so tests can substitute
// a fake without launching a process.
type transport interface {
	Start(ctx context.Context) error
	Tools() []ToolInfo
	Call(ctx context.Context, server, tool string, args map[string]any) (string, error)
	Close() error
}

// Gateway is the single entry point for tool invocation. It starts the
// transport lazily on first use and stays alive for the whole run.
type Gateway struct {
	tr      transport
	logger  *logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	started bool
}

// New creates a gateway over an MCP tool server described by cfg.
func New(cfg config.GatewayConfig, logger *logging.Logger) *Gateway {
	return &Gateway{
		tr:      newMCPTransport(cfg),
		logger:  logger.WithComponent("gateway"),
		timeout: time.Duration(cfg.Timeout) * time.Second,
	}
}

// ensureStarted connects the transport on first use.
func (g *Gateway) ensureStarted(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return nil
	}
	if err := g.tr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tool server: %w", err)
	}
	g.started = true
	g.logger.Info("tool server started", map[string]interface{}{
		"tools": len(g.tr.Tools()),
	})
	return nil
}

// ListTools returns the available tools as LLM tool definitions, sorted
// by name so prompts are stable across runs.
func (g *Gateway) ListTools(ctx context.Context) ([]llm.ToolDef, error) {
	if err := g.ensureStarted(ctx); err != nil {
		return nil, err
	}

	var defs []llm.ToolDef
	for _, t := range g.tr.Tools() {
		defs = append(defs, llm.ToolDef{
			Name:        toolName(t.Server, t.Name),
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Call invokes a tool and always returns a result map. Transport and
// tool failures come back as {"success": false, "error": ...} so agents
// can reason about them instead of crashing the phase.
func (g *Gateway) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	start := time.Now()

	result, err := g.call(ctx, name, args)
	duration := time.Since(start)

	if err != nil {
		g.logger.Warn("tool call failed", map[string]interface{}{
			"tool":        name,
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})
		return map[string]any{
			"success": false,
			"error":   err.Error(),
			"tool":    name,
		}
	}

	g.logger.Debug("tool call ok", map[string]interface{}{
		"tool":        name,
		"duration_ms": duration.Milliseconds(),
	})
	return map[string]any{
		"success": true,
		"tool":    name,
		"output":  result,
	}
}

func (g *Gateway) call(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := g.ensureStarted(ctx); err != nil {
		return "", err
	}

	server, tool, err := splitToolName(name)
	if err != nil {
		return "", err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	return g.tr.Call(ctx, server, tool, args)
}

// Close shuts down the transport if it was started.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return nil
	}
	g.started = false
	return g.tr.Close()
}

// toolName builds the flat name exposed to the LLM: mcp_<server>_<tool>.
func toolName(server, tool string) string {
	return fmt.Sprintf("mcp_%s_%s", server, tool)
}

// splitToolName reverses toolName.
func splitToolName(name string) (server, tool string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(name, "mcp_"), "_", 2)
	if len(parts) != 2 || !strings.HasPrefix(name, "mcp_") {
		return "", "", fmt.Errorf("invalid tool name: %s", name)
	}
	return parts[0], parts[1], nil
}

// mcpTransport backs the gateway with an agentkit MCP manager.
type mcpTransport struct {
	cfg     config.GatewayConfig
	manager *mcp.Manager
}

func newMCPTransport(cfg config.GatewayConfig) *mcpTransport {
	return &mcpTransport{cfg: cfg}
}

func (t *mcpTransport) Start(ctx context.Context) error {
	if t.cfg.Command == "" {
		return fmt.Errorf("no tool server command configured")
	}

	manager := mcp.NewManager()
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := manager.Connect(connectCtx, "tools", mcp.ServerConfig{
		Command: t.cfg.Command,
		Args:    t.cfg.Args,
		Env:     t.cfg.Env,
	}); err != nil {
		return err
	}
	if len(t.cfg.DeniedTools) > 0 {
		manager.SetDeniedTools("tools", t.cfg.DeniedTools)
	}

	t.manager = manager
	return nil
}

func (t *mcpTransport) Tools() []ToolInfo {
	var tools []ToolInfo
	for _, mt := range t.manager.AllTools() {
		tools = append(tools, ToolInfo{
			Server:      mt.Server,
			Name:        mt.Tool.Name,
			Description: mt.Tool.Description,
			Schema:      mt.Tool.InputSchema,
		})
	}
	return tools
}

func (t *mcpTransport) Call(ctx context.Context, server, tool string, args map[string]any) (string, error) {
	result, err := t.manager.CallTool(ctx, server, tool, args)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			output.WriteString(c.Text)
		}
	}
	return output.String(), nil
}

func (t *mcpTransport) Close() error {
	if t.manager != nil {
		t.manager.Close()
	}
	return nil
}
