// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the explicit settings value constructed once at process
// start and passed into the orchestrator and its collaborators.
type Config struct {
	LLM          LLMConfig          `toml:"llm"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Storage      StorageConfig      `toml:"storage"`
	Gateway      GatewayConfig      `toml:"gateway"`
	Target       TargetConfig       `toml:"target"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
	Events       EventsConfig       `toml:"events"`
	Export       ExportConfig       `toml:"export"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint
	Timeout   int    `toml:"timeout"`  // Seconds per chat call (default 120)
}

// OrchestratorConfig bounds the assessment loop and agent budgets.
type OrchestratorConfig struct {
	MaxIterations      int `toml:"max_iterations"`       // Attack feedback rounds (default 3)
	MaxReconTurns      int `toml:"max_recon_turns"`      // LLM turns per recon pass
	MaxAnalysisTurns   int `toml:"max_analysis_turns"`   // LLM turns per analysis pass
	MaxAttackTurns     int `toml:"max_attack_turns"`     // LLM turns per attack pass
	ContextWindowTurns int `toml:"context_window_turns"` // Conversation turns kept when truncating
	ConnectTimeout     int `toml:"connect_timeout"`      // Preflight probe timeout in seconds
}

// StorageConfig locates persisted sessions and event logs.
type StorageConfig struct {
	ResultsDir string `toml:"results_dir"`
	LogsDir    string `toml:"logs_dir"`
}

// GatewayConfig configures the tool server the gateway launches.
type GatewayConfig struct {
	Command     string            `toml:"command"`
	Args        []string          `toml:"args,omitempty"`
	Env         map[string]string `toml:"env,omitempty"`
	DeniedTools []string          `toml:"denied_tools,omitempty"` // Tools to exclude from LLM
	Timeout     int               `toml:"timeout"`                // Tool call timeout in seconds (default 60)
}

// TargetConfig points at the target definition file.
type TargetConfig struct {
	ConfigPath string `toml:"config_path"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
	Insecure bool   `toml:"insecure"`
}

// EventsConfig configures the structured event log sinks.
type EventsConfig struct {
	NATSURL string `toml:"nats_url"` // Optional; empty disables the NATS sink
	Subject string `toml:"subject"`
	Quiet   bool   `toml:"quiet"` // Suppress the console projection
}

// ExportConfig selects where confirmed findings are pushed.
type ExportConfig struct {
	Reporter    string `toml:"reporter"` // defectdojo, local, none
	URL         string `toml:"url"`
	TokenEnv    string `toml:"token_env"`
	ProductName string `toml:"product_name"`
	TestID      int    `toml:"test_id"`
	Timeout     int    `toml:"timeout"` // Seconds per tracker request (default 30)
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
			Timeout:   120,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:      3,
			MaxReconTurns:      15,
			MaxAnalysisTurns:   8,
			MaxAttackTurns:     20,
			ContextWindowTurns: 12,
			ConnectTimeout:     5,
		},
		Storage: StorageConfig{
			ResultsDir: "results",
			LogsDir:    "logs",
		},
		Gateway: GatewayConfig{
			Timeout: 60,
		},
		Target: TargetConfig{
			ConfigPath: "target_config.json",
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
		},
		Events: EventsConfig{
			Subject: "kestrel.events",
		},
		Export: ExportConfig{
			Reporter: "local",
			TokenEnv: "REPORTER_TOKEN",
			Timeout:  30,
		},
	}
}

// LoadFile loads configuration from a TOML file on top of defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads kestrel.toml from the current directory if present,
// otherwise returns defaults.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, "kestrel.toml")
	if _, err := os.Stat(path); err != nil {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// GetExportToken returns the tracker token from the configured environment variable.
func (e ExportConfig) GetExportToken() string {
	if e.TokenEnv == "" {
		return ""
	}
	return os.Getenv(e.TokenEnv)
}
