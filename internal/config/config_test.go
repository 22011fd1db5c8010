package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	if cfg.Orchestrator.MaxIterations != 3 {
		t.Errorf("max_iterations = %d", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Storage.ResultsDir != "results" || cfg.Storage.LogsDir != "logs" {
		t.Errorf("storage defaults = %+v", cfg.Storage)
	}
	if cfg.Export.Reporter != "local" {
		t.Errorf("export.reporter = %q", cfg.Export.Reporter)
	}
	if cfg.LLM.Timeout != 120 {
		t.Errorf("llm.timeout = %d", cfg.LLM.Timeout)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestrel.toml")
	content := `
[llm]
provider = "anthropic"
model = "claude-sonnet-4-20250514"

[orchestrator]
max_iterations = 5

[gateway]
command = "uvx"
args = ["security-tools-mcp"]
denied_tools = ["shell_exec"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Orchestrator.MaxIterations != 5 {
		t.Errorf("max_iterations = %d", cfg.Orchestrator.MaxIterations)
	}
	// Sections the file omits keep their defaults.
	if cfg.Orchestrator.MaxReconTurns != 15 {
		t.Errorf("max_recon_turns = %d", cfg.Orchestrator.MaxReconTurns)
	}
	if len(cfg.Gateway.DeniedTools) != 1 {
		t.Errorf("denied_tools = %v", cfg.Gateway.DeniedTools)
	}
}

func TestLoadFileRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestrel.toml")
	if err := os.WriteFile(path, []byte("[llm\nbroken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetAPIKey(t *testing.T) {
	cfg := New()
	cfg.LLM.Provider = "anthropic"

	t.Setenv("ANTHROPIC_API_KEY", "from-default-env")
	if got := cfg.GetAPIKey(); got != "from-default-env" {
		t.Errorf("GetAPIKey = %q", got)
	}

	cfg.LLM.APIKeyEnv = "MY_CUSTOM_KEY"
	t.Setenv("MY_CUSTOM_KEY", "from-custom-env")
	if got := cfg.GetAPIKey(); got != "from-custom-env" {
		t.Errorf("GetAPIKey with api_key_env = %q", got)
	}
}

func TestGetExportToken(t *testing.T) {
	cfg := New()
	t.Setenv("REPORTER_TOKEN", "tok-123")
	if got := cfg.Export.GetExportToken(); got != "tok-123" {
		t.Errorf("GetExportToken = %q", got)
	}

	cfg.Export.TokenEnv = ""
	if got := cfg.Export.GetExportToken(); got != "" {
		t.Errorf("empty token_env should yield empty token, got %q", got)
	}
}
