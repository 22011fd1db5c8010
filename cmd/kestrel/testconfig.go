package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/target"
)

// Run checks configuration, credentials and the local environment. It
// never contacts the target; connectivity is verified by the run
// preflight instead.
func (c *TestConfigCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		fmt.Printf("✗ config: %v\n", err)
		return fmt.Errorf("configuration check failed")
	}
	fmt.Println("✓ config loaded")

	failures := 0
	failures += checkLLM(cfg)
	failures += checkTarget(cfg, c.Target)
	failures += checkGateway(cfg)
	failures += checkExport(cfg)

	if failures > 0 {
		return fmt.Errorf("%d configuration check(s) failed", failures)
	}
	fmt.Println("\nAll checks passed")
	return nil
}

func checkLLM(cfg *config.Config) int {
	providerName := cfg.LLM.Provider
	if providerName == "" {
		providerName = llm.InferProviderFromModel(cfg.LLM.Model)
	}
	if providerName == "" && cfg.LLM.Model == "" {
		fmt.Println("✗ llm: model not configured")
		return 1
	}
	fmt.Printf("✓ llm: provider=%s model=%s\n", providerName, cfg.LLM.Model)

	apiKey := cfg.GetAPIKey()
	if apiKey == "" && globalCreds != nil {
		apiKey = globalCreds.GetAPIKey(providerName)
	}
	if apiKey == "" {
		envVar := cfg.LLM.APIKeyEnv
		if envVar == "" {
			envVar = config.DefaultAPIKeyEnv(providerName)
		}
		fmt.Printf("✗ llm: API key not found (set %s or credentials.toml)\n", envVar)
		return 1
	}
	fmt.Println("✓ llm: API key present")

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     cfg.LLM.Model,
		APIKey:    apiKey,
		MaxTokens: 16,
		BaseURL:   cfg.LLM.BaseURL,
	})
	if err != nil {
		fmt.Printf("✗ llm: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "Reply with OK."}},
	}); err != nil {
		fmt.Printf("✗ llm: provider unreachable: %v\n", err)
		return 1
	}
	fmt.Println("✓ llm: provider reachable")
	return 0
}

func checkTarget(cfg *config.Config, override string) int {
	path := cfg.Target.ConfigPath
	if override != "" {
		path = override
	}
	tgt, err := target.LoadFile(path)
	if err != nil {
		fmt.Printf("✗ target: %v\n", err)
		return 1
	}
	fmt.Printf("✓ target: %s (%s)\n", tgt.Name, tgt.Network.URL)
	return 0
}

func checkGateway(cfg *config.Config) int {
	if cfg.Gateway.Command == "" {
		fmt.Println("⚠ gateway: no tool server configured; agents will run without tools")
		return 0
	}
	if _, err := exec.LookPath(cfg.Gateway.Command); err != nil {
		fmt.Printf("✗ gateway: command %q not found in PATH\n", cfg.Gateway.Command)
		return 1
	}
	fmt.Printf("✓ gateway: %s\n", cfg.Gateway.Command)
	return 0
}

func checkExport(cfg *config.Config) int {
	switch cfg.Export.Reporter {
	case "", "none", "local":
		fmt.Printf("✓ export: %s\n", reporterLabel(cfg.Export.Reporter))
		return 0
	case "defectdojo":
		if cfg.Export.URL == "" {
			fmt.Println("✗ export: defectdojo requires url")
			return 1
		}
		if cfg.Export.GetExportToken() == "" {
			fmt.Printf("✗ export: token not found (set %s)\n", cfg.Export.TokenEnv)
			return 1
		}
		fmt.Printf("✓ export: defectdojo at %s\n", cfg.Export.URL)
		return 0
	default:
		fmt.Printf("✗ export: unknown reporter %q\n", cfg.Export.Reporter)
		return 1
	}
}

func reporterLabel(name string) string {
	if name == "" || name == "none" {
		return "disabled"
	}
	return name
}
