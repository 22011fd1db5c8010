// Package target loads the configuration of the system under test.
package target

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config describes the target system. Loaded once per run, never mutated.
type Config struct {
	TargetID       string            `json:"target_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Network        Network           `json:"network"`
	Authentication Auth              `json:"authentication"`
	Endpoints      map[string]string `json:"endpoints,omitempty"`
	KnownInfo      map[string]any    `json:"known_info,omitempty"`
	Constraints    map[string]any    `json:"test_constraints,omitempty"`
}

// Network holds the target's network address.
type Network struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	BasePath string `json:"base_path,omitempty"`
}

// Auth holds target authentication parameters.
type Auth struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Token   string `json:"token,omitempty"`
}

var envPattern = regexp.MustCompile(`\$\{ENV:([^}]+)\}`)

// LoadFile reads a target configuration, substituting ${ENV:VAR}
// references against the process environment.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("target configuration not found: %s", path)
		}
		return nil, fmt.Errorf("reading target configuration: %w", err)
	}

	data = envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing target configuration %s: %w", path, err)
	}

	if cfg.Network.URL == "" {
		return nil, fmt.Errorf("target configuration %s: network.url is required", path)
	}
	if cfg.Network.Host == "" {
		cfg.Network.Host = "localhost"
	}
	if cfg.Network.Port == 0 {
		cfg.Network.Port = 80
	}
	if cfg.Network.Protocol == "" {
		cfg.Network.Protocol = "http"
	}

	return &cfg, nil
}

// Endpoint returns the full URL for a named endpoint, or "" if unknown.
func (c *Config) Endpoint(name string) string {
	path, ok := c.Endpoints[name]
	if !ok {
		return ""
	}
	return c.Network.URL + path
}
