// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run        RunCmd        `cmd:"" help:"Run an assessment scenario"`
	TestConfig TestConfigCmd `cmd:"" name:"test-config" help:"Validate configuration and environment"`
	Replay     ReplayCmd     `cmd:"" help:"Replay a recorded run for forensic analysis"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// RunCmd executes an assessment from a scenario file.
type RunCmd struct {
	Scenario       string `arg:"" help:"Scenario file (.json, .yaml or .yml)"`
	Config         string `help:"Config file path (default: kestrel.toml)"`
	Target         string `help:"Target configuration path (overrides config)"`
	ResumeFrom     string `help:"Resume this session from a phase checkpoint (recon, analysis, attack, report)"`
	ExportFindings bool   `help:"Push confirmed findings to the configured reporter"`
	Quiet          bool   `short:"q" help:"Suppress live console output"`
}

// TestConfigCmd checks configuration, credentials and the environment
// without touching the target.
type TestConfigCmd struct {
	Config string `help:"Config file path (default: kestrel.toml)"`
	Target string `help:"Target configuration path (overrides config)"`
}

// ReplayCmd renders a recorded run's event log.
type ReplayCmd struct {
	Log     string `arg:"" help:"Event log path (.jsonl) or session name"`
	Follow  bool   `short:"f" help:"Tail the log as the run appends to it"`
	Width   int    `short:"w" default:"0" help:"Wrap output at this width (0 = no wrapping)"`
	Verbose bool   `short:"v" help:"Show tool call arguments"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
