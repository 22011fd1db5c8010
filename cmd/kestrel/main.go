// Package main is the entry point for the kestrel assessment CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/vinayprograms/agentkit/credentials"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// globalCreds holds loaded credentials (file > env fallback happens in GetAPIKey)
var globalCreds *credentials.Credentials

// errInterrupted marks a run stopped by SIGINT/SIGTERM. Checkpoints on
// disk stay valid, so the session can be resumed.
var errInterrupted = errors.New("interrupted")

func init() {
	// Load credentials from standard locations
	// Priority: credentials.toml > env vars (handled by GetAPIKey)
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		globalCreds = creds
	}

	// Load .env for any additional env vars
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kestrel"),
		kong.Description("Multi-phase security assessment orchestrator"),
		kong.UsageOnError(),
		kongVars(),
	)

	if err := ctx.Run(); err != nil {
		if errors.Is(err, errInterrupted) {
			fmt.Fprintln(os.Stderr, "\ninterrupted; resume with --resume-from")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Run prints version information.
func (c *VersionCmd) Run() error {
	fmt.Printf("kestrel version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
