package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kestrelsec/kestrel/internal/replay"
)

// Run renders an event log, or tails it live with --follow.
func (c *ReplayCmd) Run() error {
	path, err := resolveLogPath(c.Log)
	if err != nil {
		return err
	}

	r := replay.New(os.Stdout, c.Width, c.Verbose)

	if c.Follow {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := r.FollowFile(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	return r.ReplayFile(path)
}

// resolveLogPath accepts a direct path, a session name, or a scenario
// stem and locates the JSONL file under the configured logs directory.
func resolveLogPath(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}

	cfg, err := loadConfig("")
	if err != nil {
		return "", err
	}

	candidates := []string{
		filepath.Join(cfg.Storage.LogsDir, arg+".jsonl"),
	}
	if !strings.HasPrefix(arg, "session_") {
		candidates = append(candidates, filepath.Join(cfg.Storage.LogsDir, "session_"+arg+".jsonl"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("event log not found: " + arg)
}
