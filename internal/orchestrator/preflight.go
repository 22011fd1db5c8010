package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// checkConnectivity verifies the target is reachable before any phase
// runs or any checkpoint is written. A TCP dial proves the port is open;
// an HTTP HEAD proves something is answering. Any HTTP status counts as
// reachable.
func (o *Orchestrator) checkConnectivity(ctx context.Context) error {
	timeout := time.Duration(o.cfg.Orchestrator.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	addr := fmt.Sprintf("%s:%d", o.tgt.Network.Host, o.tgt.Network.Port)
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("target %s is unreachable (%v); start the target and retry", addr, err)
	}
	conn.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.tgt.Network.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid target url %q: %w", o.tgt.Network.URL, err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		// The port answers, so low-level probing can still proceed.
		o.logger.Warn("target port is open but HTTP check failed", map[string]interface{}{
			"url":   o.tgt.Network.URL,
			"error": err.Error(),
		})
		return nil
	}
	resp.Body.Close()

	o.logger.Info("target reachable", map[string]interface{}{
		"url":    o.tgt.Network.URL,
		"status": resp.StatusCode,
	})
	return nil
}
