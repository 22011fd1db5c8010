package orchestrator

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/kestrelsec/kestrel/internal/config"
	"github.com/kestrelsec/kestrel/internal/target"
)

func preflightOrchestrator(t *testing.T, rawURL string) *Orchestrator {
	t.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.New()
	cfg.Orchestrator.ConnectTimeout = 1

	return &Orchestrator{
		cfg:    cfg,
		tgt:    &target.Config{Network: target.Network{URL: rawURL, Host: host, Port: port}},
		logger: logging.New().WithComponent("orchestrator"),
	}
}

func TestPreflightPassesAgainstLiveServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o := preflightOrchestrator(t, srv.URL)
	if err := o.checkConnectivity(context.Background()); err != nil {
		t.Errorf("checkConnectivity: %v", err)
	}
}

func TestPreflightOpenPortWithoutHTTPIsNotFatal(t *testing.T) {
	// A listener that accepts TCP but never speaks HTTP. Low-level
	// probing can still work against such a target.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	o := preflightOrchestrator(t, "http://"+ln.Addr().String())
	if err := o.checkConnectivity(context.Background()); err != nil {
		t.Errorf("open port without HTTP must be a warning, got %v", err)
	}
}

func TestPreflightClosedPortFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	o := preflightOrchestrator(t, "http://"+addr)
	if err := o.checkConnectivity(context.Background()); err == nil {
		t.Error("closed port must fail preflight")
	}
}
