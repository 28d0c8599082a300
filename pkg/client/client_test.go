package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api"
	"github.com/decentraminds/osmosis-streaming-driver/internal/api/middleware"
	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
	"github.com/decentraminds/osmosis-streaming-driver/internal/probe"
	"github.com/decentraminds/osmosis-streaming-driver/internal/registry"
	"github.com/decentraminds/osmosis-streaming-driver/internal/service"
	"github.com/decentraminds/osmosis-streaming-driver/internal/tasks"
	"github.com/decentraminds/osmosis-streaming-driver/internal/transport/transporttest"
)

var signingKey = []byte("client-test-key")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tr := transporttest.NewTransport().Handle("wss://valid", func() *transporttest.Conn {
		c := transporttest.NewConn("tick-1\n", "tick-2\n")
		c.Err = io.EOF
		return c
	})
	auditor := audit.NewInMemoryAuditor()
	svc := service.NewStreamService(registry.New(), probe.New(tr, time.Second), tr, service.Options{Auditor: auditor})

	manager := tasks.NewManager(context.Background())
	t.Cleanup(manager.Stop)
	manager.Register(tasks.EvictionTask(svc, 0))

	srv := httptest.NewServer(api.NewServer(svc, manager, auditor).Routes(signingKey))
	t.Cleanup(srv.Close)
	return srv
}

func newAdminClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	token, err := middleware.MintAdminToken(signingKey, "client-test", time.Minute)
	if err != nil {
		t.Fatalf("MintAdminToken() unexpected error: %v", err)
	}
	c, err := New(srv.URL, WithAuthToken(token))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return c
}

func TestClient_IssueAndStream(t *testing.T) {
	srv := newTestServer(t)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	ctx := context.Background()

	issued, correlation, err := c.IssueToken(ctx, "wss://valid", IssueTokenOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("IssueToken() unexpected error: %v", err)
	}
	if correlation == "" {
		t.Error("IssueToken() returned no correlation id")
	}
	if d := time.Until(issued.ExpiresAt); d <= 0 || d > time.Minute {
		t.Errorf("expires in %s, want within a minute", d)
	}

	body, _, err := c.Stream(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Stream() unexpected error: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(data) != "tick-1\ntick-2\n" {
		t.Errorf("stream = %q", data)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	ctx := context.Background()

	_, _, err = c.IssueToken(ctx, "wss://invalid", IssueTokenOptions{})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("IssueToken() error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}

	_, _, err = c.Stream(ctx, "XYZ")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Stream() error = %v, want 401 APIError", err)
	}

	// admin routes need a session
	if _, _, err := c.Info(ctx); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Info() error = %v, want 401 APIError", err)
	}
}

func TestClient_Admin(t *testing.T) {
	srv := newTestServer(t)
	c := newAdminClient(t, srv)
	ctx := context.Background()

	issued, _, err := c.IssueToken(ctx, "wss://valid", IssueTokenOptions{})
	if err != nil {
		t.Fatalf("IssueToken() unexpected error: %v", err)
	}

	snapshot, _, err := c.Info(ctx)
	if err != nil {
		t.Fatalf("Info() unexpected error: %v", err)
	}
	if entry, ok := snapshot[issued.Token]; !ok || entry.Destination != "wss://valid" {
		t.Errorf("snapshot[%s] = %+v, %v", issued.Token, entry, ok)
	}

	counters, _, err := c.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics() unexpected error: %v", err)
	}
	if counters["osmosis_tokens_issued_total"] != 1 {
		t.Errorf("metrics = %v, want one issued token", counters)
	}

	entries, _, err := c.ListAudits(ctx, ListAuditsOpts{Action: "token.issue"})
	if err != nil {
		t.Fatalf("ListAudits() unexpected error: %v", err)
	}
	if len(entries) != 1 || !entries[0].Success {
		t.Errorf("audits = %+v, want one successful issuance", entries)
	}

	if _, err := c.TriggerTask(ctx, tasks.EvictionTaskName); err != nil {
		t.Errorf("TriggerTask() unexpected error: %v", err)
	}
	status, _, err := c.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() unexpected error: %v", err)
	}
	if len(status) != 1 {
		t.Errorf("ListTasks() = %+v, want one task", status)
	}

	about, _, err := c.About(ctx)
	if err != nil {
		t.Fatalf("About() unexpected error: %v", err)
	}
	if about.Service != "osmosis-streaming-driver" {
		t.Errorf("About().Service = %q", about.Service)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "::", "localhost:3580"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) expected error", raw)
		}
	}
}
