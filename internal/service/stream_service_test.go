package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
	"github.com/decentraminds/osmosis-streaming-driver/internal/metrics"
	"github.com/decentraminds/osmosis-streaming-driver/internal/policy"
	"github.com/decentraminds/osmosis-streaming-driver/internal/probe"
	"github.com/decentraminds/osmosis-streaming-driver/internal/registry"
	"github.com/decentraminds/osmosis-streaming-driver/internal/transport/transporttest"
)

type fixture struct {
	svc       *StreamService
	registry  *registry.Registry
	transport *transporttest.Transport
	auditor   *audit.InMemoryAuditor
	metrics   *metrics.Recorder
}

func newFixture(t *testing.T, opts Options, frames ...string) *fixture {
	t.Helper()
	tr := transporttest.NewTransport().Handle("wss://valid", func() *transporttest.Conn {
		c := transporttest.NewConn(frames...)
		c.Err = io.EOF
		return c
	})
	f := &fixture{
		registry:  registry.New(),
		transport: tr,
		auditor:   audit.NewInMemoryAuditor(),
		metrics:   metrics.NewRecorder(),
	}
	opts.Auditor = f.auditor
	opts.Metrics = f.metrics
	f.svc = NewStreamService(f.registry, probe.New(tr, time.Second), tr, opts)
	return f
}

func requireHTTPError(t *testing.T, err error, status int, sentinel error) HTTPError {
	t.Helper()
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != status {
		t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, status)
	}
	if sentinel != nil && !errors.Is(err, sentinel) {
		t.Errorf("error %v does not wrap %v", err, sentinel)
	}
	return httpErr
}

func TestIssueToken_ReachabilityGate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	resp, err := f.svc.IssueToken(ctx, IssueRequest{Destination: "wss://valid"})
	if err != nil {
		t.Fatalf("IssueToken(valid) unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("IssueToken(valid) returned empty token")
	}
	entry, ok := f.registry.Resolve(resp.Token)
	if !ok || entry.Destination != "wss://valid" {
		t.Errorf("Resolve(%q) = %+v, %v", resp.Token, entry, ok)
	}
	if ttl := time.Until(resp.ExpiresAt); ttl <= 0 || ttl > DefaultTTL {
		t.Errorf("ExpiresAt is %s from now, want within default TTL", ttl)
	}

	_, err = f.svc.IssueToken(ctx, IssueRequest{Destination: "wss://invalid"})
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, ErrUpstreamUnreachable)
	want := "Unable to connect to stream. Details: 'invalid stream'"
	if httpErr.Message != want {
		t.Errorf("Message = %q, want %q", httpErr.Message, want)
	}

	if n := f.registry.Len(); n != 1 {
		t.Errorf("registry has %d entries, want 1", n)
	}
	if got := f.metrics.Value(metrics.TokensIssued); got != 1 {
		t.Errorf("TokensIssued = %d, want 1", got)
	}
	if got := f.metrics.Value(metrics.ProbeFailures); got != 1 {
		t.Errorf("ProbeFailures = %d, want 1", got)
	}
}

func TestIssueToken_InvalidInput(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		opts   Options
		req    IssueRequest
		status int
	}{
		{
			name:   "missing destination",
			req:    IssueRequest{},
			status: http.StatusBadRequest,
		},
		{
			name:   "expiry in the past",
			req:    IssueRequest{Destination: "wss://valid", ExpiresAt: now.Add(-time.Minute)},
			status: http.StatusBadRequest,
		},
		{
			name:   "negative ttl",
			req:    IssueRequest{Destination: "wss://valid", TTL: -time.Second},
			status: http.StatusBadRequest,
		},
		{
			name:   "ttl above maximum",
			opts:   Options{MaxTTL: time.Minute},
			req:    IssueRequest{Destination: "wss://valid", TTL: time.Hour},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts)
			_, err := f.svc.IssueToken(context.Background(), tt.req)
			requireHTTPError(t, err, tt.status, ErrInvalidInput)
			if n := f.registry.Len(); n != 0 {
				t.Errorf("registry has %d entries, want 0", n)
			}
		})
	}
}

func TestIssueToken_MissingDestinationMessage(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.IssueToken(context.Background(), IssueRequest{})
	httpErr := requireHTTPError(t, err, http.StatusBadRequest, ErrInvalidInput)
	if httpErr.Message != "You need to provide the URL of your stream." {
		t.Errorf("Message = %q", httpErr.Message)
	}
	if f.transport.Dials("") != 0 {
		t.Error("transport was dialed for an empty destination")
	}
}

func TestIssueToken_Timeout(t *testing.T) {
	hanging := transporttest.NewHanging()
	t.Cleanup(hanging.Release)

	m := metrics.NewRecorder()
	svc := NewStreamService(registry.New(), probe.New(hanging, time.Second), hanging, Options{Metrics: m})

	start := time.Now()
	_, err := svc.IssueToken(context.Background(), IssueRequest{
		Destination:  "wss://slow",
		ProbeTimeout: 50 * time.Millisecond,
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("IssueToken took %s, want it bounded by the probe timeout", elapsed)
	}
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, ErrUpstreamUnreachable)
	if !strings.Contains(httpErr.Message, "wss://slow") {
		t.Errorf("Message %q does not name the destination", httpErr.Message)
	}
	if got := m.Value(metrics.ProbeTimeouts); got != 1 {
		t.Errorf("ProbeTimeouts = %d, want 1", got)
	}
}

func TestIssueToken_Policy(t *testing.T) {
	guard, err := policy.Compile(`scheme == "wss" && host != "valid"`)
	if err != nil {
		t.Fatalf("Compile() unexpected error: %v", err)
	}
	f := newFixture(t, Options{Policy: guard})

	_, err = f.svc.IssueToken(context.Background(), IssueRequest{Destination: "wss://valid"})
	requireHTTPError(t, err, http.StatusForbidden, ErrPolicyDenied)
	if f.transport.Dials("wss://valid") != 0 {
		t.Error("denied destination was probed")
	}
}

func TestOpenStream_InvalidTokens(t *testing.T) {
	now := time.Now()
	clock := now
	f := newFixture(t, Options{Clock: func() time.Time { return clock }})

	expired, err := f.registry.Register("wss://valid", now.Add(time.Second))
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	clock = now.Add(time.Minute)

	tests := []struct {
		name   string
		token  string
		status int
		want   error
	}{
		{"missing", "", http.StatusBadRequest, ErrInvalidInput},
		{"unknown", "XYZ", http.StatusUnauthorized, ErrTokenInvalid},
		{"expired", expired, http.StatusUnauthorized, ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.OpenStream(context.Background(), tt.token)
			httpErr := requireHTTPError(t, err, tt.status, tt.want)
			if tt.status == http.StatusUnauthorized {
				want := "Token '" + tt.token + "' is invalid. Please provide a valid token."
				if httpErr.Message != want {
					t.Errorf("Message = %q, want %q", httpErr.Message, want)
				}
			}
		})
	}
	if f.transport.Dials("wss://valid") != 0 {
		t.Error("upstream was dialed for an invalid token")
	}
	if got := f.metrics.Value(metrics.UnauthorizedRedemptions); got != 2 {
		t.Errorf("UnauthorizedRedemptions = %d, want 2", got)
	}
}

func TestOpenStream_UpstreamGone(t *testing.T) {
	f := newFixture(t, Options{})
	token, err := f.registry.Register("wss://gone", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	_, err = f.svc.OpenStream(context.Background(), token)
	requireHTTPError(t, err, http.StatusBadGateway, ErrUpstreamFailure)
}

func TestStream_EndToEnd(t *testing.T) {
	f := newFixture(t, Options{}, "f1", "f2", "f3")
	ctx := context.Background()

	resp, err := f.svc.IssueToken(ctx, IssueRequest{Destination: "wss://valid"})
	if err != nil {
		t.Fatalf("IssueToken() unexpected error: %v", err)
	}

	stream, err := f.svc.OpenStream(ctx, resp.Token)
	if err != nil {
		t.Fatalf("OpenStream() unexpected error: %v", err)
	}
	if stream.ID() == "" {
		t.Error("stream has no ID")
	}

	var got []string
	var streamErr error
	for frame, err := range stream.Frames(ctx) {
		if err != nil {
			streamErr = err
			break
		}
		got = append(got, string(frame))
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close() unexpected error: %v", err)
	}
	_ = stream.Close()

	if want := []string{"f1", "f2", "f3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("frames = %v, want %v", got, want)
	}
	if !errors.Is(streamErr, io.EOF) {
		t.Errorf("terminal error = %v, want io.EOF", streamErr)
	}

	// the probe and the relay each dial once
	if n := f.transport.Dials("wss://valid"); n != 2 {
		t.Errorf("Dials = %d, want 2", n)
	}

	if got := f.metrics.Value(metrics.FramesRelayed); got != 3 {
		t.Errorf("FramesRelayed = %d, want 3", got)
	}
	if got := f.metrics.Value(metrics.BytesRelayed); got != 6 {
		t.Errorf("BytesRelayed = %d, want 6", got)
	}
	if got := f.metrics.Value(metrics.SessionsActive); got != 0 {
		t.Errorf("SessionsActive = %d, want 0", got)
	}
	if got := f.metrics.Value(metrics.SessionsUpstreamFailed); got != 1 {
		t.Errorf("SessionsUpstreamFailed = %d, want 1", got)
	}

	entries, err := f.auditor.Find(func(e core.AuditEntry) bool { return e.Action == "stream.open" }, 10)
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d stream audit entries, want 1", len(entries))
	}
	if entries[0].Metadata["frames"] != int64(3) {
		t.Errorf("audit frames = %v, want 3", entries[0].Metadata["frames"])
	}
}

func TestWaitStreams(t *testing.T) {
	f := newFixture(t, Options{}, "f1")
	ctx := context.Background()

	resp, err := f.svc.IssueToken(ctx, IssueRequest{Destination: "wss://valid"})
	if err != nil {
		t.Fatalf("IssueToken() unexpected error: %v", err)
	}
	stream, err := f.svc.OpenStream(ctx, resp.Token)
	if err != nil {
		t.Fatalf("OpenStream() unexpected error: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := f.svc.WaitStreams(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitStreams() with open stream = %v, want deadline exceeded", err)
	}

	_ = stream.Close()
	_ = stream.Close()

	// the final audit entry is written before WaitStreams returns
	if err := f.svc.WaitStreams(ctx); err != nil {
		t.Fatalf("WaitStreams() unexpected error: %v", err)
	}
	entries, err := f.auditor.Find(func(e core.AuditEntry) bool { return e.Action == "stream.open" }, 10)
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d stream audit entries, want 1", len(entries))
	}
	if _, ok := entries[0].Metadata["reason"]; !ok {
		t.Error("stream audit entry has no end reason")
	}
}

func TestEvictExpired(t *testing.T) {
	now := time.Now()
	clock := now
	f := newFixture(t, Options{Clock: func() time.Time { return clock }})

	if _, err := f.registry.Register("wss://valid", now.Add(time.Second)); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if _, err := f.registry.Register("wss://valid", now.Add(time.Hour)); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	clock = now.Add(time.Minute)

	if n := f.svc.EvictExpired(); n != 1 {
		t.Errorf("EvictExpired() = %d, want 1", n)
	}
	if n := len(f.svc.Snapshot()); n != 1 {
		t.Errorf("Snapshot() has %d entries, want 1", n)
	}
	if got := f.metrics.Value(metrics.TokensEvicted); got != 1 {
		t.Errorf("TokensEvicted = %d, want 1", got)
	}
}
