// Package metrics counts what the relay does.
//
// Counters are plain atomics so the hot path never touches an exporter;
// Exporter publishes them as OpenTelemetry observable instruments.
package metrics

import "sync/atomic"

type MetricID int

const (
	TokensIssued MetricID = iota
	TokensRejected
	ProbeFailures
	ProbeTimeouts
	SessionsStarted
	SessionsActive
	SessionsExpired
	SessionsUpstreamFailed
	SessionsConsumerClosed
	FramesRelayed
	BytesRelayed
	UnauthorizedRedemptions
	TokensEvicted

	metricCount
)

// Def describes how a metric is exported.
type Def struct {
	ID   MetricID
	Name string
	Help string
	// Gauge metrics can go down and are exported as up/down counters.
	Gauge bool
}

var Defs = []Def{
	{ID: TokensIssued, Name: "osmosis_tokens_issued_total", Help: "Tokens issued."},
	{ID: TokensRejected, Name: "osmosis_tokens_rejected_total", Help: "Token requests rejected before a token was issued."},
	{ID: ProbeFailures, Name: "osmosis_probe_failures_total", Help: "Reachability probes that could not connect."},
	{ID: ProbeTimeouts, Name: "osmosis_probe_timeouts_total", Help: "Reachability probes that ran into their timeout."},
	{ID: SessionsStarted, Name: "osmosis_sessions_started_total", Help: "Relay sessions started."},
	{ID: SessionsActive, Name: "osmosis_sessions_active", Help: "Relay sessions currently streaming.", Gauge: true},
	{ID: SessionsExpired, Name: "osmosis_sessions_expired_total", Help: "Relay sessions ended by token expiry."},
	{ID: SessionsUpstreamFailed, Name: "osmosis_sessions_upstream_failed_total", Help: "Relay sessions ended by an upstream error."},
	{ID: SessionsConsumerClosed, Name: "osmosis_sessions_consumer_closed_total", Help: "Relay sessions ended by the client."},
	{ID: FramesRelayed, Name: "osmosis_frames_relayed_total", Help: "Frames relayed to clients."},
	{ID: BytesRelayed, Name: "osmosis_bytes_relayed_total", Help: "Bytes relayed to clients."},
	{ID: UnauthorizedRedemptions, Name: "osmosis_unauthorized_redemptions_total", Help: "Proxy requests with unknown or expired tokens."},
	{ID: TokensEvicted, Name: "osmosis_tokens_evicted_total", Help: "Expired tokens removed by the eviction task."},
}

// Recorder holds all counters. The zero value is ready to use, and a nil Recorder discards everything.
type Recorder struct {
	counters [metricCount]atomic.Int64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Inc(id MetricID) {
	r.Add(id, 1)
}

func (r *Recorder) Dec(id MetricID) {
	r.Add(id, -1)
}

func (r *Recorder) Add(id MetricID, delta int64) {
	if r == nil || id < 0 || id >= metricCount {
		return
	}
	r.counters[id].Add(delta)
}

func (r *Recorder) Value(id MetricID) int64 {
	if r == nil || id < 0 || id >= metricCount {
		return 0
	}
	return r.counters[id].Load()
}

// Snapshot returns all counters by their exported name.
func (r *Recorder) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(Defs))
	for _, def := range Defs {
		out[def.Name] = r.Value(def.ID)
	}
	return out
}
