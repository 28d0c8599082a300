package metrics

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Inc(TokensIssued)
	r.Inc(TokensIssued)
	r.Inc(SessionsActive)
	r.Dec(SessionsActive)
	r.Add(BytesRelayed, 42)
	r.Add(metricCount, 1) // ignored

	snap := r.Snapshot()
	if snap["osmosis_tokens_issued_total"] != 2 {
		t.Errorf("tokens issued = %d, want 2", snap["osmosis_tokens_issued_total"])
	}
	if snap["osmosis_sessions_active"] != 0 {
		t.Errorf("sessions active = %d, want 0", snap["osmosis_sessions_active"])
	}
	if snap["osmosis_bytes_relayed_total"] != 42 {
		t.Errorf("bytes relayed = %d, want 42", snap["osmosis_bytes_relayed_total"])
	}
	if len(snap) != len(Defs) {
		t.Errorf("Snapshot() has %d entries, want %d", len(snap), len(Defs))
	}

	var nilRecorder *Recorder
	nilRecorder.Inc(TokensIssued)
	if nilRecorder.Value(TokensIssued) != 0 {
		t.Errorf("nil recorder returned a value")
	}
}

func TestDefsCoverAllMetrics(t *testing.T) {
	seen := make(map[MetricID]bool)
	for _, def := range Defs {
		if seen[def.ID] {
			t.Errorf("metric %d defined twice", def.ID)
		}
		seen[def.ID] = true
	}
	for id := MetricID(0); id < metricCount; id++ {
		if !seen[id] {
			t.Errorf("metric %d has no definition", id)
		}
	}
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("osmosis-test")

	rec := NewRecorder()
	rec.Add(FramesRelayed, 7)
	rec.Inc(SessionsActive)

	exp, err := NewExporter(meter, rec)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	var frames int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "osmosis_frames_relayed_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("unexpected data for %s: %T", m.Name, m.Data)
			}
			frames = sum.DataPoints[0].Value
		}
	}
	if frames != 7 {
		t.Errorf("collected frames = %d, want 7", frames)
	}
}

func TestExporterRejectsNil(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("osmosis-test")

	if _, err := NewExporter(meter, nil); !errors.Is(err, ErrNilRecorder) {
		t.Errorf("NewExporter(nil recorder) error = %v", err)
	}
	if _, err := NewExporter(nil, NewRecorder()); !errors.Is(err, ErrNilMeter) {
		t.Errorf("NewExporter(nil meter) error = %v", err)
	}
}
