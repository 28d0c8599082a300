package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter    = errors.New("nil meter")
	ErrNilRecorder = errors.New("nil recorder")
)

type observedCounter struct {
	id      MetricID
	counter metric.Int64ObservableCounter
	gauge   metric.Int64ObservableUpDownCounter
}

// Exporter publishes a Recorder through an OpenTelemetry meter.
// It does not own the MeterProvider; callers supply the Meter.
type Exporter struct {
	recorder     *Recorder
	registration metric.Registration
	instruments  []observedCounter
}

func NewExporter(meter metric.Meter, recorder *Recorder) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if recorder == nil {
		return nil, ErrNilRecorder
	}

	exporter := &Exporter{
		recorder:    recorder,
		instruments: make([]observedCounter, 0, len(Defs)),
	}
	observables := make([]metric.Observable, 0, len(Defs))

	for _, def := range Defs {
		obs := observedCounter{id: def.ID}
		if def.Gauge {
			ins, err := meter.Int64ObservableUpDownCounter(def.Name, metric.WithDescription(def.Help))
			if err != nil {
				return nil, fmt.Errorf("create observable up/down counter %s: %w", def.Name, err)
			}
			obs.gauge = ins
			observables = append(observables, ins)
		} else {
			ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
			if err != nil {
				return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
			}
			obs.counter = ins
			observables = append(observables, ins)
		}
		exporter.instruments = append(exporter.instruments, obs)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		for _, ins := range exporter.instruments {
			value := exporter.recorder.Value(ins.id)
			if ins.gauge != nil {
				observer.ObserveInt64(ins.gauge, value)
			} else {
				observer.ObserveInt64(ins.counter, value)
			}
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
