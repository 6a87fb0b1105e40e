package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"forensicvault/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Metrics recorders and tracers selectable through config.Observability.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"

	TracingNone = "none"
	TracingJSON = "json"
	TracingOTel = "otel"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// observability is the wiring produced from config.Observability.
type observability struct {
	options  []Option
	closers  []io.Closer
	gatherer prometheus.Gatherer
}

// openObservability builds the configured metrics recorder and tracer.
// The closers dump metrics and flush spans; they run when the runtime
// closes.
func openObservability(cfg config.Observability, stderr io.Writer) (*observability, error) {
	obs := &observability{}
	if err := obs.openMetrics(cfg); err != nil {
		return nil, err
	}
	if err := obs.openTracing(cfg, stderr); err != nil {
		_ = obs.close()
		return nil, err
	}
	return obs, nil
}

func (o *observability) openMetrics(cfg config.Observability) error {
	switch cfg.Metrics {
	case "", MetricsNone:
	case MetricsExpvar:
		rec := NewExpvarMetricsRecorder("")
		o.options = append(o.options, WithMetricsRecorder(rec))
		if cfg.MetricsFile != "" {
			o.closers = append(o.closers, closerFunc(func() error {
				return writeJSONFile(cfg.MetricsFile, rec.Snapshot())
			}))
		}
	case MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return fmt.Errorf("register prometheus collectors: %w", err)
		}
		o.gatherer = reg
		o.options = append(o.options, WithMetricsRecorder(rec))
		if cfg.MetricsFile != "" {
			o.closers = append(o.closers, closerFunc(func() error {
				if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
				return nil
			}))
		}
	default:
		return fmt.Errorf("unknown metrics recorder %q", cfg.Metrics)
	}
	return nil
}

func (o *observability) openTracing(cfg config.Observability, stderr io.Writer) error {
	if cfg.Tracing == "" || cfg.Tracing == TracingNone {
		return nil
	}
	if cfg.Tracing != TracingJSON && cfg.Tracing != TracingOTel {
		return fmt.Errorf("unknown tracer %q", cfg.Tracing)
	}
	out := stderr
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- operator supplied path
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		out = f
		o.closers = append(o.closers, f)
	}
	if cfg.Tracing == TracingJSON {
		o.options = append(o.options, WithTracer(NewJSONTracer(out)))
		return nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return fmt.Errorf("create span exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	o.options = append(o.options, WithTracer(NewOTelTracer(provider)))
	// Shutdown flushes the batcher, so it must run before the file closes.
	o.closers = append(o.closers, closerFunc(func() error {
		return provider.Shutdown(context.Background())
	}))
	return nil
}

func (o *observability) close() error {
	rt := &Runtime{closers: o.closers}
	o.closers = nil
	return rt.Close()
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
