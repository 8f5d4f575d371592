// Package telemetry wires the engine's metrics into an OTLP/HTTP push
// pipeline. It is optional; the service only builds it when an endpoint is
// configured.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	otelexport "github.com/projectatlas/astaauth/metrics/export/otel"
)

const meterName = "github.com/projectatlas/astaauth"

// Config selects the collector and push cadence.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is host:port of the OTLP/HTTP receiver, e.g. "localhost:4318".
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// Pipeline owns the MeterProvider and the observable-instrument exporter.
type Pipeline struct {
	provider *sdkmetric.MeterProvider
	exporter *otelexport.Exporter
}

// Start builds an OTLP/HTTP exporter, a periodic reader and a MeterProvider,
// then registers the engine's instruments on it.
func Start(ctx context.Context, cfg Config, source otelexport.Source) (*Pipeline, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("telemetry: endpoint is required")
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create otlp exporter: %w", err)
	}

	return StartWithReader(cfg, sdkmetric.NewPeriodicReader(exp, readerOptions(cfg)...), source)
}

// StartWithReader is Start with a caller-supplied reader; tests pass a
// manual reader.
func StartWithReader(cfg Config, reader sdkmetric.Reader, source otelexport.Source) (*Pipeline, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	exporter, err := otelexport.NewExporter(provider.Meter(meterName), source)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("telemetry: register instruments: %w", err)
	}

	return &Pipeline{provider: provider, exporter: exporter}, nil
}

func readerOptions(cfg Config) []sdkmetric.PeriodicReaderOption {
	if cfg.Interval <= 0 {
		return nil
	}
	return []sdkmetric.PeriodicReaderOption{sdkmetric.WithInterval(cfg.Interval)}
}

func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "astaauth"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("environment", cfg.Environment))
	}
	// Schemaless: resource.Default already carries a schema URL.
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// Shutdown unregisters the instruments and flushes the last export.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return errors.Join(p.exporter.Close(), p.provider.Shutdown(ctx))
}
