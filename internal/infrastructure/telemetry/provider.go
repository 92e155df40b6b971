// Package telemetry wires OpenTelemetry traces, metrics and logs for the
// crosslist service and holds the domain instruments built on them.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultExportInterval = time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Settings selects which OTLP pipelines to run. All of them share one
// collector and one resource.
type Settings struct {
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	Environment       string

	Traces        bool
	SamplingRatio float64

	Metrics        bool
	ExportInterval time.Duration

	Logs bool
}

// Providers owns the SDK providers that were switched on. A disabled signal
// leaves its field nil and falls back to the otel globals, which are no-ops
// unless a test installs its own.
type Providers struct {
	settings Settings
	log      *zap.Logger

	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	logs   *sdklog.LoggerProvider
}

// Setup starts the enabled pipelines and installs them as the otel globals.
// On error every pipeline already started is shut down again.
func Setup(ctx context.Context, s Settings, log *zap.Logger) (*Providers, error) {
	p := &Providers{settings: s, log: log}
	if !s.Traces && !s.Metrics && !s.Logs {
		log.Info("Telemetry export disabled")
		return p, nil
	}

	res, err := s.resource()
	if err != nil {
		return nil, err
	}

	if err := p.startTraces(ctx, res); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	if err := p.startMetrics(ctx, res); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	if err := p.startLogs(ctx, res); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	log.Info("Telemetry export enabled",
		zap.String("collector_endpoint", s.CollectorEndpoint),
		zap.String("service_name", s.ServiceName),
		zap.String("service_version", s.ServiceVersion),
		zap.Bool("traces", p.tracer != nil),
		zap.Bool("metrics", p.meter != nil),
		zap.Bool("logs", p.logs != nil),
	)
	return p, nil
}

func (s Settings) resource() (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(s.ServiceName),
			semconv.ServiceVersion(s.ServiceVersion),
		),
	}
	if s.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentName(s.Environment)))
	}
	custom, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}
	res, err := resource.Merge(resource.Default(), custom)
	if err != nil {
		return nil, fmt.Errorf("telemetry: merge resource: %w", err)
	}
	return res, nil
}

func (p *Providers) startTraces(ctx context.Context, res *resource.Resource) error {
	if !p.settings.Traces {
		return nil
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.settings.CollectorEndpoint)}
	if p.settings.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("telemetry: trace exporter: %w", err)
	}

	p.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(p.settings.SamplingRatio)),
	)
	otel.SetTracerProvider(p.tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Providers) startMetrics(ctx context.Context, res *resource.Resource) error {
	if !p.settings.Metrics {
		return nil
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.settings.CollectorEndpoint)}
	if p.settings.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("telemetry: metric exporter: %w", err)
	}

	interval := p.settings.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	p.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(p.meter)
	return nil
}

func (p *Providers) startLogs(ctx context.Context, res *resource.Resource) error {
	if !p.settings.Logs {
		return nil
	}
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(p.settings.CollectorEndpoint)}
	if p.settings.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("telemetry: log exporter: %w", err)
	}

	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(p.logs)
	return nil
}

// Sampler maps a ratio onto a sampler. Ratios at or above 1 sample
// everything and ratios at or below 0 sample nothing; anything between
// follows the parent's decision when there is one.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// TracingEnabled reports whether spans leave the process.
func (p *Providers) TracingEnabled() bool { return p.tracer != nil }

// TracerProvider returns the SDK provider, or the global one when tracing
// is off.
func (p *Providers) TracerProvider() trace.TracerProvider {
	if p.tracer == nil {
		return otel.GetTracerProvider()
	}
	return p.tracer
}

// Meter returns a named meter.
func (p *Providers) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p.meter == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return p.meter.Meter(name, opts...)
}

// Shutdown flushes and stops every running pipeline. Logs go last so the
// shutdown messages of the others are still exported.
func (p *Providers) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if p.tracer != nil {
		if err := p.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: shutdown traces: %w", err))
		}
	}
	if p.meter != nil {
		if err := p.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: shutdown metrics: %w", err))
		}
	}
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: shutdown logs: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		p.log.Error("Telemetry shutdown incomplete", zap.Error(err))
	}
	return err
}
