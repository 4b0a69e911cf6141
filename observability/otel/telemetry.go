package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"farmmarket/config"
)

const (
	defaultCollector      = "localhost:4318"
	defaultMetricInterval = 15 * time.Second
)

// Providers holds the SDK providers installed as the process globals. A zero
// value exports nothing.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// Enabled reports whether any exporter was started.
func (p *Providers) Enabled() bool {
	return p != nil && (p.tracer != nil || p.meter != nil)
}

// Shutdown flushes and stops the meter provider and then the tracer
// provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// collector is the OTLP/HTTP destination shared by both exporters.
type collector struct {
	host     string
	insecure bool
	headers  map[string]string
}

// Start installs OTLP/HTTP exporters for the signals enabled in cfg and sets
// the W3C trace-context propagator. With every signal disabled it returns an
// inert Providers.
func Start(ctx context.Context, service, version, env string, cfg config.Telemetry) (*Providers, error) {
	if strings.TrimSpace(service) == "" {
		return nil, errors.New("telemetry: service name required")
	}
	providers := &Providers{}
	if !cfg.Traces && !cfg.Metrics {
		return providers, nil
	}
	target, err := parseCollector(cfg)
	if err != nil {
		return nil, err
	}
	res, err := serviceResource(service, version, env)
	if err != nil {
		return nil, err
	}

	if cfg.Traces {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(target.host)}
		if target.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(target.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(target.headers))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
		}
		providers.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.SampleRatio)),
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
		)
		otel.SetTracerProvider(providers.tracer)
	}

	if cfg.Metrics {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(target.host)}
		if target.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(target.headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(target.headers))
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			_ = providers.Shutdown(ctx)
			return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
		}
		interval := defaultMetricInterval
		if d, err := time.ParseDuration(strings.TrimSpace(cfg.MetricInterval)); err == nil && d > 0 {
			interval = d
		}
		providers.meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(providers.meter)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return providers, nil
}

func serviceResource(service, version, env string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(service)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersion(version))
	}
	if env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(env))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}
	return res, nil
}

// sampler samples every root span unless ratio is strictly between 0 and 1.
// Child spans follow their parent's decision.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// parseCollector accepts either host:port, which honours cfg.Insecure, or an
// http(s) base URL whose scheme decides transport security.
func parseCollector(cfg config.Telemetry) (collector, error) {
	target := collector{
		host:     strings.TrimSpace(cfg.Endpoint),
		insecure: cfg.Insecure,
		headers:  parseHeaders(cfg.Headers),
	}
	if target.host == "" {
		target.host = defaultCollector
		return target, nil
	}
	if !strings.Contains(target.host, "://") {
		return target, nil
	}
	u, err := url.Parse(target.host)
	if err != nil {
		return collector{}, fmt.Errorf("telemetry: endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		target.insecure = true
	case "https":
		target.insecure = false
	default:
		return collector{}, fmt.Errorf("telemetry: endpoint scheme %q not supported", u.Scheme)
	}
	if u.Host == "" {
		return collector{}, fmt.Errorf("telemetry: endpoint %q has no host", cfg.Endpoint)
	}
	if u.Path != "" && u.Path != "/" {
		return collector{}, fmt.Errorf("telemetry: endpoint %q must not carry a path", cfg.Endpoint)
	}
	target.host = u.Host
	return target, nil
}

// parseHeaders reads an OTEL_EXPORTER_OTLP_HEADERS style list. Malformed
// pairs are skipped.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	pairs := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' })
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
