// Package telemetry wires OpenTelemetry tracing for RPC calls and polls.
package telemetry

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// EnvEndpoint enables tracing when set.
	EnvEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	// EnvSampleRate is a ratio in [0,1].
	EnvSampleRate = "OTEL_TRACE_SAMPLE_RATE"

	defaultSampleRate = 1.0
)

// Init configures the global trace provider. Without an endpoint tracing
// stays disabled and a no-op shutdown is returned. An exporter that cannot be
// built is not fatal: the monitor runs without tracing.
func Init(ctx context.Context, serviceName, version string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	endpoint := strings.TrimSpace(os.Getenv(EnvEndpoint))
	if endpoint == "" {
		return noop, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(initCtx, exporterOptions(endpoint)...)
	if err != nil {
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseSampleRate()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func exporterOptions(endpoint string) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithTimeout(3 * time.Second),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		opts = append(opts, otlptracehttp.WithEndpoint(strings.TrimPrefix(endpoint, "https://")))
	default:
		opts = append(opts,
			otlptracehttp.WithEndpoint(strings.TrimPrefix(endpoint, "http://")),
			otlptracehttp.WithInsecure(),
		)
	}
	return opts
}

// parseSampleRate reads OTEL_TRACE_SAMPLE_RATE. A desktop monitor makes few
// requests, so everything is sampled unless told otherwise.
func parseSampleRate() float64 {
	raw := strings.TrimSpace(os.Getenv(EnvSampleRate))
	if raw == "" {
		return defaultSampleRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate > 1 {
		return defaultSampleRate
	}
	return rate
}
