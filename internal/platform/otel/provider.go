package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig selects where doorkeeper spans go.
type TracingConfig struct {
	ServiceName string
	Version     string
	// Endpoint is the OTLP/HTTP collector URL. Blank keeps tracing off.
	Endpoint string
	// SampleRatio is the share of root traces kept, in (0, 1]. Zero means 1.
	SampleRatio float64
}

// Shutdown flushes buffered spans. It is safe to call when tracing is off.
type Shutdown func(context.Context) error

func nop(context.Context) error { return nil }

// Setup installs the global tracer provider for cfg. With no endpoint the
// global provider stays the otel no-op one and service spans are free.
func Setup(ctx context.Context, cfg TracingConfig) (Shutdown, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nop, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nop, fmt.Errorf("otlp exporter: %w", err)
	}

	kv := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.Version != "" {
		kv = append(kv, semconv.ServiceVersion(cfg.Version))
	}
	res, err := resource.New(ctx, resource.WithAttributes(kv...))
	if err != nil {
		return nop, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// sampler keeps every trace unless ratio asks for fewer. Child spans follow
// the caller's decision.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
