package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type settings struct {
	writer      io.Writer
	sampleRatio float64
}

// Option configures the tracer bootstrap.
type Option func(*settings)

// WithWriter routes exported spans to w instead of stdout. The chat CLI
// uses this to keep stdout clean for the conversation.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writer = w }
}

// WithSampleRatio samples the given fraction of new traces. Children follow
// their parent's decision.
func WithSampleRatio(ratio float64) Option {
	return func(s *settings) { s.sampleRatio = ratio }
}

// InitTracer wires a stdout trace exporter and installs the global
// tracer provider. The returned function shuts the provider down and
// flushes pending spans.
func InitTracer(serviceName string, logger *slog.Logger, opts ...Option) (func(context.Context) error, error) {
	cfg := settings{sampleRatio: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(cfg.writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.sampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.sampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		slog.String("service", serviceName),
		slog.Float64("sample_ratio", cfg.sampleRatio),
	)

	return tp.Shutdown, nil
}
