// Package observability wires OTLP trace export into Genkit's tracer.
package observability

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/easydom/hellosure/internal/config"
	"github.com/easydom/hellosure/internal/log"
)

// shutdownTimeout bounds the final span flush during teardown.
const shutdownTimeout = 5 * time.Second

// Setup registers an OTLP/HTTP span exporter with Genkit's TracerProvider
// and returns a shutdown function. Must run before genkit.Init so the
// processor sees every span. Tracing failures never fail startup: a broken
// collector degrades to a no-op.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.TracingEnabled {
		return func() {}
	}

	endpoint := cfg.TracingEndpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled", "endpoint", endpoint)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
