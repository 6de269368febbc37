// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// logSpanProcessor logs each finished span.
type logSpanProcessor struct {
	logger *zap.Logger
}

var _ sdktrace.SpanProcessor = (*logSpanProcessor)(nil)

func (p *logSpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("span", s.Name()),
		zap.Duration("elapsed", s.EndTime().Sub(s.StartTime())),
		zap.String("status", s.Status().Code.String()),
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	p.logger.Info("trace", fields...)
}

func (p *logSpanProcessor) Shutdown(ctx context.Context) error {
	return nil
}

func (p *logSpanProcessor) ForceFlush(ctx context.Context) error {
	return nil
}

// startTracing installs a tracer provider that logs spans to logger.  The
// returned function shuts it down.
func startTracing(logger *zap.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
