// Package telemetry wraps the OpenTelemetry tracer used around the
// compilation phases. Without an installed provider the spans are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/specialistvlad/aotgraph"

// Span names of the compilation phases.
const (
	SpanComputeGraph = "compilation.ComputeMarkedNodes"
	SpanCompileBatch = "compilation.CompileBatch"
	SpanEmitObject   = "compilation.EmitObject"
	SpanExportGraph  = "compilation.ExportDependencyGraph"
)

// Start opens a span carrying attrs. The tracer is looked up on every call so
// a provider installed after package init is honoured.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Provider is an installed tracer provider.
type Provider struct {
	tp       *sdktrace.TracerProvider
	previous trace.TracerProvider
}

// Install makes processor the sink of every span and returns the provider so
// the caller can flush it.
func Install(processor sdktrace.SpanProcessor) *Provider {
	p := &Provider{
		tp:       sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(processor)),
		previous: otel.GetTracerProvider(),
	}
	otel.SetTracerProvider(p.tp)
	return p
}

// InstallJSON exports spans as JSON lines to w.
func InstallJSON(w io.Writer) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return Install(sdktrace.NewSimpleSpanProcessor(exporter)), nil
}

// Shutdown flushes pending spans and restores the previous provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	otel.SetTracerProvider(p.previous)
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush traces: %w", err)
	}
	return nil
}
