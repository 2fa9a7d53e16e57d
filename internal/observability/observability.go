// Package observability configures process-wide structured logging and
// tracing.
//
// Records always go to a console handler on stderr. When a telemetry
// exporter is selected they are also bridged into an OpenTelemetry log
// pipeline, and a tracer provider exporting to the same destination is
// installed globally. Sensitive attributes are redacted on every path.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// instrumentationName is the OpenTelemetry scope of bridged records.
const instrumentationName = "github.com/florianilch/correos-link"

// ShutdownFunc flushes and stops the log and trace pipelines.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger and, with an exporter, the
// global tracer provider. format is "text" or "json"; exporter is one of the
// Exporter constants or empty for console only. OTLP exporters are
// configured through the standard OTEL_EXPORTER_OTLP_* environment variables.
func Instrument(ctx context.Context, level slog.Level, format, exporter string) (ShutdownFunc, error) {
	console, err := consoleHandler(os.Stderr, level, format)
	if err != nil {
		return nil, err
	}

	logExp, err := newLogExporter(ctx, exporter)
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", exporter, err)
	}
	if logExp == nil {
		slog.SetDefault(slog.New(console))
		return func(context.Context) error { return nil }, nil
	}

	spanExp, err := newSpanExporter(ctx, exporter)
	if err != nil {
		return nil, fmt.Errorf("creating %s span exporter: %w", exporter, err)
	}

	var (
		processor sdklog.Processor
		spans     sdktrace.TracerProviderOption
	)
	if exporter == ExporterStdout {
		processor = sdklog.NewSimpleProcessor(logExp)
		spans = sdktrace.WithSyncer(spanExp)
	} else {
		processor = sdklog.NewBatchProcessor(logExp)
		spans = sdktrace.WithBatcher(spanExp)
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
	)
	global.SetLoggerProvider(loggerProvider)

	tracerProvider := sdktrace.NewTracerProvider(spans)
	otel.SetTracerProvider(tracerProvider)

	bridge := &redactingHandler{
		next: otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(loggerProvider)),
	}
	slog.SetDefault(slog.New(newFanoutHandler(console, bridge)))

	return func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), loggerProvider.Shutdown(ctx))
	}, nil
}

// consoleHandler builds the human or machine readable handler writing to w.
func consoleHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newLogExporter(ctx context.Context, exporter string) (sdklog.Exporter, error) {
	switch exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		// stdout carries command output.
		return stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", exporter)
	}
}

func newSpanExporter(ctx context.Context, exporter string) (sdktrace.SpanExporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case ExporterOTLPHTTP:
		return otlptracehttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlptracegrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", exporter)
	}
}

// severity maps a slog level onto the minimum severity of the pipeline.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
