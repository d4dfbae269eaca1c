// Package logging configures the process-wide slog logger and the optional
// OpenTelemetry stdout tracer used by the CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation defaults.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxAgeDays = 28
)

// Options configures New.
type Options struct {
	// Format is "text" (default) or "json".
	Format string
	// Verbose enables debug level.
	Verbose bool
	// File, if set, sends logs to a rotated file instead of Stderr.
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// New builds a logger from opts. The returned closer releases the log file,
// if any, and must be called when logging is done.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var out io.Writer = opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  opts.MaxSizeMB,
			MaxAge:   opts.MaxAgeDays,
			Compress: true,
		}
		if lj.MaxSize <= 0 {
			lj.MaxSize = DefaultMaxSizeMB
		}
		if lj.MaxAge <= 0 {
			lj.MaxAge = DefaultMaxAgeDays
		}
		out = lj
		closer = lj
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch opts.Format {
	case "", "text":
		h = slog.NewTextHandler(out, hopts)
	case "json":
		h = slog.NewJSONHandler(out, hopts)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q (want text or json)", opts.Format)
	}
	return slog.New(traceHandler{h}), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// traceHandler adds trace_id and span_id to records logged with a context
// that carries a sampled span.
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}
