package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Format: "json", Stderr: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("group done", "group", "600000", "matches", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "group done", line["msg"])
	assert.Equal(t, "600000", line["group"])
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var quiet, verbose bytes.Buffer

	l1, _, err := New(Options{Stderr: &quiet})
	require.NoError(t, err)
	l1.Debug("hidden")
	assert.Empty(t, quiet.String())

	l2, _, err := New(Options{Verbose: true, Stderr: &verbose})
	require.NoError(t, err)
	l2.Debug("shown")
	assert.Contains(t, verbose.String(), "shown")
}

func TestNew_InvalidFormat(t *testing.T) {
	_, _, err := New(Options{Format: "xml"})
	assert.ErrorContains(t, err, "invalid log format")
}

func TestNew_RotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "markout.log")
	var stderr bytes.Buffer

	logger, closer, err := New(Options{File: path, Stderr: &stderr})
	require.NoError(t, err)
	logger.Warn("oversell", "group", "X")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "oversell")
	assert.Empty(t, stderr.String())
}

func TestTracing_SpansAndLogCorrelation(t *testing.T) {
	ctx := context.Background()
	var spans bytes.Buffer
	shutdown, err := SetupTracing(ctx, &spans)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger, _, err := New(Options{Format: "json", Stderr: &logs})
	require.NoError(t, err)

	spanCtx, span := otel.Tracer("test").Start(ctx, "enrich.RunGroup")
	logger.InfoContext(spanCtx, "inside span")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, spans.String(), "enrich.RunGroup")
	assert.Contains(t, spans.String(), ServiceName)

	var line map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
}
