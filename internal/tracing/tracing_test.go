package tracing

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInit_WritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	ctx := context.Background()

	shutdown, err := Init(ctx, Config{File: path}, discardLogger())
	require.NoError(t, err)

	_, span := Tracer().Start(ctx, "lightcurve.Run")
	span.End()
	require.NoError(t, shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "lightcurve.Run"), "span name missing from %s", data)
	assert.Contains(t, string(data), "glmag")
}

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{}, discardLogger())
	require.NoError(t, err)

	_, span := Tracer().Start(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(ctx))
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init(context.Background(), Config{File: filepath.Join(t.TempDir(), "missing", "trace.json")}, discardLogger())
	assert.Error(t, err)
}

func TestShutdownWithTimeout(t *testing.T) {
	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	}, discardLogger())
	assert.True(t, called)

	ShutdownWithTimeout(context.Background(), nil, discardLogger())
}
