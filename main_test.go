package main

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedCommandStillShutsDown(t *testing.T) {
	t.Setenv("WAKE_METRICS_ENABLED", "true")
	t.Setenv("WAKE_METRICS_ADDR", "127.0.0.1:0")
	t.Setenv("WAKE_TRACE_STDOUT", "true")
	t.Setenv("WAKE_LOG_LEVEL", "error")

	a := &app{}
	missing := filepath.Join(t.TempDir(), "missing.csv")
	err := a.execute(context.Background(), []string{"roundtrip", "--csv", missing})
	require.Error(t, err)

	require.NotNil(t, a.metrics, "metrics server was started")
	assert.ErrorIs(t, a.metrics.ListenAndServe(), http.ErrServerClosed)
	require.NotNil(t, a.tp)
	_, span := a.tp.Tracer("wake").Start(context.Background(), "after-shutdown")
	assert.False(t, span.IsRecording(), "tracer provider is shut down")
	span.End()
}

func TestFormatsCommand(t *testing.T) {
	a := &app{}
	require.NoError(t, a.execute(context.Background(), []string{"formats"}))
	assert.NotNil(t, a.cfg)
}
