package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestRuntime(t *testing.T) (*Runtime, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewRuntime(tp), sr
}

func TestRuntimeSerializes(t *testing.T) {
	rt, sr := newTestRuntime(t)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rt.Do(context.Background(), "probe", func(context.Context) error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside.Load())
	assert.Len(t, sr.Ended(), 32)
	assert.Equal(t, "host.probe", sr.Ended()[0].Name())
}

func TestRuntimeRecordsErrors(t *testing.T) {
	rt, sr := newTestRuntime(t)
	boom := errors.New("boom")

	err := rt.Do(context.Background(), "fail", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// 失败后锁已释放
	require.NoError(t, rt.Do(context.Background(), "after", func(context.Context) error { return nil }))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}
