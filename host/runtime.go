package host

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/machilusZ/cs511-project2/host"

// Runtime 宿主运行时的全局串行锁。
// 每个跨边界的逻辑操作只加锁一次，操作结束立即释放。
type Runtime struct {
	mu     sync.Mutex
	tracer trace.Tracer
}

// NewRuntime tp 为 nil 时使用全局 TracerProvider
func NewRuntime(tp trace.TracerProvider) *Runtime {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Runtime{tracer: tp.Tracer(tracerName)}
}

// Do 持锁执行 fn。fn 内部不能再调用 Do，锁不可重入。
func (rt *Runtime) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := rt.tracer.Start(ctx, "host."+op)
	defer span.End()

	rt.mu.Lock()
	span.AddEvent("lock acquired")
	err := fn(ctx)
	rt.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg().Warn("host operation failed", zap.String("op", op), zap.Error(err))
		return err
	}
	span.SetAttributes(attribute.Bool("ok", true))
	return nil
}
