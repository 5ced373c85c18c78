package host

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/machilusZ/cs511-project2/bridge"
	"go.uber.org/zap"
)

// Engine 通过动态库加载的原生列式引擎，作为宿主运行时
type Engine struct {
	brg *bridge.Bridge
}

func NewEngine(brg *bridge.Bridge) *Engine { return &Engine{brg: brg} }

// ImportFromC 把描述符交给引擎。引擎接管描述符，调用方不要再释放它们。
func (e *Engine) ImportFromC(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) (Array, error) {
	h, err := e.brg.SeriesImport(schema, arr)
	if err != nil {
		return nil, fmt.Errorf("engine import: %w", err)
	}
	return newEngineSeries(h, e.brg), nil
}

// EngineSeries 由引擎持有的一列数据，Go 侧只持有句柄
type EngineSeries struct {
	mu     sync.Mutex
	handle bridge.SeriesHandle
	brg    *bridge.Bridge
}

func newEngineSeries(handle bridge.SeriesHandle, brg *bridge.Bridge) *EngineSeries {
	s := &EngineSeries{handle: handle, brg: brg}
	runtime.SetFinalizer(s, func(s *EngineSeries) {
		if s != nil && s.handle != 0 && s.brg != nil {
			s.brg.FreeSeries(s.handle)
		}
	})
	return s
}

// Name 读取引擎侧的名字，失败时返回空串
func (s *EngineSeries) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return ""
	}
	name, err := s.brg.SeriesName(s.handle)
	if err != nil {
		lg().Warn("failed to read series name", zap.Uint64("handle", uint64(s.handle)), zap.Error(err))
		return ""
	}
	return name
}

func (s *EngineSeries) Rechunk(context.Context) (Array, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return nil, fmt.Errorf("series is released")
	}
	h, err := s.brg.SeriesRechunk(s.handle)
	if err != nil {
		return nil, fmt.Errorf("engine rechunk: %w", err)
	}
	return newEngineSeries(h, s.brg), nil
}

func (s *EngineSeries) ExportToC(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return fmt.Errorf("series is released")
	}
	return s.brg.SeriesExport(s.handle, schema, arr)
}

// Release releases the engine-side handle.
func (s *EngineSeries) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 || s.brg == nil {
		return
	}
	s.brg.FreeSeries(s.handle)
	s.handle = 0
	runtime.SetFinalizer(s, nil)
}
