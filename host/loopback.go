package host

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/machilusZ/cs511-project2/polars"
)

// Loopback 进程内的宿主实现：导入的数组仍然挂在原始描述符上，
// 行为和一个真正的外部运行时一致，用于 CLI 和测试。
type Loopback struct {
	mem  memory.Allocator
	live atomic.Int64
}

func NewLoopback(mem memory.Allocator) *Loopback {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Loopback{mem: mem}
}

// Live 当前未释放的宿主数组个数
func (h *Loopback) Live() int64 { return h.live.Load() }

// ImportFromC 实现 Importer
func (h *Loopback) ImportFromC(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) (Array, error) {
	field, data, err := bridge.ImportArray(schema, arr)
	if err != nil {
		return nil, fmt.Errorf("loopback import: %w", err)
	}
	defer data.Release()
	return h.NewArray(field.Name, field.Nullable, data.DataType(), data)
}

// NewArray 用现成的 chunk 构造宿主数组（chunk 会被 Retain）
func (h *Loopback) NewArray(name string, nullable bool, dt arrow.DataType, chunks ...arrow.Array) (Array, error) {
	s, err := polars.NewSeries(name, dt, chunks...)
	if err != nil {
		return nil, err
	}
	h.live.Add(1)
	return &loopbackArray{host: h, series: s, nullable: nullable}, nil
}

type loopbackArray struct {
	host     *Loopback
	series   *polars.Series
	nullable bool
	released atomic.Bool
}

func (a *loopbackArray) Name() string { return a.series.Name() }

// Chunks 宿主侧持有的 chunk，供调用方检查
func (a *loopbackArray) Chunks() []arrow.Array { return a.series.Chunks() }

func (a *loopbackArray) Rechunk(context.Context) (Array, error) {
	flat, err := a.series.Rechunk(a.host.mem)
	if err != nil {
		return nil, err
	}
	a.host.live.Add(1)
	return &loopbackArray{host: a.host, series: flat, nullable: a.nullable}, nil
}

func (a *loopbackArray) ExportToC(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) error {
	if a.series.NumChunks() != 1 {
		return ErrNotContiguous
	}
	return bridge.ExportArray(a.series.Chunks()[0], a.series.Name(), a.nullable, schema, arr)
}

func (a *loopbackArray) Release() {
	if a.released.CompareAndSwap(false, true) {
		a.series.Release()
		a.host.live.Add(-1)
	}
}
