package polars

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Series 一列数据：名字加上一个或多个同类型的 Arrow chunk。
// 数据是引用计数的，多个 Series 可以共享同一组 chunk。
type Series struct {
	name    string
	chunked *arrow.Chunked
}

// NewSeries 用给定的 chunk 构造 Series，每个 chunk 的类型都必须等于 dt。
// chunk 会被 Retain，调用方仍然负责释放自己手上的引用。
func NewSeries(name string, dt arrow.DataType, chunks ...arrow.Array) (*Series, error) {
	if dt == nil {
		return nil, fmt.Errorf("series %q: nil data type", name)
	}
	for i, c := range chunks {
		if c == nil {
			return nil, fmt.Errorf("series %q: chunk %d is nil", name, i)
		}
		if !arrow.TypeEqual(dt, c.DataType()) {
			return nil, fmt.Errorf("series %q: chunk %d has type %s, want %s", name, i, c.DataType(), dt)
		}
	}
	return &Series{name: name, chunked: arrow.NewChunked(dt, chunks)}, nil
}

// SeriesFromArray 单 chunk 的快捷构造
func SeriesFromArray(name string, arr arrow.Array) *Series {
	return &Series{name: name, chunked: arrow.NewChunked(arr.DataType(), []arrow.Array{arr})}
}

func (s *Series) Name() string { return s.name }

func (s *Series) DataType() arrow.DataType { return s.chunked.DataType() }

func (s *Series) Len() int { return s.chunked.Len() }

func (s *Series) NullN() int { return s.chunked.NullN() }

func (s *Series) NumChunks() int { return len(s.chunked.Chunks()) }

// Chunks 返回内部 chunk，不增加引用计数
func (s *Series) Chunks() []arrow.Array { return s.chunked.Chunks() }

// Chunked 返回底层 arrow.Chunked，不增加引用计数
func (s *Series) Chunked() *arrow.Chunked { return s.chunked }

// Rename 返回共享同一份数据的新 Series
func (s *Series) Rename(name string) *Series {
	s.chunked.Retain()
	return &Series{name: name, chunked: s.chunked}
}

func (s *Series) Retain() { s.chunked.Retain() }

func (s *Series) Release() { s.chunked.Release() }

// Rechunk 返回只有一个连续 chunk 的 Series。
// 已经是单 chunk 时不会复制任何数据。
func (s *Series) Rechunk(mem memory.Allocator) (*Series, error) {
	if s.NumChunks() == 1 {
		return s.Rename(s.name), nil
	}
	arr, err := Rechunk(mem, s.chunked)
	if err != nil {
		return nil, fmt.Errorf("series %q: %w", s.name, err)
	}
	defer arr.Release()
	return SeriesFromArray(s.name, arr), nil
}

// ToArrow 返回这一列的单个连续数组（调用方负责 Release）
func (s *Series) ToArrow(mem memory.Allocator) (arrow.Array, error) {
	return Rechunk(mem, s.chunked)
}

func (s *Series) String() string {
	return fmt.Sprintf("Series[%s: %s, len=%d, chunks=%d]", s.name, s.DataType(), s.Len(), s.NumChunks())
}
