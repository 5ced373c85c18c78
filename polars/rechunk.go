package polars

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

// ErrNilChunked 传入的 Chunked 为 nil
var ErrNilChunked = errors.New("polars: nil chunked array")

// Rechunk 把多 chunk 的列合并为一个连续数组，值和顺序保持不变。
//
//   - 只有一个非空 chunk：直接返回它（Retain），不分配任何内存
//   - 多个 chunk：array.Concatenate 复制到新的连续缓冲区
//   - 没有 chunk：返回该类型的空数组
//
// 返回的数组由调用方 Release。对结果再次 Rechunk 得到的是同一个数组。
func Rechunk(mem memory.Allocator, chunked *arrow.Chunked) (arrow.Array, error) {
	if chunked == nil {
		return nil, ErrNilChunked
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	chunks := chunked.Chunks()
	nonEmpty := make([]arrow.Array, 0, len(chunks))
	for _, c := range chunks {
		if c.Len() > 0 {
			nonEmpty = append(nonEmpty, c)
		}
	}

	switch {
	case len(nonEmpty) == 1:
		nonEmpty[0].Retain()
		return nonEmpty[0], nil
	case len(nonEmpty) == 0 && len(chunks) > 0:
		chunks[0].Retain()
		return chunks[0], nil
	case len(nonEmpty) == 0:
		return emptyArray(mem, chunked.DataType())
	}

	out, err := array.Concatenate(nonEmpty, mem)
	if err != nil {
		return nil, fmt.Errorf("rechunk %s: %w", chunked.DataType(), err)
	}
	lg().Debug("rechunked column",
		zap.Stringer("type", chunked.DataType()),
		zap.Int("chunks", len(nonEmpty)),
		zap.Int("length", out.Len()))
	return out, nil
}

func emptyArray(mem memory.Allocator, dt arrow.DataType) (arr arrow.Array, err error) {
	// NewBuilder panics on types it cannot build
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rechunk: cannot build empty %s: %v", dt, r)
		}
	}()
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	return b.NewArray(), nil
}
