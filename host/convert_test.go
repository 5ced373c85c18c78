//go:build cgo
// +build cgo

package host

import (
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/machilusZ/cs511-project2/polars"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromJSON(t *testing.T, mem memory.Allocator, dt arrow.DataType, js string) arrow.Array {
	t.Helper()
	arr, _, err := array.FromJSON(mem, dt, strings.NewReader(js))
	require.NoError(t, err)
	return arr
}

func TestSeriesFromHostRechunksOnHost(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	rt, sr := newTestRuntime(t)
	lb := NewLoopback(mem)

	a := fromJSON(t, mem, arrow.BinaryTypes.String, `["a", null]`)
	b := fromJSON(t, mem, arrow.BinaryTypes.String, `["c", null]`)
	ha, err := lb.NewArray("letters", true, arrow.BinaryTypes.String, a, b)
	a.Release()
	b.Release()
	require.NoError(t, err)
	defer ha.Release()

	s, err := SeriesFromHost(context.Background(), rt, ha)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, "letters", s.Name())
	assert.Equal(t, 1, s.NumChunks())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 2, s.NullN())

	// 宿主数组本身没有被改动
	assert.Len(t, ha.(*loopbackArray).Chunks(), 2)
	// 一次转换只加一次锁
	assert.Len(t, sr.Ended(), 1)
}

func TestSeriesToHostAndBack(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	rt, _ := newTestRuntime(t)
	lb := NewLoopback(mem)

	df, err := polars.NewDataFrameFromMap(mem, map[string]interface{}{
		"id":    []int64{10, 20, 30},
		"label": []interface{}{"x", nil, "z"},
	})
	require.NoError(t, err)
	defer df.Release()

	live := testutil.ToFloat64(bridge.DefaultMetrics.LiveExported)

	hosted, err := DataFrameToHost(context.Background(), rt, lb, mem, df)
	require.NoError(t, err)
	require.Len(t, hosted, 2)
	assert.EqualValues(t, 2, lb.Live())

	for name, ha := range hosted {
		// 按原始程序的约定，宿主侧字段名为空
		assert.Equal(t, "", ha.Name())

		back, err := SeriesFromHost(context.Background(), rt, ha)
		require.NoError(t, err)
		orig, ok := df.Column(name)
		require.True(t, ok)
		assert.True(t, array.ChunkedEqual(orig.Chunked(), back.Chunked()), name)
		back.Release()
		ha.Release()
	}
	assert.EqualValues(t, 0, lb.Live())
	assert.Equal(t, live, testutil.ToFloat64(bridge.DefaultMetrics.LiveExported))
}

func TestSeriesToHostRejectsUnsupported(t *testing.T) {
	rt, _ := newTestRuntime(t)
	lb := NewLoopback(nil)

	dict := array.NewDictionaryBuilder(memory.DefaultAllocator, &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String,
	})
	defer dict.Release()
	require.NoError(t, dict.(*array.BinaryDictionaryBuilder).AppendString("x"))
	d := dict.NewArray()
	defer d.Release()

	s := polars.SeriesFromArray("cat", d)
	defer s.Release()

	_, err := SeriesToHost(context.Background(), rt, lb, nil, s)
	assert.ErrorIs(t, err, bridge.ErrUnsupportedType)
	assert.EqualValues(t, 0, lb.Live())
}

func TestLoopbackExportRequiresSingleChunk(t *testing.T) {
	lb := NewLoopback(nil)
	a := fromJSON(t, memory.DefaultAllocator, arrow.PrimitiveTypes.Int8, `[1]`)
	defer a.Release()

	ha, err := lb.NewArray("x", true, arrow.PrimitiveTypes.Int8, a, a)
	require.NoError(t, err)
	defer ha.Release()

	sc, arr := bridge.NewArrowSchema(), bridge.NewArrowArray()
	defer bridge.FreeArrowSchema(sc)
	defer bridge.FreeArrowArray(arr)
	assert.ErrorIs(t, ha.ExportToC(sc, arr), ErrNotContiguous)
	assert.True(t, arr.Released())
}
