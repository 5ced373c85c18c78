package polars

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

// CSVOptions 控制 ReadCSV 的行为
type CSVOptions struct {
	// ChunkSize 每个 chunk 的行数，<= 0 表示整个文件一个 chunk
	ChunkSize int
	// NullValues 视为 null 的字符串，默认只有空串
	NullValues []string
}

// ReadCSVFile 打开并读取带表头的 CSV 文件
func ReadCSVFile(mem memory.Allocator, path string, opts CSVOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(mem, f, opts)
}

// ReadCSV 读取带表头的 CSV，列类型自动推断。
// 每读一批 ChunkSize 行就给每一列追加一个 chunk，因此结果通常是多 chunk 的。
func ReadCSV(mem memory.Allocator, r io.Reader, opts CSVOptions) (*DataFrame, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = -1
	}
	nulls := opts.NullValues
	if len(nulls) == 0 {
		nulls = []string{""}
	}

	rdr := csv.NewInferringReader(r,
		csv.WithAllocator(mem),
		csv.WithHeader(true),
		csv.WithChunk(chunk),
		csv.WithNullReader(true, nulls...),
	)
	defer rdr.Release()

	var (
		schema *arrow.Schema
		chunks [][]arrow.Array
	)
	defer func() {
		for _, col := range chunks {
			for _, c := range col {
				c.Release()
			}
		}
	}()

	for rdr.Next() {
		rec := rdr.Record()
		if schema == nil {
			schema = rec.Schema()
			chunks = make([][]arrow.Array, schema.NumFields())
		}
		for i := range chunks {
			col := rec.Column(i)
			col.Retain()
			chunks[i] = append(chunks[i], col)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if schema == nil {
		return nil, fmt.Errorf("csv has no rows")
	}

	cols := make([]*Series, 0, len(chunks))
	defer func() {
		for _, s := range cols {
			s.Release()
		}
	}()
	for i, f := range schema.Fields() {
		s, err := NewSeries(f.Name, f.Type, chunks[i]...)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}

	lg().Debug("loaded csv",
		zap.Int("columns", len(cols)),
		zap.Int("chunks", len(chunks[0])))
	return NewDataFrame(cols...)
}
