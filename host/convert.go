package host

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/machilusZ/cs511-project2/polars"
	"go.uber.org/zap"
)

// SeriesFromHost 把宿主数组转成 Series：在宿主侧合并 chunk、读取名字并导出，
// 然后在锁外导入。宿主数组本身不会被修改。
func SeriesFromHost(ctx context.Context, rt *Runtime, a Array) (*polars.Series, error) {
	schema, arr := bridge.NewArrowSchema(), bridge.NewArrowArray()
	defer bridge.FreeArrowSchema(schema)
	defer bridge.FreeArrowArray(arr)

	var name string
	err := rt.Do(ctx, "export", func(ctx context.Context) error {
		flat, err := a.Rechunk(ctx)
		if err != nil {
			return fmt.Errorf("rechunk: %w", err)
		}
		defer flat.Release()

		name = flat.Name()
		return flat.ExportToC(schema, arr)
	})
	if err != nil {
		return nil, err
	}

	s, err := polars.ImportSeries(schema, arr)
	if err != nil {
		return nil, err
	}
	if s.Name() != name {
		renamed := s.Rename(name)
		s.Release()
		s = renamed
	}
	lg().Debug("series from host", zap.String("name", name), zap.Int("length", s.Len()))
	return s, nil
}

// SeriesToHost 把 Series 合并为单个 chunk，以空字段名、nullable 导出，
// 再在锁内交给宿主的 Importer。
func SeriesToHost(ctx context.Context, rt *Runtime, imp Importer, mem memory.Allocator, s *polars.Series) (Array, error) {
	schema, arr := bridge.NewArrowSchema(), bridge.NewArrowArray()
	defer bridge.FreeArrowSchema(schema)
	defer bridge.FreeArrowArray(arr)

	if err := polars.ExportSeriesUnnamed(mem, s, schema, arr); err != nil {
		return nil, err
	}

	var out Array
	err := rt.Do(ctx, "import", func(context.Context) error {
		var err error
		out, err = imp.ImportFromC(schema, arr)
		return err
	})
	if err != nil {
		return nil, err
	}
	lg().Debug("series to host", zap.String("name", s.Name()), zap.Int("length", s.Len()))
	return out, nil
}

// DataFrameToHost 把每一列发送到宿主，返回 列名 -> 宿主数组
func DataFrameToHost(ctx context.Context, rt *Runtime, imp Importer, mem memory.Allocator, df *polars.DataFrame) (map[string]Array, error) {
	out := make(map[string]Array, df.Width())
	for _, s := range df.Columns() {
		a, err := SeriesToHost(ctx, rt, imp, mem, s)
		if err != nil {
			for _, prev := range out {
				prev.Release()
			}
			return nil, fmt.Errorf("column %q: %w", s.Name(), err)
		}
		out[s.Name()] = a
	}
	return out, nil
}
