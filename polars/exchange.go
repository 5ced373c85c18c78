package polars

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/machilusZ/cs511-project2/bridge"
)

// ExportSeries 先把 s 合并成单个 chunk，再通过 Arrow C Data Interface 导出（零拷贝）。
// 成功后两个描述符归消费方所有；失败时描述符保持原样。
func ExportSeries(mem memory.Allocator, s *Series, nullable bool, outSchema *bridge.ArrowSchema, outArray *bridge.ArrowArray) error {
	return exportSeriesAs(mem, s, s.Name(), nullable, outSchema, outArray)
}

func exportSeriesAs(mem memory.Allocator, s *Series, name string, nullable bool, outSchema *bridge.ArrowSchema, outArray *bridge.ArrowArray) error {
	if s == nil {
		return fmt.Errorf("export series: nil series")
	}
	arr, err := s.ToArrow(mem)
	if err != nil {
		return err
	}
	// 导出侧会自己持有一份引用
	defer arr.Release()

	if err := bridge.ExportArray(arr, name, nullable, outSchema, outArray); err != nil {
		return fmt.Errorf("export series %q: %w", s.Name(), err)
	}
	return nil
}

// ExportSeriesUnnamed 以空字段名、nullable 导出，名字由调用方另行传递
func ExportSeriesUnnamed(mem memory.Allocator, s *Series, outSchema *bridge.ArrowSchema, outArray *bridge.ArrowArray) error {
	return exportSeriesAs(mem, s, "", true, outSchema, outArray)
}

// ImportSeries 从描述符导入一列，Series 的名字取自 schema 的字段名。
// 无论成功与否，描述符都被消费掉。
func ImportSeries(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) (*Series, error) {
	field, data, err := bridge.ImportArray(schema, arr)
	if err != nil {
		return nil, fmt.Errorf("import series: %w", err)
	}
	defer data.Release()

	s := SeriesFromArray(field.Name, data)
	return s, nil
}
