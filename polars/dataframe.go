package polars

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DataFrame 由等长的 Series 组成的表，列的顺序即构造顺序
type DataFrame struct {
	columns []*Series
	index   map[string]int
}

// NewDataFrame 用给定的列构造 DataFrame，列会被 Retain。
// 所有列的长度必须一致，列名不能重复。
func NewDataFrame(columns ...*Series) (*DataFrame, error) {
	df := &DataFrame{
		columns: make([]*Series, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, s := range columns {
		if s == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := df.index[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate column name %q", s.Name())
		}
		if i > 0 && s.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, want %d", s.Name(), s.Len(), columns[0].Len())
		}
		df.index[s.Name()] = i
		df.columns = append(df.columns, s)
	}
	for _, s := range df.columns {
		s.Retain()
	}
	return df, nil
}

// Release 释放所有列
func (df *DataFrame) Release() {
	if df == nil {
		return
	}
	for _, s := range df.columns {
		s.Release()
	}
	df.columns = nil
	df.index = nil
}

// Width 列数
func (df *DataFrame) Width() int { return len(df.columns) }

// Height 行数
func (df *DataFrame) Height() int {
	if len(df.columns) == 0 {
		return 0
	}
	return df.columns[0].Len()
}

// Columns 返回所有列（不增加引用计数）
func (df *DataFrame) Columns() []*Series { return df.columns }

// Names 按顺序返回列名
func (df *DataFrame) Names() []string {
	names := make([]string, len(df.columns))
	for i, s := range df.columns {
		names[i] = s.Name()
	}
	return names
}

// Column 按名字取列
func (df *DataFrame) Column(name string) (*Series, bool) {
	i, ok := df.index[name]
	if !ok {
		return nil, false
	}
	return df.columns[i], true
}

// Schema 返回对应的 Arrow schema，所有列都视为 nullable
func (df *DataFrame) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(df.columns))
	for i, s := range df.columns {
		fields[i] = arrow.Field{Name: s.Name(), Type: s.DataType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Rechunk 返回每一列都只有一个 chunk 的新 DataFrame
func (df *DataFrame) Rechunk(mem memory.Allocator) (*DataFrame, error) {
	cols := make([]*Series, 0, len(df.columns))
	defer func() {
		for _, s := range cols {
			s.Release()
		}
	}()
	for _, s := range df.columns {
		r, err := s.Rechunk(mem)
		if err != nil {
			return nil, err
		}
		cols = append(cols, r)
	}
	return NewDataFrame(cols...)
}

// Rows 把 DataFrame 转成行，每行是 列名 -> 值，null 为 nil
func (df *DataFrame) Rows() []map[string]interface{} {
	rows := make([]map[string]interface{}, df.Height())
	for i := range rows {
		rows[i] = make(map[string]interface{}, len(df.columns))
	}
	for _, s := range df.columns {
		r := 0
		for _, chunk := range s.Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				rows[r][s.Name()] = chunk.GetOneForMarshal(j)
				r++
			}
		}
	}
	return rows
}

func (df *DataFrame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DataFrame[%d x %d]", df.Height(), df.Width())
	for _, s := range df.columns {
		fmt.Fprintf(&sb, "\n  %s: %s", s.Name(), s.DataType())
	}
	return sb.String()
}
