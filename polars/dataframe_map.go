package polars

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NewDataFrameFromMap 从 map 创建 DataFrame（类似 py-polars 的 DataFrame(dict) 方式）
//
// 列按名字排序。每列的类型由切片元素类型推断，[]interface{} 则取第一个非 nil 值：
//
//	data 格式: map[string]interface{}{
//	    "col1": []int64{1, 2, 3},
//	    "col2": []string{"a", "b", "c"},
//	    "col3": []interface{}{1, nil, 3},  // 支持 nil
//	    "col4": []*float64{&x, nil, &y},   // 指针为 nil 即 null
//	}
func NewDataFrameFromMap(mem memory.Allocator, data map[string]interface{}) (*DataFrame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data is empty")
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]*Series, 0, len(names))
	defer func() {
		for _, s := range cols {
			s.Release()
		}
	}()
	for _, name := range names {
		s, err := seriesFromValues(mem, name, data[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		cols = append(cols, s)
	}
	return NewDataFrame(cols...)
}

func seriesFromValues(mem memory.Allocator, name string, colValues interface{}) (*Series, error) {
	values, elem, err := convertColumnValues(colValues)
	if err != nil {
		return nil, err
	}

	dt, err := inferType(elem, values)
	if err != nil {
		return nil, err
	}

	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(len(values))
	for i, v := range values {
		if err := appendValue(b, v); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	arr := b.NewArray()
	defer arr.Release()
	return SeriesFromArray(name, arr), nil
}

// convertColumnValues 转换列数据为 []interface{}，同时返回切片的元素类型
func convertColumnValues(colValues interface{}) ([]interface{}, reflect.Type, error) {
	// 如果已经是 []interface{}，直接返回
	if slice, ok := colValues.([]interface{}); ok {
		return slice, nil, nil
	}

	v := reflect.ValueOf(colValues)
	// 处理其他切片类型
	if v.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("column data must be a slice, got %T", colValues)
	}

	length := v.Len()
	result := make([]interface{}, length)

	for i := 0; i < length; i++ {
		val := v.Index(i)

		// 处理指针类型（nil 值）
		if val.Kind() == reflect.Ptr {
			if val.IsNil() {
				result[i] = nil
			} else {
				result[i] = val.Elem().Interface()
			}
		} else {
			result[i] = val.Interface()
		}
	}

	elem := v.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	return result, elem, nil
}

var timeType = reflect.TypeOf(time.Time{})

// inferType 元素类型 -> Arrow 类型；全为 nil 的 []interface{} 得到 null 列
func inferType(elem reflect.Type, values []interface{}) (arrow.DataType, error) {
	if elem == nil || elem.Kind() == reflect.Interface {
		elem = nil
		for _, v := range values {
			if v != nil {
				elem = reflect.TypeOf(v)
				break
			}
		}
		if elem == nil {
			return arrow.Null, nil
		}
	}

	if elem == timeType {
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	}
	switch elem.Kind() {
	case reflect.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case reflect.Float32, reflect.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case reflect.String:
		return arrow.BinaryTypes.String, nil
	case reflect.Slice:
		if elem.Elem().Kind() == reflect.Uint8 {
			return arrow.BinaryTypes.Binary, nil
		}
	}
	return nil, fmt.Errorf("unsupported element type %s", elem)
}

func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	rv := reflect.ValueOf(v)
	mismatch := func() error {
		return fmt.Errorf("value %v (%T) does not fit column type %s", v, v, b.Type())
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		if rv.Kind() != reflect.Bool {
			return mismatch()
		}
		b.Append(rv.Bool())
	case *array.Int64Builder:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			b.Append(rv.Int())
		default:
			return mismatch()
		}
	case *array.Uint64Builder:
		switch rv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			b.Append(rv.Uint())
		default:
			return mismatch()
		}
	case *array.Float64Builder:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			b.Append(rv.Float())
		default:
			return mismatch()
		}
	case *array.StringBuilder:
		if rv.Kind() != reflect.String {
			return mismatch()
		}
		b.Append(rv.String())
	case *array.BinaryBuilder:
		if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Uint8 {
			return mismatch()
		}
		b.Append(rv.Bytes())
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch()
		}
		b.Append(arrow.Timestamp(t.UnixMicro()))
	default:
		return mismatch()
	}
	return nil
}
