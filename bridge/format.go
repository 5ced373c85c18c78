package bridge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Schema flags, see ARROW_FLAG_* in abi.h.
const (
	FlagDictionaryOrdered int64 = 1
	FlagNullable          int64 = 2
	FlagMapKeysSorted     int64 = 4
)

const (
	maxDecimal128Precision = 38
	maxDecimal256Precision = 76
)

// 无参数的格式串
var fixedFormats = map[string]arrow.DataType{
	"n":   arrow.Null,
	"b":   arrow.FixedWidthTypes.Boolean,
	"c":   arrow.PrimitiveTypes.Int8,
	"s":   arrow.PrimitiveTypes.Int16,
	"i":   arrow.PrimitiveTypes.Int32,
	"l":   arrow.PrimitiveTypes.Int64,
	"C":   arrow.PrimitiveTypes.Uint8,
	"S":   arrow.PrimitiveTypes.Uint16,
	"I":   arrow.PrimitiveTypes.Uint32,
	"L":   arrow.PrimitiveTypes.Uint64,
	"e":   arrow.FixedWidthTypes.Float16,
	"f":   arrow.PrimitiveTypes.Float32,
	"g":   arrow.PrimitiveTypes.Float64,
	"z":   arrow.BinaryTypes.Binary,
	"Z":   arrow.BinaryTypes.LargeBinary,
	"u":   arrow.BinaryTypes.String,
	"U":   arrow.BinaryTypes.LargeString,
	"tdD": arrow.FixedWidthTypes.Date32,
	"tdm": arrow.FixedWidthTypes.Date64,
	"tts": arrow.FixedWidthTypes.Time32s,
	"ttm": arrow.FixedWidthTypes.Time32ms,
	"ttu": arrow.FixedWidthTypes.Time64us,
	"ttn": arrow.FixedWidthTypes.Time64ns,
	"tiM": arrow.FixedWidthTypes.MonthInterval,
	"tiD": arrow.FixedWidthTypes.DayTimeInterval,
	"tin": arrow.FixedWidthTypes.MonthDayNanoInterval,
}

// keyed by type ID, filled from fixedFormats
var fixedFormatOf = func() map[arrow.Type]string {
	m := make(map[arrow.Type]string, len(fixedFormats))
	for f, dt := range fixedFormats {
		switch dt.ID() {
		case arrow.TIME32, arrow.TIME64:
			// unit-dependent, handled in FormatOf
			continue
		}
		m[dt.ID()] = f
	}
	return m
}()

var unitChar = map[arrow.TimeUnit]byte{
	arrow.Second:      's',
	arrow.Millisecond: 'm',
	arrow.Microsecond: 'u',
	arrow.Nanosecond:  'n',
}

var charUnit = map[byte]arrow.TimeUnit{
	's': arrow.Second,
	'm': arrow.Millisecond,
	'u': arrow.Microsecond,
	'n': arrow.Nanosecond,
}

// FormatOf returns the C Data Interface format string of dt's top level.
// Children of nested types are mapped separately by the caller.
func FormatOf(dt arrow.DataType) (string, error) {
	if dt == nil {
		return "", unsupported("", "nil data type")
	}
	if f, ok := fixedFormatOf[dt.ID()]; ok {
		return f, nil
	}

	switch dt := dt.(type) {
	case *arrow.FixedSizeBinaryType:
		return "w:" + strconv.Itoa(dt.ByteWidth), nil
	case *arrow.Decimal128Type:
		return fmt.Sprintf("d:%d,%d", dt.Precision, dt.Scale), nil
	case *arrow.Decimal256Type:
		return fmt.Sprintf("d:%d,%d,256", dt.Precision, dt.Scale), nil
	case *arrow.Time32Type:
		if dt.Unit != arrow.Second && dt.Unit != arrow.Millisecond {
			return "", unsupported("", "time32 with unit %s", dt.Unit)
		}
		return "tt" + string(unitChar[dt.Unit]), nil
	case *arrow.Time64Type:
		if dt.Unit != arrow.Microsecond && dt.Unit != arrow.Nanosecond {
			return "", unsupported("", "time64 with unit %s", dt.Unit)
		}
		return "tt" + string(unitChar[dt.Unit]), nil
	case *arrow.TimestampType:
		return "ts" + string(unitChar[dt.Unit]) + ":" + dt.TimeZone, nil
	case *arrow.DurationType:
		return "tD" + string(unitChar[dt.Unit]), nil
	case *arrow.MapType:
		return "+m", nil
	case *arrow.ListType:
		return "+l", nil
	case *arrow.LargeListType:
		return "+L", nil
	case *arrow.FixedSizeListType:
		return "+w:" + strconv.Itoa(int(dt.Len())), nil
	case *arrow.StructType:
		return "+s", nil
	}
	return "", unsupported("", "data type %s cannot cross the boundary", dt)
}

// TypeFromFormat is the inverse of FormatOf. children are the already
// decoded child fields, flags the ARROW_FLAG_* bits of the schema node.
func TypeFromFormat(format string, children []arrow.Field, flags int64) (arrow.DataType, error) {
	if dt, ok := fixedFormats[format]; ok {
		if len(children) != 0 {
			return nil, malformed("format %q takes no children, got %d", format, len(children))
		}
		return dt, nil
	}

	switch {
	case strings.HasPrefix(format, "w:"):
		n, err := parsePositive(format, format[2:])
		if err != nil {
			return nil, err
		}
		return &arrow.FixedSizeBinaryType{ByteWidth: n}, nil

	case strings.HasPrefix(format, "d:"):
		return parseDecimal(format)

	case len(format) >= 4 && strings.HasPrefix(format, "ts") && format[3] == ':':
		unit, ok := charUnit[format[2]]
		if !ok {
			return nil, unsupported(format, "unknown timestamp unit")
		}
		return &arrow.TimestampType{Unit: unit, TimeZone: format[4:]}, nil

	case len(format) == 3 && strings.HasPrefix(format, "tD"):
		unit, ok := charUnit[format[2]]
		if !ok {
			return nil, unsupported(format, "unknown duration unit")
		}
		return &arrow.DurationType{Unit: unit}, nil

	case format == "+l":
		if err := wantChildren(format, children, 1); err != nil {
			return nil, err
		}
		return arrow.ListOfField(children[0]), nil

	case format == "+L":
		if err := wantChildren(format, children, 1); err != nil {
			return nil, err
		}
		return arrow.LargeListOfField(children[0]), nil

	case strings.HasPrefix(format, "+w:"):
		n, err := parsePositive(format, format[3:])
		if err != nil {
			return nil, err
		}
		if err := wantChildren(format, children, 1); err != nil {
			return nil, err
		}
		return arrow.FixedSizeListOfField(int32(n), children[0]), nil

	case format == "+s":
		return arrow.StructOf(children...), nil

	case format == "+m":
		if err := wantChildren(format, children, 1); err != nil {
			return nil, err
		}
		entries, ok := children[0].Type.(*arrow.StructType)
		if !ok || entries.NumFields() != 2 {
			return nil, malformed("map entries must be a struct of two fields, got %s", children[0].Type)
		}
		key, item := entries.Field(0), entries.Field(1)
		mt := arrow.MapOfWithMetadata(key.Type, key.Metadata, item.Type, item.Metadata)
		mt.SetItemNullable(item.Nullable)
		mt.KeysSorted = flags&FlagMapKeysSorted != 0
		return mt, nil
	}

	return nil, unsupported(format, "unrecognized format")
}

func parsePositive(format, s string) (int, error) {
	// 宽度在 Arrow 里是 int32
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		return 0, unsupported(format, "invalid width %q", s)
	}
	return int(n), nil
}

func parseDecimal(format string) (arrow.DataType, error) {
	parts := strings.Split(format[2:], ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, unsupported(format, "decimal needs precision and scale")
	}
	var nums [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, unsupported(format, "invalid decimal parameter %q", p)
		}
		nums[i] = v
	}
	prec, scale, width := int32(nums[0]), int32(nums[1]), 128
	if len(parts) == 3 {
		width = nums[2]
	}
	switch width {
	case 128:
		if prec < 1 || prec > maxDecimal128Precision {
			return nil, unsupported(format, "decimal128 precision %d out of range", prec)
		}
		return &arrow.Decimal128Type{Precision: prec, Scale: scale}, nil
	case 256:
		if prec < 1 || prec > maxDecimal256Precision {
			return nil, unsupported(format, "decimal256 precision %d out of range", prec)
		}
		return &arrow.Decimal256Type{Precision: prec, Scale: scale}, nil
	}
	return nil, unsupported(format, "decimal bit width %d", width)
}

func wantChildren(format string, children []arrow.Field, n int) error {
	if len(children) != n {
		return malformed("format %q needs %d child(ren), got %d", format, n, len(children))
	}
	return nil
}

// childFields returns the fields that become child descriptors of dt.
func childFields(dt arrow.DataType) []arrow.Field {
	switch dt := dt.(type) {
	case *arrow.MapType:
		return []arrow.Field{dt.ElemField()}
	case arrow.NestedType:
		return dt.Fields()
	}
	return nil
}

// layoutOf returns the buffer and child counts the C Data Interface
// prescribes for dt.
func layoutOf(dt arrow.DataType) (nbuffers, nchildren int) {
	switch dt.ID() {
	case arrow.NULL:
		return 0, 0
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.STRING, arrow.LARGE_STRING:
		return 3, 0
	case arrow.LIST, arrow.LARGE_LIST, arrow.MAP:
		return 2, 1
	case arrow.FIXED_SIZE_LIST:
		return 1, 1
	case arrow.STRUCT:
		return 1, dt.(*arrow.StructType).NumFields()
	}
	return 2, 0
}

// SupportedFormats lists every parameterless format plus a template for
// each parameterized one.
func SupportedFormats() []string {
	out := make([]string, 0, len(fixedFormats)+12)
	for f := range fixedFormats {
		out = append(out, f)
	}
	out = append(out,
		"w:N", "d:P,S", "d:P,S,256",
		"tss:TZ", "tsm:TZ", "tsu:TZ", "tsn:TZ",
		"tDs", "tDm", "tDu", "tDn",
		"+l", "+L", "+w:N", "+s", "+m",
	)
	sort.Strings(out)
	return out
}
