//go:build cgo
// +build cgo

package bridge

// #include "abi.h"
import "C"

import (
	"math"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/endian"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

// ImportField decodes schema into Go memory and releases it. The schema is
// consumed on success and on failure.
func ImportField(schema *ArrowSchema) (arrow.Field, error) {
	if schema == nil {
		return arrow.Field{}, withOp(malformed("nil schema descriptor"), "import", "")
	}
	cs := schema.c()
	if C.bridge_schema_is_released(cs) == 1 {
		return arrow.Field{}, withOp(malformed("schema descriptor already released"), "import", "")
	}
	defer C.bridge_call_schema_release(cs)

	field, err := decodeSchema(cs, C.GoString(cs.name), 0)
	if err != nil {
		return arrow.Field{}, withOp(err, "import", "")
	}
	return field, nil
}

// maxNestingDepth bounds the recursion over foreign child tables.
const maxNestingDepth = 64

func decodeSchema(s *cSchema, path string, depth int) (arrow.Field, error) {
	if depth > maxNestingDepth {
		return arrow.Field{}, withOp(malformed("schema nesting too deep (limit %d)", maxNestingDepth), "", path)
	}
	if s.format == nil {
		return arrow.Field{}, withOp(malformed("NULL format string"), "", path)
	}
	format := C.GoString(s.format)
	if s.dictionary != nil {
		return arrow.Field{}, withOp(unsupported(format, "dictionary-encoded field"), "", path)
	}
	if s.n_children < 0 || (s.n_children > 0 && s.children == nil) {
		return arrow.Field{}, withOp(malformed("invalid child schema table (n_children=%d)", s.n_children), "", path)
	}

	var children []arrow.Field
	if n := int(s.n_children); n > 0 {
		children = make([]arrow.Field, n)
		for i, c := range unsafe.Slice(s.children, n) {
			if c == nil {
				return arrow.Field{}, withOp(malformed("NULL child schema %d", i), "", path)
			}
			f, err := decodeSchema(c, joinPath(path, C.GoString(c.name)), depth+1)
			if err != nil {
				return arrow.Field{}, err
			}
			children[i] = f
		}
	}

	md, err := importMetadata(s.metadata)
	if err != nil {
		return arrow.Field{}, withOp(err, "", path)
	}
	dt, err := TypeFromFormat(format, children, int64(s.flags))
	if err != nil {
		return arrow.Field{}, withOp(err, "", path)
	}
	return arrow.Field{
		Name:     C.GoString(s.name),
		Type:     dt,
		Nullable: int64(s.flags)&FlagNullable != 0,
		Metadata: md,
	}, nil
}

func importMetadata(p *C.char) (arrow.Metadata, error) {
	if p == nil {
		return arrow.Metadata{}, nil
	}
	base := unsafe.Pointer(p)
	size, err := metadataSize(func(off int) []byte {
		return unsafe.Slice((*byte)(unsafe.Add(base, off)), 4)
	})
	if err != nil {
		return arrow.Metadata{}, err
	}
	return decodeMetadata(C.GoBytes(base, C.int(size)))
}

// ImportArray imports a schema/array pair. Both descriptors are consumed:
// on success the array's release is deferred until every buffer of the
// returned array has been released, on failure it is released before
// returning.
//
// An array descriptor whose release callback is NULL is treated as
// borrowed: its memory is wrapped without ownership and never released.
func ImportArray(schema *ArrowSchema, arr *ArrowArray) (arrow.Field, arrow.Array, error) {
	field, err := ImportField(schema)
	if err != nil {
		discardArray(arr)
		DefaultMetrics.fail("import", err)
		lg().Warn("import rejected", zap.Error(err))
		return arrow.Field{}, nil, err
	}
	out, err := ImportArrayWithType(field.Type, arr)
	if err != nil {
		return arrow.Field{}, nil, err
	}
	return field, out, nil
}

// ImportArrayWithType imports arr using an already decoded type.
func ImportArrayWithType(dt arrow.DataType, arr *ArrowArray) (arrow.Array, error) {
	if arr == nil {
		err := withOp(malformed("nil array descriptor"), "import", "")
		DefaultMetrics.fail("import", err)
		return nil, err
	}
	if err := validateArray(dt, arr.c(), "", 0); err != nil {
		err = withOp(err, "import", "")
		discardArray(arr)
		DefaultMetrics.fail("import", err)
		lg().Warn("import rejected", zap.Stringer("type", dt), zap.Error(err))
		return nil, err
	}

	var data arrow.ArrayData
	if C.bridge_array_is_released(arr.c()) == 1 {
		data = buildData(dt, arr.c(), nil)
	} else {
		g := newImportGuard(arr.c())
		data = buildData(dt, g.arr, g)
		defer g.settle()
	}
	defer data.Release()

	DefaultMetrics.Imports.Inc()
	lg().Debug("imported array", zap.Stringer("type", dt), zap.Int("length", data.Len()))
	return array.MakeFromData(data), nil
}

func discardArray(arr *ArrowArray) {
	if arr != nil {
		C.bridge_call_array_release(arr.c())
	}
}

// validateArray checks counts, lengths, offsets and required buffer
// pointers of the whole descriptor tree before anything is wrapped.
func validateArray(dt arrow.DataType, a *cArray, path string, depth int) error {
	if depth > maxNestingDepth {
		return withOp(malformed("array nesting too deep (limit %d)", maxNestingDepth), "", path)
	}
	nbuf, nkids := layoutOf(dt)
	length, offset, nulls := int64(a.length), int64(a.offset), int64(a.null_count)

	switch {
	case length < 0:
		return withOp(malformed("negative length %d", length), "", path)
	case offset < 0:
		return withOp(malformed("negative offset %d", offset), "", path)
	case length > math.MaxInt64-offset:
		return withOp(malformed("offset %d + length %d overflows", offset, length), "", path)
	case nulls < -1 || nulls > length:
		return withOp(malformed("null count %d out of range for length %d", nulls, length), "", path)
	case int(a.n_buffers) != nbuf:
		return withOp(malformed("%s expects %d buffers, got %d", dt, nbuf, a.n_buffers), "", path)
	case int(a.n_children) != nkids:
		return withOp(malformed("%s expects %d children, got %d", dt, nkids, a.n_children), "", path)
	case a.dictionary != nil:
		return withOp(unsupported("", "dictionary-encoded array"), "", path)
	}

	if nbuf > 0 {
		if a.buffers == nil {
			return withOp(nullBuffer("buffer table is NULL"), "", path)
		}
		bufs := unsafe.Slice(a.buffers, nbuf)
		if bufs[0] == nil && nulls > 0 {
			return withOp(nullBuffer("validity bitmap is NULL with %d nulls", nulls), "", path)
		}
		for i := 1; i < nbuf; i++ {
			if bufs[i] == nil && bufferRequired(dt, i, a) {
				return withOp(nullBuffer("%s buffer %d is NULL", dt, i), "", path)
			}
		}
	}

	// 偏移量来自外部内存，后面会被当作长度使用
	var last int64
	if hasOffsets(dt) {
		if offs := unsafe.Slice(a.buffers, nbuf)[1]; offs != nil {
			first := readOffset(dt, offs, offset)
			last = readOffset(dt, offs, offset+length)
			if first < 0 || last < first {
				return withOp(malformed("offsets [%d, %d] out of order at %d..%d", first, last, offset, offset+length), "", path)
			}
		}
	}

	if nkids > 0 {
		if a.children == nil {
			return withOp(malformed("child array table is NULL"), "", path)
		}
		need, ok := childMinLength(dt, offset+length, last)
		if !ok {
			return withOp(malformed("child extent of %s overflows at length %d", dt, offset+length), "", path)
		}
		fields := childFields(dt)
		for i, c := range unsafe.Slice(a.children, nkids) {
			if c == nil {
				return withOp(malformed("NULL child array %d", i), "", path)
			}
			if n := int64(c.length); n >= 0 && n < need {
				return withOp(malformed("child %d has length %d, parent needs %d", i, n, need), "", joinPath(path, fields[i].Name))
			}
			if err := validateArray(fields[i].Type, c, joinPath(path, fields[i].Name), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// bufferRequired reports whether buffer i must be non-NULL. Offsets may be
// NULL for empty arrays, the data buffer of a binary array only when no
// byte is referenced.
func bufferRequired(dt arrow.DataType, i int, a *cArray) bool {
	length := int64(a.length)
	switch dt.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.STRING, arrow.LARGE_STRING:
		if i == 1 {
			return length > 0
		}
		if length == 0 {
			return false
		}
		offs := unsafe.Slice(a.buffers, 2)[1]
		return readOffset(dt, offs, int64(a.offset)+length) > 0
	case arrow.LIST, arrow.LARGE_LIST, arrow.MAP:
		return length > 0
	}
	return length+int64(a.offset) > 0
}

func hasOffsets(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.STRING, arrow.LARGE_STRING,
		arrow.LIST, arrow.LARGE_LIST, arrow.MAP:
		return true
	}
	return false
}

// childMinLength returns how many child slots a parent with the given
// extent (offset+length) addresses. last is the final offset of list-like
// parents.
func childMinLength(dt arrow.DataType, extent, last int64) (int64, bool) {
	switch dt.ID() {
	case arrow.STRUCT:
		return extent, true
	case arrow.FIXED_SIZE_LIST:
		n := int64(dt.(*arrow.FixedSizeListType).Len())
		if n > 0 && extent > math.MaxInt64/n {
			return 0, false
		}
		return extent * n, true
	case arrow.LIST, arrow.LARGE_LIST, arrow.MAP:
		return last, true
	}
	return 0, true
}

func isLargeOffsets(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.LARGE_BINARY, arrow.LARGE_STRING, arrow.LARGE_LIST:
		return true
	}
	return false
}

func readOffset(dt arrow.DataType, offs unsafe.Pointer, i int64) int64 {
	if isLargeOffsets(dt) {
		b := unsafe.Slice((*byte)(unsafe.Add(offs, i*8)), 8)
		return int64(endian.Native.Uint64(b))
	}
	b := unsafe.Slice((*byte)(unsafe.Add(offs, i*4)), 4)
	return int64(int32(endian.Native.Uint32(b)))
}

// bufferSizes returns the byte length of every buffer of a, derived from
// the type and the logical extent offset+length.
func bufferSizes(dt arrow.DataType, a *cArray) []int {
	nbuf, _ := layoutOf(dt)
	if nbuf == 0 {
		return nil
	}
	extent := int64(a.offset) + int64(a.length)
	sizes := make([]int, nbuf)
	sizes[0] = int(bitmapBytes(extent))

	switch dt.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.STRING, arrow.LARGE_STRING:
		if a.length == 0 && unsafe.Slice(a.buffers, nbuf)[1] == nil {
			return sizes
		}
		width := int64(4)
		if isLargeOffsets(dt) {
			width = 8
		}
		sizes[1] = int((extent + 1) * width)
		sizes[2] = int(readOffset(dt, unsafe.Slice(a.buffers, nbuf)[1], extent))
	case arrow.LIST, arrow.LARGE_LIST, arrow.MAP:
		if a.length == 0 && unsafe.Slice(a.buffers, nbuf)[1] == nil {
			return sizes
		}
		width := int64(4)
		if isLargeOffsets(dt) {
			width = 8
		}
		sizes[1] = int((extent + 1) * width)
	case arrow.STRUCT, arrow.FIXED_SIZE_LIST:
	case arrow.BOOL:
		sizes[1] = int(bitmapBytes(extent))
	default:
		if fw, ok := dt.(arrow.FixedWidthDataType); ok {
			sizes[1] = int(extent * int64(fw.BitWidth()/8))
		}
	}
	return sizes
}

func bitmapBytes(n int64) int64 { return (n + 7) / 8 }

// buildData wraps a validated descriptor tree into ArrayData. With a guard
// every buffer holds a reference on it; without one the memory is borrowed.
func buildData(dt arrow.DataType, a *cArray, g *importGuard) arrow.ArrayData {
	nbuf, nkids := layoutOf(dt)
	sizes := bufferSizes(dt, a)

	// arrow-go keeps a (nil) validity slot even for the null type
	buffers := make([]*memory.Buffer, max(nbuf, 1))
	if nbuf > 0 {
		ptrs := unsafe.Slice(a.buffers, nbuf)
		for i, p := range ptrs {
			if p == nil || (i == 0 && int64(a.null_count) == 0) {
				continue
			}
			b := unsafe.Slice((*byte)(p), sizes[i])
			if g != nil {
				buffers[i] = g.wrap(b)
			} else {
				buffers[i] = memory.NewBufferBytes(b)
			}
		}
	}

	var children []arrow.ArrayData
	if nkids > 0 {
		fields := childFields(dt)
		children = make([]arrow.ArrayData, nkids)
		for i, c := range unsafe.Slice(a.children, nkids) {
			children[i] = buildData(fields[i].Type, c, g)
		}
	}

	nulls := int(a.null_count)
	if dt.ID() == arrow.NULL {
		nulls = int(a.length)
	} else if nulls < 0 {
		nulls = array.UnknownNullCount
	}
	data := array.NewData(dt, int(a.length), buffers, children, nulls, int(a.offset))

	for _, b := range buffers {
		if b != nil {
			b.Release()
		}
	}
	for _, c := range children {
		c.Release()
	}
	return data
}
