//go:build cgo
// +build cgo

package bridge

// #include "abi.h"
import "C"

import (
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

// schemaExporter 先完整校验整棵类型树，再一次性写入 C 内存
type schemaExporter struct {
	format, name string
	metadata     []byte
	flags        int64
	children     []schemaExporter
}

func (exp *schemaExporter) prepare(field arrow.Field, path string) error {
	format, err := FormatOf(field.Type)
	if err != nil {
		return withOp(err, "", path)
	}
	exp.format = format
	exp.name = field.Name
	exp.metadata = encodeMetadata(field.Metadata)
	if field.Nullable {
		exp.flags |= FlagNullable
	}
	if mt, ok := field.Type.(*arrow.MapType); ok && mt.KeysSorted {
		exp.flags |= FlagMapKeysSorted
	}

	kids := childFields(field.Type)
	exp.children = make([]schemaExporter, len(kids))
	for i, k := range kids {
		if err := exp.children[i].prepare(k, joinPath(path, k.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (exp *schemaExporter) finish(out *cSchema) {
	out.format = C.CString(exp.format)
	out.name = C.CString(exp.name)
	out.metadata = nil
	if exp.metadata != nil {
		out.metadata = (*C.char)(C.CBytes(exp.metadata))
	}
	out.flags = C.int64_t(exp.flags)
	out.n_children = C.int64_t(len(exp.children))
	out.children = nil
	out.dictionary = nil
	out.private_data = nil

	if n := len(exp.children); n > 0 {
		block := allocSchemas(n)
		ptrs := allocSchemaPtrs(n)
		for i := range exp.children {
			exp.children[i].finish(&block[i])
			ptrs[i] = &block[i]
		}
		out.children = &ptrs[0]
		// the child block is freed by the parent's release
		out.private_data = unsafe.Pointer(&block[0])
	}
	out.release = exportedSchemaRelease()
}

// exportedArray is the producer-side state behind one array descriptor
// level. Owned levels are reachable through a cgo.Handle in private_data.
type exportedArray struct {
	data   arrow.ArrayData // retained, nil when borrowed
	pinner runtime.Pinner

	buffers unsafe.Pointer // C table of buffer pointers
	kids    unsafe.Pointer // C block of child descriptors
	kidPtrs unsafe.Pointer
	nkids   int

	// borrowed levels have no handle, the lease walks them directly
	children []*exportedArray
}

func exportData(data arrow.ArrayData, out *cArray, owned bool) *exportedArray {
	st := &exportedArray{}
	nbuf, _ := layoutOf(data.DataType())
	kids := data.Children()

	out.length = C.int64_t(data.Len())
	out.null_count = C.int64_t(data.NullN())
	out.offset = C.int64_t(data.Offset())
	out.n_buffers = C.int64_t(nbuf)
	out.n_children = C.int64_t(len(kids))
	out.buffers = nil
	out.children = nil
	out.dictionary = nil

	if nbuf > 0 {
		table := allocBufferPtrs(nbuf)
		bufs := data.Buffers()
		for i := range table {
			var buf *memory.Buffer
			if i < len(bufs) {
				buf = bufs[i]
			}
			switch {
			case i == 0 && data.NullN() == 0:
				// no nulls, the bitmap may be omitted
				table[i] = nil
			case buf != nil && buf.Len() > 0:
				p := &buf.Bytes()[0]
				st.pinner.Pin(p)
				table[i] = unsafe.Pointer(p)
			case i == 0:
				table[i] = nil
			default:
				table[i] = zeroRegion()
			}
		}
		st.buffers = unsafe.Pointer(&table[0])
		out.buffers = (*unsafe.Pointer)(st.buffers)
	}

	if n := len(kids); n > 0 {
		block := allocArrays(n)
		ptrs := allocArrayPtrs(n)
		for i, k := range kids {
			child := exportData(k, &block[i], owned)
			ptrs[i] = &block[i]
			if !owned {
				st.children = append(st.children, child)
			}
		}
		st.kids = unsafe.Pointer(&block[0])
		st.kidPtrs = unsafe.Pointer(&ptrs[0])
		st.nkids = n
		out.children = &ptrs[0]
	}

	if !owned {
		out.private_data = nil
		out.release = nil
		return st
	}

	data.Retain()
	st.data = data
	out.private_data = newHandleSlot(cgo.NewHandle(st))
	out.release = exportedArrayRelease()
	DefaultMetrics.LiveExported.Inc()
	return st
}

// ExportField writes field into out. Nothing is written when the field's
// type tree contains a type that cannot cross the boundary.
func ExportField(field arrow.Field, out *ArrowSchema) error {
	if out == nil {
		return withOp(malformed("nil schema descriptor"), "export", "")
	}
	var exp schemaExporter
	if err := exp.prepare(field, field.Name); err != nil {
		err = withOp(err, "export", "")
		DefaultMetrics.fail("export", err)
		return err
	}
	exp.finish(out.c())
	return nil
}

// ExportArray exports arr into the caller provided descriptors. On success
// both descriptors are owned by the consumer, which must call their release
// callbacks exactly once. arr itself stays valid for the caller, the
// exported data is reference counted separately.
//
// On failure the descriptors are left untouched.
func ExportArray(arr arrow.Array, name string, nullable bool, outSchema *ArrowSchema, outArray *ArrowArray) error {
	if err := exportArgs(arr, outSchema, outArray); err != nil {
		return withOp(err, "export", "")
	}

	var exp schemaExporter
	if err := exp.prepare(arrow.Field{Name: name, Type: arr.DataType(), Nullable: nullable}, name); err != nil {
		err = withOp(err, "export", "")
		DefaultMetrics.fail("export", err)
		lg().Warn("export rejected", zap.String("name", name), zap.Error(err))
		return err
	}
	exp.finish(outSchema.c())
	exportData(arr.Data(), outArray.c(), true)

	DefaultMetrics.Exports.Inc()
	lg().Debug("exported array",
		zap.String("name", name),
		zap.String("format", exp.format),
		zap.Int("length", arr.Len()),
		zap.Int("nulls", arr.NullN()))
	return nil
}

func exportArgs(arr arrow.Array, outSchema *ArrowSchema, outArray *ArrowArray) error {
	switch {
	case arr == nil:
		return malformed("nil array")
	case outSchema == nil || outArray == nil:
		return malformed("nil descriptor")
	}
	return nil
}

// Lease keeps a borrowed export alive. The array descriptor it fills has
// no release callback; the consumer must not outlive the lease.
type Lease struct {
	once sync.Once
	arr  arrow.Array
	out  *cArray
	root *exportedArray
}

// BorrowArray exports arr without transferring ownership. The schema is
// owned by the consumer as usual; the array descriptor is borrowed and its
// scaffolding is freed by Lease.Close.
func BorrowArray(arr arrow.Array, name string, nullable bool, outSchema *ArrowSchema, outArray *ArrowArray) (*Lease, error) {
	if err := exportArgs(arr, outSchema, outArray); err != nil {
		return nil, withOp(err, "borrow", "")
	}

	var exp schemaExporter
	if err := exp.prepare(arrow.Field{Name: name, Type: arr.DataType(), Nullable: nullable}, name); err != nil {
		err = withOp(err, "borrow", "")
		DefaultMetrics.fail("borrow", err)
		return nil, err
	}
	exp.finish(outSchema.c())

	arr.Retain()
	l := &Lease{arr: arr, out: outArray.c()}
	l.root = exportData(arr.Data(), l.out, false)
	DefaultMetrics.Borrows.Inc()
	return l, nil
}

// Close frees the descriptor scaffolding and drops the lease's reference.
// It is safe to call more than once.
func (l *Lease) Close() {
	l.once.Do(func() {
		l.root.free()
		*l.out = cArray{}
		l.arr.Release()
		l.arr = nil
	})
}
