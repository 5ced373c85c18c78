//go:build cgo
// +build cgo

package bridge

// #include "abi.h"
import "C"

import (
	"runtime/cgo"
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// private_data 里放的是 C 内存中的一个槽位，槽位里存 cgo.Handle
func newHandleSlot(h cgo.Handle) unsafe.Pointer {
	slot := (*cgo.Handle)(C.malloc(C.size_t(unsafe.Sizeof(h))))
	*slot = h
	return unsafe.Pointer(slot)
}

func takeHandleSlot(p unsafe.Pointer) cgo.Handle {
	h := *(*cgo.Handle)(p)
	C.free(p)
	return h
}

//export goBridgeReleaseSchema
func goBridgeReleaseSchema(schema *C.struct_ArrowSchema) {
	if C.bridge_schema_is_released(schema) == 1 {
		return
	}

	C.free(unsafe.Pointer(schema.format))
	C.free(unsafe.Pointer(schema.name))
	cfree(unsafe.Pointer(schema.metadata))

	if n := int(schema.n_children); n > 0 {
		for _, child := range unsafe.Slice(schema.children, n) {
			C.bridge_call_schema_release(child)
		}
		cfree(schema.private_data)
		C.free(unsafe.Pointer(schema.children))
	}

	schema.format, schema.name, schema.metadata = nil, nil, nil
	schema.children, schema.private_data = nil, nil
	schema.release = nil
	DefaultMetrics.Releases.WithLabelValues("schema").Inc()
}

//export goBridgeReleaseArray
func goBridgeReleaseArray(arr *C.struct_ArrowArray) {
	if C.bridge_array_is_released(arr) == 1 {
		return
	}

	h := takeHandleSlot(arr.private_data)
	st := h.Value().(*exportedArray)
	h.Delete()
	st.free()

	arr.buffers, arr.children, arr.private_data = nil, nil, nil
	arr.release = nil
	DefaultMetrics.LiveExported.Dec()
	DefaultMetrics.Releases.WithLabelValues("array").Inc()
}

// free drops everything one exported level holds: its children, the C
// tables, the pins and the retained data.
func (st *exportedArray) free() {
	if st.nkids > 0 {
		kids := unsafe.Slice((*cArray)(st.kids), st.nkids)
		for i := range kids {
			// a child the consumer moved out is already marked released
			C.bridge_call_array_release(&kids[i])
		}
		for _, c := range st.children {
			c.free()
		}
		C.free(st.kids)
		C.free(st.kidPtrs)
		st.kids, st.kidPtrs, st.nkids = nil, nil, 0
	}
	cfree(st.buffers)
	st.buffers = nil
	st.pinner.Unpin()
	if st.data != nil {
		st.data.Release()
		st.data = nil
	}
}

// importGuard owns a moved-in foreign array descriptor. It acts as the
// allocator of every buffer wrapped from that descriptor; when the last one
// is freed it calls the producer's release exactly once.
type importGuard struct {
	refs int64
	arr  *cArray // C memory, the moved descriptor
}

func newImportGuard(src *cArray) *importGuard {
	g := &importGuard{
		// the build reference, dropped by settle
		refs: 1,
		arr:  (*cArray)(C.calloc(1, C.sizeof_struct_ArrowArray)),
	}
	C.bridge_array_move(src, g.arr)
	DefaultMetrics.LiveImported.Inc()
	return g
}

func (g *importGuard) wrap(b []byte) *memory.Buffer {
	atomic.AddInt64(&g.refs, 1)
	return memory.NewBufferWithAllocator(b, g)
}

// settle drops the build reference. Arrays without buffers release the
// producer here.
func (g *importGuard) settle() { g.Free(nil) }

func (*importGuard) Allocate(int) []byte {
	panic("bridge: cannot allocate from an import guard")
}

func (*importGuard) Reallocate(int, []byte) []byte {
	panic("bridge: cannot reallocate from an import guard")
}

func (g *importGuard) Free([]byte) {
	n := atomic.AddInt64(&g.refs, -1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("bridge: import guard released too many times")
	}

	C.bridge_call_array_release(g.arr)
	if C.bridge_array_is_released(g.arr) != 1 {
		lg().Error("producer release callback did not mark the array released")
	}
	C.free(unsafe.Pointer(g.arr))
	g.arr = nil
	DefaultMetrics.LiveImported.Dec()
	lg().Debug("released imported array")
}
