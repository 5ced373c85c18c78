//go:build cgo
// +build cgo

package bridge

/*
#include "abi.h"

extern void goBridgeReleaseSchema(struct ArrowSchema* schema);
extern void goBridgeReleaseArray(struct ArrowArray* array);

void bridge_release_exported_schema(struct ArrowSchema* schema) {
    goBridgeReleaseSchema(schema);
}

void bridge_release_exported_array(struct ArrowArray* array) {
    goBridgeReleaseArray(array);
}

// placeholder for non-validity buffers of zero length, some consumers
// do not accept NULL there.
const uint8_t bridge_zero_region[8] = {0};
*/
import "C"
import "unsafe"

const cgoEnabled = true

type (
	cSchema = C.struct_ArrowSchema
	cArray  = C.struct_ArrowArray
)

// ArrowSchema represents Arrow schema in C
type ArrowSchema C.struct_ArrowSchema

// ArrowArray represents Arrow array data in C
type ArrowArray C.struct_ArrowArray

func (s *ArrowSchema) c() *cSchema { return (*cSchema)(unsafe.Pointer(s)) }

func (a *ArrowArray) c() *cArray { return (*cArray)(unsafe.Pointer(a)) }

// SchemaFromPtr casts an address handed over by a foreign runtime.
func SchemaFromPtr(ptr uintptr) *ArrowSchema { return (*ArrowSchema)(unsafe.Pointer(ptr)) }

// ArrayFromPtr casts an address handed over by a foreign runtime.
func ArrayFromPtr(ptr uintptr) *ArrowArray { return (*ArrowArray)(unsafe.Pointer(ptr)) }

// NewArrowSchema allocates zeroed schema storage in C memory. The address
// stays stable until FreeArrowSchema.
func NewArrowSchema() *ArrowSchema {
	return (*ArrowSchema)(C.calloc(1, C.sizeof_struct_ArrowSchema))
}

// NewArrowArray allocates zeroed array storage in C memory. The address
// stays stable until FreeArrowArray.
func NewArrowArray() *ArrowArray {
	return (*ArrowArray)(C.calloc(1, C.sizeof_struct_ArrowArray))
}

// FreeArrowSchema releases the schema if it is still live and frees the
// storage obtained from NewArrowSchema.
func FreeArrowSchema(schema *ArrowSchema) {
	if schema == nil {
		return
	}
	ReleaseArrowSchema(schema)
	C.free(unsafe.Pointer(schema))
}

// FreeArrowArray releases the array if it is still live and frees the
// storage obtained from NewArrowArray.
func FreeArrowArray(array *ArrowArray) {
	if array == nil {
		return
	}
	ReleaseArrowArray(array)
	C.free(unsafe.Pointer(array))
}

// ReleaseArrowSchema calls the release callback if set
func ReleaseArrowSchema(schema *ArrowSchema) {
	if schema == nil {
		return
	}
	C.bridge_call_schema_release(schema.c())
}

// ReleaseArrowArray calls the release callback if set
func ReleaseArrowArray(array *ArrowArray) {
	if array == nil {
		return
	}
	C.bridge_call_array_release(array.c())
}

// Released reports whether the schema has no release callback, either
// because it was released or because it is borrowed.
func (s *ArrowSchema) Released() bool { return C.bridge_schema_is_released(s.c()) == 1 }

// Format returns the type format string.
func (s *ArrowSchema) Format() string { return C.GoString(s.format) }

// Name returns the field name, empty when unset.
func (s *ArrowSchema) Name() string { return C.GoString(s.name) }

// Flags returns the ARROW_FLAG_* bit field.
func (s *ArrowSchema) Flags() int64 { return int64(s.flags) }

// NumChildren returns the number of child schemas.
func (s *ArrowSchema) NumChildren() int64 { return int64(s.n_children) }

// Child returns the i-th child schema.
func (s *ArrowSchema) Child(i int) *ArrowSchema {
	return (*ArrowSchema)(unsafe.Slice(s.children, s.n_children)[i])
}

// Released reports whether the array has no release callback, either
// because it was released or because it is borrowed.
func (a *ArrowArray) Released() bool { return C.bridge_array_is_released(a.c()) == 1 }

// Length returns the logical length.
func (a *ArrowArray) Length() int64 { return int64(a.length) }

// NullCount returns the null count, -1 when unknown.
func (a *ArrowArray) NullCount() int64 { return int64(a.null_count) }

// Offset returns the logical offset into the buffers.
func (a *ArrowArray) Offset() int64 { return int64(a.offset) }

// NumBuffers returns the number of buffer pointers.
func (a *ArrowArray) NumBuffers() int64 { return int64(a.n_buffers) }

// NumChildren returns the number of child arrays.
func (a *ArrowArray) NumChildren() int64 { return int64(a.n_children) }

// Buffer returns the raw i-th buffer pointer, nil when absent.
func (a *ArrowArray) Buffer(i int) unsafe.Pointer {
	if a.buffers == nil || int64(i) >= int64(a.n_buffers) {
		return nil
	}
	return unsafe.Slice(a.buffers, a.n_buffers)[i]
}

// Child returns the i-th child array.
func (a *ArrowArray) Child(i int) *ArrowArray {
	return (*ArrowArray)(unsafe.Slice(a.children, a.n_children)[i])
}

func allocSchemas(n int) []cSchema {
	return unsafe.Slice((*cSchema)(C.calloc(C.size_t(n), C.sizeof_struct_ArrowSchema)), n)
}

func allocSchemaPtrs(n int) []*cSchema {
	return unsafe.Slice((**cSchema)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof((*cSchema)(nil))))), n)
}

func allocArrays(n int) []cArray {
	return unsafe.Slice((*cArray)(C.calloc(C.size_t(n), C.sizeof_struct_ArrowArray)), n)
}

func allocArrayPtrs(n int) []*cArray {
	return unsafe.Slice((**cArray)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof((*cArray)(nil))))), n)
}

func allocBufferPtrs(n int) []unsafe.Pointer {
	return unsafe.Slice((*unsafe.Pointer)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(unsafe.Pointer(nil))))), n)
}

func cfree(p unsafe.Pointer) {
	if p != nil {
		C.free(p)
	}
}

func zeroRegion() unsafe.Pointer { return unsafe.Pointer(&C.bridge_zero_region[0]) }

func exportedSchemaRelease() *[0]byte { return (*[0]byte)(C.bridge_release_exported_schema) }

func exportedArrayRelease() *[0]byte { return (*[0]byte)(C.bridge_release_exported_array) }
