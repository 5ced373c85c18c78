//go:build !cgo
// +build !cgo

package bridge

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
)

const cgoEnabled = false

// ArrowSchema represents Arrow schema in C (cgo disabled placeholder).
type ArrowSchema struct{}

// ArrowArray represents Arrow array data in C (cgo disabled placeholder).
type ArrowArray struct{}

// SchemaFromPtr casts an address handed over by a foreign runtime.
func SchemaFromPtr(ptr uintptr) *ArrowSchema { return (*ArrowSchema)(unsafe.Pointer(ptr)) }

// ArrayFromPtr casts an address handed over by a foreign runtime.
func ArrayFromPtr(ptr uintptr) *ArrowArray { return (*ArrowArray)(unsafe.Pointer(ptr)) }

// NewArrowSchema returns an empty placeholder when cgo is disabled.
func NewArrowSchema() *ArrowSchema { return &ArrowSchema{} }

// NewArrowArray returns an empty placeholder when cgo is disabled.
func NewArrowArray() *ArrowArray { return &ArrowArray{} }

// FreeArrowSchema is a no-op when cgo is disabled.
func FreeArrowSchema(_ *ArrowSchema) {}

// FreeArrowArray is a no-op when cgo is disabled.
func FreeArrowArray(_ *ArrowArray) {}

// ReleaseArrowSchema is a no-op when cgo is disabled.
func ReleaseArrowSchema(_ *ArrowSchema) {}

// ReleaseArrowArray is a no-op when cgo is disabled.
func ReleaseArrowArray(_ *ArrowArray) {}

// Released always reports true when cgo is disabled.
func (*ArrowSchema) Released() bool { return true }

// Released always reports true when cgo is disabled.
func (*ArrowArray) Released() bool { return true }

func ExportField(arrow.Field, *ArrowSchema) error { return ErrCgoRequired }

func ExportArray(arrow.Array, string, bool, *ArrowSchema, *ArrowArray) error {
	return ErrCgoRequired
}

// Lease is inert when cgo is disabled.
type Lease struct{}

func (*Lease) Close() {}

func BorrowArray(arrow.Array, string, bool, *ArrowSchema, *ArrowArray) (*Lease, error) {
	return nil, ErrCgoRequired
}

func ImportField(*ArrowSchema) (arrow.Field, error) { return arrow.Field{}, ErrCgoRequired }

func ImportArray(*ArrowSchema, *ArrowArray) (arrow.Field, arrow.Array, error) {
	return arrow.Field{}, nil, ErrCgoRequired
}

func ImportArrayWithType(arrow.DataType, *ArrowArray) (arrow.Array, error) {
	return nil, ErrCgoRequired
}
