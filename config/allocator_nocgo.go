//go:build !cgo
// +build !cgo

package config

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

func newMallocator() (memory.Allocator, error) {
	return nil, fmt.Errorf("allocator %q requires cgo", AllocatorMalloc)
}
