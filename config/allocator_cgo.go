//go:build cgo
// +build cgo

package config

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"
)

func newMallocator() (memory.Allocator, error) {
	return mallocator.NewMallocator(), nil
}
