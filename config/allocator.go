package config

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

const (
	AllocatorGo      = "go"
	AllocatorMalloc  = "malloc"
	AllocatorChecked = "checked"
)

// NewAllocator 按配置创建 Arrow 分配器。malloc 需要 cgo。
func (c *Config) NewAllocator() (memory.Allocator, error) {
	switch c.Allocator {
	case AllocatorGo, "":
		return memory.NewGoAllocator(), nil
	case AllocatorChecked:
		return memory.NewCheckedAllocator(memory.NewGoAllocator()), nil
	case AllocatorMalloc:
		return newMallocator()
	}
	return nil, fmt.Errorf("unknown allocator %q", c.Allocator)
}
