package host

import (
	"context"
	"errors"

	"github.com/machilusZ/cs511-project2/bridge"
)

// ErrNotContiguous 宿主数组有多个 chunk，导出前必须先 Rechunk
var ErrNotContiguous = errors.New("host: array has more than one chunk")

// Array 宿主运行时中的一列数据
type Array interface {
	Name() string
	// Rechunk 返回只有一个 chunk 的数组，调用方负责 Release
	Rechunk(ctx context.Context) (Array, error)
	// ExportToC 把数据写入调用方提供的描述符，成功后描述符归消费方所有
	ExportToC(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) error
	Release()
}

// Importer 从描述符构造宿主数组，无论成功与否都会消费描述符
type Importer interface {
	ImportFromC(schema *bridge.ArrowSchema, arr *bridge.ArrowArray) (Array, error)
}
