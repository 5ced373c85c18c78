//go:build !cgo
// +build !cgo

package polars

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/stretchr/testify/assert"
)

func TestExchangeRequiresCgo(t *testing.T) {
	a := fromJSON(t, memory.DefaultAllocator, arrow.PrimitiveTypes.Int64, `[1]`)
	defer a.Release()
	s := SeriesFromArray("x", a)
	defer s.Release()

	err := ExportSeries(nil, s, true, bridge.NewArrowSchema(), bridge.NewArrowArray())
	assert.ErrorIs(t, err, bridge.ErrCgoRequired)

	_, err = ImportSeries(bridge.NewArrowSchema(), bridge.NewArrowArray())
	assert.ErrorIs(t, err, bridge.ErrCgoRequired)
}
