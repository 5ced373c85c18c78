package host

import (
	"context"
	"os"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/machilusZ/cs511-project2/polars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEngine(t *testing.T) *Engine {
	t.Helper()
	// 跳过如果没有设置库路径
	libPath := os.Getenv("POLARS_BRIDGE_LIB")
	if libPath == "" {
		t.Skip("POLARS_BRIDGE_LIB not set, skipping test")
	}
	brg, err := bridge.LoadBridge(libPath)
	require.NoError(t, err)
	return NewEngine(brg)
}

func TestEngineRoundTrip(t *testing.T) {
	engine := loadEngine(t)
	rt, _ := newTestRuntime(t)

	df, err := polars.NewDataFrameFromMap(memory.DefaultAllocator, map[string]interface{}{
		"age": []interface{}{34, nil, 45},
	})
	require.NoError(t, err)
	defer df.Release()
	orig, _ := df.Column("age")

	ha, err := SeriesToHost(context.Background(), rt, engine, nil, orig)
	require.NoError(t, err)
	defer ha.Release()

	back, err := SeriesFromHost(context.Background(), rt, ha)
	require.NoError(t, err)
	defer back.Release()
	assert.Equal(t, orig.Len(), back.Len())
	assert.Equal(t, orig.NullN(), back.NullN())
}
