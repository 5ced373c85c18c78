package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POLARS_BRIDGE_LIB", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Library)
	assert.Equal(t, AllocatorGo, cfg.Allocator)
	assert.Equal(t, 2, cfg.ChunkSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
allocator: checked
chunk_size: 100
log:
  level: debug
metrics:
  enabled: true
`), 0o644))

	t.Setenv("WAKE_CHUNK_SIZE", "7")
	t.Setenv("POLARS_BRIDGE_LIB", "/opt/lib/libpolars_bridge.so")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AllocatorChecked, cfg.Allocator)
	assert.Equal(t, 7, cfg.ChunkSize, "env wins over file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/opt/lib/libpolars_bridge.so", cfg.Library)

	t.Setenv("WAKE_LIBRARY", "/other.so")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/other.so", cfg.Library)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("WAKE_ALLOCATOR", "jemalloc")
	_, err := Load("")
	assert.ErrorContains(t, err, "jemalloc")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewAllocator(t *testing.T) {
	cfg := &Config{Allocator: AllocatorChecked}
	mem, err := cfg.NewAllocator()
	require.NoError(t, err)
	_, ok := mem.(*memory.CheckedAllocator)
	assert.True(t, ok)

	cfg.Allocator = AllocatorGo
	mem, err = cfg.NewAllocator()
	require.NoError(t, err)
	assert.NotNil(t, mem)

	cfg.Allocator = "bogus"
	_, err = cfg.NewAllocator()
	assert.Error(t, err)
}
