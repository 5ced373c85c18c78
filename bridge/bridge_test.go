package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func loadTestBridge(t *testing.T) *Bridge {
	t.Helper()
	// 跳过如果没有设置库路径
	libPath := os.Getenv("POLARS_BRIDGE_LIB")
	if libPath == "" {
		t.Skip("POLARS_BRIDGE_LIB not set, skipping test")
	}

	brg, err := LoadBridge(libPath)
	if err != nil {
		t.Fatalf("Failed to load bridge: %v", err)
	}
	return brg
}

func TestLoadBridge(t *testing.T) {
	brg := loadTestBridge(t)

	// 测试 ABI 版本
	abiVer := brg.AbiVersion()
	if abiVer != 1 {
		t.Errorf("Expected ABI version 1, got %d", abiVer)
	}

	t.Logf("✅ ABI Version: %d", abiVer)
}

func TestEngineVersion(t *testing.T) {
	brg := loadTestBridge(t)

	version, err := brg.EngineVersion()
	if err != nil {
		t.Fatalf("Failed to get engine version: %v", err)
	}

	if version == "" {
		t.Error("Engine version is empty")
	}

	t.Logf("✅ Engine Version: %s", version)
}

func TestConcurrentEngineVersion(t *testing.T) {
	brg := loadTestBridge(t)

	// 测试并发调用不会互相干扰
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := brg.EngineVersion(); err != nil {
				t.Errorf("EngineVersion: %v", err)
			}
		}()
	}
	wg.Wait()

	t.Log("✅ Concurrent calls completed without error")
}

func TestInvalidSeriesHandle(t *testing.T) {
	brg := loadTestBridge(t)

	// 不存在的句柄应该返回引擎错误而不是崩溃
	_, err := brg.SeriesName(SeriesHandle(0xdeadbeef))
	if err == nil {
		t.Fatal("Expected error for invalid handle, got nil")
	}
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("Expected *EngineError, got %T", err)
	}

	t.Logf("✅ Invalid handle correctly rejected: %v", err)
}

func TestLoadBridgeMissingLibrary(t *testing.T) {
	_, err := LoadBridge(filepath.Join(t.TempDir(), "nope", getLibName()))
	if err == nil {
		t.Fatal("Expected error for missing library")
	}
}
