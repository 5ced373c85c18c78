//go:build !windows
// +build !windows

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

// Bridge 原生列式引擎动态库的 FFI 接口
type Bridge struct {
	lib           uintptr
	abiVersion    func() uint32
	engineVersion func(*uintptr, *uintptr) int32
	lastError     func(*uintptr, *uintptr) int32
	seriesName    func(uint64, *uintptr, *uintptr) int32
	seriesRechunk func(uint64, *uint64) int32
	seriesExport  func(uint64, *ArrowSchema, *ArrowArray) int32
	seriesImport  func(*ArrowSchema, *ArrowArray, *uint64) int32
	seriesFree    func(uint64)
	outputFree    func(uintptr, uintptr)
}

// LoadBridge 加载动态库
func LoadBridge(libPath string) (*Bridge, error) {
	libPath, err := resolveLibPath(libPath)
	if err != nil {
		return nil, err
	}

	lib, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", libPath, err)
	}

	b := &Bridge{lib: lib}

	// 加载所有函数
	purego.RegisterLibFunc(&b.abiVersion, lib, "bridge_abi_version")
	purego.RegisterLibFunc(&b.engineVersion, lib, "bridge_engine_version")
	purego.RegisterLibFunc(&b.lastError, lib, "bridge_last_error")
	purego.RegisterLibFunc(&b.seriesName, lib, "bridge_series_name")
	purego.RegisterLibFunc(&b.seriesRechunk, lib, "bridge_series_rechunk")
	purego.RegisterLibFunc(&b.seriesExport, lib, "bridge_series_export")
	purego.RegisterLibFunc(&b.seriesImport, lib, "bridge_series_import")
	purego.RegisterLibFunc(&b.seriesFree, lib, "bridge_series_free")
	purego.RegisterLibFunc(&b.outputFree, lib, "bridge_output_free")

	// 验证 ABI 版本
	if abiVer := b.AbiVersion(); abiVer != 1 {
		return nil, &EngineError{Code: ErrAbiMismatch, Message: fmt.Sprintf("expected 1, got %d", abiVer)}
	}

	lg().Info("loaded engine library", zap.String("path", libPath))
	return b, nil
}

func resolveLibPath(libPath string) (string, error) {
	if libPath == "" {
		// 优先级：环境变量 > 可执行文件目录
		libPath = os.Getenv("POLARS_BRIDGE_LIB")
		if libPath == "" {
			exePath, err := os.Executable()
			if err != nil {
				return "", fmt.Errorf("failed to get executable path: %w", err)
			}
			libPath = filepath.Join(filepath.Dir(exePath), getLibName())
		}
	}
	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return "", fmt.Errorf("library not found: %s", libPath)
	}
	return libPath, nil
}

func getLibName() string {
	switch runtime.GOOS {
	case "windows":
		return "polars_bridge.dll"
	case "darwin":
		return "libpolars_bridge.dylib"
	default:
		return "libpolars_bridge.so"
	}
}

// AbiVersion 获取 ABI 版本
func (b *Bridge) AbiVersion() uint32 {
	return b.abiVersion()
}

// EngineVersion 获取引擎版本
func (b *Bridge) EngineVersion() (string, error) {
	var ptr, length uintptr
	if ret := b.engineVersion(&ptr, &length); ret != 0 {
		return "", b.getLastError(ret)
	}
	return ptrToString(ptr, int(length)), nil
}

// SeriesName 读取引擎侧 series 的名字
func (b *Bridge) SeriesName(h SeriesHandle) (string, error) {
	var ptr, length uintptr
	if ret := b.seriesName(uint64(h), &ptr, &length); ret != 0 {
		return "", b.getLastError(ret)
	}
	name := ptrToString(ptr, int(length))
	b.outputFree(ptr, length)
	return name, nil
}

// SeriesRechunk 在引擎侧合并为单个 chunk，返回新的句柄
func (b *Bridge) SeriesRechunk(h SeriesHandle) (SeriesHandle, error) {
	var out uint64
	if ret := b.seriesRechunk(uint64(h), &out); ret != 0 {
		return 0, b.getLastError(ret)
	}
	return SeriesHandle(out), nil
}

// SeriesExport 通过 Arrow C Data Interface 导出（零拷贝）。
// 成功后 outSchema/outArray 归调用方所有，消费完成后调用其 release。
func (b *Bridge) SeriesExport(h SeriesHandle, outSchema *ArrowSchema, outArray *ArrowArray) error {
	if !cgoEnabled {
		return ErrCgoRequired
	}
	if ret := b.seriesExport(uint64(h), outSchema, outArray); ret != 0 {
		return b.getLastError(ret)
	}
	return nil
}

// SeriesImport 把描述符交给引擎，所有权随之转移，调用方不要再释放它们
func (b *Bridge) SeriesImport(schema *ArrowSchema, array *ArrowArray) (SeriesHandle, error) {
	if !cgoEnabled {
		return 0, ErrCgoRequired
	}
	var out uint64
	if ret := b.seriesImport(schema, array, &out); ret != 0 {
		return 0, b.getLastError(ret)
	}
	return SeriesHandle(out), nil
}

// FreeSeries 释放 series 句柄
func (b *Bridge) FreeSeries(h SeriesHandle) {
	b.seriesFree(uint64(h))
}

func (b *Bridge) getLastError(code int32) error {
	var ptr, length uintptr
	b.lastError(&ptr, &length)

	return &EngineError{Code: ErrorCode(code), Message: ptrToString(ptr, int(length))}
}

func ptrToString(ptr uintptr, length int) string {
	if ptr == 0 || length == 0 {
		return ""
	}
	// 拷贝一份，引擎侧缓冲区随后会被覆盖或释放
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
}
