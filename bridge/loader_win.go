//go:build windows
// +build windows

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"unsafe"

	"go.uber.org/zap"
)

// Bridge 原生列式引擎动态库的 FFI 接口
type Bridge struct {
	lib           *syscall.DLL
	abiVersion    *syscall.Proc
	engineVersion *syscall.Proc
	lastError     *syscall.Proc
	seriesName    *syscall.Proc
	seriesRechunk *syscall.Proc
	seriesExport  *syscall.Proc
	seriesImport  *syscall.Proc
	seriesFree    *syscall.Proc
	outputFree    *syscall.Proc
}

// LoadBridge 加载动态库
func LoadBridge(libPath string) (*Bridge, error) {
	libPath, err := resolveLibPath(libPath)
	if err != nil {
		return nil, err
	}

	lib, err := syscall.LoadDLL(libPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", libPath, err)
	}

	b := &Bridge{lib: lib}

	// 加载所有函数
	procs := []struct {
		dst  **syscall.Proc
		name string
	}{
		{&b.abiVersion, "bridge_abi_version"},
		{&b.engineVersion, "bridge_engine_version"},
		{&b.lastError, "bridge_last_error"},
		{&b.seriesName, "bridge_series_name"},
		{&b.seriesRechunk, "bridge_series_rechunk"},
		{&b.seriesExport, "bridge_series_export"},
		{&b.seriesImport, "bridge_series_import"},
		{&b.seriesFree, "bridge_series_free"},
		{&b.outputFree, "bridge_output_free"},
	}
	for _, p := range procs {
		if *p.dst, err = lib.FindProc(p.name); err != nil {
			return nil, fmt.Errorf("failed to find %s: %w", p.name, err)
		}
	}

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
	ret, _, _ := b.abiVersion.Call()
	return uint32(ret)
}

// EngineVersion 获取引擎版本
func (b *Bridge) EngineVersion() (string, error) {
	var ptr, length uintptr
	ret, _, _ := b.engineVersion.Call(uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&length)))
	if int32(ret) != 0 {
		return "", b.getLastError(int32(ret))
	}
	return ptrToString(ptr, int(length)), nil
}

// SeriesName 读取引擎侧 series 的名字
func (b *Bridge) SeriesName(h SeriesHandle) (string, error) {
	var ptr, length uintptr
	ret, _, _ := b.seriesName.Call(uintptr(h), uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&length)))
	if int32(ret) != 0 {
		return "", b.getLastError(int32(ret))
	}
	name := ptrToString(ptr, int(length))
	b.outputFree.Call(ptr, length)
	return name, nil
}

// SeriesRechunk 在引擎侧合并为单个 chunk，返回新的句柄
func (b *Bridge) SeriesRechunk(h SeriesHandle) (SeriesHandle, error) {
	var out uint64
	ret, _, _ := b.seriesRechunk.Call(uintptr(h), uintptr(unsafe.Pointer(&out)))
	if int32(ret) != 0 {
		return 0, b.getLastError(int32(ret))
	}
	return SeriesHandle(out), nil
}

// SeriesExport 通过 Arrow C Data Interface 导出（零拷贝）
func (b *Bridge) SeriesExport(h SeriesHandle, outSchema *ArrowSchema, outArray *ArrowArray) error {
	if !cgoEnabled {
		return ErrCgoRequired
	}
	ret, _, _ := b.seriesExport.Call(uintptr(h), uintptr(unsafe.Pointer(outSchema)), uintptr(unsafe.Pointer(outArray)))
	if int32(ret) != 0 {
		return b.getLastError(int32(ret))
	}
	return nil
}

// SeriesImport 把描述符交给引擎，所有权随之转移
func (b *Bridge) SeriesImport(schema *ArrowSchema, array *ArrowArray) (SeriesHandle, error) {
	if !cgoEnabled {
		return 0, ErrCgoRequired
	}
	var out uint64
	ret, _, _ := b.seriesImport.Call(uintptr(unsafe.Pointer(schema)), uintptr(unsafe.Pointer(array)), uintptr(unsafe.Pointer(&out)))
	if int32(ret) != 0 {
		return 0, b.getLastError(int32(ret))
	}
	return SeriesHandle(out), nil
}

// FreeSeries 释放 series 句柄
func (b *Bridge) FreeSeries(h SeriesHandle) {
	b.seriesFree.Call(uintptr(h))
}

func (b *Bridge) getLastError(code int32) error {
	var ptr, length uintptr
	b.lastError.Call(uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&length)))

	return &EngineError{Code: ErrorCode(code), Message: ptrToString(ptr, int(length))}
}

func ptrToString(ptr uintptr, length int) string {
	if ptr == 0 || length == 0 {
		return ""
	}
	bytes := make([]byte, length)
	for i := 0; i < length; i++ {
		bytes[i] = *(*byte)(unsafe.Pointer(ptr + uintptr(i)))
	}
	return string(bytes)
}
