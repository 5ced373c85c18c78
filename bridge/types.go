package bridge

import "fmt"

// ErrorCode 引擎库返回的错误码
type ErrorCode int32

const (
	ErrOK              ErrorCode = 0
	ErrUnknown         ErrorCode = 1
	ErrInvalidArgument ErrorCode = 2
	ErrAbiMismatch     ErrorCode = 3
	ErrInvalidHandle   ErrorCode = 4
	ErrArrowImport     ErrorCode = 7
	ErrArrowExport     ErrorCode = 8
	ErrUnsupported     ErrorCode = 10
	ErrOom             ErrorCode = 11
)

var errorCodeNames = map[ErrorCode]string{
	ErrOK:              "ok",
	ErrUnknown:         "unknown",
	ErrInvalidArgument: "invalid_argument",
	ErrAbiMismatch:     "abi_mismatch",
	ErrInvalidHandle:   "invalid_handle",
	ErrArrowImport:     "arrow_import",
	ErrArrowExport:     "arrow_export",
	ErrUnsupported:     "unsupported",
	ErrOom:             "out_of_memory",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code_%d", int32(c))
}

// EngineError is a failure reported by the native engine library, with the
// message it left in bridge_last_error.
type EngineError struct {
	Code    ErrorCode
	Message string
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine: %s", e.Code)
	}
	return fmt.Sprintf("engine: %s: %s", e.Code, e.Message)
}

// Is maps engine side C Data Interface failures onto the boundary sentinels.
func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrUnsupportedType:
		return e.Code == ErrUnsupported
	case ErrMalformedDescriptor:
		return e.Code == ErrArrowImport || e.Code == ErrInvalidArgument
	}
	return false
}

// SeriesHandle identifies a series owned by the native engine.
type SeriesHandle uint64
