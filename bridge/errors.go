package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType 描述跨边界失败的类别
type ErrorType string

const (
	// ErrorTypeUnsupported 类型不在可交换集合内
	ErrorTypeUnsupported ErrorType = "unsupported_type"
	// ErrorTypeMalformed 描述符的计数、长度或偏移与类型不一致
	ErrorTypeMalformed ErrorType = "malformed_descriptor"
	// ErrorTypeNullBuffer 必需的缓冲区指针为 NULL
	ErrorTypeNullBuffer ErrorType = "null_buffer_pointer"
	// ErrorTypeCgo 需要 cgo 的操作在 CGO_ENABLED=0 下被调用
	ErrorTypeCgo ErrorType = "cgo_required"
)

// Sentinels for errors.Is. Every *Error produced by this package matches
// exactly one of them by Type.
var (
	ErrUnsupportedType     = &Error{Type: ErrorTypeUnsupported}
	ErrMalformedDescriptor = &Error{Type: ErrorTypeMalformed}
	ErrNullBufferPointer   = &Error{Type: ErrorTypeNullBuffer}
	ErrCgoRequired         = &Error{Type: ErrorTypeCgo, Message: "requires cgo (set CGO_ENABLED=1)"}
)

// Error is a structured boundary error.
type Error struct {
	Type    ErrorType
	Op      string // export, import, borrow ...
	Format  string // offending format string, if any
	Path    string // field path inside a nested type, "" for the root
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Type))
	if e.Path != "" {
		fmt.Fprintf(&sb, " at %s", e.Path)
	}
	if e.Format != "" {
		fmt.Fprintf(&sb, " (format %q)", e.Format)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same Type.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

func unsupported(format, msg string, args ...any) *Error {
	return &Error{Type: ErrorTypeUnsupported, Format: format, Message: fmt.Sprintf(msg, args...)}
}

func malformed(msg string, args ...any) *Error {
	return &Error{Type: ErrorTypeMalformed, Message: fmt.Sprintf(msg, args...)}
}

func nullBuffer(msg string, args ...any) *Error {
	return &Error{Type: ErrorTypeNullBuffer, Message: fmt.Sprintf(msg, args...)}
}

// withOp stamps the operation and nested path onto a package error, other
// errors pass through unchanged.
func withOp(err error, op, path string) error {
	var be *Error
	if !errors.As(err, &be) {
		return err
	}
	cp := *be
	if cp.Op == "" {
		cp.Op = op
	}
	if cp.Path == "" {
		cp.Path = path
	}
	return &cp
}

// joinPath builds dotted field paths like "root.items.<0>".
func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
