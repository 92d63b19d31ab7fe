package engine

import (
	"fmt"

	"github.com/go-stack/stack"

	"github.com/eddid/v7go/value"
	"github.com/eddid/v7go/vm"
)

// Code is the error-code surface spec.md §6 returns from fallible entry
// points: OK plus four failure classes distinguishing where in the
// pipeline things went wrong.
type Code int

const (
	OK Code = iota
	SyntaxErrorCode
	ExecExceptionCode
	ASTTooLargeCode
	InternalErrorCode
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case SyntaxErrorCode:
		return "SYNTAX_ERROR"
	case ExecExceptionCode:
		return "EXEC_EXCEPTION"
	case ASTTooLargeCode:
		return "AST_TOO_LARGE"
	case InternalErrorCode:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// ClassifyErr maps an error returned by Exec/ExecOpt/Apply/Compile to the
// §6 error-code surface, for hosts that want a coarse status rather than
// inspecting the Go error type.
func ClassifyErr(err error) Code {
	if err == nil {
		return OK
	}
	if _, ok := err.(*CompileError); ok {
		return SyntaxErrorCode
	}
	if _, ok := err.(*vm.Exception); ok {
		return ExecExceptionCode
	}
	return InternalErrorCode
}

// Throw raises v as the engine's pending exception, per spec.md §6 `throw`.
func (e *Engine) Throw(v value.Value) error {
	return e.VM.Throw(v)
}

// Throwf constructs and raises an error of the given kind with a formatted
// message, per spec.md §6 `throwf(kind, fmt, ...)`. An InternalError
// additionally captures the host Go call stack (trimmed of runtime
// frames), since an InternalError by definition means something the
// script author cannot diagnose from script source alone went wrong; a
// host embedding this engine needs the Go-level stack to file a useful bug
// report, the same role original_source/v7's InternalError diagnostic
// strings play when built with file/line info enabled.
func (e *Engine) Throwf(kind vm.ErrorKind, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if kind == vm.InternalError {
		trace := stack.Trace().TrimRuntime()
		msg = fmt.Sprintf("%s\n%v", msg, trace)
	}
	return e.VM.ThrowKind(kind, msg)
}

// GetThrownValue returns the engine's currently pending exception, if any.
func (e *Engine) GetThrownValue() (value.Value, bool) {
	return e.VM.ThrownValue()
}

// ClearThrownValue discards the pending exception.
func (e *Engine) ClearThrownValue() {
	e.VM.ClearThrown()
}

// Rethrow re-raises the currently pending exception as a Go error. It
// returns nil when no exception is pending, including after
// ClearThrownValue.
func (e *Engine) Rethrow() error {
	v, ok := e.VM.ThrownValue()
	if !ok {
		return nil
	}
	return e.VM.Throw(v)
}
