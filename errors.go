package tilenoc

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a structured Error into the handful of failure
// classes the simulator's error taxonomy distinguishes.
type ErrorCode string

const (
	// ErrCodeUnknownModule covers scheduling or routing to a destination
	// name the engine or mesh has no registration for.
	ErrCodeUnknownModule ErrorCode = "unknown module"

	// ErrCodeInvalidHeader covers a missing or malformed RoutingHeader
	// (nil DstCoords, out-of-range port/VC) on a dispatched event.
	ErrCodeInvalidHeader ErrorCode = "invalid routing header"

	// ErrCodeCreditUnderflow covers a ReleaseCredit call that would push a
	// module's outstanding credit count negative.
	ErrCodeCreditUnderflow ErrorCode = "credit underflow"

	// ErrCodeUnhandledKind covers an event kind a module's dispatch table
	// has no handler for.
	ErrCodeUnhandledKind ErrorCode = "unhandled event kind"

	// ErrCodeConfig covers a malformed or unreadable configuration
	// document.
	ErrCodeConfig ErrorCode = "invalid configuration"
)

// Error is the simulator's structured error type: an operation, the module
// and cycle it failed at, a category code, a message, and an optionally
// wrapped cause. Unlike a driver's I/O error, these coordinates (Module,
// Cycle) are the ones that matter when a simulation fails — there is no
// device ID or queue number.
type Error struct {
	Op     string    // operation that failed, e.g. "SCHEDULE", "DISPATCH"
	Module string    // module name involved, empty if not applicable
	Cycle  uint64    // module-local cycle count at the time of failure
	Code   ErrorCode // high-level error category
	Msg    string    // human-readable message
	Inner  error     // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if e.Module != "" {
		return fmt.Sprintf("tilenoc: %s (op=%s module=%s cycle=%d)", msg, e.Op, e.Module, e.Cycle)
	}
	if e.Op != "" {
		return fmt.Sprintf("tilenoc: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("tilenoc: %s", msg)
}

// Unwrap returns the wrapped cause, for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target is a *Error sharing this error's Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a structured Error with no module/cycle context, for
// failures that happen before any module is known (e.g. config loading).
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewModuleError builds a structured Error tagged with the module and
// cycle it occurred at, the shape every panic raised from inside a
// module's OnEvent should use.
func NewModuleError(op, module string, cycle uint64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Module: module, Cycle: cycle, Code: code, Msg: msg}
}

// WrapError wraps an existing error with tilenoc context, preserving an
// inner *Error's module/cycle/code if one is already present.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if te, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Module: te.Module,
			Cycle:  te.Cycle,
			Code:   te.Code,
			Msg:    te.Msg,
			Inner:  te.Inner,
		}
	}
	return &Error{Op: op, Code: ErrCodeConfig, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
