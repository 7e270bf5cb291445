// Package kernelerr provides the unified error taxonomy for the kernel core.
package kernelerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one of the distinct kernel error kinds.
type Code string

const (
	CodeObjectUnknown      Code = "OBJECT_UNKNOWN"
	CodeObjectExists       Code = "OBJECT_EXISTS"
	CodeIllegalArgument    Code = "ILLEGAL_ARGUMENT"
	CodeIllegalState       Code = "ILLEGAL_STATE"
	CodeUnsupportedOp      Code = "UNSUPPORTED_KERNEL_OP"
	CodeCredentials        Code = "CREDENTIALS"
	CodeUserExists         Code = "USER_EXISTS"
	CodeUserUnknown        Code = "USER_UNKNOWN"
	CodeIO                 Code = "IO"
)

// KernelError is a structured error carrying a taxonomy code, a message, an
// optional wrapped cause, and the HTTP status the httpapi transport should
// translate it to.
type KernelError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *KernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *KernelError) Unwrap() error { return e.Err }

// WithDetails attaches a detail key/value pair and returns the receiver.
func (e *KernelError) WithDetails(key string, value interface{}) *KernelError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newErr(code Code, message string, status int) *KernelError {
	return &KernelError{Code: code, Message: message, HTTPStatus: status}
}

func wrapErr(code Code, message string, status int, err error) *KernelError {
	return &KernelError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ObjectUnknown reports a reference that does not resolve in the pool.
func ObjectUnknown(ref string) *KernelError {
	return newErr(CodeObjectUnknown, "object unknown", http.StatusNotFound).WithDetails("ref", ref)
}

// ObjectExists reports a name or ID collision.
func ObjectExists(ref string) *KernelError {
	return newErr(CodeObjectExists, "object already exists", http.StatusConflict).WithDetails("ref", ref)
}

// IllegalArgument reports an out-of-range or otherwise invalid argument.
func IllegalArgument(reason string) *KernelError {
	return newErr(CodeIllegalArgument, reason, http.StatusBadRequest)
}

// IllegalState reports an operation disallowed by the target's current state.
func IllegalState(reason string) *KernelError {
	return newErr(CodeIllegalState, reason, http.StatusConflict)
}

// UnsupportedKernelOp reports an operation unsupported in the current kernel mode.
func UnsupportedKernelOp(op string) *KernelError {
	return newErr(CodeUnsupportedOp, "operation not supported in current kernel mode", http.StatusConflict).WithDetails("op", op)
}

// Credentials reports insufficient permission for the caller.
func Credentials(reason string) *KernelError {
	return newErr(CodeCredentials, reason, http.StatusForbidden)
}

// UserExists reports a username collision in the account store.
func UserExists(name string) *KernelError {
	return newErr(CodeUserExists, "user already exists", http.StatusConflict).WithDetails("user", name)
}

// UserUnknown reports an unresolved username in the account store.
func UserUnknown(name string) *KernelError {
	return newErr(CodeUserUnknown, "user unknown", http.StatusNotFound).WithDetails("user", name)
}

// IO wraps a persistence-layer failure (model save/load).
func IO(operation string, err error) *KernelError {
	return wrapErr(CodeIO, "persistence operation failed", http.StatusInternalServerError, err).WithDetails("operation", operation)
}

// Is reports whether err is a *KernelError with the given code.
func Is(err error, code Code) bool {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}

// HTTPStatus extracts the HTTP status for an error, defaulting to 500.
func HTTPStatus(err error) int {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.HTTPStatus
	}
	return http.StatusInternalServerError
}

// CodeOf extracts the taxonomy code for an error, returning "UNKNOWN" for
// an error that did not originate from this package.
func CodeOf(err error) Code {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return "UNKNOWN"
}
