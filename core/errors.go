package core

import (
	"errors"
	"fmt"
)

// Error codes used by KernelError. Connectors and the kernel map provider and
// lookup failures onto this small closed set so callers can branch without
// string matching.
const (
	ErrCodeFunctionNotFound = "FUNCTION_NOT_FOUND"
	ErrCodePluginNotFound   = "PLUGIN_NOT_FOUND"
	ErrCodeServiceNotFound  = "SERVICE_NOT_FOUND"
	ErrCodeInvalidArguments = "INVALID_ARGUMENTS"
	ErrCodeProviderFailure  = "PROVIDER_FAILURE"
	ErrCodeCancelled        = "CANCELLED"
)

// KernelError is the uniform error type surfaced by kernel operations.
// Provider SDK errors are wrapped (Cause preserved for errors.Is/As), kernel
// level failures carry a code only.
type KernelError struct {
	Code    string // One of the ErrCode* constants
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("kernel error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("kernel error [%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *KernelError) Unwrap() error { return e.Cause }

// NewKernelError creates a KernelError with the given code and message.
func NewKernelError(code, message string) *KernelError {
	return &KernelError{Code: code, Message: message}
}

// WrapKernelError wraps an underlying error with a kernel error code.
func WrapKernelError(code, message string, cause error) *KernelError {
	return &KernelError{Code: code, Message: message, Cause: cause}
}

// KernelErrorCode extracts the code from err if it is (or wraps) a
// KernelError; otherwise it returns the empty string.
func KernelErrorCode(err error) string {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return ""
}
