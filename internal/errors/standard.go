// Package errors provides the standardized error taxonomy of the bridge.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	// CategoryProtocol marks malformed or unsupported requests.
	CategoryProtocol ErrorCategory = "PROTOCOL"
	// CategoryState marks valid-looking requests that reference stale,
	// unprepared, absent or collected data.
	CategoryState ErrorCategory = "STATE"
	// CategoryProvider marks failures of the introspection source itself.
	// These are fatal for the session.
	CategoryProvider ErrorCategory = "PROVIDER"
	// CategoryProgramming marks violated internal invariants.
	CategoryProgramming ErrorCategory = "PROGRAMMING"
)

// Error codes. They carry the JDWP error names so the protocol layer can map
// them without a second vocabulary.
const (
	CodeInvalidThread      = "INVALID_THREAD"
	CodeInvalidThreadGroup = "INVALID_THREAD_GROUP"
	CodeInvalidObject      = "INVALID_OBJECT"
	CodeInvalidClass       = "INVALID_CLASS"
	CodeClassNotPrepared   = "CLASS_NOT_PREPARED"
	CodeInvalidMethodID    = "INVALID_METHODID"
	CodeInvalidLocation    = "INVALID_LOCATION"
	CodeInvalidFieldID     = "INVALID_FIELDID"
	CodeInvalidFrameID     = "INVALID_FRAMEID"
	CodeInvalidSlot        = "INVALID_SLOT"
	CodeNotFound           = "NOT_FOUND"
	CodeNotImplemented     = "NOT_IMPLEMENTED"
	CodeAbsentInformation  = "ABSENT_INFORMATION"
	CodeIllegalArgument    = "ILLEGAL_ARGUMENT"
	CodeInvalidIndex       = "INVALID_INDEX"
	CodeInvalidLength      = "INVALID_LENGTH"
	CodeInvalidString      = "INVALID_STRING"
	CodeInvalidClassLoader = "INVALID_CLASS_LOADER"
	CodeInvalidArray       = "INVALID_ARRAY"
	CodeNativeMethod       = "NATIVE_METHOD"
	CodeVMDead             = "VM_DEAD"
	CodeInternal           = "INTERNAL"
	CodeDisconnected       = "DISCONNECTED"
	CodeCorruptSnapshot    = "CORRUPT_SNAPSHOT"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
	Err      error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *StandardError) Unwrap() error { return e.Err }

// Is reports whether target is a StandardError with the same category and code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Category == e.Category && t.Code == e.Code
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	return newError(2, category, code, message, context)
}

// newError records the function skip frames above it as the caller.
func newError(skip int, category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	var pcs [1]uintptr
	caller := "unknown"
	if runtime.Callers(skip+1, pcs[:]) > 0 {
		if frame, _ := runtime.CallersFrames(pcs[:]).Next(); frame.Function != "" {
			caller = frame.Function
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Wrap attaches cause to a new StandardError.
func Wrap(category ErrorCategory, code string, cause error, format string, args ...interface{}) *StandardError {
	e := newError(2, category, code, fmt.Sprintf(format, args...), nil)
	e.Err = cause
	return e
}

// As returns the first StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err carries a StandardError with the given code.
func HasCode(err error, code string) bool {
	se, ok := As(err)
	return ok && se.Code == code
}

// IsFatal reports whether err must end the session.
func IsFatal(err error) bool {
	se, ok := As(err)
	if !ok {
		return false
	}
	return se.Category == CategoryProvider
}

// Common error constructors

// NotFound reports a lookup miss for an id of the given kind. The code is
// chosen by the caller so that thread, class and object misses map to their
// own wire errors.
func NotFound(code, kind string, id uint64) *StandardError {
	return newError(2, CategoryState, code,
		fmt.Sprintf("%s %#x not found", kind, id),
		map[string]interface{}{"kind": kind, "id": id})
}

// ClassNotPrepared reports a query on a type that has not been prepared.
func ClassNotPrepared(name string) *StandardError {
	return newError(2, CategoryState, CodeClassNotPrepared,
		fmt.Sprintf("class %s is not prepared", name),
		map[string]interface{}{"class": name})
}

// AbsentInformation reports missing debug attributes.
func AbsentInformation(what string) *StandardError {
	return newError(2, CategoryState, CodeAbsentInformation,
		fmt.Sprintf("absent information: %s", what),
		map[string]interface{}{"what": what})
}

// NotImplemented reports a command that a frozen target cannot honour.
func NotImplemented(operation string) *StandardError {
	return newError(2, CategoryProtocol, CodeNotImplemented,
		fmt.Sprintf("%s is not supported on a static target", operation),
		map[string]interface{}{"operation": operation})
}

// InvalidArgument reports a request argument outside its valid domain.
func InvalidArgument(code, details string) *StandardError {
	return newError(2, CategoryProtocol, code, details, nil)
}

// Disconnected reports that the peer or the target went away.
func Disconnected(cause error) *StandardError {
	e := newError(2, CategoryProvider, CodeDisconnected, "target disconnected", nil)
	e.Err = cause
	return e
}

// CorruptSnapshot reports that the introspection source cannot be trusted.
func CorruptSnapshot(details string, cause error) *StandardError {
	e := newError(2, CategoryProvider, CodeCorruptSnapshot, details, nil)
	e.Err = cause
	return e
}

// Internal reports a violated internal invariant.
func Internal(format string, args ...interface{}) *StandardError {
	return newError(2, CategoryProgramming, CodeInternal, fmt.Sprintf(format, args...), nil)
}
