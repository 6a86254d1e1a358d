package errors

import "errors"

// Error codes for the broker's error taxonomy.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeConflict         = "CONFLICT"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeForbidden        = "FORBIDDEN"
	CodeInternal         = "INTERNAL"
	CodeRebalanceNeeded  = "REBALANCE_NEEDED"
	CodeBackPressure     = "BACK_PRESSURE"
	CodePolicyMismatch   = "POLICY_MISMATCH"
)

// AppError is the broker-wide error type. Every error that crosses an
// engine boundary or the wire protocol is (or wraps into) an AppError
// so the dispatcher can map it to a status byte without type-switching
// on arbitrary error values.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with the given code, message and cause.
// cause may be nil.
func New(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// Wrap attaches a message to an existing error and assigns it
// CodeInternal. Callers that need a different code should use New or
// one of the named constructors instead.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

func NotFound(message string, cause error) *AppError {
	return New(CodeNotFound, message, cause)
}

func InvalidArgument(message string, cause error) *AppError {
	return New(CodeInvalidArgument, message, cause)
}

func Conflict(message string, cause error) *AppError {
	return New(CodeConflict, message, cause)
}

func AlreadyExists(message string, cause error) *AppError {
	return New(CodeAlreadyExists, message, cause)
}

func Forbidden(message string, cause error) *AppError {
	return New(CodeForbidden, message, cause)
}

func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, cause)
}

func RebalanceNeeded(message string, cause error) *AppError {
	return New(CodeRebalanceNeeded, message, cause)
}

func BackPressure(message string, cause error) *AppError {
	return New(CodeBackPressure, message, cause)
}

// Is and As forward to the standard library so callers only ever need
// to import this package.
func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Code extracts the taxonomy code from err, defaulting to CodeInternal
// if err is not an *AppError.
func Code(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
