package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so wrapped copies of the
// predefined errors still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

const (
	CodeNotEnrolled        = "RECOVERY_001"
	CodeAlreadyEnrolled    = "RECOVERY_002"
	CodeUnknownTask        = "RECOVERY_003"
	CodeInvalidSurgeryType = "RECOVERY_004"
	CodeStartDateInFuture  = "RECOVERY_005"
	CodeInvalidDay         = "RECOVERY_006"

	CodeTransientStore = "STORE_001"

	CodeCatalogInvalid = "CATALOG_001"
)

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrNotEnrolled        = &AppError{Code: CodeNotEnrolled, Message: "patient is not enrolled in a recovery program"}
	ErrAlreadyEnrolled    = &AppError{Code: CodeAlreadyEnrolled, Message: "patient is already enrolled in a recovery program"}
	ErrUnknownTask        = &AppError{Code: CodeUnknownTask, Message: "unknown task instance"}
	ErrInvalidSurgeryType = &AppError{Code: CodeInvalidSurgeryType, Message: "invalid surgery type"}
	ErrStartDateInFuture  = &AppError{Code: CodeStartDateInFuture, Message: "start date is in the future"}
	ErrInvalidDay         = &AppError{Code: CodeInvalidDay, Message: "day number out of range"}

	ErrTransientStore = &AppError{Code: CodeTransientStore, Message: "store unavailable"}

	ErrCatalogInvalid = &AppError{Code: CodeCatalogInvalid, Message: "invalid program catalog"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrRateLimited  = &AppError{Code: "AUTH_003", Message: "rate limit exceeded"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Transient marks an infrastructure failure from a store backend.
func Transient(op string, err error) *AppError {
	return Wrap(err, CodeTransientStore, op+" failed")
}

// Invalid returns a copy of a predefined error with a more specific message.
func Invalid(base *AppError, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}
