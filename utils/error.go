package utils

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "Validation"
	ErrorKindNotFound   ErrorKind = "NotFound"
	ErrorKindConflict   ErrorKind = "Conflict"
	ErrorKindTransient  ErrorKind = "Transient"
)

// error codes surfaced to callers
const (
	ErrCodeInvalidInput         = "InvalidInput"
	ErrCodeNotFound             = "NotFound"
	ErrCodeDuplicateCode        = "DuplicateCode"
	ErrCodeDuplicateName        = "DuplicateName"
	ErrCodeInUse                = "InUse"
	ErrCodeScheduleNotFound     = "ScheduleNotFound"
	ErrCodeScheduleNotEditable  = "ScheduleNotEditable"
	ErrCodeParentNotRenamed     = "ParentNotRenamed"
	ErrCodeDuplicateSiblingName = "DuplicateSiblingName"
	ErrCodeHasRenamedChildren   = "HasRenamedChildren"
	ErrCodeStoreUnavailable     = "StoreUnavailable"
)

// AppError is a classified, user-visible failure.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(code string, format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(code string, format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(code string, format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewTransientError(err error) *AppError {
	return &AppError{Kind: ErrorKindTransient, Code: ErrCodeStoreUnavailable, Message: "store temporarily unavailable, please retry", Err: err}
}

// ErrorKindOf classifies err; "" means an unclassified (internal) failure.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorKindNotFound
	}
	if IsTransientDBError(err) {
		return ErrorKindTransient
	}
	return ""
}

// ErrorCodeOf returns the AppError code, or "" for unclassified errors.
func ErrorCodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if ErrorKindOf(err) == ErrorKindNotFound {
		return ErrCodeNotFound
	}
	return ""
}

func IsErrorCode(err error, code string) bool {
	return ErrorCodeOf(err) == code
}

// JoinMessages renders a de-duplicated list for conflict messages.
func JoinMessages(items []string) string {
	return strings.Join(UniqueSlice(items), ", ")
}

