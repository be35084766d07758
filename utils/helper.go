package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs `validate` tags and folds failures into one Validation error.
func ValidateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := ProcessValidationErrors(validationErrors)
	parts := make([]string, 0, len(validationErrors))
	for _, ve := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", ve.Field(), fields[ve.Field()]))
	}
	appErr := NewValidationError(ErrCodeInvalidInput, "invalid input (%s)", strings.Join(parts, ", "))
	appErr.Err = err
	return appErr
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

var ErrLockNotObtained = errors.New("resource is locked by another operation")

// ObtainLock takes a redis lock on lockType:key and returns its release func.
// Without a configured redis the lock is skipped and a no-op release is returned.
func ObtainLock(ctx context.Context, lockType string, key string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogWarn(logger, moduleName, functionName, "redis lock not initialized, proceeding without lock", key)
		return func() {}, nil
	}
	lockKey := lockType + ":lock"
	if key != "" {
		lockKey = fmt.Sprintf("%s:%s", lockType, key)
	}
	// retry briefly so back-to-back callers queue instead of failing
	lock, err := locker.Obtain(ctx, lockKey, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock", lockKey, err)
		appErr := NewConflictError(ErrCodeInUse, "%s is running, try again later", lockType)
		appErr.Err = ErrLockNotObtained
		return nil, appErr
	} else if err != nil {
		// redis down: best-effort
		config.LogWarn(logger, moduleName, functionName, "error obtaining lock, proceeding without lock", map[string]any{"key": lockKey, "error": err.Error()})
		return func() {}, nil
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
