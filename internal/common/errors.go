package common

import (
	"errors"
	"fmt"
)

// 定义常见错误类型
var (
	ErrResourceManagerUnavailable = errors.New("resource manager unavailable")
	ErrTooManyRedirects           = errors.New("too many redirects")
	ErrFetchTimeout               = errors.New("application fetch timeout")
	ErrSnapshotNotFound           = errors.New("snapshot not found")
	ErrInvalidConfiguration       = errors.New("invalid configuration")
)

// 错误类别
const (
	ErrorTypeResourceManager = "resource_manager"
	ErrorTypeTracking        = "tracking"
)

// YarnitorError 自定义错误类型
type YarnitorError struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *YarnitorError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *YarnitorError) Unwrap() error {
	return e.Cause
}

// NewYarnitorError 创建新的错误
func NewYarnitorError(errorType string, code int, message string, details string) *YarnitorError {
	return &YarnitorError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewHTTPStatusError 根据 HTTP 状态码创建错误
func NewHTTPStatusError(errorType string, code int, url string) *YarnitorError {
	return NewYarnitorError(errorType, code, fmt.Sprintf("unexpected status code %d", code), url)
}

// StatusCode 返回错误链中的 HTTP 状态码，没有则返回 0
func StatusCode(err error) int {
	var ye *YarnitorError
	if errors.As(err, &ye) {
		return ye.Code
	}
	return 0
}

// ValidationError 验证错误
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewValidationError 创建验证错误
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
