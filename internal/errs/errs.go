// Package errs 定义带 HTTP 语义的应用错误
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误码
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeConflict           = "CONFLICT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeAIService          = "AI_SERVICE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error 应用错误
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap 附加底层错误
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// Validation 参数校验失败
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// NotFound 资源不存在
func NotFound(resource, id string) *Error {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s with identifier '%s' not found", resource, id)
	}
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

// Unauthorized 未认证
func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "Authentication required"
	}
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

// Forbidden 无权访问
func Forbidden(msg string) *Error {
	if msg == "" {
		msg = "Access denied"
	}
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: msg}
}

// RateLimited 请求过多
func RateLimited() *Error {
	return &Error{Code: CodeRateLimited, Status: http.StatusTooManyRequests, Message: "Too many requests. Please try again later."}
}

// Conflict 状态冲突
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: msg}
}

// Unavailable 依赖服务不可用
func Unavailable(service string) *Error {
	return &Error{Code: CodeServiceUnavailable, Status: http.StatusServiceUnavailable, Message: service + " is temporarily unavailable"}
}

// AIService 生成服务错误
func AIService(msg string) *Error {
	if msg == "" {
		msg = "AI service encountered an error"
	}
	return &Error{Code: CodeAIService, Status: http.StatusBadGateway, Message: msg}
}

// As 提取应用错误
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode 判断错误码
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
