// Package types 定义共享的类型和错误分类
// 独立成包避免 service 子包之间的循环导入
package types

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind string

const (
	// KindNotFound 会话/客服/消息不存在
	KindNotFound Kind = "not_found"
	// KindInvalidState 当前状态下不允许该转换
	KindInvalidState Kind = "invalid_state"
	// KindUnauthorized 客服角色无权执行该操作
	KindUnauthorized Kind = "unauthorized"
	// KindUpstreamUnavailable 上游服务（AI 探测）失败或超时
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindValidation 输入校验失败
	KindValidation Kind = "validation_error"
)

// Error 带分类的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As 链
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound 构造 NotFound 错误
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidState 构造 InvalidState 错误
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized 构造 Unauthorized 错误
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// UpstreamUnavailable 构造 UpstreamUnavailable 错误
func UpstreamUnavailable(message string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: message, Err: err}
}

// Validation 构造 ValidationError 错误
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf 提取错误分类；非业务错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
