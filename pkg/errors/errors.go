package errors

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError // 默认返回服务器错误
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "服务器内部错误"
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 会话/用户相关 11000-11999
	CodeConversationNotFound = 11001
	CodeUserNotFound         = 11002
	CodeInvalidParams        = 11003
	CodeInvalidKind          = 11004

	// 联邦节点相关 13000-13999
	CodeNodeUnknown     = 13001
	CodePeerUnreachable = 13002
	CodePeerTimeout     = 13003
	CodeTokenInvalid    = 13004

	// 系统错误 50000-50999
	CodeServerError = 50001
	CodeDBError     = 50002
	CodeCacheError  = 50003
)

// ============== 预定义错误 ==============

// 会话/用户相关
var (
	ErrConversationNotFound = NewError(CodeConversationNotFound, "会话不存在")
	ErrUserNotFound         = NewError(CodeUserNotFound, "用户不存在")
	ErrInvalidParams        = NewError(CodeInvalidParams, "参数校验失败")
	ErrInvalidKind          = NewError(CodeInvalidKind, "会话类型不合法")
)

// 联邦节点相关
var (
	ErrNodeUnknown     = NewError(CodeNodeUnknown, "节点未注册或已下线")
	ErrPeerUnreachable = NewError(CodePeerUnreachable, "无法连接对端节点")
	ErrPeerTimeout     = NewError(CodePeerTimeout, "对端节点响应超时")
	ErrTokenInvalid    = NewError(CodeTokenInvalid, "节点令牌无效")
)

// 系统相关
var (
	ErrServerError = NewError(CodeServerError, "服务器内部错误")
	ErrDBError     = NewError(CodeDBError, "数据库错误")
	ErrCacheError  = NewError(CodeCacheError, "缓存操作失败")
)
