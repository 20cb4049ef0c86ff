/*
Package shared 领域层共享类型：通用哨兵错误、金额与合计、聚合根、领域事件、UnitOfWork 端口。

错误约定:
 1. cart/order/payment/refund 各自定义哨兵错误，可用 %w 包装本包的通用哨兵
 2. DomainError 创建时捕获堆栈，格式化推迟到写日志时
 3. 领域错误不包含 HTTP 状态码，映射在 pkg/errors 完成
*/
package shared

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrInvalidState 当前状态不允许该操作，例如已退款订单再次退款
	ErrInvalidState = errors.New("invalid state")
)

const maxStackFrames = 10

// DomainError 携带实体、字段与发生点堆栈的领域错误，errors.Is 沿 Err 判断
type DomainError struct {
	Err     error
	Entity  string // cart, order, payment, refund_request ...
	Field   string // 仅校验错误使用
	Message string

	stack []uintptr
}

func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Stack 按需格式化
func (e *DomainError) Stack() []string { return FormatStack(e.stack) }

// Stacker API 层据此从错误链中取出堆栈
type Stacker interface {
	Stack() []string
}

// CaptureStack skip 通常为 3：runtime.Callers、CaptureStack、构造函数
func CaptureStack(skip int) []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	return pcs[:n]
}

// FormatStack 跳过 runtime 帧，最多 maxStackFrames 帧
func FormatStack(stack []uintptr) []string {
	if len(stack) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(stack)
	var out []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			out = append(out, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more || len(out) >= maxStackFrames {
			return out
		}
	}
}

func newDomainError(kind error, entity, field, message string) *DomainError {
	return &DomainError{
		Err:     kind,
		Entity:  entity,
		Field:   field,
		Message: message,
		stack:   CaptureStack(4),
	}
}

// NewDomainError 子领域包用它包装自己的哨兵错误；堆栈从子领域构造函数开始
func NewDomainError(kind error, entity, field, message string) error {
	return newDomainError(kind, entity, field, message)
}

// NewValidationError 参数或请求体校验失败
func NewValidationError(entity, field, reason string) error {
	return newDomainError(ErrInvalidInput, entity, field, reason)
}

// NewForbiddenError 已识别身份但无权操作该资源（例如别人的 NETS 交易）
func NewForbiddenError(entity, reason string) error {
	return newDomainError(ErrForbidden, entity, "", reason)
}
