package errors

import (
	"errors"
	"fmt"
	"net/http"

	"storefront/domain/cart"
	"storefront/domain/catalog"
	"storefront/domain/order"
	"storefront/domain/payment"
	"storefront/domain/refund"
	"storefront/domain/shared"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 通用错误码
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeTooManyRequest ErrorCode = "TOO_MANY_REQUESTS"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	// 路由存在但方法不匹配
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// 购物车
	CodeOutOfStock      ErrorCode = "OUT_OF_STOCK"
	CodeCartCapReached  ErrorCode = "CART_CAP_REACHED"
	CodeEmptyCart       ErrorCode = "EMPTY_CART"
	CodeProductNotFound ErrorCode = "PRODUCT_NOT_FOUND"

	// 订单
	CodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	CodeInvalidOrderState ErrorCode = "INVALID_ORDER_STATE"

	// 支付
	CodeAmountMismatch        ErrorCode = "AMOUNT_MISMATCH"
	CodeGatewayAuth           ErrorCode = "GATEWAY_AUTH"
	CodeGatewayRejected       ErrorCode = "GATEWAY_REJECTED"
	CodeGatewayUnavailable    ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeGatewayOutcomeUnknown ErrorCode = "GATEWAY_OUTCOME_UNKNOWN"
	CodePaymentNotCompleted   ErrorCode = "PAYMENT_NOT_COMPLETED"
	CodeUnsupportedMethod     ErrorCode = "UNSUPPORTED_PAYMENT_METHOD"

	// 退款
	CodeNothingToRefund ErrorCode = "NOTHING_TO_REFUND"
)

// AppError API 层看到的错误：稳定的错误码、给客户端的消息，以及原始错误
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

var statusByCode = map[ErrorCode]int{
	CodeBadRequest:       http.StatusBadRequest,
	CodeValidation:       http.StatusBadRequest,
	CodeEmptyCart:        http.StatusBadRequest,
	CodeAmountMismatch:   http.StatusBadRequest,
	CodeNothingToRefund:  http.StatusBadRequest,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeOrderNotFound:    http.StatusNotFound,
	CodeProductNotFound:  http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeConflict:         http.StatusConflict,
	CodeOutOfStock:       http.StatusConflict,
	CodeCartCapReached:   http.StatusConflict,
	CodeTooManyRequest:   http.StatusTooManyRequests,

	CodeInvalidOrderState:   http.StatusUnprocessableEntity,
	CodeUnsupportedMethod:   http.StatusUnprocessableEntity,
	CodePaymentNotCompleted: http.StatusUnprocessableEntity,

	// 网关拒付 402；凭据错误与结果未知都算上游问题 502；熔断或超时 503
	CodeGatewayRejected:       http.StatusPaymentRequired,
	CodeGatewayAuth:           http.StatusBadGateway,
	CodeGatewayOutcomeUnknown: http.StatusBadGateway,
	CodeGatewayUnavailable:    http.StatusServiceUnavailable,
}

// HTTPStatusCode 未登记的错误码一律 500
func (e *AppError) HTTPStatusCode() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func BadRequest(message string) *AppError      { return New(CodeBadRequest, message) }
func NotFound(message string) *AppError        { return New(CodeNotFound, message) }
func Internal(message string) *AppError        { return New(CodeInternal, message) }
func Unauthorized(message string) *AppError    { return New(CodeUnauthorized, message) }
func Forbidden(message string) *AppError       { return New(CodeForbidden, message) }
func TooManyRequests(message string) *AppError { return New(CodeTooManyRequest, message) }
func Validation(message string) *AppError      { return New(CodeValidation, message) }

// Is 错误链中是否有指定错误码的 AppError
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// domainMapping 顺序敏感：具体的子领域哨兵在前，shared 通用哨兵在后
var domainMapping = []struct {
	target error
	code   ErrorCode
	expose bool // 是否把原始错误信息返回给客户端
}{
	{cart.ErrOutOfStock, CodeOutOfStock, true},
	{cart.ErrCapReached, CodeCartCapReached, true},
	{cart.ErrEmptyCart, CodeEmptyCart, true},
	{cart.ErrProductNotFound, CodeProductNotFound, true},
	{catalog.ErrProductNotFound, CodeProductNotFound, true},
	{order.ErrOrderNotFound, CodeOrderNotFound, true},
	{order.ErrInvalidOrderState, CodeInvalidOrderState, true},
	{order.ErrInvalidStatus, CodeValidation, true},
	{order.ErrNotOwner, CodeForbidden, false},
	{payment.ErrAmountMismatch, CodeAmountMismatch, true},
	{payment.ErrGatewayAuth, CodeGatewayAuth, false},
	{payment.ErrGatewayRejected, CodeGatewayRejected, true},
	{payment.ErrGatewayUnavailable, CodeGatewayUnavailable, false},
	{payment.ErrOutcomeUnknown, CodeGatewayOutcomeUnknown, false},
	{payment.ErrPaymentNotCompleted, CodePaymentNotCompleted, true},
	{payment.ErrUnsupported, CodeUnsupportedMethod, true},
	{refund.ErrNothingToRefund, CodeNothingToRefund, true},
	{shared.ErrInvalidInput, CodeValidation, true},
	{shared.ErrNotFound, CodeNotFound, true},
	{shared.ErrConflict, CodeConflict, true},
	{shared.ErrUnauthorized, CodeUnauthorized, true},
	{shared.ErrForbidden, CodeForbidden, false},
	{shared.ErrInvalidState, CodeInvalidOrderState, true},
}

var defaultMessages = map[ErrorCode]string{
	CodeForbidden:             "access denied",
	CodeGatewayAuth:           "payment provider rejected our credentials",
	CodeGatewayUnavailable:    "payment provider is unavailable, please retry",
	CodeGatewayOutcomeUnknown: "payment provider did not confirm the result; it will be reconciled",
}

// FromDomainError 将领域错误映射为应用错误，未知错误一律视为内部错误
func FromDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, m := range domainMapping {
		if errors.Is(err, m.target) {
			msg := defaultMessages[m.code]
			if m.expose || msg == "" {
				msg = err.Error()
			}
			return Wrap(err, m.code, msg)
		}
	}
	return Wrap(err, CodeInternal, "internal server error")
}
