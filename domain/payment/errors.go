package payment

import (
	"errors"
	"fmt"

	"storefront/domain/shared"
)

var (
	// ErrGatewayAuth 凭证错误，不可自动重试
	ErrGatewayAuth = errors.New("payment gateway rejected credentials")

	// ErrGatewayRejected 网关明确拒绝（非成功状态），本地未做任何修改
	ErrGatewayRejected = errors.New("payment gateway rejected the request")

	// ErrGatewayUnavailable 请求未送达网关（熔断、连接失败），可以安全重试
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrOutcomeUnknown 请求可能已被网关执行（超时、5xx），不可盲目重试
	ErrOutcomeUnknown = errors.New("payment gateway outcome unknown")

	// ErrPaymentNotCompleted 扣款状态不是 COMPLETED
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrUnsupported 该支付通道不支持此操作
	ErrUnsupported = errors.New("operation not supported by payment method")

	// ErrAmountMismatch 客户端回传金额与本地计算不一致
	ErrAmountMismatch = fmt.Errorf("%w: amount does not match cart total", shared.ErrInvalidInput)

	// ErrNetsTransactionNotFound txn_retrieval_ref 未知
	ErrNetsTransactionNotFound = fmt.Errorf("nets transaction %w", shared.ErrNotFound)
)
