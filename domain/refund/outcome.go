package refund

import (
	"errors"
	"fmt"

	"storefront/domain/shared"
)

// Outcome 后台退款的结果码
type Outcome string

const (
	// OutcomeOK 网关与本地账务均已完成
	OutcomeOK Outcome = "ok"
	// OutcomePending 资金已移动（或结果未知），本地账务需人工核对
	OutcomePending Outcome = "pending"
	// OutcomeError 失败，本地未修改
	OutcomeError Outcome = "error"
	// OutcomeUnsupported 支付方式不支持网关退款
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeMissingTx 找不到扣款记录，仅做了本地退款
	OutcomeMissingTx Outcome = "missing_tx"
)

var (
	ErrNothingToRefund = fmt.Errorf("%w: nothing to refund", shared.ErrInvalidInput)
	ErrNotRequested    = errors.New("refund request not found")
)
