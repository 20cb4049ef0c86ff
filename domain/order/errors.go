package order

import (
	"fmt"

	"storefront/domain/shared"
)

// 订单哨兵错误包装 shared 的通用类别，pkg/errors 先匹配这里的具体错误
var (
	ErrOrderNotFound     = fmt.Errorf("%w: order", shared.ErrNotFound)
	ErrInvalidOrderState = fmt.Errorf("%w: order status transition", shared.ErrInvalidState)
	ErrInvalidStatus     = fmt.Errorf("%w: unknown order status", shared.ErrInvalidInput)
	ErrNotOwner          = fmt.Errorf("%w: order belongs to another user", shared.ErrForbidden)

	ErrEmptyOrderItems             = fmt.Errorf("%w: order has no items", shared.ErrInvalidInput)
	ErrInvalidQuantity             = fmt.Errorf("%w: line quantity must be positive", shared.ErrInvalidInput)
	ErrOrderTotalAmountNotPositive = fmt.Errorf("%w: order total must be positive", shared.ErrInvalidInput)
)

func NewOrderNotFoundError(orderID int64) error {
	return shared.NewDomainError(ErrOrderNotFound, "order", "", fmt.Sprintf("order %d not found", orderID))
}

// NewInvalidOrderStateError 例如已退款订单再标记为 paid
func NewInvalidOrderStateError(from, to string) error {
	return shared.NewDomainError(ErrInvalidOrderState, "order", "status",
		fmt.Sprintf("cannot move order from %s to %s", from, to))
}

func NewInvalidStatusError(status string) error {
	return shared.NewDomainError(ErrInvalidStatus, "order", "status", fmt.Sprintf("unknown order status %q", status))
}

func NewEmptyOrderItemsError() error {
	return shared.NewDomainError(ErrEmptyOrderItems, "order", "items", "order must have at least one item")
}
