package settlement

import (
	"context"
	"fmt"
	"strings"

	"storefront/domain/order"
	"storefront/domain/shared"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

// ============================================================================
// 后台订单管理
// ============================================================================

// Cancel 取消订单（不经过网关）；restock 为 true 时按剩余订单行回补库存
func (s *Service) Cancel(ctx context.Context, orderID int64, restock bool) (*CancelResult, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.CanTransitionTo(order.StatusCancelled); err != nil {
		return nil, err
	}

	var agg *order.Order
	uow := s.uowFactory.New()
	err = uow.Execute(ctx, func(ctx context.Context) error {
		// 重试时重新流转，保证 status_changed 事件随每次提交写入
		agg = rebuild(o)
		if err := agg.TransitionTo(order.StatusCancelled); err != nil {
			return err
		}
		if restock {
			if err := s.orders.RestockItems(ctx, orderID); err != nil {
				return err
			}
		}
		if err := s.orders.UpdateStatus(ctx, orderID, order.StatusCancelled); err != nil {
			return err
		}
		uow.Track(agg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info("order cancelled", zap.Int64("order_id", orderID), zap.Bool("restock", restock))
	return &CancelResult{OrderID: orderID, Status: string(agg.Status()), Restocked: restock}, nil
}

// UpdateStatus 后台改状态；Ledger 无条件写入，合法性在这里由状态机校验
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) (*OrderView, error) {
	next := order.Status(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, order.NewInvalidStatusError(status)
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.CanTransitionTo(next); err != nil {
		return nil, err
	}

	var agg *order.Order
	uow := s.uowFactory.New()
	err = uow.Execute(ctx, func(ctx context.Context) error {
		agg = rebuild(o)
		if err := agg.TransitionTo(next); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, orderID, next); err != nil {
			return err
		}
		uow.Track(agg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := toOrderView(agg, nil)
	return &view, nil
}

// SearchOrders 后台检索，附带退款申请
func (s *Service) SearchOrders(ctx context.Context, filter order.Filter) ([]OrderView, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, order.NewInvalidStatusError(string(filter.Status))
	}
	orders, err := s.orders.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, orders)
}

// ============================================================================
// 用户侧
// ============================================================================

// OrderHistory 用户订单，新的在前
func (s *Service) OrderHistory(ctx context.Context, userID int64) ([]OrderView, error) {
	if userID <= 0 {
		return nil, ErrLoginRequired
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, orders)
}

// RequestRefund 订单所有者提交退款申请；重复提交覆盖旧申请
func (s *Service) RequestRefund(ctx context.Context, userID, orderID int64, reason string) error {
	if userID <= 0 {
		return ErrLoginRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("refund_request", "reason", "reason is required")
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID() != userID {
		return fmt.Errorf("%w: order %d", order.ErrNotOwner, orderID)
	}
	if err := o.EnsureRefundable(); err != nil {
		return err
	}
	if err := s.requests.Upsert(ctx, orderID, userID, reason); err != nil {
		return err
	}
	logger.Ctx(ctx).Info("refund requested", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	return nil
}

func (s *Service) views(ctx context.Context, orders []*order.Order) ([]OrderView, error) {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID()
	}
	requests, err := s.requests.FindByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, len(orders))
	for i, o := range orders {
		views[i] = toOrderView(o, requests[o.OrderID()])
	}
	return views, nil
}
