package settlement

import (
	"context"
	"errors"
	"fmt"

	"storefront/domain/order"
	"storefront/domain/payment"
	"storefront/domain/refund"
	"storefront/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Refund 后台退款。
//
// 顺序固定：计算退款计划 → 网关退款 → 本地回写。
// 返回的 RefundOutcome 永远非 nil；只有 error/unsupported 时 err 非 nil。
// 网关已接受后本地回写失败，结果降级为 pending，不回滚网关。
func (s *Service) Refund(ctx context.Context, cmd RefundCommand) (*RefundOutcome, error) {
	out := &RefundOutcome{OrderID: cmd.OrderID, Outcome: refund.OutcomeError}
	log := logger.Ctx(ctx).With(zap.Int64("order_id", cmd.OrderID))

	o, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return out.fail(err)
	}
	out.Status = string(o.Status())
	if err := o.EnsureRefundable(); err != nil {
		return out.fail(err)
	}

	txn, err := s.transactions.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return out.fail(fmt.Errorf("load transaction: %w", err))
	}

	method := payment.ResolveMethod(o.PaymentMethod(), string(o.Status()), txn)
	out.PaymentMethod = string(method)
	if !method.GatewayRefundable() {
		out.Outcome = refund.OutcomeUnsupported
		out.Message = fmt.Sprintf("%s payments cannot be refunded through the gateway", method)
		log.Info("refund rejected for payment method", zap.String("payment_method", string(method)))
		return out, fmt.Errorf("%w: %s", payment.ErrUnsupported, out.Message)
	}

	var captured *decimal.Decimal
	if txn != nil && txn.CaptureID != "" {
		amount := txn.Amount
		captured = &amount
	}
	plan, err := refund.NewPlan(o.Totals(), o.Items(), cmd.Items, captured)
	if err != nil {
		return out.fail(err)
	}
	out.Amount = plan.RefundAmount
	out.RefundedUnits = plan.RefundedUnits
	out.Full = plan.Full()
	if plan.Capped {
		log.Warn("refund amount clamped to captured amount", zap.String("captured", captured.StringFixed(2)))
	}

	// 网关退款；失败时本地状态保持不变
	outcome := refund.OutcomeOK
	if captured == nil {
		outcome = refund.OutcomeMissingTx
		log.Warn("no capture on record, refunding locally only")
	} else {
		gw, err := s.gatewayFor(method)
		if err != nil {
			return out.fail(err)
		}
		capLog := log.With(zap.String("capture_id", txn.CaptureID), zap.String("amount", plan.RefundAmount.StringFixed(2)))

		result, err := gw.Refund(ctx, txn.CaptureID, plan.RefundAmount)
		if errors.Is(err, payment.ErrOutcomeUnknown) {
			capLog.Error("gateway refund outcome unknown, pending reconciliation", zap.Error(err))
			if uerr := s.transactions.UpdateStatusByOrderID(ctx, cmd.OrderID, payment.StatusRefundUnknown, cmd.Reason); uerr != nil {
				capLog.Error("failed to flag transaction", zap.Error(uerr))
			}
			out.Outcome = refund.OutcomePending
			out.TransactionStatus = payment.StatusRefundUnknown
			out.Message = "gateway did not confirm the refund; order left unchanged for review"
			return out, nil
		}
		if err != nil {
			capLog.Warn("gateway refund failed", zap.Error(err))
			return out.fail(err)
		}

		txStatus, accepted := result.LedgerStatus()
		if !accepted {
			capLog.Warn("gateway refund not accepted", zap.String("status", result.Status))
			return out.fail(fmt.Errorf("%w: refund status %s", payment.ErrGatewayRejected, result.Status))
		}
		out.RefundID = result.RefundID
		out.TransactionStatus = txStatus
		if txStatus == payment.StatusRefundPending {
			outcome = refund.OutcomePending
		}
		capLog.Info("gateway refund accepted", zap.String("refund_id", result.RefundID), zap.String("status", result.Status))

		if err := s.transactions.UpdateStatusByOrderID(ctx, cmd.OrderID, txStatus, cmd.Reason); err != nil {
			capLog.Error("failed to update transaction after refund, pending reconciliation", zap.Error(err))
			outcome = refund.OutcomePending
		}
	}

	restock := s.cfg.RestockByDefault
	if cmd.Restock != nil {
		restock = *cmd.Restock
	}

	updated, err := s.applyRefund(ctx, o, plan, restock, cmd, outcome)
	if err != nil {
		if outcome == refund.OutcomeMissingTx {
			// 没有动过网关，本地失败就是普通错误
			return out.fail(err)
		}
		log.Error("local refund bookkeeping failed after gateway refund, pending reconciliation", zap.Error(err))
		out.Outcome = refund.OutcomePending
		out.Message = "funds were returned but the order could not be updated"
		return out, nil
	}

	out.Outcome = outcome
	out.Status = string(updated.Status())
	out.Remaining = updated.Totals()
	log.Info("refund applied",
		zap.String("outcome", string(outcome)),
		zap.String("amount", plan.RefundAmount.StringFixed(2)),
		zap.Int("units", plan.RefundedUnits),
		zap.Bool("restock", restock))
	return out, nil
}

// applyRefund 回写订单行、库存、订单金额与状态，一个事务内完成；返回回写后的订单
func (s *Service) applyRefund(ctx context.Context, o *order.Order, plan *refund.Plan, restock bool, cmd RefundCommand, outcome refund.Outcome) (*order.Order, error) {
	refunded := make(map[int64]refund.Line, len(plan.Lines))
	for _, line := range plan.Lines {
		refunded[line.Item.ID] = line
	}

	remaining := make([]order.Item, 0, len(o.Items()))
	for _, item := range o.Items() {
		if line, ok := refunded[item.ID]; ok {
			item.Quantity = line.Remaining
			item.LineTotal = order.LineTotalOf(item.Quantity, item.UnitPrice)
		}
		if item.Quantity > 0 {
			remaining = append(remaining, item)
		}
	}
	totals := refund.RemainingTotals(remaining, plan.Ratio)

	var agg *order.Order
	uow := s.uowFactory.New()
	err := uow.Execute(ctx, func(ctx context.Context) error {
		// 每次重试从加载时的快照重建，状态流转与事件只记录一次
		agg = rebuild(o)
		for _, line := range plan.Lines {
			if err := s.orders.UpdateItemQuantity(ctx, line.Item.ID, line.Remaining, line.Item.UnitPrice); err != nil {
				return fmt.Errorf("update order item %d: %w", line.Item.ID, err)
			}
			if restock {
				if _, err := s.products.AdjustStock(ctx, line.Item.ProductID, line.Quantity); err != nil {
					return fmt.Errorf("restock product %d: %w", line.Item.ProductID, err)
				}
			}
		}
		if err := s.orders.UpdateTotals(ctx, agg.OrderID(), totals); err != nil {
			return err
		}

		full := plan.Full()
		if err := agg.RecordRefund(plan.RefundAmount, plan.RefundedUnits, totals, full, string(outcome)); err != nil {
			return err
		}
		if agg.Status() != o.Status() {
			if err := s.orders.UpdateStatus(ctx, agg.OrderID(), agg.Status()); err != nil {
				return err
			}
		}
		if full {
			req, err := s.requests.FindByOrderID(ctx, agg.OrderID())
			if err != nil {
				return err
			}
			if req != nil {
				if err := s.requests.MarkApproved(ctx, agg.OrderID(), cmd.AdminID, cmd.Note); err != nil {
					return err
				}
			}
		}
		agg.ReplaceItems(remaining)
		uow.Track(agg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func rebuild(o *order.Order) *order.Order {
	return order.RebuildFromDTO(order.ReconstructionDTO{
		ID:            o.OrderID(),
		UserID:        o.UserID(),
		UserName:      o.UserName(),
		Totals:        o.Totals(),
		Status:        o.Status(),
		PaymentMethod: o.PaymentMethod(),
		Items:         o.Items(),
		CreatedAt:     o.CreatedAt(),
	})
}
