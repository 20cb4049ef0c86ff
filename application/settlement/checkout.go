package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/domain/cart"
	"storefront/domain/payment"
	"storefront/domain/shared"
	"storefront/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================================
// PayPal: 同步建单 + 扣款
// ============================================================================

// StartPayPal 用 ComputeTotals 的合计创建 PayPal 订单，金额从不另行推导
func (s *Service) StartPayPal(ctx context.Context, owner cart.Owner) (*CheckoutIntent, error) {
	gw, err := s.gatewayFor(payment.MethodPayPal)
	if err != nil {
		return nil, err
	}
	summary, err := s.checkoutQuote(ctx, owner)
	if err != nil {
		return nil, err
	}
	intent, err := gw.CreateIntent(ctx, summary.Totals.Total, "")
	if err != nil {
		logger.Ctx(ctx).Warn("paypal order create failed", zap.Int64("user_id", owner.UserID), zap.Error(err))
		return nil, err
	}
	return newCheckoutIntent(payment.MethodPayPal, intent, summary), nil
}

// CapturePayPal 扣款；只有 COMPLETED 才创建订单。
// 扣款成功后落库失败返回 Status=pending 的结果而不是错误。
func (s *Service) CapturePayPal(ctx context.Context, owner cart.Owner, paypalOrderID string) (*SettlementResult, error) {
	gw, err := s.gatewayFor(payment.MethodPayPal)
	if err != nil {
		return nil, err
	}
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return nil, shared.NewValidationError("payment", "order_id", "paypal order id is required")
	}
	summary, err := s.checkoutQuote(ctx, owner)
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx).With(zap.String("paypal_order_id", paypalOrderID), zap.Int64("user_id", owner.UserID))

	capture, err := gw.Capture(ctx, paypalOrderID)
	if err != nil {
		if errors.Is(err, payment.ErrOutcomeUnknown) {
			log.Error("paypal capture outcome unknown, pending reconciliation", zap.Error(err))
		} else {
			log.Warn("paypal capture failed", zap.Error(err))
		}
		return nil, err
	}
	if !capture.Completed() {
		log.Warn("paypal capture not completed", zap.String("status", capture.Status), zap.String("capture_id", capture.CaptureID))
		return nil, fmt.Errorf("%w: capture status %s", payment.ErrPaymentNotCompleted, capture.Status)
	}
	if !shared.Within(capture.Amount, summary.Totals.Total, s.cfg.Tolerance) {
		// 资金已经移动，订单照常落库，差额交给人工核对
		log.Error("captured amount differs from cart total",
			zap.String("captured", capture.Amount.StringFixed(2)),
			zap.String("expected", summary.Totals.Total.StringFixed(2)),
			zap.String("capture_id", capture.CaptureID))
	}

	currency := capture.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	result, err := s.settle(ctx, settlement{
		userID:  owner.UserID,
		summary: summary,
		method:  payment.MethodPayPal,
		txn: &payment.Transaction{
			PayerID:    capture.PayerID,
			PayerEmail: capture.PayerEmail,
			Amount:     capture.Amount,
			Currency:   currency,
			Status:     capture.Status,
			CaptureID:  capture.CaptureID,
			Time:       capture.Time,
		},
	})
	if err != nil {
		return pendingReview(log, payment.MethodPayPal, capture.CaptureID, capture.Amount, summary.Totals, err), nil
	}
	return result, nil
}

// ============================================================================
// NETS QR: 异步，txn_retrieval_ref 为幂等键
// ============================================================================

// RequestNetsQR 申请二维码并保存 pending 记录
func (s *Service) RequestNetsQR(ctx context.Context, owner cart.Owner) (*CheckoutIntent, error) {
	gw, err := s.gatewayFor(payment.MethodNetsQR)
	if err != nil {
		return nil, err
	}
	summary, err := s.checkoutQuote(ctx, owner)
	if err != nil {
		return nil, err
	}
	intent, err := gw.CreateIntent(ctx, summary.Totals.Total, "")
	if err != nil {
		logger.Ctx(ctx).Warn("nets qr request failed", zap.Int64("user_id", owner.UserID), zap.Error(err))
		return nil, err
	}

	record := &payment.NetsTransaction{
		UserID:          owner.UserID,
		Amount:          summary.Totals.Total,
		TxnRetrievalRef: intent.Reference,
		Status:          payment.NetsStatusPending,
	}
	if code, ok := intent.Raw[payment.RawResponseCode].(string); ok {
		record.ResponseCode = code
	}
	if status, ok := intent.Raw[payment.RawNetworkStatus].(int); ok {
		record.NetworkStatus = status
	}
	if payload, ok := intent.Raw[payment.RawPayload].(string); ok {
		record.Payload = payload
	}
	if err := s.nets.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("save nets transaction: %w", err)
	}
	return newCheckoutIntent(payment.MethodNetsQR, intent, summary), nil
}

// CompleteNets 完成 NETS 订单。
// 同一个 txn_retrieval_ref 至多生成一个订单：已完成的记录直接返回原订单号；
// 并发完成时 ClaimOrder 只有一方成功，另一方整体回滚后返回胜出方的订单号。
func (s *Service) CompleteNets(ctx context.Context, cmd NetsCompleteCommand) (*SettlementResult, error) {
	ref := strings.TrimSpace(cmd.TxnRetrievalRef)
	if ref == "" {
		return nil, shared.NewValidationError("payment", "txn_retrieval_ref", "txn_retrieval_ref is required")
	}
	log := logger.Ctx(ctx).With(zap.String("txn_retrieval_ref", ref))

	record, err := s.nets.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, payment.ErrNetsTransactionNotFound
	}
	if cmd.UserID > 0 && cmd.UserID != record.UserID {
		return nil, shared.NewForbiddenError("nets_transaction", "transaction belongs to another user")
	}
	if record.Settled() {
		log.Info("nets transaction already settled", zap.Int64("order_id", record.OrderID))
		return duplicateResult(record), nil
	}

	if s.cfg.VerifyNets {
		gw, err := s.gatewayFor(payment.MethodNetsQR)
		if err != nil {
			return nil, err
		}
		capture, err := gw.Capture(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !capture.Completed() {
			return nil, fmt.Errorf("%w: nets transaction %s is %s", payment.ErrPaymentNotCompleted, ref, capture.Status)
		}
	}

	// 从这里开始款项已经确认，本地失败一律记为 pending
	log = log.With(zap.Int64("user_id", record.UserID))
	summary, err := s.Quote(ctx, cart.Owner{UserID: record.UserID})
	if err != nil {
		// 并发完成的一方可能已经清空了购物车
		if winner, findErr := s.nets.FindByRef(ctx, ref); findErr == nil && winner != nil && winner.Settled() {
			return duplicateResult(winner), nil
		}
		return pendingReview(log, payment.MethodNetsQR, ref, record.Amount, shared.Totals{}, err), nil
	}
	if !shared.Within(record.Amount, summary.Totals.Total, s.cfg.Tolerance) {
		log.Error("nets paid amount differs from cart total",
			zap.String("paid", record.Amount.StringFixed(2)),
			zap.String("expected", summary.Totals.Total.StringFixed(2)))
	}

	completion := payment.NetsCompletion{
		NetTransactionID: cmd.NetTransactionID,
		Status:           payment.NetsStatusSuccess,
		ResponseCode:     cmd.ResponseCode,
		NetworkStatus:    cmd.NetworkStatus,
		Payload:          cmd.Payload,
	}
	captureID := cmd.NetTransactionID
	if captureID == "" {
		captureID = ref
	}

	result, err := s.settle(ctx, settlement{
		userID:  record.UserID,
		summary: summary,
		method:  payment.MethodNetsQR,
		txn: &payment.Transaction{
			PayerID:   string(payment.MethodNets),
			Amount:    record.Amount,
			Currency:  s.cfg.Currency,
			Status:    payment.StatusCompleted,
			CaptureID: captureID,
		},
		inTx: func(ctx context.Context, orderID int64) error {
			claimed, err := s.nets.ClaimOrder(ctx, ref, orderID, completion)
			if err != nil {
				return err
			}
			if !claimed {
				return errAlreadyClaimed
			}
			return nil
		},
	})
	if errors.Is(err, errAlreadyClaimed) {
		winner, findErr := s.nets.FindByRef(ctx, ref)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil || !winner.Settled() {
			return nil, fmt.Errorf("%w: nets transaction %s was claimed concurrently", shared.ErrConflict, ref)
		}
		log.Info("nets transaction settled concurrently", zap.Int64("order_id", winner.OrderID))
		return duplicateResult(winner), nil
	}
	if err != nil {
		return pendingReview(log, payment.MethodNetsQR, captureID, record.Amount, summary.Totals, err), nil
	}
	return result, nil
}

// HandleNetsWebhook 网关回调：成功则完成订单，否则标记失败（仅限尚未完成的记录）
func (s *Service) HandleNetsWebhook(ctx context.Context, n *payment.NetsNotification, payload string) (*SettlementResult, error) {
	if n == nil || n.TxnRetrievalRef == "" {
		return nil, shared.NewValidationError("payment", "txn_retrieval_ref", "txn_retrieval_ref is required")
	}
	if !n.Succeeded() {
		if err := s.nets.MarkFailed(ctx, n.TxnRetrievalRef, n.ResponseCode, payload); err != nil {
			return nil, err
		}
		logger.Ctx(ctx).Warn("nets payment failed",
			zap.String("txn_retrieval_ref", n.TxnRetrievalRef),
			zap.String("response_code", n.ResponseCode),
			zap.Int("txn_status", n.TxnStatus))
		return &SettlementResult{Status: payment.NetsStatusFailed, PaymentMethod: string(payment.MethodNetsQR)}, nil
	}
	return s.CompleteNets(ctx, NetsCompleteCommand{
		TxnRetrievalRef:  n.TxnRetrievalRef,
		NetTransactionID: n.NetTransactionID,
		ResponseCode:     n.ResponseCode,
		NetworkStatus:    n.NetworkStatus,
		Payload:          payload,
	})
}

// ============================================================================
// PayNow: 离线静态二维码，客户端声明已付款
// ============================================================================

func (s *Service) StartPayNow(ctx context.Context, owner cart.Owner) (*CheckoutIntent, error) {
	gw, err := s.gatewayFor(payment.MethodPayNow)
	if err != nil {
		return nil, err
	}
	summary, err := s.checkoutQuote(ctx, owner)
	if err != nil {
		return nil, err
	}
	intent, err := gw.CreateIntent(ctx, summary.Totals.Total, "")
	if err != nil {
		return nil, err
	}
	return newCheckoutIntent(payment.MethodPayNow, intent, summary), nil
}

// ConfirmPayNow 没有网关确认，金额与本地合计一致（误差内）即接受。
// 交易记录状态为 CLIENT_ASSERTED，与真正的扣款区分开。
func (s *Service) ConfirmPayNow(ctx context.Context, owner cart.Owner, amount decimal.Decimal, reference string) (*SettlementResult, error) {
	summary, err := s.checkoutQuote(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !shared.Within(amount, summary.Totals.Total, s.cfg.Tolerance) {
		return nil, fmt.Errorf("%w: got %s, expected %s", payment.ErrAmountMismatch,
			amount.StringFixed(2), summary.Totals.Total.StringFixed(2))
	}

	logger.Ctx(ctx).Warn("accepting client-asserted paynow payment",
		zap.Int64("user_id", owner.UserID),
		zap.String("reference", reference),
		zap.String("amount", summary.Totals.Total.StringFixed(2)))

	return s.settle(ctx, settlement{
		userID:  owner.UserID,
		summary: summary,
		method:  payment.MethodPayNow,
		txn: &payment.Transaction{
			PayerID:   "PAYNOW",
			Amount:    summary.Totals.Total,
			Currency:  s.cfg.Currency,
			Status:    payment.StatusClientAsserted,
			CaptureID: strings.TrimSpace(reference),
		},
	})
}
