/*
Package settlement 结算编排

下单链路:  购物车 → 计算金额 → 网关扣款 → 创建订单(+交易记录) → 清空购物车 → 扣减库存
退款链路:  订单 + 订单行 → 退款计划 → 网关退款 → 订单行/库存/金额回写 → 状态流转

约定:
1. 网关调用永远先于本地写入；网关失败时本地状态不变
2. 网关已接受之后的本地写入失败不回滚网关，结果记为 pending 并打 error 日志，等待人工对账
3. 订单 + 订单行 + 交易记录 + outbox 事件在同一个 UnitOfWork 中提交
4. 库存扣减是读-改-写，失败的商品在结果中返回，不影响已付款的订单
5. UnitOfWork 不是并发安全的，每个操作通过工厂新建
*/
package settlement

import (
	"context"
	"errors"
	"fmt"

	cartapp "storefront/application/cart"
	"storefront/domain/cart"
	"storefront/domain/catalog"
	"storefront/domain/order"
	"storefront/domain/payment"
	"storefront/domain/refund"
	"storefront/domain/shared"
	"storefront/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrLoginRequired 下单必须有登录用户
	ErrLoginRequired = fmt.Errorf("%w: checkout requires a signed-in user", shared.ErrUnauthorized)

	// ErrTotalNotPayable 合计 <= 0 时拒绝结算
	ErrTotalNotPayable = fmt.Errorf("%w: order total must be positive", shared.ErrInvalidInput)

	// errAlreadyClaimed 并发完成同一个 NETS 交易时，后到者回滚自己的订单
	errAlreadyClaimed = errors.New("nets transaction already claimed")
)

// Carts 结算需要的购物车能力
type Carts interface {
	Totals(ctx context.Context, owner cart.Owner) (*cartapp.Summary, error)
	Clear(ctx context.Context, owner cart.Owner) error
}

// Config 结算策略
type Config struct {
	Currency         string
	Tolerance        decimal.Decimal // 客户端回传金额允许的误差
	RestockByDefault bool
	VerifyNets       bool // 完成 NETS 订单前向网关查询交易状态
}

// Gateways 三种支付通道；未配置的通道为 nil
type Gateways struct {
	PayPal payment.Gateway
	Nets   payment.Gateway
	PayNow payment.Gateway
}

// Service 结算编排服务
type Service struct {
	carts        Carts
	orders       order.Ledger
	transactions payment.TransactionLedger
	nets         payment.NetsRepository
	requests     refund.RequestRepository
	products     catalog.Repository
	uowFactory   shared.UnitOfWorkFactory
	gateways     Gateways
	cfg          Config
}

// Dependencies 构造参数
type Dependencies struct {
	Carts        Carts
	Orders       order.Ledger
	Transactions payment.TransactionLedger
	Nets         payment.NetsRepository
	Requests     refund.RequestRepository
	Products     catalog.Repository
	UoWFactory   shared.UnitOfWorkFactory
	Gateways     Gateways
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "SGD"
	}
	if cfg.Tolerance.IsZero() {
		cfg.Tolerance = shared.Cents
	}
	return &Service{
		carts:        deps.Carts,
		orders:       deps.Orders,
		transactions: deps.Transactions,
		nets:         deps.Nets,
		requests:     deps.Requests,
		products:     deps.Products,
		uowFactory:   deps.UoWFactory,
		gateways:     deps.Gateways,
		cfg:          cfg,
	}
}

func (s *Service) gatewayFor(method payment.Method) (payment.Gateway, error) {
	var gw payment.Gateway
	switch method {
	case payment.MethodPayPal:
		gw = s.gateways.PayPal
	case payment.MethodNetsQR, payment.MethodNets:
		gw = s.gateways.Nets
	case payment.MethodPayNow:
		gw = s.gateways.PayNow
	}
	if gw == nil {
		return nil, fmt.Errorf("%w: %s is not configured", payment.ErrUnsupported, method)
	}
	return gw, nil
}

// ============================================================================
// 结算公共步骤
// ============================================================================

// Quote 当前购物车的应付金额；空购物车或合计 <= 0 时拒绝
func (s *Service) Quote(ctx context.Context, owner cart.Owner) (*cartapp.Summary, error) {
	summary, err := s.carts.Totals(ctx, owner)
	if err != nil {
		return nil, err
	}
	if summary.Empty() {
		return nil, cart.ErrEmptyCart
	}
	if !summary.Totals.Payable() {
		return nil, ErrTotalNotPayable
	}
	return summary, nil
}

func (s *Service) checkoutQuote(ctx context.Context, owner cart.Owner) (*cartapp.Summary, error) {
	if !owner.Authenticated() {
		return nil, ErrLoginRequired
	}
	return s.Quote(ctx, cart.Owner{UserID: owner.UserID})
}

// settlement 一次成功扣款后落库所需的全部信息
type settlement struct {
	userID  int64
	summary *cartapp.Summary
	method  payment.Method
	txn     *payment.Transaction

	// inTx 在订单写入后、提交前执行；返回错误会回滚整个事务
	inTx func(ctx context.Context, orderID int64) error
}

// settle 写入订单 + 订单行 + 交易记录，提交后清空购物车并扣减库存
func (s *Service) settle(ctx context.Context, st settlement) (*SettlementResult, error) {
	requests := make([]order.ItemRequest, 0, len(st.summary.Lines))
	var unavailable []int64
	for _, line := range st.summary.Lines {
		if line.Quantity <= 0 {
			continue
		}
		// 已下架的商品不计价，也不进入订单
		if !line.Available {
			unavailable = append(unavailable, line.ProductID)
			continue
		}
		requests = append(requests, order.ItemRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if len(unavailable) > 0 {
		logger.Ctx(ctx).Warn("skipping unavailable cart lines", zap.Int64("user_id", st.userID), zap.Int64s("product_ids", unavailable))
	}
	if _, err := order.NewOrder(st.userID, requests, st.summary.Totals, string(st.method)); err != nil {
		return nil, err
	}

	var o *order.Order
	uow := s.uowFactory.New()
	err := uow.Execute(ctx, func(ctx context.Context) error {
		// 每次重试都重建聚合，避免重复的 order.placed 事件
		var err error
		o, err = order.NewOrder(st.userID, requests, st.summary.Totals, string(st.method))
		if err != nil {
			return err
		}
		orderID, err := s.orders.Create(ctx, o)
		if err != nil {
			return err
		}
		if st.inTx != nil {
			if err := st.inTx(ctx, orderID); err != nil {
				return err
			}
		}
		if st.txn != nil {
			st.txn.OrderID = orderID
			if err := s.transactions.Create(ctx, st.txn); err != nil {
				return fmt.Errorf("record transaction: %w", err)
			}
		}
		uow.Track(o)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx).With(zap.Int64("order_id", o.OrderID()), zap.String("payment_method", string(st.method)))
	log.Info("order settled", zap.String("total", st.summary.Totals.Total.StringFixed(2)))

	owner := cart.Owner{UserID: st.userID}
	if err := s.carts.Clear(ctx, owner); err != nil {
		log.Warn("failed to clear cart after settlement", zap.Error(err))
	}

	failed := s.decrementStock(ctx, requests)
	if len(failed) > 0 {
		log.Error("stock decrement failed, pending reconciliation", zap.Int64s("product_ids", failed))
	}

	return &SettlementResult{
		OrderID:          o.OrderID(),
		Status:           string(o.Status()),
		PaymentMethod:    string(st.method),
		Totals:           st.summary.Totals,
		FailedDecrements: failed,
	}, nil
}

// pendingReview 网关已接受付款后的任何本地失败都走这里：不回滚网关，记 error 日志并返回 pending
func pendingReview(log *zap.Logger, method payment.Method, reference string, amount decimal.Decimal, totals shared.Totals, cause error) *SettlementResult {
	log.Error("payment accepted but order not recorded, pending reconciliation",
		zap.String("payment_method", string(method)),
		zap.String("capture_id", reference),
		zap.String("amount", amount.StringFixed(2)),
		zap.Error(cause))
	return &SettlementResult{
		Status:        StatusPendingReview,
		PaymentMethod: string(method),
		Totals:        totals,
		Reference:     reference,
		Message:       "payment received but the order could not be recorded; it will be reviewed manually",
	}
}

// decrementStock 逐个扣减，返回失败的商品
func (s *Service) decrementStock(ctx context.Context, requests []order.ItemRequest) []int64 {
	failed := []int64{}
	for _, req := range requests {
		if _, err := s.products.AdjustStock(ctx, req.ProductID, -req.Quantity); err != nil {
			logger.Ctx(ctx).Warn("stock decrement failed",
				zap.Int64("product_id", req.ProductID),
				zap.Int("quantity", req.Quantity),
				zap.Error(err))
			failed = append(failed, req.ProductID)
		}
	}
	return failed
}
