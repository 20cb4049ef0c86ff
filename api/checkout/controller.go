/*
Package checkout - 结账与支付回调 API

三种支付方式各有一组接口：
  - PayPal: 创建订单 -> 用户在 PayPal 授权 -> capture 后落单
  - NETS QR: 申请二维码 -> 客户端轮询完成 / 网关 webhook 回调，同一 txn_retrieval_ref 只落一单
  - PayNow: 生成静态二维码 -> 客户端声明已付款后落单（无网关确认）

落单成功返回 201；NETS 重复完成返回 200 和原订单号。
*/
package checkout

import (
	"context"

	"storefront/api/ctxutil"
	"storefront/api/response"
	cartapp "storefront/application/cart"
	"storefront/application/settlement"
	"storefront/domain/cart"
	"storefront/domain/payment"
	"storefront/domain/shared"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service 控制器依赖的结算用例
type Service interface {
	Quote(ctx context.Context, owner cart.Owner) (*cartapp.Summary, error)
	StartPayPal(ctx context.Context, owner cart.Owner) (*settlement.CheckoutIntent, error)
	CapturePayPal(ctx context.Context, owner cart.Owner, paypalOrderID string) (*settlement.SettlementResult, error)
	RequestNetsQR(ctx context.Context, owner cart.Owner) (*settlement.CheckoutIntent, error)
	CompleteNets(ctx context.Context, cmd settlement.NetsCompleteCommand) (*settlement.SettlementResult, error)
	HandleNetsWebhook(ctx context.Context, n *payment.NetsNotification, payload string) (*settlement.SettlementResult, error)
	StartPayNow(ctx context.Context, owner cart.Owner) (*settlement.CheckoutIntent, error)
	ConfirmPayNow(ctx context.Context, owner cart.Owner, amount decimal.Decimal, reference string) (*settlement.SettlementResult, error)
}

// NotificationParser 解析 NETS webhook 报文
type NotificationParser func(body []byte) (*payment.NetsNotification, error)

// Controller 结账控制器
type Controller struct {
	checkout    Service
	parseNotice NotificationParser
}

// NewController 创建结账控制器
func NewController(checkout Service, parseNotice NotificationParser) *Controller {
	return &Controller{checkout: checkout, parseNotice: parseNotice}
}

// RegisterRoutes 注册结账与支付回调路由
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/checkout")
	{
		group.GET("/quote", c.Quote)
		group.POST("/paypal/orders", c.StartPayPal)
		group.POST("/paypal/orders/:id/capture", c.CapturePayPal)
		group.POST("/nets/qr", c.RequestNetsQR)
		group.POST("/nets/complete", c.CompleteNets)
		group.POST("/paynow", c.StartPayNow)
		group.POST("/paynow/confirm", c.ConfirmPayNow)
	}
	router.POST("/payments/nets/webhook", c.NetsWebhook)
}

// ConfirmPayNowRequest 客户端声明已通过 PayNow 付款
type ConfirmPayNowRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Reference string `json:"reference"`
}

func settled(ctx *gin.Context, result *settlement.SettlementResult) {
	if result.Pending() {
		response.HandleAccepted(ctx, result, "payment received, order pending review")
		return
	}
	if result.Duplicate {
		response.HandleSuccess(ctx, result, "order already placed")
		return
	}
	response.HandleCreated(ctx, result, "order placed successfully")
}

// Quote 结账前报价（含会员折扣）
// GET /api/v1/checkout/quote
func (c *Controller) Quote(ctx *gin.Context) {
	summary, err := c.checkout.Quote(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, summary, "quote calculated")
}

// StartPayPal 按当前购物车金额创建 PayPal 订单
// POST /api/v1/checkout/paypal/orders
func (c *Controller) StartPayPal(ctx *gin.Context) {
	intent, err := c.checkout.StartPayPal(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, intent, "paypal order created")
}

// CapturePayPal capture 成功后落单
// POST /api/v1/checkout/paypal/orders/:id/capture
func (c *Controller) CapturePayPal(ctx *gin.Context) {
	result, err := c.checkout.CapturePayPal(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	settled(ctx, result)
}

// RequestNetsQR 申请 NETS 动态二维码
// POST /api/v1/checkout/nets/qr
func (c *Controller) RequestNetsQR(ctx *gin.Context) {
	intent, err := c.checkout.RequestNetsQR(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, intent, "nets qr requested")
}

// CompleteNets 客户端确认 NETS 付款完成
// POST /api/v1/checkout/nets/complete
func (c *Controller) CompleteNets(ctx *gin.Context) {
	userID := ctxutil.UserID(ctx)
	if userID <= 0 {
		response.HandleAppError(ctx, settlement.ErrLoginRequired)
		return
	}

	var cmd settlement.NetsCompleteCommand
	if err := ctx.ShouldBindBodyWith(&cmd, binding.JSON); err != nil {
		response.BadRequest(ctx, err, "invalid request parameters")
		return
	}
	cmd.UserID = userID
	if raw, ok := ctx.Get(gin.BodyBytesKey); ok {
		if body, ok := raw.([]byte); ok {
			cmd.Payload = string(body)
		}
	}

	result, err := c.checkout.CompleteNets(ctxutil.WithRequestID(ctx), cmd)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	settled(ctx, result)
}

// NetsWebhook 网关回调。失败通知也返回 200，避免网关无限重试
// POST /api/v1/payments/nets/webhook
func (c *Controller) NetsWebhook(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		response.BadRequest(ctx, err, "unreadable notification body")
		return
	}
	notice, err := c.parseNotice(body)
	if err != nil {
		response.BadRequest(ctx, err, "invalid notification")
		return
	}

	reqCtx := ctxutil.WithRequestID(ctx)
	logger.Ctx(reqCtx).Info("nets notification received",
		zap.String("txn_retrieval_ref", notice.TxnRetrievalRef),
		zap.String("response_code", notice.ResponseCode),
		zap.Int("txn_status", notice.TxnStatus))

	result, err := c.checkout.HandleNetsWebhook(reqCtx, notice, string(body))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	if result.OrderID == 0 && !result.Pending() {
		response.HandleSuccess(ctx, result, "notification acknowledged")
		return
	}
	settled(ctx, result)
}

// StartPayNow 生成 PayNow 静态二维码
// POST /api/v1/checkout/paynow
func (c *Controller) StartPayNow(ctx *gin.Context) {
	intent, err := c.checkout.StartPayNow(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, intent, "paynow qr generated")
}

// ConfirmPayNow 客户端声明的付款金额必须与购物车合计一致（误差 0.01）
// POST /api/v1/checkout/paynow/confirm
func (c *Controller) ConfirmPayNow(ctx *gin.Context) {
	var req ConfirmPayNowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, err, "invalid request parameters")
		return
	}
	amount, err := shared.ParseAmount(req.Amount)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	result, err := c.checkout.ConfirmPayNow(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx), amount, req.Reference)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	settled(ctx, result)
}
