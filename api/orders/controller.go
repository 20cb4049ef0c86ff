// Package orders 用户侧订单接口：历史订单与退款申请
package orders

import (
	"context"
	"strconv"

	"storefront/api/ctxutil"
	"storefront/api/response"
	"storefront/application/settlement"
	"storefront/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Service 控制器依赖的订单用例
type Service interface {
	OrderHistory(ctx context.Context, userID int64) ([]settlement.OrderView, error)
	RequestRefund(ctx context.Context, userID, orderID int64, reason string) error
}

type Controller struct {
	orders Service
}

func NewController(orders Service) *Controller {
	return &Controller{orders: orders}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/orders")
	{
		group.GET("", c.History)
		group.POST("/:id/refund-request", c.RequestRefund)
	}
}

// RefundRequestBody 退款申请
type RefundRequestBody struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// OrderIDParam 解析路径中的订单号，失败时已写出 400
func OrderIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(ctx, errors.BadRequest("invalid order id"), "invalid order id")
		return 0, false
	}
	return id, true
}

// History GET /api/v1/orders
func (c *Controller) History(ctx *gin.Context) {
	views, err := c.orders.OrderHistory(ctxutil.WithRequestID(ctx), ctxutil.UserID(ctx))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleList(ctx, views, "orders retrieved successfully")
}

// RequestRefund POST /api/v1/orders/:id/refund-request
func (c *Controller) RequestRefund(ctx *gin.Context) {
	orderID, ok := OrderIDParam(ctx)
	if !ok {
		return
	}
	var body RefundRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		response.BadRequest(ctx, err, "invalid request parameters")
		return
	}

	if err := c.orders.RequestRefund(ctxutil.WithRequestID(ctx), ctxutil.UserID(ctx), orderID, body.Reason); err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleAccepted(ctx, gin.H{"order_id": orderID}, "refund request submitted")
}
