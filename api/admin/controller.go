/*
Package admin - 后台订单管理 API

所有路由都挂在 middleware.RequireAdmin 之后。

退款接口的响应码按结果区分:

	ok / missing_tx -> 200
	pending         -> 202（资金已动，本地账务待核对）
	unsupported     -> 422
	error           -> 按错误码映射（网关拒绝 402、鉴权失败 502 ...）

失败响应同样在 data 中带上完整的退款结果。
*/
package admin

import (
	"context"
	"strings"

	"storefront/api/ctxutil"
	"storefront/api/middleware"
	"storefront/api/orders"
	"storefront/api/response"
	"storefront/application/settlement"
	"storefront/domain/order"
	"storefront/domain/refund"

	"github.com/gin-gonic/gin"
)

// Service 控制器依赖的后台用例
type Service interface {
	SearchOrders(ctx context.Context, filter order.Filter) ([]settlement.OrderView, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) (*settlement.OrderView, error)
	Refund(ctx context.Context, cmd settlement.RefundCommand) (*settlement.RefundOutcome, error)
	Cancel(ctx context.Context, orderID int64, restock bool) (*settlement.CancelResult, error)
}

// Controller 后台订单控制器
type Controller struct {
	orders Service
}

// NewController 创建后台订单控制器
func NewController(orders Service) *Controller {
	return &Controller{orders: orders}
}

// RegisterRoutes 注册后台路由
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/admin", middleware.RequireAdmin())
	{
		group.GET("/orders", c.SearchOrders)
		group.PUT("/orders/:id/status", c.UpdateStatus)
		group.POST("/orders/:id/refund", c.Refund)
		group.POST("/orders/:id/cancel", c.Cancel)
	}
}

// UpdateStatusRequest 改状态请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RefundRequest 退款请求；items 为空表示全额退款，键为订单行 ID
type RefundRequest struct {
	Items   map[int64]int `json:"items"`
	Restock *bool         `json:"restock"`
	Reason  string        `json:"reason"`
	Note    string        `json:"note"`
}

// CancelRequest 取消请求，默认回补库存
type CancelRequest struct {
	NoRestock bool `json:"no_restock"`
}

// SearchOrders 按状态和关键字检索
// GET /api/v1/admin/orders?status=paid&q=ann
func (c *Controller) SearchOrders(ctx *gin.Context) {
	filter := order.Filter{
		Query:  strings.TrimSpace(ctx.Query("q")),
		Status: order.Status(strings.TrimSpace(ctx.Query("status"))),
	}
	views, err := c.orders.SearchOrders(ctxutil.WithRequestID(ctx), filter)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleList(ctx, views, "orders retrieved successfully")
}

// UpdateStatus PUT /api/v1/admin/orders/:id/status
func (c *Controller) UpdateStatus(ctx *gin.Context) {
	orderID, ok := orders.OrderIDParam(ctx)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, err, "invalid request parameters")
		return
	}

	view, err := c.orders.UpdateStatus(ctxutil.WithRequestID(ctx), orderID, req.Status)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, view, "order status updated successfully")
}

// Refund POST /api/v1/admin/orders/:id/refund
func (c *Controller) Refund(ctx *gin.Context) {
	orderID, ok := orders.OrderIDParam(ctx)
	if !ok {
		return
	}
	var req RefundRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.BadRequest(ctx, err, "invalid request parameters")
			return
		}
	}

	outcome, err := c.orders.Refund(ctxutil.WithRequestID(ctx), settlement.RefundCommand{
		OrderID: orderID,
		Items:   req.Items,
		Restock: req.Restock,
		Reason:  req.Reason,
		AdminID: ctxutil.UserID(ctx),
		Note:    req.Note,
	})
	if err != nil {
		response.HandleAppErrorWithData(ctx, err, outcome)
		return
	}

	switch outcome.Outcome {
	case refund.OutcomePending:
		response.HandleAccepted(ctx, outcome, "refund pending reconciliation")
	case refund.OutcomeMissingTx:
		response.HandleSuccess(ctx, outcome, "refunded locally; no captured payment on record")
	default:
		response.HandleSuccess(ctx, outcome, "refund completed")
	}
}

// Cancel POST /api/v1/admin/orders/:id/cancel
func (c *Controller) Cancel(ctx *gin.Context) {
	orderID, ok := orders.OrderIDParam(ctx)
	if !ok {
		return
	}
	var req CancelRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.BadRequest(ctx, err, "invalid request parameters")
			return
		}
	}
	if ctx.Query("no_restock") == "1" {
		req.NoRestock = true
	}

	result, err := c.orders.Cancel(ctxutil.WithRequestID(ctx), orderID, !req.NoRestock)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, result, "order cancelled")
}
