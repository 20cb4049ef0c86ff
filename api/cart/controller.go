/*
Package cart - 购物车 API 控制器

身份由 middleware.IdentityMiddleware 解析：登录用户操作数据库购物车，
匿名访客操作会话购物车。合并接口在登录后调用，把会话购物车并入用户购物车。
*/
package cart

import (
	"context"
	"fmt"
	"strconv"

	"storefront/api/ctxutil"
	"storefront/api/response"
	cartapp "storefront/application/cart"
	"storefront/domain/cart"
	"storefront/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Service 控制器依赖的购物车用例
type Service interface {
	Add(ctx context.Context, owner cart.Owner, productID int64, quantity int) (cart.AddResult, error)
	Decrement(ctx context.Context, owner cart.Owner, productID int64, amount int) (int, error)
	Remove(ctx context.Context, owner cart.Owner, productID int64) error
	Clear(ctx context.Context, owner cart.Owner) error
	Totals(ctx context.Context, owner cart.Owner) (*cartapp.Summary, error)
	Merge(ctx context.Context, sessionID string, userID int64) (*cartapp.MergeResult, error)
}

// Controller 购物车控制器
type Controller struct {
	carts Service
}

// NewController 创建购物车控制器
func NewController(carts Service) *Controller {
	return &Controller{carts: carts}
}

// RegisterRoutes 注册购物车路由
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/cart")
	{
		group.GET("", c.GetCart)
		group.DELETE("", c.ClearCart)
		group.POST("/items", c.AddItem)
		group.POST("/items/:productId/decrement", c.DecrementItem)
		group.DELETE("/items/:productId", c.RemoveItem)
		group.POST("/merge", c.Merge)
	}
}

// AddItemRequest 加购请求
type AddItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// DecrementRequest 减购请求，amount 缺省为 1
type DecrementRequest struct {
	Amount int `json:"amount" binding:"omitempty,gt=0"`
}

// DecrementResponse 减购后的剩余数量，0 表示该行已删除
type DecrementResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func productIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("productId"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(ctx, errors.BadRequest("invalid product id"), "invalid product id")
		return 0, false
	}
	return id, true
}

// GetCart 购物车明细与合计
// GET /api/v1/cart
func (c *Controller) GetCart(ctx *gin.Context) {
	summary, err := c.carts.Totals(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, summary, "cart retrieved successfully")
}

// AddItem 加购；库存或上限约束时可能只加入一部分
// POST /api/v1/cart/items
func (c *Controller) AddItem(ctx *gin.Context) {
	var req AddItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.BadRequest(ctx, err, "invalid request parameters")
		return
	}

	result, err := c.carts.Add(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx), req.ProductID, req.Quantity)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	message := "item added to cart"
	if result.Partial {
		message = fmt.Sprintf("only %d of %d added (%s limit)", result.Added, result.Requested, result.Limit)
	}
	response.HandleSuccess(ctx, result, message)
}

// DecrementItem 减少数量，减到 0 删除该行
// POST /api/v1/cart/items/:productId/decrement
func (c *Controller) DecrementItem(ctx *gin.Context) {
	productID, ok := productIDParam(ctx)
	if !ok {
		return
	}
	var req DecrementRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.BadRequest(ctx, err, "invalid request parameters")
			return
		}
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	remaining, err := c.carts.Decrement(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx), productID, req.Amount)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, DecrementResponse{ProductID: productID, Quantity: remaining}, "cart item updated")
}

// RemoveItem 删除一行
// DELETE /api/v1/cart/items/:productId
func (c *Controller) RemoveItem(ctx *gin.Context) {
	productID, ok := productIDParam(ctx)
	if !ok {
		return
	}
	if err := c.carts.Remove(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx), productID); err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleNoContent(ctx)
}

// ClearCart 清空购物车
// DELETE /api/v1/cart
func (c *Controller) ClearCart(ctx *gin.Context) {
	if err := c.carts.Clear(ctxutil.WithRequestID(ctx), ctxutil.Owner(ctx)); err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleNoContent(ctx)
}

// Merge 登录后把会话购物车并入用户购物车
// POST /api/v1/cart/merge
func (c *Controller) Merge(ctx *gin.Context) {
	userID := ctxutil.UserID(ctx)
	if userID <= 0 {
		response.HandleAppError(ctx, errors.Unauthorized("sign in before merging the session cart"))
		return
	}

	result, err := c.carts.Merge(ctxutil.WithRequestID(ctx), ctxutil.SessionID(ctx), userID)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, result, "session cart merged")
}
