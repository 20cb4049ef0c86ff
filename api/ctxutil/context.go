// Package ctxutil 在 gin.Context 与 context.Context 之间搬运请求级信息（请求 ID、身份）。
package ctxutil

import (
	"context"

	"storefront/api/response"
	"storefront/domain/cart"
	"storefront/infrastructure/persistence"

	"github.com/gin-gonic/gin"
)

// gin context 中的身份键，由 middleware.IdentityMiddleware 写入
const (
	UserIDKey    = "identity.user_id"
	SessionIDKey = "identity.session_id"
	AdminKey     = "identity.admin"
)

// WithRequestID 把请求 ID 带进下游 context，logger.Ctx 与 GORM 日志据此打标
func WithRequestID(c *gin.Context) context.Context {
	return persistence.ContextWithRequestID(c.Request.Context(), response.GetRequestID(c))
}

// UserID 0 表示匿名
func UserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}

func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetBool(AdminKey)
}

// Owner 当前请求的购物车归属
func Owner(c *gin.Context) cart.Owner {
	return cart.Owner{UserID: UserID(c), SessionID: SessionID(c)}
}
