package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"storefront/api/ctxutil"
	"storefront/api/response"
	"storefront/pkg/errors"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// UserIDHeader 由上游认证网关注入的登录用户 ID
	UserIDHeader = "X-User-ID"
	// SessionIDHeader 匿名购物车会话；也接受同名 cookie
	SessionIDHeader = "X-Session-ID"
	SessionCookie   = "sf_session"
	AdminKeyHeader  = "X-Admin-Key"
)

// IdentityConfig 身份中间件配置
type IdentityConfig struct {
	AdminAPIKey   string
	SessionMaxAge int // 秒
	SecureCookie  bool
}

// IdentityMiddleware 解析用户、会话与后台身份。
// 没有会话 ID 的请求会被分配一个新的，并通过 cookie 与响应头回传。
func IdentityMiddleware(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := strings.TrimSpace(c.GetHeader(UserIDHeader)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				response.BadRequest(c, err, "invalid user id header")
				c.Abort()
				return
			}
			c.Set(ctxutil.UserIDKey, id)
		}

		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID, _ = c.Cookie(SessionCookie)
		}
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sessionID, cfg.SessionMaxAge, "/", "", cfg.SecureCookie, true)
		}
		c.Set(ctxutil.SessionIDKey, sessionID)
		c.Header(SessionIDHeader, sessionID)

		if cfg.AdminAPIKey != "" {
			key := c.GetHeader(AdminKeyHeader)
			if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(cfg.AdminAPIKey)) == 1 {
				c.Set(ctxutil.AdminKey, true)
			}
		}

		c.Next()
	}
}

// RequireAdmin 后台路由守卫；未配置 admin key 时后台接口全部拒绝
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ctxutil.IsAdmin(c) {
			logger.Ctx(c.Request.Context()).Warn("admin access denied",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			response.HandleAppError(c, errors.Forbidden("admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
