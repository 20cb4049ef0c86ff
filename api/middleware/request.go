package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/api/ctxutil"
	"storefront/api/response"
	"storefront/domain/shared"
	"storefront/infrastructure/persistence"
	"storefront/pkg/errors"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRequestIDLen = 64

// RequestIDMiddleware 复用上游的 X-Request-ID，缺失或过长时生成新的。
// 请求 ID 同时写入 gin context 与 request context，后者供 logger.Ctx 和 GORM 日志使用。
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(response.RequestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		c.Set(response.RequestIDKey, requestID)
		c.Header(response.RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(persistence.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// AccessLogMiddleware 每个请求一条访问日志；skip 中的路径（如健康检查）只在失败时记录。
func AccessLogMiddleware(skip ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, ok := quiet[c.Request.URL.Path]; ok && status < http.StatusInternalServerError {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if userID := ctxutil.UserID(c); userID > 0 {
			fields = append(fields, zap.Int64("user_id", userID))
		}
		if ctxutil.IsAdmin(c) {
			fields = append(fields, zap.Bool("admin", true))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("gin_errors", c.Errors.String()))
		}

		log := logger.Ctx(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

// RecoveryMiddleware 把 panic 转成统一的 500 响应，避免结算请求挂起连接
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if err, ok := recovered.(error); ok && err == http.ErrAbortHandler {
				panic(recovered)
			}

			logger.Ctx(c.Request.Context()).Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("panic", fmt.Sprint(recovered)),
				zap.Strings("stack", shared.FormatStack(shared.CaptureStack(3))))

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.HandleAppError(c, errors.Internal("panic while handling request"))
			c.Abort()
		}()

		c.Next()
	}
}
