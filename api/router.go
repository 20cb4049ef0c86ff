package api

import (
	"net/http"

	"storefront/api/middleware"
	"storefront/api/response"
	"storefront/config"
	"storefront/pkg/errors"

	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

// ControllerRegister 能把自己的路由挂到 /api/v1 下的控制器
type ControllerRegister interface {
	RegisterRoutes(router *gin.RouterGroup)
}

type Router struct {
	engine      *gin.Engine
	cfg         *config.Config
	controllers []ControllerRegister
}

// NewRouter 中间件顺序：请求 ID → 访问日志 → panic 恢复 → CORS → 限流 → 身份。
// 访问日志在恢复之外，才能记录 panic 请求的 500。
func NewRouter(cfg *config.Config, controllers ...ControllerRegister) *Router {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.AccessLogMiddleware(apiPrefix+"/health/live", apiPrefix+"/health/ready"),
		middleware.RecoveryMiddleware(),
		middleware.CORSMiddleware(&cfg.CORS),
		middleware.RateLimitMiddleware(&cfg.Server.RateLimit),
		middleware.IdentityMiddleware(middleware.IdentityConfig{
			AdminAPIKey:   cfg.Admin.APIKey,
			SessionMaxAge: int(cfg.Cart.SessionTTL.Seconds()),
			SecureCookie:  cfg.IsProduction(),
		}),
	)

	return &Router{engine: engine, cfg: cfg, controllers: controllers}
}

func (r *Router) SetupRoutes() {
	group := r.engine.Group(apiPrefix)
	for _, c := range r.controllers {
		c.RegisterRoutes(group)
	}

	r.engine.GET("/", r.index)
	r.engine.NoRoute(func(c *gin.Context) {
		response.HandleAppError(c, errors.NotFound("route not found"))
	})
	r.engine.NoMethod(func(c *gin.Context) {
		response.HandleAppError(c, errors.New(errors.CodeMethodNotAllowed, "method not allowed"))
	})
}

func (r *Router) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    r.cfg.App.Name,
		"version": r.cfg.App.Version,
		"health":  apiPrefix + "/health",
	})
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
