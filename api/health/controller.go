// Package health 提供存活、就绪与依赖自检接口。
//
// 依赖分为关键与非关键两类：数据库不可用时服务不可用；
// Redis 不可用只影响匿名购物车，整体状态降级为 degraded，仍返回 200。
package health

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"storefront/config"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	checkTimeout = 2 * time.Second
)

// Pinger 可探活的依赖，*sql.DB 直接满足
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc 把普通函数适配成 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Dependency 一个被检查的外部依赖
type Dependency struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

type Controller struct {
	version   string
	verbose   bool
	deps      []Dependency
	startedAt time.Time
}

// NewController Pinger 为 nil 的依赖视为未启用，直接忽略
func NewController(cfg *config.Config, deps ...Dependency) *Controller {
	enabled := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d.Pinger != nil {
			enabled = append(enabled, d)
		}
	}
	return &Controller{
		version:   cfg.App.Version,
		verbose:   cfg.IsDevelopment(),
		deps:      enabled,
		startedAt: time.Now(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.Liveness)
	router.GET("/health/ready", c.Readiness)
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Runtime   *RuntimeInfo     `json:"runtime,omitempty"`
}

type Check struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

// RuntimeInfo 只在开发环境返回
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"`
}

func (c *Controller) Health(ctx *gin.Context) {
	checks := c.runChecks(ctx.Request.Context(), c.deps)

	resp := HealthResponse{
		Status:    overall(checks),
		Version:   c.version,
		Uptime:    time.Since(c.startedAt).Truncate(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if c.verbose {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		resp.Runtime = &RuntimeInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			HeapAlloc:    mem.HeapAlloc,
		}
	}

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, resp)
}

func (c *Controller) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness 只看关键依赖
func (c *Controller) Readiness(ctx *gin.Context) {
	critical := make([]Dependency, 0, len(c.deps))
	for _, d := range c.deps {
		if d.Critical {
			critical = append(critical, d)
		}
	}

	checks := c.runChecks(ctx.Request.Context(), critical)
	var down []string
	for name, ch := range checks {
		if ch.Status != StatusHealthy {
			down = append(down, name)
		}
	}
	if len(down) > 0 {
		sort.Strings(down)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "unavailable": down})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// runChecks 并发探测，每个依赖单独超时
func (c *Controller) runChecks(ctx context.Context, deps []Dependency) map[string]Check {
	var (
		mu     sync.Mutex
		g      errgroup.Group
		checks = make(map[string]Check, len(deps))
	)
	for _, d := range deps {
		g.Go(func() error {
			ch := checkDependency(ctx, d)
			mu.Lock()
			checks[d.Name] = ch
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

func checkDependency(ctx context.Context, d Dependency) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := d.Pinger.PingContext(ctx)
	ch := Check{Status: StatusHealthy, Critical: d.Critical, Latency: time.Since(start).String()}
	if err != nil {
		ch.Status = StatusUnhealthy
		ch.Message = err.Error()
		logger.Ctx(ctx).Warn("health check failed",
			zap.String("dependency", d.Name),
			zap.Bool("critical", d.Critical),
			zap.Error(err))
	}
	return ch
}

func overall(checks map[string]Check) string {
	status := StatusHealthy
	for _, ch := range checks {
		if ch.Status == StatusHealthy {
			continue
		}
		if ch.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
