// Package retry 重跑因锁冲突失败的数据库事务。
//
// 只有"换个时机重来就可能成功"的错误才重试：死锁(1213)、锁等待超时(1205)、
// SQLite BUSY、仓储报告的并发修改。唯一键冲突、业务校验失败一律直接返回。
// 网关调用不在事务内，重跑 fn 不会重复扣款或退款。
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"storefront/config"
	"storefront/pkg/logger"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrConcurrentModification 由仓储在条件更新未命中时返回，可重试
var ErrConcurrentModification = errors.New("concurrent modification")

const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
)

// Reason 可重试错误的分类，写入重试日志
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonDeadlock               Reason = "deadlock"
	ReasonLockTimeout            Reason = "lock_timeout"
	ReasonConcurrentModification Reason = "concurrent_modification"
)

type Config struct {
	Enabled            bool
	MaxAttempts        int
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	BackoffFactor      float64
	JitterEnabled      bool
	RetryOnDeadlock    bool
	RetryOnLockTimeout bool
}

var DefaultConfig = Config{
	Enabled:            true,
	MaxAttempts:        3,
	InitialDelay:       100 * time.Millisecond,
	MaxDelay:           2 * time.Second,
	BackoffFactor:      2.0,
	JitterEnabled:      true,
	RetryOnDeadlock:    true,
	RetryOnLockTimeout: true,
}

func FromAppConfig(cfg config.RetryConfig) Config {
	return Config{
		Enabled:            cfg.Enabled,
		MaxAttempts:        cfg.MaxAttempts,
		InitialDelay:       cfg.InitialDelay,
		MaxDelay:           cfg.MaxDelay,
		BackoffFactor:      cfg.BackoffFactor,
		JitterEnabled:      cfg.JitterEnabled,
		RetryOnDeadlock:    cfg.RetryOnDeadlock,
		RetryOnLockTimeout: cfg.RetryOnLockTimeout,
	}
}

// Backoff 第 attempt 次失败后的等待时间，抖动范围 ±20%
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	delay = math.Min(delay, float64(cfg.MaxDelay))
	if cfg.JitterEnabled {
		delay *= 0.8 + rand.Float64()*0.4
	}
	return time.Duration(math.Max(delay, 0))
}

// Classify 返回 ReasonNone 表示不可重试
func Classify(err error, cfg Config) Reason {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonNone
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ReasonNone
	}
	if errors.Is(err, ErrConcurrentModification) {
		return ReasonConcurrentModification
	}

	reason := ReasonNone
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlDeadlock:
			reason = ReasonDeadlock
		case mysqlLockWaitTimeout:
			reason = ReasonLockTimeout
		}
	} else {
		// 测试环境的 SQLite 只给出文本
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "deadlock"):
			reason = ReasonDeadlock
		case strings.Contains(msg, "database is locked"), strings.Contains(msg, "lock wait timeout"):
			reason = ReasonLockTimeout
		}
	}

	switch {
	case reason == ReasonDeadlock && !cfg.RetryOnDeadlock:
		return ReasonNone
	case reason == ReasonLockTimeout && !cfg.RetryOnLockTimeout:
		return ReasonNone
	}
	return reason
}

func IsRetryableError(err error, cfg Config) bool {
	return Classify(err, cfg) != ReasonNone
}

// ExecuteWithRetry 返回最后一次尝试的错误
func ExecuteWithRetry(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return fn(ctx)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}

		reason := Classify(err, cfg)
		if reason == ReasonNone || attempt == cfg.MaxAttempts {
			return err
		}

		delay := Backoff(attempt, cfg)
		logger.Ctx(ctx).Warn("Retrying transaction",
			zap.String("reason", string(reason)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
