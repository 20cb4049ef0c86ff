/*
Package logger 提供项目统一日志能力。

全局 zap logger + 原子日志级别；stdout 或 lumberjack 滚动文件输出。
结算链路通过 Ctx(ctx) 获取带 request_id 的 logger，网关调用结果与
"待对账" 状态统一以 warn/error 级别落日志。
网关凭据、商户代理号等敏感值写日志前先经过 Mask。
*/
package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"storefront/config"
	"storefront/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log       *zap.Logger
	nop       = zap.NewNop()
	atomLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func isDevelopment(env string) bool {
	return env == "dev" || env == "development"
}

func newEncoder(cfg *config.LogConfig, env string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	console := cfg.Format == "console" || (cfg.Format != "json" && isDevelopment(env))
	if console {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func newWriter(cfg *config.LogConfig) (zapcore.WriteSyncer, error) {
	if cfg.Output != "file" {
		return zapcore.AddSync(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.MaxSizeMB, 50),
		MaxBackups: orDefault(cfg.MaxBackups, 10),
		MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
	}), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Init 初始化全局 logger，env 会作为固定字段写入每条日志
func Init(cfg *config.LogConfig, env string) error {
	atomLevel.SetLevel(parseLevel(cfg.Level))

	writer, err := newWriter(cfg)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(newEncoder(cfg, env), writer, atomLevel)
	log = zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("env", env)),
	)
	return nil
}

// parseLevel 未识别或高于 error 的级别一律按 info
func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(level)
	if level == "warning" {
		return zapcore.WarnLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

// L 返回全局 logger；Init 之前是 no-op
func L() *zap.Logger {
	if log == nil {
		return nop
	}
	return log
}

func Get() *zap.Logger { return L() }

// Replace 替换全局 logger 并返回恢复函数，测试里配合 zaptest/observer 断言日志
func Replace(l *zap.Logger) (restore func()) {
	prev := log
	log = l
	return func() { log = prev }
}

func UpdateLevel(level string) { atomLevel.SetLevel(parseLevel(level)) }

// Sync 忽略 stdout 为终端或管道时 fsync 返回的 EINVAL/ENOTTY/EBADF
func Sync() error {
	if log == nil {
		return nil
	}
	err := log.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}

func With(fields ...zap.Field) *zap.Logger { return L().With(fields...) }

// Ctx returns the global logger tagged with the request id carried by ctx, if any.
func Ctx(ctx context.Context) *zap.Logger {
	if id := persistence.RequestIDFromContext(ctx); id != "" && log != nil {
		return log.With(zap.String("request_id", id))
	}
	return L()
}

// Mask 保留末 4 位，其余替换为 *
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal 在 Init 之前调用时只退出进程
func Fatal(msg string, fields ...zap.Field) {
	if log == nil {
		os.Exit(1)
	}
	log.Fatal(msg, fields...)
}
