/*
Package logger 中的 SQLLogger 把 GORM 日志接到全局 zap logger。

账本查询经常"查不到"（订单没有交易记录、NETS 参考号首次出现），
这类 ErrRecordNotFound 由业务层转换成领域错误，默认不在 SQL 日志里重复报错。
*/
package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// maxLoggedSQL 超出部分截断，nets_transactions.payload 等列可能很长
const maxLoggedSQL = 2048

type SQLLogOptions struct {
	SlowThreshold time.Duration
	LogNotFound   bool
	WithCaller    bool
	// InTransaction 为 nil 时不输出 in_tx 字段
	InTransaction func(ctx context.Context) bool
}

// SQLLogger 实现 gorm logger.Interface
type SQLLogger struct {
	level gormlogger.LogLevel
	base  *zap.Logger
	opts  SQLLogOptions
}

// NewSQLLogger opts 为 nil 时：慢查询阈值 200ms，忽略 not found，带 caller
func NewSQLLogger(level gormlogger.LogLevel, opts *SQLLogOptions) *SQLLogger {
	o := SQLLogOptions{SlowThreshold: 200 * time.Millisecond, WithCaller: true}
	if opts != nil {
		o = *opts
	}
	return &SQLLogger{
		level: level,
		base:  L().With(zap.String("component", "gorm")),
		opts:  o,
	}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) scoped(ctx context.Context) *zap.Logger {
	out := l.base
	var fields []zap.Field
	if id := persistence.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if l.opts.InTransaction != nil && l.opts.InTransaction(ctx) {
		fields = append(fields, zap.Bool("in_tx", true))
	}
	if len(fields) > 0 {
		out = out.With(fields...)
	}
	if l.opts.WithCaller {
		out = out.WithOptions(zap.AddCaller())
	}
	return out
}

func (l *SQLLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, format string, args []any) {
	if l.level < min {
		return
	}
	l.scoped(ctx).Log(lvl, fmt.Sprintf(format, args...))
}

func (l *SQLLogger) Info(ctx context.Context, format string, args ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, format, args)
}

func (l *SQLLogger) Warn(ctx context.Context, format string, args ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, format, args)
}

func (l *SQLLogger) Error(ctx context.Context, format string, args ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, format, args)
}

func truncateSQL(sql string) string {
	if len(sql) <= maxLoggedSQL {
		return sql
	}
	return sql[:maxLoggedSQL] + "...(truncated)"
}

func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.opts.LogNotFound {
		err = nil
	}

	took := time.Since(begin)
	slow := l.opts.SlowThreshold > 0 && took > l.opts.SlowThreshold

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "Database operation failed"
	case slow && l.level >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, "Slow SQL query"
	case l.level >= gormlogger.Info:
		lvl, msg = zapcore.InfoLevel, "SQL query executed"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", truncateSQL(sql)),
		zap.Duration("elapsed", took),
		zap.Int64("rows", rows),
	}
	switch lvl {
	case zapcore.ErrorLevel:
		fields = append(fields, zap.Error(err))
	case zapcore.WarnLevel:
		fields = append(fields, zap.Duration("threshold", l.opts.SlowThreshold))
	}
	l.scoped(ctx).Log(lvl, msg, fields...)
}
