// Package persistence 持有跨仓储共享的请求级上下文：当前事务与请求 ID。
package persistence

import (
	"context"

	"gorm.io/gorm"
)

type (
	txKey        struct{}
	requestIDKey struct{}
)

// ContextWithTx 由 UnitOfWork 在开启事务后调用；同一 ctx 下的所有仓储写入都落在这个事务里
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext 没有事务时返回 nil
func TxFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

func InTx(ctx context.Context) bool {
	return TxFromContext(ctx) != nil
}

// DB 仓储取连接的唯一入口：ctx 中有事务用事务，否则用 fallback 并绑定 ctx
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return fallback.WithContext(ctx)
}

// ContextWithRequestID 空 ID 不写入
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
