package mysql

import (
	"context"
	"fmt"

	"storefront/domain/shared"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/retry"
	"storefront/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UnitOfWork 订单、交易记录、库存与 outbox 事件在同一事务内提交；
// 死锁与锁等待超时按 retry 配置整体重跑 fn。
type UnitOfWork struct {
	db      *gorm.DB
	outbox  *OutboxRepository
	retry   retry.Config
	tracked []shared.AggregateRoot
}

func NewUnitOfWork(db *gorm.DB, retryConfig retry.Config) *UnitOfWork {
	return &UnitOfWork{db: db, outbox: NewOutboxRepository(db), retry: retryConfig}
}

// Track 每次尝试开始时清空，重跑时由 fn 重新登记
func (u *UnitOfWork) Track(aggregate shared.AggregateRoot) {
	u.tracked = append(u.tracked, aggregate)
}

// Execute 回滚的尝试不会留下 outbox 事件
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.ExecuteWithRetry(ctx, u.retry, func(ctx context.Context) error {
		attempt++
		u.tracked = u.tracked[:0]

		saved, err := u.runOnce(ctx, fn)
		if err != nil {
			return err
		}
		if attempt > 1 || saved > 0 {
			logger.Ctx(ctx).Debug("unit of work committed",
				zap.Int("attempt", attempt),
				zap.Int("outbox_events", saved))
		}
		return nil
	})
}

func (u *UnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context) error) (saved int, err error) {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	txCtx := persistence.ContextWithTx(ctx, tx)
	if err := fn(txCtx); err != nil {
		return 0, err
	}

	for _, agg := range u.tracked {
		for _, event := range agg.PullEvents() {
			if err := u.outbox.SaveEvent(txCtx, event); err != nil {
				return 0, fmt.Errorf("failed to save %s to outbox: %w", event.EventName(), err)
			}
			saved++
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return saved, nil
}

// UnitOfWorkFactory 所有结算操作共享同一套重试策略
type UnitOfWorkFactory struct {
	db    *gorm.DB
	retry retry.Config
}

func NewUnitOfWorkFactory(db *gorm.DB, retryConfig retry.Config) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, retry: retryConfig}
}

func (f *UnitOfWorkFactory) New() shared.UnitOfWork {
	return NewUnitOfWork(f.db, f.retry)
}

var (
	_ shared.UnitOfWork        = (*UnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
