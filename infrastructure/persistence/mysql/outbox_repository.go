package mysql

import (
	"context"
	"fmt"
	"time"

	"storefront/domain/shared"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
)

// OutboxRepository outbox_events 表。
// 订单事件随结算事务落库；OutboxWorker 领取、投递并回写状态。
//
// 状态流转: PENDING -> PROCESSING -> PUBLISHED
//
//	PROCESSING -> PENDING (投递失败且未超过重试次数 / 领取后超时未回写)
//	PROCESSING -> FAILED  (重试次数用尽，需要人工处理)
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

// SaveEvent 在 UnitOfWork 内调用时复用其事务
func (r *OutboxRepository) SaveEvent(ctx context.Context, event shared.DomainEvent) error {
	if err := shared.ValidateEvent(event); err != nil {
		return fmt.Errorf("invalid domain event: %w", err)
	}
	row, err := po.FromDomainEvent(event)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", event.EventName(), err)
	}
	if err := r.getDB(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save %s to outbox: %w", event.EventName(), err)
	}
	return nil
}

// ClaimPending 按创建顺序领取至多 limit 条待投递事件。
// 逐条条件更新 PENDING -> PROCESSING，被其他 worker 抢先领取的跳过。
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]po.OutboxEventPO, error) {
	var candidates []po.OutboxEventPO
	err := r.getDB(ctx).
		Where("status = ?", string(po.EventStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending events: %w", err)
	}

	claimed := candidates[:0]
	for _, ev := range candidates {
		res := r.getDB(ctx).Model(&po.OutboxEventPO{}).
			Where("id = ? AND status = ?", ev.ID, string(po.EventStatusPending)).
			Updates(map[string]any{"status": string(po.EventStatusProcessing), "updated_at": time.Now()})
		if res.Error != nil {
			return claimed, fmt.Errorf("failed to claim event %s: %w", ev.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			claimed = append(claimed, ev)
		}
	}
	return claimed, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	now := time.Now()
	res := r.getDB(ctx).Model(&po.OutboxEventPO{}).
		Where("id = ? AND status = ?", eventID, string(po.EventStatusProcessing)).
		Updates(map[string]any{"status": string(po.EventStatusPublished), "published_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %s is not being processed", eventID)
	}
	return nil
}

// MarkFailed 重试次数 +1 并记下失败原因；达到 maxRetries 后进入 FAILED，否则回到 PENDING
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, maxRetries int, cause error) error {
	var ev po.OutboxEventPO
	if err := r.getDB(ctx).Select("id", "retry_count").First(&ev, "id = ?", eventID).Error; err != nil {
		return fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	retries := ev.RetryCount + 1
	status := string(po.EventStatusPending)
	if retries >= maxRetries {
		status = string(po.EventStatusFailed)
	}
	return r.getDB(ctx).Model(&po.OutboxEventPO{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"status":      status,
			"retry_count": retries,
			"last_error":  po.TruncateError(cause),
			"updated_at":  time.Now(),
		}).Error
}

// RequeueStale worker 在领取后崩溃会让事件停留在 PROCESSING，超过 olderThan 的放回 PENDING
func (r *OutboxRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res := r.getDB(ctx).Model(&po.OutboxEventPO{}).
		Where("status = ? AND updated_at < ?", string(po.EventStatusProcessing), time.Now().Add(-olderThan)).
		Updates(map[string]any{"status": string(po.EventStatusPending), "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

var _ shared.OutboxRepository = (*OutboxRepository)(nil)
