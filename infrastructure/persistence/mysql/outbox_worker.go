package mysql

import (
	"context"
	"errors"
	"time"

	"storefront/domain/shared"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

// LoggingOutboxPublisher 仅写日志，outbox.publisher=log 时使用
type LoggingOutboxPublisher struct{}

func (p *LoggingOutboxPublisher) Publish(ctx context.Context, msg shared.OutboxMessage) error {
	logger.Ctx(ctx).Info("Outbox event published",
		zap.String("event_id", msg.ID),
		zap.String("event_type", msg.EventType),
		zap.String("order_id", msg.AggregateID),
		zap.String("payload", msg.Payload),
	)
	return nil
}

// OutboxWorker 轮询 outbox_events，把订单事件投递给下游
type OutboxWorker struct {
	repository   *OutboxRepository
	publisher    shared.OutboxPublisher
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
	staleAfter   time.Duration
}

func NewOutboxWorker(
	repository *OutboxRepository,
	publisher shared.OutboxPublisher,
	pollInterval time.Duration,
	batchSize int,
	maxRetries int,
) (*OutboxWorker, error) {
	switch {
	case repository == nil:
		return nil, errors.New("outbox repository is required")
	case publisher == nil:
		return nil, errors.New("outbox publisher is required")
	case pollInterval <= 0:
		return nil, errors.New("poll interval must be positive")
	case batchSize <= 0:
		return nil, errors.New("batch size must be positive")
	case maxRetries <= 0:
		return nil, errors.New("max retries must be positive")
	}

	return &OutboxWorker{
		repository:   repository,
		publisher:    publisher,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		staleAfter:   max(time.Minute, 10*pollInterval),
	}, nil
}

// Run 启动即处理一轮，之后按 pollInterval 轮询，直到 ctx 取消
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if n, err := w.repository.RequeueStale(ctx, w.staleAfter); err != nil {
			logger.Error("Failed to requeue stale outbox events", zap.Error(err))
		} else if n > 0 {
			logger.Warn("Requeued stale outbox events", zap.Int64("count", n))
		}
		if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Outbox batch processing failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch 返回本轮成功投递的条数
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (int, error) {
	events, err := w.repository.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		log := logger.Ctx(ctx).With(
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.AggregateID))

		err := w.publisher.Publish(ctx, event.ToMessage())
		if err != nil {
			log.Warn("Outbox publish failed", zap.Int("retry_count", event.RetryCount+1), zap.Error(err))
			if failErr := w.repository.MarkFailed(ctx, event.ID, w.maxRetries, err); failErr != nil {
				log.Error("Failed to record outbox failure", zap.Error(failErr))
			}
			continue
		}

		if err := w.repository.MarkPublished(ctx, event.ID); err != nil {
			log.Error("Failed to mark outbox event as published", zap.Error(err))
			continue
		}
		published++
	}
	return published, nil
}
