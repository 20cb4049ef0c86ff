package shared

import "context"

// UnitOfWork 一次结算操作的事务边界。
// fn 内通过 ctx 取得事务；Track 过的聚合在提交前把事件写入 outbox。
// fn 可能因死锁被重跑，Track 必须在 fn 内调用。
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
	Track(aggregate AggregateRoot)
}

// UnitOfWorkFactory 每个业务操作取一个新的 UnitOfWork，实例不可复用
type UnitOfWorkFactory interface {
	New() UnitOfWork
}

type OutboxRepository interface {
	SaveEvent(ctx context.Context, event DomainEvent) error
}

// OutboxMessage 待投递的 outbox 记录
type OutboxMessage struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     string
}

// OutboxPublisher 把 outbox 记录投递到下游（日志、Kafka、RabbitMQ）
type OutboxPublisher interface {
	Publish(ctx context.Context, msg OutboxMessage) error
}
