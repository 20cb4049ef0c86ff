package shared

// AggregateRoot 订单是本系统唯一的聚合根：订单行只能经由订单修改，
// 状态变化与退款以领域事件记录，由 UnitOfWork 在同一事务内写入 outbox。
type AggregateRoot interface {
	ID() string
	Version() int
	PullEvents() []DomainEvent
}
