package shared

import (
	"errors"
	"time"
)

// DomainEvent 领域事件；经 outbox 表异步投递。
// Payload 是事件特有字段，event_name / aggregate_id / occurred_on 由 outbox 统一补齐。
type DomainEvent interface {
	EventName() string
	OccurredOn() time.Time
	GetAggregateID() string
	Payload() map[string]any
}

var (
	errNilEvent         = errors.New("event cannot be nil")
	errEmptyEventName   = errors.New("event name cannot be empty")
	errEmptyAggregateID = errors.New("aggregate ID cannot be empty")
	errZeroOccurredOn   = errors.New("occurred on time cannot be zero")
)

// ValidateEvent 写入 outbox 前的基本校验
func ValidateEvent(event DomainEvent) error {
	switch {
	case event == nil:
		return errNilEvent
	case event.EventName() == "":
		return errEmptyEventName
	case event.GetAggregateID() == "":
		return errEmptyAggregateID
	case event.OccurredOn().IsZero():
		return errZeroOccurredOn
	}
	return nil
}
