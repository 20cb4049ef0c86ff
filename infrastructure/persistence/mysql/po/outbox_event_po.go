package po

import (
	"encoding/json"
	"fmt"
	"time"

	"storefront/domain/shared"

	"github.com/google/uuid"
)

// EventStatus outbox 记录状态：PENDING → PROCESSING → PUBLISHED，
// 投递失败回到 PENDING，重试耗尽进入 FAILED
type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusPublished  EventStatus = "PUBLISHED"
	EventStatusFailed     EventStatus = "FAILED"
)

const maxLastErrorLen = 500

// OutboxEventPO 与订单、流水写在同一事务里的待投递事件
type OutboxEventPO struct {
	ID          string      `gorm:"primaryKey;size:64"`
	AggregateID string      `gorm:"size:64;index;not null"`  // 订单号
	EventType   string      `gorm:"size:100;index;not null"` // order.placed / order.refunded / order.cancelled
	Payload     string      `gorm:"type:text;not null"`
	Status      EventStatus `gorm:"size:20;default:PENDING;not null"`
	RetryCount  int         `gorm:"default:0;not null"`
	LastError   string      `gorm:"size:500"`
	PublishedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (OutboxEventPO) TableName() string {
	return "outbox_events"
}

// FromDomainEvent 事件信封字段（event_name、aggregate_id、occurred_on）不能被事件自身的 payload 覆盖
func FromDomainEvent(event shared.DomainEvent) (*OutboxEventPO, error) {
	body := make(map[string]any, len(event.Payload())+3)
	for k, v := range event.Payload() {
		body[k] = v
	}
	body["event_name"] = event.EventName()
	body["aggregate_id"] = event.GetAggregateID()
	body["occurred_on"] = event.OccurredOn().UTC()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.EventName(), err)
	}

	return &OutboxEventPO{
		ID:          uuid.NewString(),
		AggregateID: event.GetAggregateID(),
		EventType:   event.EventName(),
		Payload:     string(payload),
		Status:      EventStatusPending,
	}, nil
}

// ToMessage 投递给 publisher 的视图
func (e *OutboxEventPO) ToMessage() shared.OutboxMessage {
	return shared.OutboxMessage{
		ID:          e.ID,
		AggregateID: e.AggregateID,
		EventType:   e.EventType,
		Payload:     e.Payload,
	}
}

// Decode 解出 payload，排查问题时使用
func (e *OutboxEventPO) Decode() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(e.Payload), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// TruncateError 截断到 last_error 列宽
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	return msg
}
