package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPlacedEvent struct {
	orderID       string
	userID        int64
	total         decimal.Decimal
	paymentMethod string
	itemCount     int
	occurredOn    time.Time
}

func NewOrderPlacedEvent(o *Order) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		orderID:       o.ID(),
		userID:        o.userID,
		total:         o.totals.Total,
		paymentMethod: o.paymentMethod,
		itemCount:     len(o.items),
		occurredOn:    time.Now(),
	}
}

func (e *OrderPlacedEvent) EventName() string      { return "order.placed" }
func (e *OrderPlacedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *OrderPlacedEvent) GetAggregateID() string { return e.orderID }
func (e *OrderPlacedEvent) Payload() map[string]any {
	return map[string]any{
		"user_id":        e.userID,
		"total":          e.total.StringFixed(2),
		"payment_method": e.paymentMethod,
		"item_count":     e.itemCount,
	}
}

type OrderStatusChangedEvent struct {
	orderID    string
	from       Status
	to         Status
	occurredOn time.Time
}

func NewOrderStatusChangedEvent(orderID string, from, to Status) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{orderID: orderID, from: from, to: to, occurredOn: time.Now()}
}

func (e *OrderStatusChangedEvent) EventName() string      { return "order.status_changed" }
func (e *OrderStatusChangedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *OrderStatusChangedEvent) GetAggregateID() string { return e.orderID }
func (e *OrderStatusChangedEvent) From() Status           { return e.from }
func (e *OrderStatusChangedEvent) To() Status             { return e.to }
func (e *OrderStatusChangedEvent) Payload() map[string]any {
	return map[string]any{"from": string(e.from), "to": string(e.to)}
}

// OrderRefundedEvent 每次退款写账后记录一次，outcome 为 ok/pending/missing_tx
type OrderRefundedEvent struct {
	orderID    string
	amount     decimal.Decimal
	units      int
	full       bool
	outcome    string
	occurredOn time.Time
}

func NewOrderRefundedEvent(orderID string, amount decimal.Decimal, units int, full bool, outcome string) *OrderRefundedEvent {
	return &OrderRefundedEvent{
		orderID:    orderID,
		amount:     amount,
		units:      units,
		full:       full,
		outcome:    outcome,
		occurredOn: time.Now(),
	}
}

func (e *OrderRefundedEvent) EventName() string      { return "order.refunded" }
func (e *OrderRefundedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *OrderRefundedEvent) GetAggregateID() string { return e.orderID }
func (e *OrderRefundedEvent) Payload() map[string]any {
	return map[string]any{
		"amount":  e.amount.StringFixed(2),
		"units":   e.units,
		"full":    e.full,
		"outcome": e.outcome,
	}
}
