/*
Package order 订单子领域

订单是"卖出了什么"的唯一事实来源：创建一次，之后只会因退款/补库存和状态流转而变更，从不删除。

状态机:

	awaiting_payment → paid → shipped → completed
	paid|shipped|completed → cancelled   (终态)
	paid|shipped|completed → refunded    (终态)

Ledger 的 UpdateStatus 是无条件写入；状态合法性由聚合根 TransitionTo 在应用层校验。
*/
package order

import (
	"strconv"
	"time"

	"storefront/domain/shared"

	"github.com/shopspring/decimal"
)

// Order 订单聚合根
type Order struct {
	id            int64
	userID        int64
	userName      string
	totals        shared.Totals
	status        Status
	paymentMethod string
	items         []Item
	version       int
	createdAt     time.Time

	events []shared.DomainEvent
}

// Item 订单行。LineTotal 在每次数量变化时重算；数量减到 0 时整行删除
type Item struct {
	ID          int64           `json:"order_item_id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ItemRequest 创建订单时的订单行
type ItemRequest struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotalOf 行小计
func LineTotalOf(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// NewOrder 结算成功后创建订单，初始状态为 paid
func NewOrder(userID int64, requests []ItemRequest, totals shared.Totals, paymentMethod string) (*Order, error) {
	if userID <= 0 {
		return nil, shared.NewValidationError("order", "user_id", "order requires a user")
	}
	if len(requests) == 0 {
		return nil, NewEmptyOrderItemsError()
	}
	if !totals.Payable() {
		return nil, ErrOrderTotalAmountNotPositive
	}

	items := make([]Item, len(requests))
	for i, req := range requests {
		if req.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		items[i] = Item{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			LineTotal: LineTotalOf(req.Quantity, req.UnitPrice),
		}
	}

	return &Order{
		userID:        userID,
		totals:        totals,
		status:        StatusPaid,
		paymentMethod: paymentMethod,
		items:         items,
		createdAt:     time.Now(),
	}, nil
}

// ReconstructionDTO 仅供 Ledger 实现从存储重建聚合
type ReconstructionDTO struct {
	ID            int64
	UserID        int64
	UserName      string
	Totals        shared.Totals
	Status        Status
	PaymentMethod string
	Items         []Item
	CreatedAt     time.Time
}

// RebuildFromDTO 重建订单聚合（仅 Ledger 使用）
func RebuildFromDTO(dto ReconstructionDTO) *Order {
	return &Order{
		id:            dto.ID,
		userID:        dto.UserID,
		userName:      dto.UserName,
		totals:        dto.Totals,
		status:        dto.Status,
		paymentMethod: dto.PaymentMethod,
		items:         dto.Items,
		createdAt:     dto.CreatedAt,
	}
}

// MarkPersisted 由 Ledger 在插入成功后调用：回填自增 ID 并记录 order.placed 事件
func (o *Order) MarkPersisted(id int64, itemIDs []int64) {
	o.id = id
	for i := range o.items {
		o.items[i].OrderID = id
		if i < len(itemIDs) {
			o.items[i].ID = itemIDs[i]
		}
	}
	o.events = append(o.events, NewOrderPlacedEvent(o))
}

// TransitionTo 校验并执行状态流转
func (o *Order) TransitionTo(next Status) error {
	if err := o.CanTransitionTo(next); err != nil {
		return err
	}
	prev := o.status
	o.status = next
	o.events = append(o.events, NewOrderStatusChangedEvent(o.ID(), prev, next))
	return nil
}

// CanTransitionTo 只校验，不改变状态也不产生事件
func (o *Order) CanTransitionTo(next Status) error {
	if !next.Valid() {
		return NewInvalidStatusError(string(next))
	}
	if !o.status.CanTransitionTo(next) {
		return NewInvalidOrderStateError(string(o.status), string(next))
	}
	return nil
}

// EnsureRefundable 只有已付款且未进入终态的订单可退款
func (o *Order) EnsureRefundable() error {
	if !o.status.CanTransitionTo(StatusRefunded) {
		return NewInvalidOrderStateError(string(o.status), string(StatusRefunded))
	}
	return nil
}

// RecordRefund 记录一次（部分或全额）退款并更新剩余金额；全额退款时流转到 refunded
func (o *Order) RecordRefund(amount decimal.Decimal, units int, remaining shared.Totals, full bool, outcome string) error {
	o.totals = remaining
	o.events = append(o.events, NewOrderRefundedEvent(o.ID(), amount, units, full, outcome))
	if full && o.status != StatusRefunded {
		return o.TransitionTo(StatusRefunded)
	}
	return nil
}

// ReplaceItems 刷新订单行（退款写库之后由应用层回填）
func (o *Order) ReplaceItems(items []Item) {
	o.items = items
}

// Getters

func (o *Order) ID() string {
	if o.id == 0 {
		return ""
	}
	return strconv.FormatInt(o.id, 10)
}
func (o *Order) OrderID() int64          { return o.id }
func (o *Order) UserID() int64           { return o.userID }
func (o *Order) UserName() string        { return o.userName }
func (o *Order) Totals() shared.Totals   { return o.totals }
func (o *Order) Status() Status          { return o.status }
func (o *Order) PaymentMethod() string   { return o.paymentMethod }
func (o *Order) Version() int            { return o.version }
func (o *Order) CreatedAt() time.Time    { return o.createdAt }
func (o *Order) Items() []Item {
	items := make([]Item, len(o.items))
	copy(items, o.items)
	return items
}

// PullEvents 获取并清空事件列表
func (o *Order) PullEvents() []shared.DomainEvent {
	events := o.events
	o.events = nil
	return events
}

var _ shared.AggregateRoot = (*Order)(nil)
