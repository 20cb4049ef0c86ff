package order

import (
	"testing"

	"storefront/domain/shared"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func totals(sub, disc, total string) shared.Totals {
	return shared.Totals{
		Subtotal: decimal.RequireFromString(sub),
		Discount: decimal.RequireFromString(disc),
		Total:    decimal.RequireFromString(total),
	}
}

func newPaidOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(7, []ItemRequest{
		{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("2.50")},
	}, totals("17.50", "0", "17.50"), "PayPal")
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	o := newPaidOrder(t)

	assert.Equal(t, StatusPaid, o.Status())
	assert.Equal(t, "", o.ID())
	items := o.Items()
	require.Len(t, items, 2)
	assert.True(t, items[0].LineTotal.Equal(decimal.RequireFromString("15")))
	assert.Empty(t, o.PullEvents(), "order.placed is recorded only once persisted")
}

func TestNewOrderValidation(t *testing.T) {
	item := []ItemRequest{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}

	_, err := NewOrder(0, item, totals("1", "0", "1"), "PayPal")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewOrder(1, nil, totals("1", "0", "1"), "PayPal")
	assert.ErrorIs(t, err, ErrEmptyOrderItems)

	_, err = NewOrder(1, item, totals("0", "0", "0"), "PayPal")
	assert.ErrorIs(t, err, ErrOrderTotalAmountNotPositive)

	_, err = NewOrder(1, []ItemRequest{{ProductID: 1, Quantity: 0}}, totals("1", "0", "1"), "PayPal")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMarkPersistedRecordsPlacedEvent(t *testing.T) {
	o := newPaidOrder(t)
	o.MarkPersisted(42, []int64{100, 101})

	assert.Equal(t, "42", o.ID())
	items := o.Items()
	assert.Equal(t, int64(42), items[1].OrderID)
	assert.Equal(t, int64(101), items[1].ID)

	events := o.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "order.placed", events[0].EventName())
	assert.Equal(t, "42", events[0].GetAggregateID())
	assert.NoError(t, shared.ValidateEvent(events[0]))
	assert.Empty(t, o.PullEvents())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusAwaitingPayment, StatusPaid, true},
		{StatusAwaitingPayment, StatusCancelled, false},
		{StatusPaid, StatusShipped, true},
		{StatusShipped, StatusCompleted, true},
		{StatusPaid, StatusCompleted, false},
		{StatusCompleted, StatusRefunded, true},
		{StatusShipped, StatusCancelled, true},
		{StatusRefunded, StatusPaid, false},
		{StatusCancelled, StatusRefunded, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusPaid.Terminal())
}

func TestTransitionTo(t *testing.T) {
	o := RebuildFromDTO(ReconstructionDTO{ID: 9, UserID: 1, Status: StatusPaid})

	require.NoError(t, o.TransitionTo(StatusShipped))
	assert.Equal(t, StatusShipped, o.Status())

	err := o.TransitionTo(StatusAwaitingPayment)
	assert.ErrorIs(t, err, ErrInvalidOrderState)

	err = o.TransitionTo(Status("lost"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	events := o.PullEvents()
	require.Len(t, events, 1)
	changed, ok := events[0].(*OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, StatusPaid, changed.From())
	assert.Equal(t, StatusShipped, changed.To())
}

func TestRecordRefund(t *testing.T) {
	o := RebuildFromDTO(ReconstructionDTO{ID: 3, UserID: 1, Status: StatusPaid, Totals: totals("15", "0", "15")})
	require.NoError(t, o.EnsureRefundable())

	require.NoError(t, o.RecordRefund(decimal.NewFromInt(10), 2, totals("5", "0", "5"), false, "ok"))
	assert.Equal(t, StatusPaid, o.Status())
	assert.True(t, o.Totals().Subtotal.Equal(decimal.NewFromInt(5)))

	require.NoError(t, o.RecordRefund(decimal.NewFromInt(5), 1, totals("0", "0", "0"), true, "ok"))
	assert.Equal(t, StatusRefunded, o.Status())
	assert.ErrorIs(t, o.EnsureRefundable(), ErrInvalidOrderState)

	names := []string{}
	for _, e := range o.PullEvents() {
		names = append(names, e.EventName())
	}
	assert.Equal(t, []string{"order.refunded", "order.refunded", "order.status_changed"}, names)
}
