package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowance(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		stock     int
		inCart    int
		want      int
		limit     Limit
		err       error
	}{
		{"fits", 2, 10, 0, 2, LimitNone, nil},
		{"stock bound", 5, 3, 2, 1, LimitStock, nil},
		{"cap bound", 5, 100, 8, 2, LimitCap, nil},
		{"out of stock", 1, 2, 2, 0, LimitStock, ErrOutOfStock},
		{"cap reached", 1, 100, MaxPerUser, 0, LimitCap, ErrCapReached},
		{"cap binds before stock", 3, 12, 10, 0, LimitCap, ErrCapReached},
		{"zero request", 0, 10, 0, 0, LimitNone, ErrInvalidQuantity},
		{"negative request", -1, 10, 0, 0, LimitNone, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, limit, err := Allowance(tt.requested, tt.stock, tt.inCart, MaxPerUser)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.limit, limit)
		})
	}
}

func TestAllowanceNeverExceedsCap(t *testing.T) {
	for inCart := 0; inCart <= MaxPerUser; inCart++ {
		for requested := 1; requested <= 25; requested++ {
			allowed, _, err := Allowance(requested, 1000, inCart, MaxPerUser)
			if err != nil {
				continue
			}
			assert.LessOrEqual(t, inCart+allowed, MaxPerUser)
		}
	}
}

func TestNewAddResult(t *testing.T) {
	full := NewAddResult(1, 2, 2, 2, LimitNone)
	assert.False(t, full.Partial)
	assert.Equal(t, LimitNone, full.Limit)

	partial := NewAddResult(1, 5, 1, 3, LimitStock)
	assert.True(t, partial.Partial)
	assert.Equal(t, LimitStock, partial.Limit)
}

func TestClampDecrement(t *testing.T) {
	assert.Equal(t, 2, ClampDecrement(3, 1))
	assert.Equal(t, 0, ClampDecrement(3, 7))
	assert.Equal(t, 2, ClampDecrement(3, 0))
	assert.Equal(t, 0, ClampDecrement(0, 1))
}

func TestOwner(t *testing.T) {
	assert.True(t, Owner{UserID: 4}.Authenticated())
	assert.False(t, Owner{SessionID: "s"}.Authenticated())
	assert.True(t, Owner{SessionID: "s"}.Valid())
	assert.False(t, Owner{}.Valid())
}
