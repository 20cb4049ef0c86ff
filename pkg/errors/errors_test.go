package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"storefront/domain/cart"
	"storefront/domain/order"
	"storefront/domain/payment"
	"storefront/domain/refund"
	"storefront/domain/shared"

	"github.com/stretchr/testify/assert"
)

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"out of stock", cart.ErrOutOfStock, CodeOutOfStock, http.StatusConflict},
		{"cap reached", fmt.Errorf("add item: %w", cart.ErrCapReached), CodeCartCapReached, http.StatusConflict},
		{"empty cart wins over invalid input", cart.ErrEmptyCart, CodeEmptyCart, http.StatusBadRequest},
		{"order not found", order.NewOrderNotFoundError(5), CodeOrderNotFound, http.StatusNotFound},
		{"state", order.NewInvalidOrderStateError("refunded", "paid"), CodeInvalidOrderState, http.StatusUnprocessableEntity},
		{"gateway auth", payment.ErrGatewayAuth, CodeGatewayAuth, http.StatusBadGateway},
		{"gateway rejected", payment.ErrGatewayRejected, CodeGatewayRejected, http.StatusPaymentRequired},
		{"unknown outcome", payment.ErrOutcomeUnknown, CodeGatewayOutcomeUnknown, http.StatusBadGateway},
		{"nothing to refund", refund.ErrNothingToRefund, CodeNothingToRefund, http.StatusBadRequest},
		{"validation", shared.NewValidationError("cart", "quantity", "bad"), CodeValidation, http.StatusBadRequest},
		{"unknown", stderrors.New("disk on fire"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromDomainError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatusCode())
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}

func TestFromDomainErrorHidesInternals(t *testing.T) {
	appErr := FromDomainError(fmt.Errorf("token endpoint said secret=xyz: %w", payment.ErrGatewayAuth))
	assert.NotContains(t, appErr.Message, "secret")

	appErr = FromDomainError(stderrors.New("dial tcp 10.0.0.1:3306"))
	assert.Equal(t, "internal server error", appErr.Message)
}

func TestFromDomainErrorKeepsAppError(t *testing.T) {
	original := Validation("bad body")
	assert.Same(t, original, FromDomainError(fmt.Errorf("wrapped: %w", original)))
	assert.Nil(t, FromDomainError(nil))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(New(CodeConflict, "x"), CodeConflict))
	assert.False(t, Is(stderrors.New("x"), CodeConflict))
}
