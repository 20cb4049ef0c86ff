package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/api/middleware"
	"storefront/api/response"
	cartapp "storefront/application/cart"
	"storefront/application/settlement"
	"storefront/domain/cart"
	"storefront/domain/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCheckout struct{ mock.Mock }

func (m *mockCheckout) Quote(ctx context.Context, owner cart.Owner) (*cartapp.Summary, error) {
	args := m.Called(owner)
	s, _ := args.Get(0).(*cartapp.Summary)
	return s, args.Error(1)
}

func (m *mockCheckout) StartPayPal(ctx context.Context, owner cart.Owner) (*settlement.CheckoutIntent, error) {
	args := m.Called(owner)
	i, _ := args.Get(0).(*settlement.CheckoutIntent)
	return i, args.Error(1)
}

func (m *mockCheckout) CapturePayPal(ctx context.Context, owner cart.Owner, id string) (*settlement.SettlementResult, error) {
	args := m.Called(owner, id)
	r, _ := args.Get(0).(*settlement.SettlementResult)
	return r, args.Error(1)
}

func (m *mockCheckout) RequestNetsQR(ctx context.Context, owner cart.Owner) (*settlement.CheckoutIntent, error) {
	args := m.Called(owner)
	i, _ := args.Get(0).(*settlement.CheckoutIntent)
	return i, args.Error(1)
}

func (m *mockCheckout) CompleteNets(ctx context.Context, cmd settlement.NetsCompleteCommand) (*settlement.SettlementResult, error) {
	args := m.Called(cmd)
	r, _ := args.Get(0).(*settlement.SettlementResult)
	return r, args.Error(1)
}

func (m *mockCheckout) HandleNetsWebhook(ctx context.Context, n *payment.NetsNotification, payload string) (*settlement.SettlementResult, error) {
	args := m.Called(n, payload)
	r, _ := args.Get(0).(*settlement.SettlementResult)
	return r, args.Error(1)
}

func (m *mockCheckout) StartPayNow(ctx context.Context, owner cart.Owner) (*settlement.CheckoutIntent, error) {
	args := m.Called(owner)
	i, _ := args.Get(0).(*settlement.CheckoutIntent)
	return i, args.Error(1)
}

func (m *mockCheckout) ConfirmPayNow(ctx context.Context, owner cart.Owner, amount decimal.Decimal, reference string) (*settlement.SettlementResult, error) {
	args := m.Called(owner, amount.String(), reference)
	r, _ := args.Get(0).(*settlement.SettlementResult)
	return r, args.Error(1)
}

func jsonNotice(body []byte) (*payment.NetsNotification, error) {
	var n payment.NetsNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func newEngine(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.RequestIDMiddleware(), middleware.IdentityMiddleware(middleware.IdentityConfig{}))
	NewController(svc, jsonNotice).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func post(engine *gin.Engine, path, body string, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func userOwner(id int64) any {
	return mock.MatchedBy(func(o cart.Owner) bool { return o.UserID == id })
}

func TestQuoteMapsEmptyCart(t *testing.T) {
	svc := &mockCheckout{}
	svc.On("Quote", userOwner(5)).Return(nil, cart.ErrEmptyCart)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/quote", nil)
	req.Header.Set(middleware.UserIDHeader, "5")
	rec := httptest.NewRecorder()
	newEngine(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_CART", decode(t, rec).Error)
}

func TestPayPalFlow(t *testing.T) {
	svc := &mockCheckout{}
	svc.On("StartPayPal", userOwner(5)).Return(&settlement.CheckoutIntent{
		Method: string(payment.MethodPayPal), Reference: "PP-1", Amount: decimal.RequireFromString("19.00"), Currency: "SGD",
	}, nil)
	svc.On("CapturePayPal", userOwner(5), "PP-1").Return(&settlement.SettlementResult{
		OrderID: 41, Status: "paid", PaymentMethod: string(payment.MethodPayPal),
	}, nil)
	engine := newEngine(svc)

	rec := post(engine, "/api/v1/checkout/paypal/orders", "", "5")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "PP-1", decode(t, rec).Data.(map[string]any)["reference"])

	rec = post(engine, "/api/v1/checkout/paypal/orders/PP-1/capture", "", "5")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(41), decode(t, rec).Data.(map[string]any)["order_id"])
}

func TestPendingSettlementIsAccepted(t *testing.T) {
	svc := &mockCheckout{}
	svc.On("CapturePayPal", userOwner(5), "PP-9").Return(&settlement.SettlementResult{
		Status: settlement.StatusPendingReview, PaymentMethod: string(payment.MethodPayPal), Reference: "CAP-9",
	}, nil)
	pending := `{"txn_retrieval_ref":"REF-9","response_code":"00","txn_status":1}`
	svc.On("HandleNetsWebhook", mock.Anything, pending).Return(&settlement.SettlementResult{
		Status: settlement.StatusPendingReview, PaymentMethod: string(payment.MethodNetsQR), Reference: "REF-9",
	}, nil)
	engine := newEngine(svc)

	rec := post(engine, "/api/v1/checkout/paypal/orders/PP-9/capture", "", "5")
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Data.(map[string]any)["status"])
	assert.Equal(t, "CAP-9", resp.Data.(map[string]any)["reference"])

	rec = post(engine, "/api/v1/payments/nets/webhook", pending, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCaptureNotCompletedIsUnprocessable(t *testing.T) {
	svc := &mockCheckout{}
	svc.On("CapturePayPal", userOwner(5), "PP-2").Return(nil, payment.ErrPaymentNotCompleted)

	rec := post(newEngine(svc), "/api/v1/checkout/paypal/orders/PP-2/capture", "", "5")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "PAYMENT_NOT_COMPLETED", decode(t, rec).Error)
}

func TestCompleteNetsRequiresLoginAndPassesPayload(t *testing.T) {
	svc := &mockCheckout{}
	engine := newEngine(svc)
	body := `{"txn_retrieval_ref":"REF-1","net_transaction_id":"N-9","response_code":"00"}`

	rec := post(engine, "/api/v1/checkout/nets/complete", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	svc.On("CompleteNets", mock.MatchedBy(func(cmd settlement.NetsCompleteCommand) bool {
		return cmd.UserID == 5 && cmd.TxnRetrievalRef == "REF-1" && cmd.NetTransactionID == "N-9" && cmd.Payload == body
	})).Return(&settlement.SettlementResult{OrderID: 12, Status: "paid"}, nil).Once()
	rec = post(engine, "/api/v1/checkout/nets/complete", body, "5")
	assert.Equal(t, http.StatusCreated, rec.Code)

	svc.On("CompleteNets", mock.Anything).Return(&settlement.SettlementResult{OrderID: 12, Status: "paid", Duplicate: true}, nil).Once()
	rec = post(engine, "/api/v1/checkout/nets/complete", body, "5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12), decode(t, rec).Data.(map[string]any)["order_id"])

	rec = post(engine, "/api/v1/checkout/nets/complete", `{"net_transaction_id":"N-9"}`, "5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestNetsWebhook(t *testing.T) {
	svc := &mockCheckout{}
	engine := newEngine(svc)

	failed := `{"txn_retrieval_ref":"REF-2","response_code":"51","txn_status":2}`
	svc.On("HandleNetsWebhook", mock.MatchedBy(func(n *payment.NetsNotification) bool { return n.TxnRetrievalRef == "REF-2" }), failed).
		Return(&settlement.SettlementResult{Status: payment.NetsStatusFailed}, nil)
	rec := post(engine, "/api/v1/payments/nets/webhook", failed, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notification acknowledged", decode(t, rec).Message)

	ok := `{"txn_retrieval_ref":"REF-3","response_code":"00","txn_status":1}`
	svc.On("HandleNetsWebhook", mock.MatchedBy(func(n *payment.NetsNotification) bool { return n.Succeeded() }), ok).
		Return(&settlement.SettlementResult{OrderID: 77, Status: "paid"}, nil)
	rec = post(engine, "/api/v1/payments/nets/webhook", ok, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = post(engine, "/api/v1/payments/nets/webhook", "not json", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("HandleNetsWebhook", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	rec = post(engine, "/api/v1/payments/nets/webhook", `{"txn_retrieval_ref":"REF-4","response_code":"00","txn_status":1}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec).Message)
}

func TestConfirmPayNow(t *testing.T) {
	svc := &mockCheckout{}
	engine := newEngine(svc)

	svc.On("ConfirmPayNow", userOwner(5), "10.5", "SF-1").Return(nil, payment.ErrAmountMismatch).Once()
	rec := post(engine, "/api/v1/checkout/paynow/confirm", `{"amount":"10.50","reference":"SF-1"}`, "5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AMOUNT_MISMATCH", decode(t, rec).Error)

	svc.On("ConfirmPayNow", userOwner(5), "19", "SF-1").
		Return(&settlement.SettlementResult{OrderID: 3, Status: "paid", PaymentMethod: string(payment.MethodPayNow)}, nil).Once()
	rec = post(engine, "/api/v1/checkout/paynow/confirm", `{"amount":"19.00","reference":"SF-1"}`, "5")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = post(engine, "/api/v1/checkout/paynow/confirm", `{"amount":"abc"}`, "5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error)
	svc.AssertExpectations(t)
}

func TestUnconfiguredGatewayIsUnprocessable(t *testing.T) {
	svc := &mockCheckout{}
	svc.On("RequestNetsQR", mock.Anything).Return(nil, payment.ErrUnsupported)

	rec := post(newEngine(svc), "/api/v1/checkout/nets/qr", "", "5")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "UNSUPPORTED_PAYMENT_METHOD", decode(t, rec).Error)
}

func TestGatewayOutcomeUnknownIsBadGateway(t *testing.T) {
	svc := &mockCheckout{}
	svc.On("CapturePayPal", mock.Anything, "PP-3").Return(nil, payment.ErrOutcomeUnknown)

	rec := post(newEngine(svc), "/api/v1/checkout/paypal/orders/PP-3/capture", "", "5")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "GATEWAY_OUTCOME_UNKNOWN", resp.Error)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("reconciled")))
}
