package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/domain/cart"
	"storefront/domain/payment"
	"storefront/infrastructure/persistence/mysql/po"
	"storefront/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const reconcileMsg = "payment accepted but order not recorded, pending reconciliation"

func TestQuoteRejectsEmptyCart(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)

	_, err := h.svc.Quote(context.Background(), cart.Owner{UserID: userID})
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	_, err = h.svc.StartPayPal(context.Background(), cart.Owner{SessionID: "anon"})
	assert.ErrorIs(t, err, ErrLoginRequired)
}

func TestStartPayPalUsesCartTotal(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", true)
	apple := h.product("Apple", "10.00", 5)
	h.addToCart(userID, apple, 2)

	h.paypal.On("CreateIntent", mock.Anything, mock.MatchedBy(decEq("19.00")), "").
		Return(&payment.Intent{Reference: "PP-1", Amount: dec("19.00"), Currency: "SGD"}, nil).Once()

	intent, err := h.svc.StartPayPal(context.Background(), cart.Owner{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, "PP-1", intent.Reference)
	assert.True(t, intent.Totals.Discount.Equal(dec("1.00")))
	h.paypal.AssertExpectations(t)
}

func TestCapturePayPalSettlesOrder(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "10.00", 5)
	pear := h.product("Pear", "2.50", 4)
	h.addToCart(userID, apple, 2)
	h.addToCart(userID, pear, 1)

	h.paypal.On("Capture", mock.Anything, "PP-1").Return(&payment.Capture{
		CaptureID:  "CAP-9",
		PayerID:    "PAYER-7",
		PayerEmail: "ann@example.com",
		Amount:     dec("22.50"),
		Currency:   "SGD",
		Status:     payment.StatusCompleted,
		Time:       time.Now(),
	}, nil).Once()

	result, err := h.svc.CapturePayPal(context.Background(), cart.Owner{UserID: userID}, "PP-1")
	require.NoError(t, err)
	require.Positive(t, result.OrderID)
	assert.Empty(t, result.FailedDecrements)
	assert.Equal(t, "paid", result.Status)

	o, err := h.ledger.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, string(payment.MethodPayPal), o.PaymentMethod())
	assert.True(t, o.Totals().Total.Equal(dec("22.50")))
	assert.Len(t, o.Items(), 2)

	txn, err := h.txns.FindByOrderID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, "CAP-9", txn.CaptureID)
	assert.Equal(t, "ann@example.com", txn.PayerEmail)

	assert.Equal(t, 3, h.stock(apple))
	assert.Equal(t, 3, h.stock(pear))
	assert.Zero(t, h.count(&po.CartItemPO{}))

	var events []po.OutboxEventPO
	require.NoError(t, h.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "order.placed", events[0].EventType)
}

func TestCapturePayPalNotCompletedCreatesNothing(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "10.00", 5)
	h.addToCart(userID, apple, 1)

	h.paypal.On("Capture", mock.Anything, "PP-2").
		Return(&payment.Capture{Status: payment.StatusPending, Amount: dec("10.00")}, nil).Once()

	_, err := h.svc.CapturePayPal(context.Background(), cart.Owner{UserID: userID}, "PP-2")
	assert.ErrorIs(t, err, payment.ErrPaymentNotCompleted)
	assert.Zero(t, h.count(&po.OrderPO{}))
	assert.Equal(t, 5, h.stock(apple))
	assert.Equal(t, int64(1), h.count(&po.CartItemPO{}))
}

func TestCapturePayPalUnknownOutcomeLeavesCart(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "10.00", 5)
	h.addToCart(userID, apple, 1)

	h.paypal.On("Capture", mock.Anything, "PP-3").Return(nil, payment.ErrOutcomeUnknown).Once()

	_, err := h.svc.CapturePayPal(context.Background(), cart.Owner{UserID: userID}, "PP-3")
	assert.ErrorIs(t, err, payment.ErrOutcomeUnknown)
	assert.Zero(t, h.count(&po.OrderPO{}))
	assert.Equal(t, int64(1), h.count(&po.CartItemPO{}))
}

func TestCapturePayPalStorageFailureIsPendingReview(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "10.00", 5)
	h.addToCart(userID, apple, 1)

	h.paypal.On("Capture", mock.Anything, "PP-9").Return(&payment.Capture{
		CaptureID: "CAP-9",
		Amount:    dec("10.00"),
		Currency:  "SGD",
		Status:    payment.StatusCompleted,
	}, nil).Once()
	require.NoError(t, h.db.Migrator().DropTable(&po.TransactionPO{}))
	core, logs := observer.New(zapcore.ErrorLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	result, err := h.svc.CapturePayPal(context.Background(), cart.Owner{UserID: userID}, "PP-9")
	require.NoError(t, err)
	assert.True(t, result.Pending())
	assert.Equal(t, StatusPendingReview, result.Status)
	assert.Equal(t, "CAP-9", result.Reference)
	assert.Zero(t, result.OrderID)

	// 订单整体回滚，购物车和库存保持原样，等待人工处理
	assert.Zero(t, h.count(&po.OrderPO{}))
	assert.Equal(t, int64(1), h.count(&po.CartItemPO{}))
	assert.Equal(t, 5, h.stock(apple))

	entries := logs.FilterMessage(reconcileMsg).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "CAP-9", fields["capture_id"])
	assert.Equal(t, "PP-9", fields["paypal_order_id"])
	assert.Equal(t, userID, fields["user_id"])
	assert.Equal(t, "10.00", fields["amount"])
	h.paypal.AssertNumberOfCalls(t, "Capture", 1)
}

func TestSettlementReportsFailedDecrements(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "10.00", 5)
	h.addToCart(userID, apple, 1)

	h.paypal.On("Capture", mock.Anything, "PP-4").
		Return(&payment.Capture{CaptureID: "C", Status: payment.StatusCompleted, Amount: dec("10.00")}, nil).Once()
	require.NoError(t, h.db.Callback().Update().Before("gorm:update").Register("test:fail_products", func(tx *gorm.DB) {
		if tx.Statement.Table == "products" {
			_ = tx.AddError(errors.New("lock wait"))
		}
	}))

	result, err := h.svc.CapturePayPal(context.Background(), cart.Owner{UserID: userID}, "PP-4")
	require.NoError(t, err)
	assert.Equal(t, []int64{apple}, result.FailedDecrements)
	assert.Equal(t, int64(1), h.count(&po.OrderPO{}))
}

func TestSettlementSkipsUnavailableLines(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "10.00", 5)
	gone := h.product("Seasonal Mango", "3.00", 5)
	h.addToCart(userID, apple, 1)
	h.addToCart(userID, gone, 2)
	require.NoError(t, h.db.Delete(&po.ProductPO{}, gone).Error)

	summary, err := h.svc.Quote(context.Background(), cart.Owner{UserID: userID})
	require.NoError(t, err)
	require.True(t, summary.Totals.Total.Equal(dec("10.00")))

	h.paypal.On("Capture", mock.Anything, "PP-5").
		Return(&payment.Capture{CaptureID: "C-5", Status: payment.StatusCompleted, Amount: dec("10.00")}, nil).Once()

	result, err := h.svc.CapturePayPal(context.Background(), cart.Owner{UserID: userID}, "PP-5")
	require.NoError(t, err)
	assert.Empty(t, result.FailedDecrements)

	o, err := h.ledger.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Len(t, o.Items(), 1)
	assert.Equal(t, apple, o.Items()[0].ProductID)
	assert.Zero(t, h.count(&po.CartItemPO{}))
}

func TestNetsCompletionIsIdempotent(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "4.00", 10)
	h.addToCart(userID, apple, 3)
	owner := cart.Owner{UserID: userID}

	h.nets.On("CreateIntent", mock.Anything, mock.MatchedBy(decEq("12.00")), "").Return(&payment.Intent{
		Reference: "REF-1",
		Amount:    dec("12.00"),
		Currency:  "SGD",
		QRCode:    "base64png",
		Raw: map[string]any{
			payment.RawResponseCode:  "00",
			payment.RawNetworkStatus: 0,
			payment.RawPayload:       `{"ok":true}`,
		},
	}, nil).Once()

	intent, err := h.svc.RequestNetsQR(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "REF-1", intent.Reference)

	var pending po.NetsTransactionPO
	require.NoError(t, h.db.First(&pending, "txn_retrieval_ref = ?", "REF-1").Error)
	assert.Equal(t, payment.NetsStatusPending, pending.Status)
	require.NotNil(t, pending.ResponseCode)
	assert.Equal(t, "00", *pending.ResponseCode)

	first, err := h.svc.CompleteNets(context.Background(), NetsCompleteCommand{UserID: userID, TxnRetrievalRef: "REF-1", NetTransactionID: "NT-1"})
	require.NoError(t, err)
	require.Positive(t, first.OrderID)
	assert.False(t, first.Duplicate)

	// 购物车已清空；第二次完成必须直接返回原订单，而不是因为空购物车报错
	second, err := h.svc.CompleteNets(context.Background(), NetsCompleteCommand{UserID: userID, TxnRetrievalRef: "REF-1"})
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Duplicate)

	assert.Equal(t, int64(1), h.count(&po.OrderPO{}))
	assert.Equal(t, 7, h.stock(apple))

	txn, err := h.txns.FindByOrderID(context.Background(), first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "NT-1", txn.CaptureID)
	assert.Equal(t, payment.MethodNets, payment.ResolveMethod("", "paid", txn))
}

func TestNetsCompletionAfterPaymentIsPendingReview(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		userID := h.user("Ann", false)
		require.NoError(t, h.db.Create(&po.NetsTransactionPO{UserID: userID, Amount: dec("5.00"), TxnRetrievalRef: "REF-E", Status: payment.NetsStatusPending}).Error)
		core, logs := observer.New(zapcore.ErrorLevel)
		t.Cleanup(logger.Replace(zap.New(core)))

		result, err := h.svc.CompleteNets(context.Background(), NetsCompleteCommand{UserID: userID, TxnRetrievalRef: "REF-E"})
		require.NoError(t, err)
		assert.True(t, result.Pending())
		assert.Equal(t, "REF-E", result.Reference)
		assert.Zero(t, h.count(&po.OrderPO{}))

		entries := logs.FilterMessage(reconcileMsg).All()
		require.Len(t, entries, 1)
		assert.Equal(t, "5.00", entries[0].ContextMap()["amount"])
		assert.Equal(t, userID, entries[0].ContextMap()["user_id"])
	})

	t.Run("storage failure", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		userID := h.user("Ann", false)
		apple := h.product("Apple", "5.00", 10)
		h.addToCart(userID, apple, 1)
		require.NoError(t, h.db.Create(&po.NetsTransactionPO{UserID: userID, Amount: dec("5.00"), TxnRetrievalRef: "REF-S", Status: payment.NetsStatusPending}).Error)
		require.NoError(t, h.db.Migrator().DropTable(&po.TransactionPO{}))

		result, err := h.svc.HandleNetsWebhook(context.Background(),
			&payment.NetsNotification{TxnRetrievalRef: "REF-S", ResponseCode: "00", TxnStatus: 1, NetTransactionID: "NT-S"}, `{}`)
		require.NoError(t, err)
		assert.True(t, result.Pending())
		assert.Equal(t, "NT-S", result.Reference)
		assert.Zero(t, h.count(&po.OrderPO{}))

		var record po.NetsTransactionPO
		require.NoError(t, h.db.First(&record, "txn_retrieval_ref = ?", "REF-S").Error)
		assert.Equal(t, payment.NetsStatusPending, record.Status)
		assert.Nil(t, record.OrderID)
	})
}

func TestNetsCompletionChecksOwnerAndRef(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	other := h.user("Bo", false)
	require.NoError(t, h.db.Create(&po.NetsTransactionPO{UserID: userID, Amount: dec("5.00"), TxnRetrievalRef: "REF-2", Status: payment.NetsStatusPending}).Error)

	_, err := h.svc.CompleteNets(context.Background(), NetsCompleteCommand{UserID: other, TxnRetrievalRef: "REF-2"})
	assert.Error(t, err)

	_, err = h.svc.CompleteNets(context.Background(), NetsCompleteCommand{TxnRetrievalRef: "nope"})
	assert.ErrorIs(t, err, payment.ErrNetsTransactionNotFound)
}

func TestNetsWebhook(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "5.00", 10)
	h.addToCart(userID, apple, 1)
	require.NoError(t, h.db.Create(&po.NetsTransactionPO{UserID: userID, Amount: dec("5.00"), TxnRetrievalRef: "REF-OK", Status: payment.NetsStatusPending}).Error)
	require.NoError(t, h.db.Create(&po.NetsTransactionPO{UserID: userID, Amount: dec("5.00"), TxnRetrievalRef: "REF-BAD", Status: payment.NetsStatusPending}).Error)

	failed, err := h.svc.HandleNetsWebhook(context.Background(), &payment.NetsNotification{TxnRetrievalRef: "REF-BAD", ResponseCode: "68", TxnStatus: 2}, `{"bad":1}`)
	require.NoError(t, err)
	assert.Equal(t, payment.NetsStatusFailed, failed.Status)

	var bad po.NetsTransactionPO
	require.NoError(t, h.db.First(&bad, "txn_retrieval_ref = ?", "REF-BAD").Error)
	assert.Equal(t, payment.NetsStatusFailed, bad.Status)

	ok, err := h.svc.HandleNetsWebhook(context.Background(), &payment.NetsNotification{TxnRetrievalRef: "REF-OK", ResponseCode: "00", TxnStatus: 1, NetTransactionID: "NT-5"}, `{}`)
	require.NoError(t, err)
	assert.Positive(t, ok.OrderID)

	again, err := h.svc.HandleNetsWebhook(context.Background(), &payment.NetsNotification{TxnRetrievalRef: "REF-OK", ResponseCode: "00", TxnStatus: 1}, `{}`)
	require.NoError(t, err)
	assert.Equal(t, ok.OrderID, again.OrderID)
	assert.Equal(t, int64(1), h.count(&po.OrderPO{}))
}

func TestNetsVerifyOnComplete(t *testing.T) {
	cfg := defaultConfig()
	cfg.VerifyNets = true
	h := newHarness(t, cfg)
	userID := h.user("Ann", false)
	apple := h.product("Apple", "5.00", 10)
	h.addToCart(userID, apple, 1)
	require.NoError(t, h.db.Create(&po.NetsTransactionPO{UserID: userID, Amount: dec("5.00"), TxnRetrievalRef: "REF-V", Status: payment.NetsStatusPending}).Error)

	h.nets.On("Capture", mock.Anything, "REF-V").Return(&payment.Capture{Status: payment.StatusPending}, nil).Once()

	_, err := h.svc.CompleteNets(context.Background(), NetsCompleteCommand{UserID: userID, TxnRetrievalRef: "REF-V"})
	assert.ErrorIs(t, err, payment.ErrPaymentNotCompleted)
	assert.Zero(t, h.count(&po.OrderPO{}))
}

func TestPayNowConfirmIsClientAsserted(t *testing.T) {
	h := newHarness(t, defaultConfig())
	userID := h.user("Ann", false)
	apple := h.product("Apple", "6.25", 10)
	h.addToCart(userID, apple, 2)
	owner := cart.Owner{UserID: userID}

	h.paynow.On("CreateIntent", mock.Anything, mock.MatchedBy(decEq("12.50")), "").Return(&payment.Intent{
		Reference: "PN1",
		Amount:    dec("12.50"),
		Currency:  "SGD",
		QRCode:    "000201...",
		Raw:       map[string]any{payment.RawQRImage: "iVBORw0KGgo="},
	}, nil).Once()
	intent, err := h.svc.StartPayNow(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "iVBORw0KGgo=", intent.QRImage)

	_, err = h.svc.ConfirmPayNow(context.Background(), owner, dec("12.48"), "PN1")
	assert.ErrorIs(t, err, payment.ErrAmountMismatch)
	assert.Zero(t, h.count(&po.OrderPO{}))

	result, err := h.svc.ConfirmPayNow(context.Background(), owner, dec("12.51"), "PN1")
	require.NoError(t, err)

	txn, err := h.txns.FindByOrderID(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusClientAsserted, txn.Status)
	assert.Equal(t, "PN1", txn.CaptureID)
	assert.Equal(t, payment.MethodPayNow, payment.ResolveMethod("", "paid", txn))
}

func TestUnconfiguredGatewayIsUnsupported(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.svc.gateways.PayPal = nil
	_, err := h.svc.StartPayPal(context.Background(), cart.Owner{UserID: 1})
	assert.ErrorIs(t, err, payment.ErrUnsupported)
}
