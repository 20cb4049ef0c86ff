package settlement

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	cartapp "storefront/application/cart"
	"storefront/domain/cart"
	"storefront/domain/order"
	"storefront/domain/payment"
	"storefront/domain/shared"
	"storefront/infrastructure/persistence/mysql"
	"storefront/infrastructure/persistence/mysql/po"
	"storefront/infrastructure/persistence/retry"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decEq(want string) func(decimal.Decimal) bool {
	return func(got decimal.Decimal) bool { return got.Equal(dec(want)) }
}

// mockGateway payment.Gateway 的 testify mock
type mockGateway struct {
	mock.Mock
	method payment.Method
}

func (m *mockGateway) Method() payment.Method { return m.method }

func (m *mockGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, reference string) (*payment.Intent, error) {
	args := m.Called(ctx, amount, reference)
	intent, _ := args.Get(0).(*payment.Intent)
	return intent, args.Error(1)
}

func (m *mockGateway) Capture(ctx context.Context, reference string) (*payment.Capture, error) {
	args := m.Called(ctx, reference)
	capture, _ := args.Get(0).(*payment.Capture)
	return capture, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, captureID string, amount decimal.Decimal) (*payment.RefundResult, error) {
	args := m.Called(ctx, captureID, amount)
	result, _ := args.Get(0).(*payment.RefundResult)
	return result, args.Error(1)
}

type harness struct {
	t      *testing.T
	db     *gorm.DB
	svc    *Service
	carts  *cartapp.Service
	paypal *mockGateway
	nets   *mockGateway
	paynow *mockGateway
	ledger *mysql.OrderLedger
	txns   *mysql.TransactionLedger
	reqs   *mysql.RefundRequestRepository
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "settlement.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&po.UserPO{}, &po.ProductPO{}, &po.CartItemPO{},
		&po.OrderPO{}, &po.OrderItemPO{}, &po.TransactionPO{},
		&po.NetsTransactionPO{}, &po.RefundRequestPO{}, &po.OutboxEventPO{},
	))

	retryCfg := retry.DefaultConfig
	retryCfg.InitialDelay = time.Millisecond
	retryCfg.MaxDelay = 2 * time.Millisecond

	h := &harness{
		t:      t,
		db:     db,
		paypal: &mockGateway{method: payment.MethodPayPal},
		nets:   &mockGateway{method: payment.MethodNetsQR},
		paynow: &mockGateway{method: payment.MethodPayNow},
		ledger: mysql.NewOrderLedger(db),
		txns:   mysql.NewTransactionLedger(db),
		reqs:   mysql.NewRefundRequestRepository(db),
	}
	h.carts = cartapp.NewService(mysql.NewCartStore(db, cart.MaxPerUser), nil, mysql.NewMemberDirectory(db))
	h.svc = NewService(Dependencies{
		Carts:        h.carts,
		Orders:       h.ledger,
		Transactions: h.txns,
		Nets:         mysql.NewNetsRepository(db),
		Requests:     h.reqs,
		Products:     mysql.NewProductRepository(db),
		UoWFactory:   mysql.NewUnitOfWorkFactory(db, retryCfg),
		Gateways:     Gateways{PayPal: h.paypal, Nets: h.nets, PayNow: h.paynow},
	}, cfg)
	return h
}

func defaultConfig() Config {
	return Config{Currency: "SGD", Tolerance: dec("0.01"), RestockByDefault: true}
}

func (h *harness) user(name string, member bool) int64 {
	u := &po.UserPO{Name: name, IsMember: member}
	require.NoError(h.t, h.db.Create(u).Error)
	return u.ID
}

func (h *harness) product(name, price string, stock int) int64 {
	p := &po.ProductPO{Name: name, Price: dec(price), Quantity: stock}
	require.NoError(h.t, h.db.Create(p).Error)
	return p.ID
}

func (h *harness) stock(productID int64) int {
	var p po.ProductPO
	require.NoError(h.t, h.db.First(&p, productID).Error)
	return p.Quantity
}

func (h *harness) count(model any) int64 {
	var n int64
	require.NoError(h.t, h.db.Model(model).Count(&n).Error)
	return n
}

func (h *harness) addToCart(userID, productID int64, qty int) {
	_, err := h.carts.Add(context.Background(), cart.Owner{UserID: userID}, productID, qty)
	require.NoError(h.t, err)
}

// paidOrder 直接写入一张已付款订单；captureAmount 为空时不写交易记录
func (h *harness) paidOrder(userID int64, method payment.Method, discount string, captureAmount string, lines ...order.ItemRequest) *order.Order {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(order.LineTotalOf(l.Quantity, l.UnitPrice))
	}
	d := dec(discount)
	o, err := order.NewOrder(userID, lines, shared.Totals{Subtotal: subtotal, Discount: d, Total: subtotal.Sub(d)}, string(method))
	require.NoError(h.t, err)
	id, err := h.ledger.Create(context.Background(), o)
	require.NoError(h.t, err)

	if captureAmount != "" {
		require.NoError(h.t, h.txns.Create(context.Background(), &payment.Transaction{
			OrderID:   id,
			PayerID:   "PAYER-1",
			Amount:    dec(captureAmount),
			Currency:  "SGD",
			Status:    payment.StatusCompleted,
			CaptureID: "CAP-1",
			Time:      time.Now(),
		}))
	}
	loaded, err := h.ledger.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return loaded
}

func boolPtr(b bool) *bool { return &b }
