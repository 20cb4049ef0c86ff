package cmd

import (
	"context"
	"fmt"
	"net/http"

	"storefront/api"
	apiadmin "storefront/api/admin"
	apicart "storefront/api/cart"
	apicheckout "storefront/api/checkout"
	"storefront/api/health"
	apiorders "storefront/api/orders"
	cartapp "storefront/application/cart"
	"storefront/application/settlement"
	"storefront/config"
	"storefront/domain/cart"
	"storefront/domain/payment"
	"storefront/infrastructure/gateway/nets"
	"storefront/infrastructure/gateway/paynow"
	"storefront/infrastructure/gateway/paypal"
	"storefront/infrastructure/persistence/migrations"
	"storefront/infrastructure/persistence/mysql"
	"storefront/infrastructure/persistence/retry"
	"storefront/infrastructure/session"
	"storefront/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppBuilder builds an App with customizable components
type AppBuilder struct {
	cfg         *config.Config
	controllers []api.ControllerRegister
	db          *gorm.DB
	redis       *redis.Client
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// WithController adds an extra controller to the app
func (b *AppBuilder) WithController(c api.ControllerRegister) *AppBuilder {
	b.controllers = append(b.controllers, c)
	return b
}

// WithDB uses an existing connection instead of dialing MySQL
func (b *AppBuilder) WithDB(db *gorm.DB) *AppBuilder {
	b.db = db
	return b
}

// WithRedis uses an existing client for the session cart
func (b *AppBuilder) WithRedis(client *redis.Client) *AppBuilder {
	b.redis = client
	return b
}

// Build creates the App instance. The logger must already be initialised.
func (b *AppBuilder) Build() (*App, error) {
	logger.Info("Starting application",
		zap.String("app", b.cfg.App.Name),
		zap.String("version", b.cfg.App.Version),
		zap.String("env", b.cfg.App.Env))

	db, err := b.database()
	if err != nil {
		return nil, err
	}
	rdb := b.redisClient()

	carts := b.cartService(db, rdb)
	checkout, err := b.settlementService(db, carts)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	deps := []health.Dependency{{Name: "database", Pinger: sqlDB, Critical: true}}
	if rdb != nil {
		deps = append(deps, health.Dependency{
			Name:   "redis",
			Pinger: health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		})
	}

	controllers := append([]api.ControllerRegister{
		health.NewController(b.cfg, deps...),
		apicart.NewController(carts),
		apicheckout.NewController(checkout, nets.ParseNotification),
		apiorders.NewController(checkout),
		apiadmin.NewController(checkout),
	}, b.controllers...)

	router := api.NewRouter(b.cfg, controllers...)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + b.cfg.Server.Port,
		Handler:      router.GetEngine(),
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	return &App{
		config: b.cfg,
		router: router,
		server: server,
		db:     db,
		redis:  rdb,
	}, nil
}

func (b *AppBuilder) database() (*gorm.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	logger.Info("Using MySQL/GORM persistence layer")

	db, err := mysql.FromAppConfig(b.cfg.Database).Connect(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if b.cfg.Database.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		if err := migrations.Up(sqlDB); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// redisClient 未配置地址时返回 nil，匿名访客没有购物车
func (b *AppBuilder) redisClient() *redis.Client {
	if b.redis != nil {
		return b.redis
	}
	if b.cfg.Redis.Addr == "" {
		logger.Warn("Redis not configured; anonymous session carts are disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     b.cfg.Redis.Addr,
		Password: b.cfg.Redis.Password,
		DB:       b.cfg.Redis.DB,
	})
}

func (b *AppBuilder) cartService(db *gorm.DB, rdb *redis.Client) *cartapp.Service {
	maxPerUser := b.cfg.Cart.MaxPerUser
	if maxPerUser <= 0 {
		maxPerUser = cart.MaxPerUser
	}

	var sessions cart.Store
	if rdb != nil {
		sessions = session.NewCartStore(rdb, mysql.NewProductRepository(db), maxPerUser, b.cfg.Cart.SessionTTL)
	}
	return cartapp.NewService(mysql.NewCartStore(db, maxPerUser), sessions, mysql.NewMemberDirectory(db))
}

func (b *AppBuilder) settlementService(db *gorm.DB, carts *cartapp.Service) (*settlement.Service, error) {
	cfg := settlement.Config{
		Currency:         b.cfg.Payment.Currency,
		RestockByDefault: b.cfg.Refund.RestockByDefault,
		VerifyNets:       b.cfg.NETS.VerifyOnComplete,
	}
	if b.cfg.Payment.AmountTolerance != "" {
		tolerance, err := decimal.NewFromString(b.cfg.Payment.AmountTolerance)
		if err != nil {
			return nil, fmt.Errorf("invalid payment.amount_tolerance %q: %w", b.cfg.Payment.AmountTolerance, err)
		}
		cfg.Tolerance = tolerance
	}

	return settlement.NewService(settlement.Dependencies{
		Carts:        carts,
		Orders:       mysql.NewOrderLedger(db),
		Transactions: mysql.NewTransactionLedger(db),
		Nets:         mysql.NewNetsRepository(db),
		Requests:     mysql.NewRefundRequestRepository(db),
		Products:     mysql.NewProductRepository(db),
		UoWFactory:   mysql.NewUnitOfWorkFactory(db, retry.FromAppConfig(b.cfg.Database.Retry)),
		Gateways:     b.gateways(),
	}, cfg), nil
}

// gateways 缺少凭据的支付方式不启用，调用时返回 ErrUnsupported
func (b *AppBuilder) gateways() settlement.Gateways {
	var gw settlement.Gateways
	breaker := b.cfg.Gateway.Breaker

	if b.cfg.PayPal.ClientID != "" && b.cfg.PayPal.ClientSecret != "" {
		gw.PayPal = paypal.New(b.cfg.PayPal, b.cfg.Payment.Currency, breaker)
		logger.Info("Payment gateway enabled",
			zap.String("method", string(payment.MethodPayPal)),
			zap.String("client_id", logger.Mask(b.cfg.PayPal.ClientID)))
	}
	if b.cfg.NETS.APIKey != "" && b.cfg.NETS.ProjectID != "" {
		gw.Nets = nets.New(b.cfg.NETS, breaker)
		logger.Info("Payment gateway enabled",
			zap.String("method", string(payment.MethodNetsQR)),
			zap.String("project_id", logger.Mask(b.cfg.NETS.ProjectID)))
	}
	if b.cfg.PayNow.ProxyValue != "" {
		gw.PayNow = paynow.New(b.cfg.PayNow)
		logger.Info("Payment gateway enabled",
			zap.String("method", string(payment.MethodPayNow)),
			zap.String("proxy", logger.Mask(b.cfg.PayNow.ProxyValue)))
	}

	if gw.PayPal == nil && gw.Nets == nil && gw.PayNow == nil {
		logger.Warn("No payment gateway configured; checkout will reject every payment method")
	}
	return gw
}
