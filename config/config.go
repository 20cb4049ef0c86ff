package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"storefront/domain/cart"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config Application Configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cart     CartConfig     `mapstructure:"cart"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	PayPal   PayPalConfig   `mapstructure:"paypal"`
	NETS     NETSConfig     `mapstructure:"nets"`
	PayNow   PayNowConfig   `mapstructure:"paynow"`
	Refund   RefundConfig   `mapstructure:"refund"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

// AppConfig Application Configuration
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// ServerConfig Server Configuration
type ServerConfig struct {
	Port            string          `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig Rate Limiting Configuration
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`  // Requests per second
	Burst   int     `mapstructure:"burst"` // Burst capacity
	// IdleTTL 超过该时长未出现的客户端令牌桶会被回收
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// DatabaseConfig Database Configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`    // silent, error, warn, info
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"` // run versioned migrations on boot
	Retry           RetryConfig   `mapstructure:"retry"`
}

// RetryConfig Retry configuration for transient transaction failures
type RetryConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	InitialDelay       time.Duration `mapstructure:"initial_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	BackoffFactor      float64       `mapstructure:"backoff_factor"`
	JitterEnabled      bool          `mapstructure:"jitter_enabled"`
	RetryOnDeadlock    bool          `mapstructure:"retry_on_deadlock"`
	RetryOnLockTimeout bool          `mapstructure:"retry_on_lock_timeout"`
}

// LogConfig Log Configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`  // debug, info, warn, error
	Format   string `mapstructure:"format"` // json, console
	Output   string `mapstructure:"output"` // stdout, file
	FilePath string `mapstructure:"file_path"`

	// 滚动文件参数，仅 output=file 时生效
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// CORSConfig CORS Configuration
type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// WorkerConfig Outbox worker configuration
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// RedisConfig backs the anonymous session cart.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CartConfig Cart rules
type CartConfig struct {
	MaxPerUser int           `mapstructure:"max_per_user"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// PaymentConfig settings shared by every payment rail
type PaymentConfig struct {
	Currency        string `mapstructure:"currency"`
	AmountTolerance string `mapstructure:"amount_tolerance"` // decimal string, e.g. "0.01"
}

// PayPalConfig PayPal REST credentials
type PayPalConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// NETSConfig NETS QR sandbox credentials
type NETSConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	ProjectID        string        `mapstructure:"project_id"`
	TxnID            string        `mapstructure:"txn_id"`
	Timeout          time.Duration `mapstructure:"timeout"`
	VerifyOnComplete bool          `mapstructure:"verify_on_complete"`
}

// PayNowConfig merchant identity embedded in static PayNow QR codes
type PayNowConfig struct {
	ProxyType    string `mapstructure:"proxy_type"` // 0 = mobile, 2 = UEN
	ProxyValue   string `mapstructure:"proxy_value"`
	MerchantName string `mapstructure:"merchant_name"`
	MerchantCity string `mapstructure:"merchant_city"`
	QRSize       int    `mapstructure:"qr_size"`
}

// RefundConfig Refund policy
type RefundConfig struct {
	RestockByDefault bool `mapstructure:"restock_by_default"`
}

// GatewayConfig Outbound gateway protection
type GatewayConfig struct {
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig Circuit breaker settings
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// OutboxConfig selects where outbox events are delivered
type OutboxConfig struct {
	Publisher string      `mapstructure:"publisher"` // log, kafka, amqp
	Kafka     KafkaConfig `mapstructure:"kafka"`
	AMQP      AMQPConfig  `mapstructure:"amqp"`
}

// KafkaConfig Kafka publisher settings
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AMQPConfig RabbitMQ publisher settings
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// AdminConfig Back-office access
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// IsDevelopment Whether it's development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction Whether it's production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Load 读取顺序：默认值 < 配置文件 < STOREFRONT_ 前缀的环境变量，最后做一致性校验
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 例如 STOREFRONT_PAYPAL_CLIENT_SECRET 覆盖 paypal.client_secret
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate 返回所有问题而不是第一个
func (c *Config) Validate() error {
	var errs []error
	if len(c.Payment.Currency) != 3 || strings.ToUpper(c.Payment.Currency) != c.Payment.Currency {
		errs = append(errs, fmt.Errorf("payment.currency %q is not an ISO 4217 code", c.Payment.Currency))
	}
	if c.Payment.AmountTolerance != "" {
		if tol, err := decimal.NewFromString(c.Payment.AmountTolerance); err != nil || tol.IsNegative() {
			errs = append(errs, fmt.Errorf("payment.amount_tolerance %q must be a non-negative decimal", c.Payment.AmountTolerance))
		}
	}
	// 只能调低，不能超过单品购买上限
	if c.Cart.MaxPerUser < 0 || c.Cart.MaxPerUser > cart.MaxPerUser {
		errs = append(errs, fmt.Errorf("cart.max_per_user %d must be between 0 and %d", c.Cart.MaxPerUser, cart.MaxPerUser))
	}
	if (c.PayPal.ClientID == "") != (c.PayPal.ClientSecret == "") {
		errs = append(errs, errors.New("paypal.client_id and paypal.client_secret must be set together"))
	}
	if !slices.Contains([]string{"0", "2"}, c.PayNow.ProxyType) {
		errs = append(errs, fmt.Errorf("paynow.proxy_type %q must be 0 (mobile) or 2 (UEN)", c.PayNow.ProxyType))
	}
	switch c.Outbox.Publisher {
	case "log":
	case "kafka":
		if len(c.Outbox.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("outbox.kafka.brokers is required for the kafka publisher"))
		}
	case "amqp":
		if c.Outbox.AMQP.URL == "" {
			errs = append(errs, errors.New("outbox.amqp.url is required for the amqp publisher"))
		}
	default:
		errs = append(errs, fmt.Errorf("outbox.publisher %q must be log, kafka or amqp", c.Outbox.Publisher))
	}
	if c.IsProduction() && c.Admin.APIKey != "" && len(c.Admin.APIKey) < 16 {
		errs = append(errs, errors.New("admin.api_key must be at least 16 characters in production"))
	}
	return errors.Join(errs...)
}

// setDefaults Set default configuration
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	// Server
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.rate", 100)
	v.SetDefault("server.rate_limit.burst", 200)
	v.SetDefault("server.rate_limit.idle_ttl", "10m")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "storefront")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("database.retry.enabled", true)
	v.SetDefault("database.retry.max_attempts", 3)
	v.SetDefault("database.retry.initial_delay", "100ms")
	v.SetDefault("database.retry.max_delay", "2s")
	v.SetDefault("database.retry.backoff_factor", 2.0)
	v.SetDefault("database.retry.jitter_enabled", true)
	v.SetDefault("database.retry.retry_on_deadlock", true)
	v.SetDefault("database.retry.retry_on_lock_timeout", true)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/storefront.log")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	// CORS
	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allow_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allow_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User-ID", "X-Session-ID", "X-Admin-Key"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	// Worker
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.poll_interval", "2s")
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.max_retries", 5)

	// Redis
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")

	// Cart
	v.SetDefault("cart.max_per_user", cart.MaxPerUser)
	v.SetDefault("cart.session_ttl", "72h")

	// Payment
	v.SetDefault("payment.currency", "SGD")
	v.SetDefault("payment.amount_tolerance", "0.01")

	v.SetDefault("paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("paypal.timeout", "15s")
	v.SetDefault("paypal.client_id", "")
	v.SetDefault("paypal.client_secret", "")

	v.SetDefault("nets.base_url", "https://sandbox.nets.openapipaas.com")
	v.SetDefault("nets.timeout", "15s")
	v.SetDefault("nets.verify_on_complete", false)
	v.SetDefault("nets.api_key", "")
	v.SetDefault("nets.project_id", "")
	v.SetDefault("nets.txn_id", "")

	v.SetDefault("paynow.proxy_type", "0")
	v.SetDefault("paynow.merchant_name", "MALAMART")
	v.SetDefault("paynow.merchant_city", "SINGAPORE")
	v.SetDefault("paynow.qr_size", 256)
	v.SetDefault("paynow.proxy_value", "")

	v.SetDefault("refund.restock_by_default", true)

	v.SetDefault("gateway.breaker.max_requests", 1)
	v.SetDefault("gateway.breaker.interval", "60s")
	v.SetDefault("gateway.breaker.timeout", "30s")
	v.SetDefault("gateway.breaker.failure_threshold", 5)

	// Outbox
	v.SetDefault("outbox.publisher", "log")
	v.SetDefault("outbox.kafka.topic", "storefront-orders")
	v.SetDefault("outbox.amqp.exchange", "storefront.events")
	v.SetDefault("outbox.amqp.url", "")
	v.SetDefault("outbox.kafka.brokers", []string{})

	// 后台密钥只从环境变量或配置文件注入
	v.SetDefault("admin.api_key", "")
}
