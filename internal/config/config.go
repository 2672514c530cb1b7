package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration. Plan price keys are lower-case (viper folds map keys).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Kaspi    KaspiConfig    `mapstructure:"kaspi"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

const (
	ModeDebug   = "debug"
	ModeRelease = "release"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	FrontendURL     string        `mapstructure:"frontend_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	WebhookRPS      float64       `mapstructure:"webhook_rps"`
	WebhookBurst    int           `mapstructure:"webhook_burst"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentEvents      string `mapstructure:"payment_events"`
	SubscriptionEvents string `mapstructure:"subscription_events"`
}

type KaspiConfig struct {
	BaseURL                 string        `mapstructure:"base_url"`
	MerchantID              string        `mapstructure:"merchant_id"`
	APIKey                  string        `mapstructure:"api_key"`
	WebhookSecret           string        `mapstructure:"webhook_secret"`
	RequireWebhookSignature bool          `mapstructure:"require_webhook_signature"`
	Timeout                 time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	DevMode   bool   `mapstructure:"dev_mode"`
}

type BillingConfig struct {
	CurrencyLabel    string           `mapstructure:"currency_label"`
	GatewayCurrency  string           `mapstructure:"gateway_currency"`
	SubscriptionDays int              `mapstructure:"subscription_days"`
	ReminderDays     int              `mapstructure:"reminder_days"`
	Prices           map[string]int64 `mapstructure:"prices"`
}

type JobsConfig struct {
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	ExpiryInterval    time.Duration `mapstructure:"expiry_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileAfter    time.Duration `mapstructure:"reconcile_after"`
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	MaxRetryCount     int           `mapstructure:"max_retry_count"`
	BatchSize         int           `mapstructure:"batch_size"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// Load reads configPath (if it exists), then .env, then the environment.
// KASPI_API_KEY overrides kaspi.api_key and so on.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// no default on purpose: IsSet must reflect only the file or the environment
	_ = v.BindEnv("kaspi.require_webhook_signature")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// require_webhook_signature defaults to on in release mode unless set explicitly.
	if !v.IsSet("kaspi.require_webhook_signature") && cfg.Server.Mode == ModeRelease {
		cfg.Kaspi.RequireWebhookSignature = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", ModeDebug)
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.webhook_rps", 20.0)
	v.SetDefault("server.webhook_burst", 40)

	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "crmbilling")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic.payment_events", "billing.payment-events")
	v.SetDefault("kafka.topic.subscription_events", "billing.subscription-events")

	v.SetDefault("kaspi.base_url", "https://kaspi.kz/api/v1")
	v.SetDefault("kaspi.merchant_id", "")
	v.SetDefault("kaspi.api_key", "")
	v.SetDefault("kaspi.webhook_secret", "")
	v.SetDefault("kaspi.timeout", 15*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.dev_mode", false)

	v.SetDefault("billing.currency_label", "₸")
	v.SetDefault("billing.gateway_currency", "KZT")
	v.SetDefault("billing.subscription_days", 30)
	v.SetDefault("billing.reminder_days", 3)
	v.SetDefault("billing.prices", map[string]int64{"pro": 9900, "business": 24900})

	v.SetDefault("jobs.sweep_interval", time.Duration(0))
	v.SetDefault("jobs.expiry_interval", time.Duration(0))
	v.SetDefault("jobs.reconcile_interval", time.Duration(0))
	v.SetDefault("jobs.reconcile_after", 15*time.Minute)
	v.SetDefault("jobs.outbox_interval", time.Second)
	v.SetDefault("jobs.max_retry_count", 5)
	v.SetDefault("jobs.batch_size", 100)

	v.SetDefault("admin.token", "")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Billing.SubscriptionDays <= 0 {
		return errors.New("billing.subscription_days must be positive")
	}
	if c.Billing.ReminderDays < 0 {
		return errors.New("billing.reminder_days must not be negative")
	}
	if len(c.Billing.Prices) == 0 {
		return errors.New("billing.prices must not be empty")
	}
	for plan, price := range c.Billing.Prices {
		if price <= 0 {
			return fmt.Errorf("billing.prices.%s must be positive", plan)
		}
	}
	if c.Jobs.BatchSize <= 0 {
		return errors.New("jobs.batch_size must be positive")
	}
	return nil
}

func (c *Config) IsRelease() bool {
	return c.Server.Mode == ModeRelease
}
