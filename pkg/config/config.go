package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	Outbox       OutboxConfig
}

var validate = validator.New()

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	cfg.Billing.Currency = strings.ToLower(strings.TrimSpace(cfg.Billing.Currency))
	cfg.Billing.Schedule = strings.TrimSpace(cfg.Billing.Schedule)
	if err := validate.Struct(cfg.Billing); err != nil {
		return nil, fmt.Errorf("invalid billing config: %w", err)
	}
	if cfg.App.IsProd() && cfg.Stripe.Environment() != "live" {
		return nil, fmt.Errorf("app env %q bills real customers and requires the live stripe environment", cfg.App.Env)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GOLDVAULT_APP_ENV" required:"true"`
	Port         string `envconfig:"GOLDVAULT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GOLDVAULT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GOLDVAULT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GOLDVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GOLDVAULT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GOLDVAULT_DB_DSN"`
	Driver string `envconfig:"GOLDVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GOLDVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"GOLDVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GOLDVAULT_DB_USER"`
	LegacyPassword string `envconfig:"GOLDVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"GOLDVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"GOLDVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GOLDVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GOLDVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GOLDVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GOLDVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"GOLDVAULT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GOLDVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GOLDVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"GOLDVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"GOLDVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GOLDVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GOLDVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GOLDVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GOLDVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GOLDVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GOLDVAULT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"GOLDVAULT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"GOLDVAULT_PUBSUB_BILLING_TOPIC" default:"gv-billing-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GOLDVAULT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GOLDVAULT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GOLDVAULT_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention time.Duration `envconfig:"GOLDVAULT_OUTBOX_RETENTION" default:"720h"`
}

type StripeConfig struct {
	APIKey string `envconfig:"GOLDVAULT_STRIPE_API_KEY" required:"true"`
	Env    string `envconfig:"GOLDVAULT_STRIPE_ENV" default:"test"`

	MaxNetworkRetries int           `envconfig:"GOLDVAULT_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
	HTTPTimeout       time.Duration `envconfig:"GOLDVAULT_STRIPE_HTTP_TIMEOUT" default:"80s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// BillingConfig drives the monthly storage billing run.
type BillingConfig struct {
	GracePeriodDays    int           `envconfig:"GOLDVAULT_GRACE_PERIOD_DAYS" default:"14" validate:"gte=0"`
	Currency           string        `envconfig:"GOLDVAULT_BILLING_CURRENCY" default:"gbp" validate:"required,len=3,lowercase"`
	Workers            int           `envconfig:"GOLDVAULT_BILLING_WORKERS" default:"1" validate:"gte=1,lte=64"`
	GatewayCallTimeout time.Duration `envconfig:"GOLDVAULT_BILLING_GATEWAY_TIMEOUT" default:"30s" validate:"gt=0"`
	TriggerSecret      string        `envconfig:"GOLDVAULT_BILLING_TRIGGER_SECRET"`
	Schedule           string        `envconfig:"GOLDVAULT_BILLING_SCHEDULE" default:"0 3 1 * *" validate:"required"`
	LockTTL            time.Duration `envconfig:"GOLDVAULT_BILLING_LOCK_TTL" default:"6h" validate:"gt=0"`
}

// GracePeriod converts the configured day count into a duration.
func (b BillingConfig) GracePeriod() time.Duration {
	if b.GracePeriodDays <= 0 {
		return 0
	}
	return time.Duration(b.GracePeriodDays) * 24 * time.Hour
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
