package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Webhook      WebhookConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Stripe.validate(); err != nil {
		return nil, err
	}
	cfg.applyPlatformOverrides()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BILLING_APP_ENV" required:"true"`
	Port         string `envconfig:"BILLING_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BILLING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BILLING_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BILLING_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind       string `envconfig:"BILLING_SERVICE_KIND" default:"api"`
	InstanceID string `envconfig:"BILLING_INSTANCE_ID"`
	// MetricsAddr is where the worker binaries expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"BILLING_METRICS_ADDR"`
}

type DBConfig struct {
	DSN string `envconfig:"BILLING_DB_DSN"`

	Host     string `envconfig:"BILLING_DB_HOST"`
	Port     int    `envconfig:"BILLING_DB_PORT" default:"5432"`
	User     string `envconfig:"BILLING_DB_USER"`
	Password string `envconfig:"BILLING_DB_PASSWORD"`
	Name     string `envconfig:"BILLING_DB_NAME"`
	SSLMode  string `envconfig:"BILLING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BILLING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BILLING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BILLING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BILLING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BILLING_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BILLING_REDIS_URL"`
	Address      string        `envconfig:"BILLING_REDIS_ADDR"`
	Password     string        `envconfig:"BILLING_REDIS_PASSWORD"`
	DB           int           `envconfig:"BILLING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BILLING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BILLING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BILLING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BILLING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BILLING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"BILLING_AUTO_MIGRATE" default:"false"`
	SharedEventCache bool `envconfig:"BILLING_SHARED_EVENT_CACHE" default:"true"`
}

type StripeConfig struct {
	APIKey string `envconfig:"BILLING_STRIPE_API_KEY" required:"true"`
	// Secret may list several comma-separated signing secrets while one is rolled.
	Secret             string        `envconfig:"BILLING_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env                string        `envconfig:"BILLING_STRIPE_ENV" default:"test"`
	SignatureTolerance time.Duration `envconfig:"BILLING_STRIPE_SIGNATURE_TOLERANCE" default:"5m"`
	MaxNetworkRetries  int64         `envconfig:"BILLING_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
	Timeout            time.Duration `envconfig:"BILLING_STRIPE_TIMEOUT" default:"10s"`
}

// SigningSecrets splits Secret on commas, dropping blanks.
func (s StripeConfig) SigningSecrets() []string {
	var secrets []string
	for _, part := range strings.Split(s.Secret, ",") {
		if part = strings.TrimSpace(part); part != "" {
			secrets = append(secrets, part)
		}
	}
	return secrets
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return StripeEnvTest
	}
	return env
}

func (s StripeConfig) validate() error {
	switch s.Environment() {
	case StripeEnvTest, StripeEnvLive:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvStripeEnv, StripeEnvTest, StripeEnvLive)
	}
}

// WebhookConfig tunes the idempotency guard and the reconciler.
type WebhookConfig struct {
	CacheSize        int           `envconfig:"BILLING_WEBHOOK_CACHE_SIZE" default:"10000"`
	CacheRetention   time.Duration `envconfig:"BILLING_WEBHOOK_CACHE_RETENTION" default:"24h"`
	SweepInterval    time.Duration `envconfig:"BILLING_WEBHOOK_SWEEP_INTERVAL" default:"1h"`
	ClaimLease       time.Duration `envconfig:"BILLING_WEBHOOK_CLAIM_LEASE" default:"5m"`
	RetrieveAttempts int           `envconfig:"BILLING_WEBHOOK_RETRIEVE_ATTEMPTS" default:"3"`
	RetrieveBackoff  time.Duration `envconfig:"BILLING_WEBHOOK_RETRIEVE_BACKOFF" default:"1s"`
	MaxBodyBytes     int64         `envconfig:"BILLING_WEBHOOK_MAX_BODY_BYTES" default:"65536"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BILLING_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"BILLING_PUBSUB_NOTIFICATION_TOPIC" default:"billing-notifications"`
	// Batching knobs handed to each topic publisher.
	BatchDelay     time.Duration `envconfig:"BILLING_PUBSUB_BATCH_DELAY" default:"10ms"`
	BatchCount     int           `envconfig:"BILLING_PUBSUB_BATCH_COUNT" default:"100"`
	PublishTimeout time.Duration `envconfig:"BILLING_PUBSUB_PUBLISH_TIMEOUT" default:"30s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BILLING_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BILLING_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BILLING_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BILLING_CRON_INTERVAL" default:"15m"`
	LockKey  string        `envconfig:"BILLING_CRON_LOCK_KEY" default:"cron:billing-worker"`
	LockTTL  time.Duration `envconfig:"BILLING_CRON_LOCK_TTL" default:"10m"`
	// OutboxRetention is how long delivered or dead-lettered outbox rows are kept.
	OutboxRetention time.Duration `envconfig:"BILLING_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
