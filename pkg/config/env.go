package config

const EnvPrefix = "BILLING"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StripeEnvTest = "test"
	StripeEnvLive = "live"
)

const (
	EnvAppEnv   = "BILLING_APP_ENV"
	EnvPort     = "BILLING_APP_PORT"
	EnvLogLevel = "BILLING_LOG_LEVEL"

	EnvDBDSN  = "BILLING_DB_DSN"
	EnvDBHost = "BILLING_DB_HOST"
	EnvDBUser = "BILLING_DB_USER"
	EnvDBName = "BILLING_DB_NAME"

	EnvRedisURL = "BILLING_REDIS_URL"

	EnvStripeAPIKey = "BILLING_STRIPE_API_KEY"
	EnvStripeSecret = "BILLING_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv    = "BILLING_STRIPE_ENV"

	EnvWebhookCacheRetention = "BILLING_WEBHOOK_CACHE_RETENTION"
	EnvWebhookRetrieveTries  = "BILLING_WEBHOOK_RETRIEVE_ATTEMPTS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
