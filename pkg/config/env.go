package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "GOLDVAULT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "GOLDVAULT_APP_ENV"
	EnvPort     = "GOLDVAULT_APP_PORT"
	EnvDBDSN    = "GOLDVAULT_DB_DSN"
	EnvDBHost   = "GOLDVAULT_DB_HOST"
	EnvDBUser   = "GOLDVAULT_DB_USER"
	EnvDBName   = "GOLDVAULT_DB_NAME"
	EnvRedisURL = "GOLDVAULT_REDIS_URL"

	EnvStripeAPIKey = "GOLDVAULT_STRIPE_API_KEY"
	EnvStripeEnv    = "GOLDVAULT_STRIPE_ENV"

	EnvGracePeriodDays    = "GOLDVAULT_GRACE_PERIOD_DAYS"
	EnvBillingCurrency    = "GOLDVAULT_BILLING_CURRENCY"
	EnvBillingWorkers     = "GOLDVAULT_BILLING_WORKERS"
	EnvBillingTriggerKey  = "GOLDVAULT_BILLING_TRIGGER_SECRET"
	EnvBillingSchedule    = "GOLDVAULT_BILLING_SCHEDULE"
	EnvGatewayCallTimeout = "GOLDVAULT_BILLING_GATEWAY_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
