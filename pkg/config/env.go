package config

const (
	EnvPrefix = "CABINETRY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultPostcodePattern = "^[0-9]{4}$"

	EnvAppEnv = "CABINETRY_APP_ENV"
	EnvPort   = "CABINETRY_APP_PORT"

	EnvDBDSN  = "CABINETRY_DB_DSN"
	EnvDBHost = "CABINETRY_DB_HOST"
	EnvDBUser = "CABINETRY_DB_USER"
	EnvDBName = "CABINETRY_DB_NAME"

	EnvRedisURL = "CABINETRY_REDIS_URL"

	EnvJWTSecret              = "CABINETRY_JWT_SECRET"
	EnvJWTIssuer              = "CABINETRY_JWT_ISSUER"
	EnvJWTExpMins             = "CABINETRY_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "CABINETRY_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "CABINETRY_GCP_PROJECT_ID"
	EnvGCSBucket              = "CABINETRY_GCS_BUCKET_NAME"
	EnvPubSubDomainTopic      = "CABINETRY_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationsSub = "CABINETRY_PUBSUB_NOTIFICATIONS_SUBSCRIPTION"
	EnvPubSubAnalyticsSub     = "CABINETRY_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvGSTPercent             = "CABINETRY_GST_PERCENT"
	EnvDepositPercent         = "CABINETRY_DEPOSIT_PERCENT"
	EnvProgressPercent        = "CABINETRY_PROGRESS_PERCENT"
	EnvPostcodePattern        = "CABINETRY_POSTCODE_PATTERN"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
