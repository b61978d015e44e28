package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GoogleMaps    GoogleMapsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Files         FilesConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Square        SquareConfig
	Sendgrid      SendgridConfig
	Twilio        TwilioConfig
	Outbox        OutboxConfig
	Pricing       PricingConfig
	Shipping      ShippingConfig
	Cron          CronConfig
	Simulation    SimulationConfig
	Business      BusinessConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Shipping.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CABINETRY_APP_ENV" required:"true"`
	Port         string `envconfig:"CABINETRY_APP_PORT" required:"true"`
	PublicURL    string `envconfig:"CABINETRY_PUBLIC_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"CABINETRY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CABINETRY_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"CABINETRY_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the configured CORS origins list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"CABINETRY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CABINETRY_DB_DSN"`
	Driver string `envconfig:"CABINETRY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CABINETRY_DB_HOST"`
	Port     int    `envconfig:"CABINETRY_DB_PORT" default:"5432"`
	User     string `envconfig:"CABINETRY_DB_USER"`
	Password string `envconfig:"CABINETRY_DB_PASSWORD"`
	Name     string `envconfig:"CABINETRY_DB_NAME"`
	SSLMode  string `envconfig:"CABINETRY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CABINETRY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CABINETRY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CABINETRY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CABINETRY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CABINETRY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CABINETRY_REDIS_ADDR"`
	Password     string        `envconfig:"CABINETRY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CABINETRY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CABINETRY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CABINETRY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CABINETRY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CABINETRY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CABINETRY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CABINETRY_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CABINETRY_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CABINETRY_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CABINETRY_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CABINETRY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CABINETRY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CABINETRY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CABINETRY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CABINETRY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CABINETRY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CABINETRY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CABINETRY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CABINETRY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CABINETRY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CABINETRY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	APIWindow          time.Duration `envconfig:"CABINETRY_API_RATE_LIMIT_WINDOW" default:"1m"`
	APIRequestLimit    int           `envconfig:"CABINETRY_API_RATE_LIMIT_REQUESTS" default:"240"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"CABINETRY_AUTO_MIGRATE" default:"false"`
	SMSEnabled    bool `envconfig:"CABINETRY_FEATURE_SMS" default:"false"`
	CatalogCache  bool `envconfig:"CABINETRY_FEATURE_CATALOG_CACHE" default:"true"`
	GuestPricing  bool `envconfig:"CABINETRY_FEATURE_GUEST_PRICING" default:"true"`
	AnalyticsSink bool `envconfig:"CABINETRY_FEATURE_ANALYTICS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CABINETRY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GoogleMapsConfig struct {
	APIKey  string `envconfig:"CABINETRY_GOOGLE_MAPS_API_KEY"`
	Country string `envconfig:"CABINETRY_GOOGLE_MAPS_COUNTRY" default:"AU"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CABINETRY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CABINETRY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CABINETRY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"CABINETRY_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"CABINETRY_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type FilesConfig struct {
	MaxUploadMB      int           `envconfig:"CABINETRY_MAX_UPLOAD_MB" default:"25"`
	AllowedTypes     string        `envconfig:"CABINETRY_FILES_ALLOWED_TYPES" default:"image/jpeg,image/png,image/webp,application/pdf,application/octet-stream"`
	PendingRetention time.Duration `envconfig:"CABINETRY_FILES_PENDING_RETENTION" default:"24h"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (f FilesConfig) MaxUploadBytes() int64 {
	if f.MaxUploadMB <= 0 {
		return 25 << 20
	}
	return int64(f.MaxUploadMB) << 20
}

// AllowedContentTypes splits the configured allowlist.
func (f FilesConfig) AllowedContentTypes() []string {
	types := []string{}
	for _, value := range strings.Split(f.AllowedTypes, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
			types = append(types, trimmed)
		}
	}
	return types
}

type PubSubConfig struct {
	DomainTopic               string `envconfig:"CABINETRY_PUBSUB_DOMAIN_TOPIC" required:"true"`
	NotificationsSubscription string `envconfig:"CABINETRY_PUBSUB_NOTIFICATIONS_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription     string `envconfig:"CABINETRY_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"CABINETRY_BIGQUERY_DATASET" default:"cabinetry"`
	CommerceEventsTable string `envconfig:"CABINETRY_BIGQUERY_COMMERCE_TABLE" default:"commerce_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CABINETRY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CABINETRY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CABINETRY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CABINETRY_OUTBOX_RETENTION_DAYS" default:"30"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"CABINETRY_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"CABINETRY_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"CABINETRY_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"CABINETRY_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"CABINETRY_SENDGRID_FROM_EMAIL" default:"orders@northcraftcabinetry.com.au"`
	FromName    string `envconfig:"CABINETRY_SENDGRID_FROM_NAME" default:"Northcraft Cabinetry"`
	SalesInbox  string `envconfig:"CABINETRY_SALES_INBOX" default:"sales@northcraftcabinetry.com.au"`
}

type TwilioConfig struct {
	AccountSID string `envconfig:"CABINETRY_TWILIO_ACCOUNT_SID"`
	AuthToken  string `envconfig:"CABINETRY_TWILIO_AUTH_TOKEN"`
	FromNumber string `envconfig:"CABINETRY_TWILIO_FROM_NUMBER"`
}

type PricingConfig struct {
	Currency          string `envconfig:"CABINETRY_CURRENCY" default:"AUD"`
	GSTPercent        string `envconfig:"CABINETRY_GST_PERCENT" default:"10"`
	DepositPercent    string `envconfig:"CABINETRY_DEPOSIT_PERCENT" default:"50"`
	ProgressPercent   string `envconfig:"CABINETRY_PROGRESS_PERCENT" default:"40"`
	PaymentTermsDays  int    `envconfig:"CABINETRY_PAYMENT_TERMS_DAYS" default:"7"`
	QuoteValidityDays int    `envconfig:"CABINETRY_QUOTE_VALIDITY_DAYS" default:"30"`
}

// GST returns the configured GST rate as a percentage.
func (p PricingConfig) GST() decimal.Decimal {
	return mustPercent(p.GSTPercent)
}

// Deposit returns the deposit milestone percentage.
func (p PricingConfig) Deposit() decimal.Decimal {
	return mustPercent(p.DepositPercent)
}

// Progress returns the progress milestone percentage.
func (p PricingConfig) Progress() decimal.Decimal {
	return mustPercent(p.ProgressPercent)
}

func (p PricingConfig) validate() error {
	hundred := decimal.NewFromInt(100)
	for name, raw := range map[string]string{
		EnvGSTPercent:      p.GSTPercent,
		EnvDepositPercent:  p.DepositPercent,
		EnvProgressPercent: p.ProgressPercent,
	} {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s must be numeric: %w", name, err)
		}
		if value.IsNegative() || value.GreaterThan(hundred) {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	if !p.Deposit().IsPositive() {
		return fmt.Errorf("%s must be greater than zero", EnvDepositPercent)
	}
	if p.Deposit().Add(p.Progress()).GreaterThan(hundred) {
		return fmt.Errorf("%s + %s must not exceed 100", EnvDepositPercent, EnvProgressPercent)
	}
	return nil
}

func mustPercent(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

type ShippingConfig struct {
	PostcodePattern     string `envconfig:"CABINETRY_POSTCODE_PATTERN" default:"^[0-9]{4}$"`
	DefaultLeadTimeDays int    `envconfig:"CABINETRY_DEFAULT_LEAD_TIME_DAYS" default:"28"`
	DefaultCountry      string `envconfig:"CABINETRY_DEFAULT_COUNTRY" default:"AU"`
}

// PostcodeRegexp compiles the configured postcode pattern.
func (s ShippingConfig) PostcodeRegexp() *regexp.Regexp {
	re, err := regexp.Compile(s.PostcodePattern)
	if err != nil {
		return regexp.MustCompile(DefaultPostcodePattern)
	}
	return re
}

func (s ShippingConfig) validate() error {
	if _, err := regexp.Compile(s.PostcodePattern); err != nil {
		return fmt.Errorf("%s is not a valid pattern: %w", EnvPostcodePattern, err)
	}
	return nil
}

type CronConfig struct {
	QuoteExpirySchedule     string `envconfig:"CABINETRY_CRON_QUOTE_EXPIRY" default:"0 * * * *"`
	PaymentOverdueSchedule  string `envconfig:"CABINETRY_CRON_PAYMENT_OVERDUE" default:"15 * * * *"`
	CartAbandonSchedule     string `envconfig:"CABINETRY_CRON_CART_ABANDON" default:"30 2 * * *"`
	FileCleanupSchedule     string `envconfig:"CABINETRY_CRON_FILE_CLEANUP" default:"45 2 * * *"`
	OutboxRetentionSchedule string `envconfig:"CABINETRY_CRON_OUTBOX_RETENTION" default:"0 3 * * *"`
	CartAbandonAfterDays    int    `envconfig:"CABINETRY_CART_ABANDON_AFTER_DAYS" default:"30"`
}

// BusinessConfig identifies the trading entity printed on quotes and invoices.
type BusinessConfig struct {
	Name     string `envconfig:"CABINETRY_BUSINESS_NAME" default:"Northcraft Cabinetry"`
	ABN      string `envconfig:"CABINETRY_BUSINESS_ABN"`
	Email    string `envconfig:"CABINETRY_BUSINESS_EMAIL" default:"orders@northcraftcabinetry.com.au"`
	Phone    string `envconfig:"CABINETRY_BUSINESS_PHONE"`
	Address  string `envconfig:"CABINETRY_BUSINESS_ADDRESS"`
	Timezone string `envconfig:"CABINETRY_BUSINESS_TIMEZONE" default:"Australia/Sydney"`
}

// Location resolves the business time zone used to bucket reports by day.
func (b BusinessConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

type SimulationConfig struct {
	Carts         int           `envconfig:"CABINETRY_SIM_CARTS" default:"10"`
	ItemsPerCart  int           `envconfig:"CABINETRY_SIM_ITEMS_PER_CART" default:"5"`
	MaxP95Latency time.Duration `envconfig:"CABINETRY_SIM_MAX_P95" default:"500ms"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
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
