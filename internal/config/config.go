package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration for the checkout service.
type Config struct {
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
	Checkout    CheckoutConfig
	MercadoPago MercadoPagoConfig
	Mail        MailConfig
	Secrets     SecretsConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
	// MaxWebhookBody bounds webhook request bodies in bytes.
	MaxWebhookBody int64
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	// PublishTimeout bounds each event write made inside a webhook request.
	PublishTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	OTelInsecure  bool
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

type CheckoutConfig struct {
	OrderTokenSecret string
	// AppURL is the storefront origin embedded in order detail links.
	AppURL             string
	AdminAPIToken      string
	DraftStore         string
	FirestoreProjectID string
	ClaimLease         time.Duration
}

type MercadoPagoConfig struct {
	AccessToken   string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

type MailConfig struct {
	SendGridAPIKey string
	From           string
}

type SecretsConfig struct {
	Project string
}

const (
	DraftStorePostgres  = "postgres"
	DraftStoreFirestore = "firestore"
)

const (
	defaultHTTPPort       = 8080
	defaultMetricsPath    = "/metrics"
	defaultShutdownGrace  = 15
	defaultMaxWebhookBody = 64 << 10
	defaultMigrationsPath = "migrations"
	defaultAutoMigrate    = true
	defaultServiceName    = "mistika-checkout"
	defaultServiceVersion = "0.1.0"
	defaultEnvironment    = "development"
	defaultLogLevel       = "info"
	defaultOTelSampleRate = 1.0
	defaultAppURL         = "http://localhost:3000"
	defaultMPBaseURL      = "https://api.mercadopago.com"
	defaultMPTimeout      = 5 * time.Second
	defaultKafkaTimeout   = 2 * time.Second
	defaultClaimLease     = 2 * time.Minute
	defaultRedisTTL       = 24 * time.Hour
	defaultMailFrom       = "pedidos@mistika.com.ar"
)

var (
	ErrMissingOrderTokenSecret = errors.New("ORDER_TOKEN_SECRET is required")
	ErrInvalidDraftStore       = errors.New("DRAFT_STORE must be postgres or firestore")
	ErrMissingFirestoreProject = errors.New("FIRESTORE_PROJECT_ID is required when DRAFT_STORE=firestore")
)

// Load reads configuration from environment variables, applying defaults when
// needed. Required values are checked by Validate so secrets can be filled in
// between the two calls.
func Load() (*Config, error) {
	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("loading redis config: %w", err)
	}

	checkoutCfg, err := loadCheckoutConfig()
	if err != nil {
		return nil, fmt.Errorf("loading checkout config: %w", err)
	}

	mpCfg, err := loadMercadoPagoConfig()
	if err != nil {
		return nil, fmt.Errorf("loading mercadopago config: %w", err)
	}

	kafkaCfg, err := loadKafkaConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kafka config: %w", err)
	}

	return &Config{
		HTTP:        httpCfg,
		Database:    loadDatabaseConfig(),
		Kafka:       kafkaCfg,
		Redis:       redisCfg,
		Telemetry:   telCfg,
		Service:     loadServiceConfig(),
		Checkout:    checkoutCfg,
		MercadoPago: mpCfg,
		Mail: MailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			From:           getEnvOrDefault("SENDGRID_FROM", defaultMailFrom),
		},
		Secrets: SecretsConfig{Project: os.Getenv("SECRET_MANAGER_PROJECT")},
	}, nil
}

// Validate enforces values the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Checkout.OrderTokenSecret) == "" {
		errs = append(errs, ErrMissingOrderTokenSecret)
	}
	switch c.Checkout.DraftStore {
	case DraftStorePostgres:
	case DraftStoreFirestore:
		if c.Checkout.FirestoreProjectID == "" {
			errs = append(errs, ErrMissingFirestoreProject)
		}
	default:
		errs = append(errs, ErrInvalidDraftStore)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("API_HTTP_PORT out of range: %d", c.HTTP.Port))
	}
	return errors.Join(errs...)
}

// Warnings lists optional settings whose absence degrades behavior.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.MercadoPago.AccessToken == "" {
		warnings = append(warnings, "MP_ACCESS_TOKEN is not set: payment lookups will return no result and webhooks will fail")
	}
	if c.MercadoPago.WebhookSecret == "" {
		warnings = append(warnings, "MP_WEBHOOK_SECRET is not set: webhook signatures are not verified")
	}
	if c.Checkout.AdminAPIToken == "" {
		warnings = append(warnings, "ADMIN_API_TOKEN is not set: admin endpoints are disabled")
	}
	if c.Mail.SendGridAPIKey == "" {
		warnings = append(warnings, "SENDGRID_API_KEY is not set: confirmation emails are logged only")
	}
	return warnings
}

// SecretTargets maps secret environment names to the fields they fill.
func (c *Config) SecretTargets() map[string]*string {
	return map[string]*string{
		"ORDER_TOKEN_SECRET": &c.Checkout.OrderTokenSecret,
		"MP_ACCESS_TOKEN":    &c.MercadoPago.AccessToken,
		"MP_WEBHOOK_SECRET":  &c.MercadoPago.WebhookSecret,
		"SENDGRID_API_KEY":   &c.Mail.SendGridAPIKey,
		"ADMIN_API_TOKEN":    &c.Checkout.AdminAPIToken,
	}
}

// ResolveAppURL applies APP_URL, then SITE_URL, then https://$VERCEL_URL,
// then the local storefront default.
func ResolveAppURL(getenv func(string) string) string {
	if v := strings.TrimSpace(getenv("APP_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv("SITE_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv("VERCEL_URL")); v != "" {
		return "https://" + strings.TrimRight(v, "/")
	}
	return defaultAppURL
}

func loadHTTPConfig() (HTTPConfig, error) {
	port, err := getIntEnv("API_HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return HTTPConfig{}, err
	}

	shutdownGrace, err := getIntEnv("API_SHUTDOWN_GRACE_SECONDS", defaultShutdownGrace)
	if err != nil {
		return HTTPConfig{}, err
	}

	maxBody, err := getIntEnv("WEBHOOK_MAX_BODY_BYTES", defaultMaxWebhookBody)
	if err != nil {
		return HTTPConfig{}, err
	}

	return HTTPConfig{
		Port:           port,
		MetricsPath:    getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath),
		ShutdownGrace:  shutdownGrace,
		MaxWebhookBody: int64(maxBody),
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    getBoolEnv("AUTO_MIGRATE", defaultAutoMigrate),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}
}

func loadKafkaConfig() (KafkaConfig, error) {
	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	timeout, err := getDurationEnv("KAFKA_PUBLISH_TIMEOUT", defaultKafkaTimeout)
	if err != nil {
		return KafkaConfig{}, err
	}

	return KafkaConfig{
		Brokers:        brokers,
		TopicPrefix:    os.Getenv("KAFKA_TOPIC_PREFIX"),
		PublishTimeout: timeout,
	}, nil
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	ttl, err := getDurationEnv("REDIS_STATUS_TTL", defaultRedisTTL)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      ttl,
	}, nil
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure:  getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", false),
		EnableTracing: getBoolEnv("OTEL_ENABLE_TRACING", true),
		EnableMetrics: getBoolEnv("OTEL_ENABLE_METRICS", true),
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func loadCheckoutConfig() (CheckoutConfig, error) {
	lease, err := getDurationEnv("WEBHOOK_LEASE", defaultClaimLease)
	if err != nil {
		return CheckoutConfig{}, err
	}

	return CheckoutConfig{
		OrderTokenSecret:   os.Getenv("ORDER_TOKEN_SECRET"),
		AppURL:             ResolveAppURL(os.Getenv),
		AdminAPIToken:      os.Getenv("ADMIN_API_TOKEN"),
		DraftStore:         strings.ToLower(getEnvOrDefault("DRAFT_STORE", DraftStorePostgres)),
		FirestoreProjectID: os.Getenv("FIRESTORE_PROJECT_ID"),
		ClaimLease:         lease,
	}, nil
}

func loadMercadoPagoConfig() (MercadoPagoConfig, error) {
	timeout, err := getDurationEnv("MP_TIMEOUT", defaultMPTimeout)
	if err != nil {
		return MercadoPagoConfig{}, err
	}

	return MercadoPagoConfig{
		AccessToken:   os.Getenv("MP_ACCESS_TOKEN"),
		BaseURL:       getEnvOrDefault("MP_API_BASE_URL", defaultMPBaseURL),
		WebhookSecret: os.Getenv("MP_WEBHOOK_SECRET"),
		Timeout:       timeout,
	}, nil
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "mistika")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// getDurationEnv accepts Go durations ("5s") or whole milliseconds ("5000").
func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
