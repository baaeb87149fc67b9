package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
// Malformed values are reported together with the validation errors.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var e env
	cfg := &Config{
		App: AppConfig{
			Name:        e.str("APP_NAME", "telecare-api"),
			Environment: e.str("APP_ENV", "development"),
			Version:     e.str("APP_VERSION", "0.0.0"),
		},
		Server: ServerConfig{
			Host:            e.str("SERVER_HOST", "0.0.0.0"),
			Port:            e.integer("SERVER_PORT", 8080),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     e.duration("SERVER_IDLE_TIMEOUT", time.Minute),
			ShutdownTimeout: e.duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:               e.str("DB_HOST", "localhost"),
			Port:               e.integer("DB_PORT", 5432),
			Name:               e.str("DB_NAME", "telecare"),
			User:               e.str("DB_USER", "telecare"),
			Password:           e.str("DB_PASSWORD", ""),
			SSLMode:            e.str("DB_SSLMODE", "require"),
			MaxOpenConns:       e.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       e.integer("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime:    e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime:    e.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			SlowQueryThreshold: e.duration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		},
		JWT: JWTConfig{
			Secret:          e.str("JWT_SECRET", ""),
			AccessTokenTTL:  e.duration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: e.duration("JWT_REFRESH_TTL", 7*24*time.Hour),
			Issuer:          e.str("JWT_ISSUER", "telecare-api"),
		},
		Log: LogConfig{
			Level:      e.str("LOG_LEVEL", "info"),
			Format:     e.str("LOG_FORMAT", "json"),
			OutputPath: e.str("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:     e.boolean("TRACING_ENABLED", false),
			ServiceName: e.str("TRACING_SERVICE_NAME", "telecare-api"),
			Endpoint:    e.str("OTLP_ENDPOINT", "otel-collector:4318"),
			SampleRate:  e.float("TRACING_SAMPLE_RATE", 0.1),
		},
		CORS: CORSConfig{
			AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			AllowedMethods: e.list("CORS_ALLOWED_METHODS", "GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"),
			AllowedHeaders: e.list("CORS_ALLOWED_HEADERS", "Authorization", "Content-Type", "X-Request-ID"),
			MaxAge:         e.duration("CORS_MAX_AGE", 12*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:     e.float("RATE_LIMIT_RPS", 50),
			BurstSize:             e.integer("RATE_LIMIT_BURST", 100),
			AuthRequestsPerMinute: e.integer("RATE_LIMIT_AUTH_RPM", 10),
		},
		Kafka: KafkaConfig{
			Enabled:       e.boolean("KAFKA_ENABLED", false),
			Brokers:       e.list("KAFKA_BROKERS", "localhost:9092"),
			Topic:         e.str("KAFKA_TOPIC", "telecare.events"),
			ConsumerGroup: e.str("KAFKA_CONSUMER_GROUP", "telecare-worker"),
			ClientID:      e.str("KAFKA_CLIENT_ID", "telecare"),
		},
		Storage: StorageConfig{
			Backend:        e.str("STORAGE_BACKEND", "local"),
			LocalDir:       e.str("STORAGE_LOCAL_DIR", "./data/documents"),
			S3Bucket:       e.str("STORAGE_S3_BUCKET", ""),
			S3Region:       e.str("STORAGE_S3_REGION", "us-east-1"),
			S3Endpoint:     e.str("STORAGE_S3_ENDPOINT", ""),
			S3AccessKey:    e.str("STORAGE_S3_ACCESS_KEY", ""),
			S3SecretKey:    e.str("STORAGE_S3_SECRET_KEY", ""),
			MaxUploadBytes: e.size("STORAGE_MAX_UPLOAD_BYTES", 20<<20),
		},
		Payments: PaymentsConfig{
			BaseURL:       e.str("PAYMENTS_BASE_URL", "https://api.stripe.com"),
			APIKey:        e.str("PAYMENTS_API_KEY", ""),
			WebhookSecret: e.str("PAYMENTS_WEBHOOK_SECRET", ""),
			Currency:      e.str("PAYMENTS_CURRENCY", "usd"),
			Timeout:       e.duration("PAYMENTS_TIMEOUT", 10*time.Second),
		},
		Maps: MapsConfig{
			Enabled: e.boolean("MAPS_ENABLED", false),
			BaseURL: e.str("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
			APIKey:  e.str("MAPS_API_KEY", ""),
			Timeout: e.duration("MAPS_TIMEOUT", 5*time.Second),
		},
		Meetings: MeetingsConfig{
			Enabled:       e.boolean("MEETINGS_ENABLED", false),
			APIBaseURL:    e.str("MEETINGS_API_BASE_URL", "https://api.zoom.us/v2"),
			TokenURL:      e.str("MEETINGS_TOKEN_URL", "https://zoom.us/oauth/token"),
			AccountID:     e.str("MEETINGS_ACCOUNT_ID", ""),
			ClientID:      e.str("MEETINGS_CLIENT_ID", ""),
			ClientSecret:  e.str("MEETINGS_CLIENT_SECRET", ""),
			WebhookSecret: e.str("MEETINGS_WEBHOOK_SECRET", ""),
			Timeout:       e.duration("MEETINGS_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			Enabled: e.boolean("EMAIL_ENABLED", false),
			APIURL:  e.str("EMAIL_API_URL", "https://api.sendgrid.com/v3/mail/send"),
			APIKey:  e.str("EMAIL_API_KEY", ""),
			From:    e.str("EMAIL_FROM", "no-reply@telecare.local"),
			Timeout: e.duration("EMAIL_TIMEOUT", 10*time.Second),
		},
		SMS: SMSConfig{
			Enabled:    e.boolean("SMS_ENABLED", false),
			APIURL:     e.str("SMS_API_URL", "https://api.twilio.com"),
			AccountSID: e.str("SMS_ACCOUNT_SID", ""),
			AuthToken:  e.str("SMS_AUTH_TOKEN", ""),
			From:       e.str("SMS_FROM", ""),
			PerSecond:  e.integer("SMS_PER_SECOND", 1),
			Timeout:    e.duration("SMS_TIMEOUT", 10*time.Second),
		},
		Reminders: ReminderConfig{
			Interval: e.duration("REMINDER_INTERVAL", 5*time.Minute),
			LeadTime: e.duration("REMINDER_LEAD_TIME", 24*time.Hour),
		},
	}

	problems := append(e.errs, cfg.problems()...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return cfg, nil
}

// problems lists every rule the loaded values break.
func (c *Config) problems() []error {
	var out []error
	add := func(format string, args ...any) {
		out = append(out, fmt.Errorf(format, args...))
	}

	switch {
	case c.JWT.Secret == "":
		add("JWT_SECRET is required")
	case c.App.IsProduction() && len(c.JWT.Secret) < 32:
		add("JWT_SECRET must be at least 32 characters in production")
	}

	if c.App.Environment != "development" && c.Database.Password == "" {
		add("DB_PASSWORD is required outside development")
	}
	if c.App.IsProduction() && c.Database.SSLMode == "disable" {
		add("DB_SSLMODE=disable is not allowed in production")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			add("STORAGE_LOCAL_DIR is required for the local storage backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			add("STORAGE_S3_BUCKET is required for the s3 storage backend")
		}
	default:
		add("STORAGE_BACKEND %q is not supported", c.Storage.Backend)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		add("STORAGE_MAX_UPLOAD_BYTES must be positive")
	}

	if c.Payments.Configured() && c.Payments.WebhookSecret == "" {
		add("PAYMENTS_WEBHOOK_SECRET is required when PAYMENTS_API_KEY is set")
	}
	if c.Meetings.Enabled && (c.Meetings.ClientID == "" || c.Meetings.ClientSecret == "") {
		add("MEETINGS_CLIENT_ID and MEETINGS_CLIENT_SECRET are required when meetings are enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		add("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if c.Reminders.Interval <= 0 {
		add("REMINDER_INTERVAL must be positive")
	}
	return out
}

// env reads typed values from the process environment. Unset keys yield the
// default; set but unparseable keys also yield the default and are recorded
// in errs.
type env struct {
	errs []error
}

func (e *env) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return strings.TrimSpace(v), ok
}

func (e *env) bad(key, raw, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a valid %s", key, raw, kind))
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad(key, v, "integer")
		return def
	}
	return n
}

func (e *env) size(key string, def int64) int64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.bad(key, v, "integer")
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(key, v, "number")
		return def
	}
	return f
}

func (e *env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.bad(key, v, "boolean")
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.bad(key, v, "duration")
		return def
	}
	return d
}

// list splits a comma separated value, dropping blanks. A value with no
// items yields def.
func (e *env) list(key string, def ...string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
