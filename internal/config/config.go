package config

import (
	"fmt"
	"time"
)

// Config is the full runtime configuration, read once at startup by Load.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Tracing   TracingConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Payments  PaymentsConfig
	Maps      MapsConfig
	Meetings  MeetingsConfig
	Email     EmailConfig
	SMS       SMSConfig
	Reminders ReminderConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
}

// DSN renders the libpq keyword form accepted by the pgx driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

// RateLimitConfig holds the per-client token bucket for all routes and the
// tighter per-minute budget for login, register and refresh.
type RateLimitConfig struct {
	RequestsPerSecond     float64
	BurstSize             int
	AuthRequestsPerMinute int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	Topic         string
	ConsumerGroup string
	ClientID      string
}

type StorageConfig struct {
	Backend        string // local or s3
	LocalDir       string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	MaxUploadBytes int64
}

type PaymentsConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

// Configured reports whether a processor API key is set. Without one,
// payment calls fail with ErrProcessorDisabled.
func (p PaymentsConfig) Configured() bool {
	return p.APIKey != ""
}

type MapsConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type MeetingsConfig struct {
	Enabled       bool
	APIBaseURL    string
	TokenURL      string
	AccountID     string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	Timeout       time.Duration
}

type EmailConfig struct {
	Enabled bool
	APIURL  string
	APIKey  string
	From    string
	Timeout time.Duration
}

type SMSConfig struct {
	Enabled    bool
	APIURL     string
	AccountSID string
	AuthToken  string
	From       string
	PerSecond  int
	Timeout    time.Duration
}

type ReminderConfig struct {
	Interval time.Duration
	LeadTime time.Duration
}
