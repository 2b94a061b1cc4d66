// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string

	// Currency / wire constants
	CurrencyCode            string
	PlatformCommissionBps   int64 // 1500 = 15%
	InstantPayoutFeeBps     int64 // 150 = 1.5%
	WeeklyPayoutMinimum     string
	InstantPayoutMinimum    string
	PenaltyRateBps          int64 // 5000 = 50%
	NoShowGraceMinutes      int64
	StrikeWindowDays        int64
	SuspensionDays          int64
	NegativeBalanceWriteoff int64 // days
	DisputeWindowDays       int64
	DisputeDeadlineBizDays  int64
	WalletGracePeriodHours  int64
	FrivolousAppealFee      string

	// Payment processor
	ProcessorAPIKey        string `json:"-"`
	ProcessorWebhookSecret string `json:"-"`

	// Redis (optional idempotency dedup cache)
	RedisURL string

	// Rotating log file (optional)
	LogFilePath string

	// Security
	AdminSecret string `json:"-"`

	// Database pool settings
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	DBConnMaxIdleTime  time.Duration
	DBConnectTimeout   int // seconds, appended to Postgres DSN
	DBStatementTimeout int // milliseconds, appended to Postgres DSN

	// HTTP server timeouts
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RequestTimeout   time.Duration

	// Observability
	OTLPEndpoint string
}

// Defaults, per the wire constants named in the external interface contract.
const (
	DefaultPort     = "8080"
	DefaultEnv      = "development"
	DefaultLogLevel = "info"

	DefaultCurrencyCode            = "USD"
	DefaultPlatformCommissionBps   = 1500
	DefaultInstantPayoutFeeBps     = 150
	DefaultWeeklyPayoutMinimum     = "50.00"
	DefaultInstantPayoutMinimum    = "10.00"
	DefaultPenaltyRateBps          = 5000
	DefaultNoShowGraceMinutes      = 30
	DefaultStrikeWindowDays        = 90
	DefaultSuspensionDays          = 30
	DefaultNegativeBalanceWriteoff = 180
	DefaultDisputeWindowDays       = 7
	DefaultDisputeDeadlineBizDays  = 3
	DefaultWalletGracePeriodHours  = 48
	DefaultFrivolousAppealFee      = "25.00"

	DefaultDBMaxOpenConns     = 25
	DefaultDBMaxIdleConns     = 5
	DefaultDBConnMaxLifetime  = 5 * time.Minute
	DefaultDBConnMaxIdleTime  = 3 * time.Minute
	DefaultDBConnectTimeout   = 5
	DefaultDBStatementTimeout = 30000

	DefaultHTTPReadTimeout  = 10 * time.Second
	DefaultHTTPWriteTimeout = 30 * time.Second
	DefaultHTTPIdleTimeout  = 60 * time.Second
	DefaultRequestTimeout   = 30 * time.Second
)

// Load reads configuration from environment variables, loading a local
// .env file first if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", DefaultPort),
		Env:         getEnv("ENV", DefaultEnv),
		LogLevel:    getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		CurrencyCode:            getEnv("CURRENCY_CODE", DefaultCurrencyCode),
		PlatformCommissionBps:   getEnvInt64("PLATFORM_COMMISSION_BPS", DefaultPlatformCommissionBps),
		InstantPayoutFeeBps:     getEnvInt64("INSTANT_PAYOUT_FEE_BPS", DefaultInstantPayoutFeeBps),
		WeeklyPayoutMinimum:     getEnv("WEEKLY_PAYOUT_MINIMUM", DefaultWeeklyPayoutMinimum),
		InstantPayoutMinimum:    getEnv("INSTANT_PAYOUT_MINIMUM", DefaultInstantPayoutMinimum),
		PenaltyRateBps:          getEnvInt64("PENALTY_RATE_BPS", DefaultPenaltyRateBps),
		NoShowGraceMinutes:      getEnvInt64("NO_SHOW_GRACE_MINUTES", DefaultNoShowGraceMinutes),
		StrikeWindowDays:        getEnvInt64("STRIKE_WINDOW_DAYS", DefaultStrikeWindowDays),
		SuspensionDays:          getEnvInt64("SUSPENSION_DAYS", DefaultSuspensionDays),
		NegativeBalanceWriteoff: getEnvInt64("NEGATIVE_BALANCE_WRITEOFF_DAYS", DefaultNegativeBalanceWriteoff),
		DisputeWindowDays:       getEnvInt64("DISPUTE_WINDOW_DAYS", DefaultDisputeWindowDays),
		DisputeDeadlineBizDays:  getEnvInt64("DISPUTE_DEADLINE_BUSINESS_DAYS", DefaultDisputeDeadlineBizDays),
		WalletGracePeriodHours:  getEnvInt64("WALLET_GRACE_PERIOD_HOURS", DefaultWalletGracePeriodHours),
		FrivolousAppealFee:      getEnv("FRIVOLOUS_APPEAL_FEE", DefaultFrivolousAppealFee),

		ProcessorAPIKey:        os.Getenv("PROCESSOR_API_KEY"),
		ProcessorWebhookSecret: os.Getenv("PROCESSOR_WEBHOOK_SECRET"),

		RedisURL:    os.Getenv("REDIS_URL"),
		LogFilePath: os.Getenv("LOG_FILE_PATH"),

		AdminSecret: os.Getenv("ADMIN_SECRET"),

		DBMaxOpenConns:     int(getEnvInt64("POSTGRES_MAX_OPEN_CONNS", int64(DefaultDBMaxOpenConns))),
		DBMaxIdleConns:     int(getEnvInt64("POSTGRES_MAX_IDLE_CONNS", int64(DefaultDBMaxIdleConns))),
		DBConnMaxLifetime:  getEnvDuration("POSTGRES_CONN_MAX_LIFETIME", DefaultDBConnMaxLifetime),
		DBConnMaxIdleTime:  getEnvDuration("POSTGRES_CONN_MAX_IDLE_TIME", DefaultDBConnMaxIdleTime),
		DBConnectTimeout:   int(getEnvInt64("POSTGRES_CONNECT_TIMEOUT", int64(DefaultDBConnectTimeout))),
		DBStatementTimeout: int(getEnvInt64("POSTGRES_STATEMENT_TIMEOUT", int64(DefaultDBStatementTimeout))),

		HTTPReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", DefaultHTTPReadTimeout),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", DefaultHTTPWriteTimeout),
		HTTPIdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", DefaultHTTPIdleTimeout),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration is internally consistent.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}

	if c.PlatformCommissionBps < 0 || c.PlatformCommissionBps > 10000 {
		return fmt.Errorf("PLATFORM_COMMISSION_BPS must be in [0, 10000], got %d", c.PlatformCommissionBps)
	}

	if c.DBStatementTimeout < 1000 {
		return fmt.Errorf("POSTGRES_STATEMENT_TIMEOUT must be at least 1000ms, got %d", c.DBStatementTimeout)
	}

	if c.HTTPWriteTimeout > 0 && c.RequestTimeout > 0 && c.HTTPWriteTimeout < c.RequestTimeout {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT (%v) must be >= REQUEST_TIMEOUT (%v)", c.HTTPWriteTimeout, c.RequestTimeout)
	}

	if c.IsProduction() && c.AdminSecret == "" {
		slog.Warn("ADMIN_SECRET not set — admin endpoints reject every request unless DEMO_MODE=true")
	}
	if c.IsProduction() && c.ProcessorAPIKey == "" {
		slog.Warn("PROCESSOR_API_KEY not set — topup/payout calls will fail against the real processor")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
