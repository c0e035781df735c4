package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName         = "FriendCoin"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionTTL      = 15 * time.Minute
	defaultBaseCoins       = 1000
	defaultTaxRate         = "0.05"
	defaultLoanTermMonths  = 1
	defaultRatePerMinute   = 60
	defaultOverdueSchedule = "0 0 * * * *"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment
// variables and an optional .env file.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	SessionTTL      time.Duration
	TotalBaseCoins  int64
	TransferTaxRate decimal.Decimal
	LoanTermMonths  int
	RatePerMinute   int
	OverdueSchedule string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault(shutdownDurationEnvVar, defaultShutdownDelay.String())
	v.SetDefault(idemTTLDurEnvVar, defaultIdempotencyTTL.String())
	v.SetDefault("PAYMENT_SESSION_TTL", defaultSessionTTL.String())
	v.SetDefault("TOTAL_BASE_COINS", defaultBaseCoins)
	v.SetDefault("TRANSFER_TAX_RATE", defaultTaxRate)
	v.SetDefault("LOAN_TERM_MONTHS", defaultLoanTermMonths)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", defaultRatePerMinute)
	v.SetDefault("OVERDUE_SCHEDULE", defaultOverdueSchedule)
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET", shutdownSecondsEnvVar, idemTTLSecondsEnvVar} {
		v.SetDefault(key, "")
	}
	v.AutomaticEnv()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	cfg := Config{
		AppName:         v.GetString("APP_NAME"),
		AppEnv:          v.GetString("APP_ENV"),
		Port:            v.GetString("PORT"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		RedisURL:        v.GetString("REDIS_URL"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		TotalBaseCoins:  v.GetInt64("TOTAL_BASE_COINS"),
		LoanTermMonths:  v.GetInt("LOAN_TERM_MONTHS"),
		RatePerMinute:   v.GetInt("RATE_LIMIT_PER_MINUTE"),
		OverdueSchedule: v.GetString("OVERDUE_SCHEDULE"),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(v, shutdownSecondsEnvVar, shutdownDurationEnvVar); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, idemTTLSecondsEnvVar, idemTTLDurEnvVar); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = time.ParseDuration(v.GetString("PAYMENT_SESSION_TTL")); err != nil {
		return Config{}, fmt.Errorf("invalid PAYMENT_SESSION_TTL: %w", err)
	}
	if cfg.TransferTaxRate, err = decimal.NewFromString(v.GetString("TRANSFER_TAX_RATE")); err != nil {
		return Config{}, fmt.Errorf("invalid TRANSFER_TAX_RATE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// duration prefers the integer seconds variable and falls back to a Go duration string.
func duration(v *viper.Viper, secondsKey, durationKey string) (time.Duration, error) {
	if raw := v.GetString(secondsKey); raw != "" {
		seconds := v.GetInt(secondsKey)
		if seconds <= 0 {
			return 0, fmt.Errorf("invalid %s: %q", secondsKey, raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v.GetString(durationKey))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
	}
	return d, nil
}

// Validate checks the loaded values. Postgres and Redis may only be omitted in
// development, where the API falls back to in-memory backends.
func (c Config) Validate() error {
	if c.TotalBaseCoins < 0 {
		return fmt.Errorf("TOTAL_BASE_COINS must not be negative")
	}
	if c.TransferTaxRate.IsNegative() || c.TransferTaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("TRANSFER_TAX_RATE must be in [0, 1)")
	}
	if c.LoanTermMonths <= 0 {
		return fmt.Errorf("LOAN_TERM_MONTHS must be greater than 0")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.OverdueSchedule); err != nil {
		return fmt.Errorf("invalid OVERDUE_SCHEDULE: %w", err)
	}
	if c.IsDevelopment() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	return nil
}

// IsDevelopment reports whether APP_ENV names a local environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
