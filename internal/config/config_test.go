package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "FriendCoin", cfg.AppName)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 10*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, int64(1000), cfg.TotalBaseCoins)
	assert.True(t, decimal.RequireFromString("0.05").Equal(cfg.TransferTaxRate))
	assert.Equal(t, 1, cfg.LoanTermMonths)
	assert.Equal(t, "0 0 * * * *", cfg.OverdueSchedule)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PORT", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("TOTAL_BASE_COINS", "250")
	t.Setenv("TRANSFER_TAX_RATE", "0.10")
	t.Setenv("LOAN_TERM_MONTHS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, int64(250), cfg.TotalBaseCoins)
	assert.Equal(t, "0.1", cfg.TransferTaxRate.String())
	assert.Equal(t, 3, cfg.LoanTermMonths)
}

func TestLoadRequiresBackendsOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/friendcoin")
	_, err = Load()
	assert.ErrorContains(t, err, "REDIS_URL")

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	t.Setenv("TRANSFER_TAX_RATE", "1.5")
	_, err := Load()
	assert.ErrorContains(t, err, "TRANSFER_TAX_RATE")
	t.Setenv("TRANSFER_TAX_RATE", "0.05")

	t.Setenv("OVERDUE_SCHEDULE", "every tuesday")
	_, err = Load()
	assert.ErrorContains(t, err, "OVERDUE_SCHEDULE")
	t.Setenv("OVERDUE_SCHEDULE", "0 0 * * * *")

	t.Setenv("IDEMPOTENCY_TTL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "IDEMPOTENCY_TTL")
}
