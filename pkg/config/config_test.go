package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, gormlogger.Warn, cfg.Database.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, "@every 1h", cfg.SweepSchedule)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.SeedOnStart)

	policy := cfg.Policy()
	assert.Equal(t, 14*24*time.Hour, policy.LoanPeriod)
	assert.Equal(t, 3, policy.MaxActiveLoans)
	assert.Equal(t, 3, policy.SuspensionThreshold)
	assert.True(t, decimal.RequireFromString("0.50").Equal(policy.DailyFine))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/test.db")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOAN_PERIOD_DAYS", "7")
	t.Setenv("MAX_ACTIVE_LOANS", "5")
	t.Setenv("DAILY_FINE", "1.25")
	t.Setenv("RETRY_BASE_DELAY", "50ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GORM_LOG_LEVEL", "Silent")
	t.Setenv("SEED_ON_START", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLitePath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, gormlogger.Silent, cfg.Database.LogLevel)
	assert.True(t, cfg.SeedOnStart)

	policy := cfg.Policy()
	assert.Equal(t, 7*24*time.Hour, policy.LoanPeriod)
	assert.Equal(t, 5, policy.MaxActiveLoans)
	assert.True(t, decimal.RequireFromString("1.25").Equal(policy.DailyFine))
}

func TestLoadReportsEveryInvalidKey(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("MAX_ACTIVE_LOANS", "zero")
	t.Setenv("TX_TIMEOUT", "-1s")
	t.Setenv("DAILY_FINE", "-0.50")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)

	for _, key := range []string{"DB_DRIVER", "MAX_ACTIVE_LOANS", "TX_TIMEOUT", "DAILY_FINE"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestDSN(t *testing.T) {
	db := Database{Host: "db", Port: "5432", User: "program", Password: "test", Name: "library"}
	assert.Equal(t, "host=db user=program password=test dbname=library port=5432 sslmode=disable TimeZone=UTC", db.DSN())
}
