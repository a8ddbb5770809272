package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	gormlogger "gorm.io/gorm/logger"

	"github.com/SivaGaneshv1729/library-management-api/pkg/lending"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
	LogLevel        gormlogger.LogLevel
}

// DSN is the PostgreSQL connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

type Config struct {
	HTTPAddr string
	Database Database

	TxTimeout          time.Duration
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
	SweepSchedule      string

	LoanPeriodDays      int
	MaxActiveLoans      int
	SuspensionThreshold int
	DailyFine           decimal.Decimal

	LogLevel    slog.Level
	SeedOnStart bool
}

// Load reads the configuration from the environment. Every malformed value is
// reported, not only the first one.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Database: Database{
			Driver:          getEnv("DB_DRIVER", DriverPostgres),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "program"),
			Password:        getEnv("DB_PASSWORD", "test"),
			Name:            getEnv("DB_NAME", "library"),
			SQLitePath:      getEnv("SQLITE_PATH", "library.db"),
			MaxOpenConns:    p.positiveInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.nonNegativeInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectRetries:  p.positiveInt("DB_CONNECT_RETRIES", 10),
			LogLevel:        p.gormLevel("GORM_LOG_LEVEL", gormlogger.Warn),
		},

		TxTimeout:          p.duration("TX_TIMEOUT", 5*time.Second),
		RetryAttempts:      p.positiveInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay:     p.duration("RETRY_BASE_DELAY", 20*time.Millisecond),
		BreakerMaxFailures: p.positiveInt("BREAKER_MAX_FAILURES", 5),
		BreakerTimeout:     p.duration("BREAKER_TIMEOUT", 30*time.Second),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@every 1h"),

		LoanPeriodDays:      p.positiveInt("LOAN_PERIOD_DAYS", 14),
		MaxActiveLoans:      p.positiveInt("MAX_ACTIVE_LOANS", lending.DefaultMaxActiveLoans),
		SuspensionThreshold: p.positiveInt("SUSPENSION_THRESHOLD", lending.DefaultSuspensionThreshold),
		DailyFine:           p.money("DAILY_FINE", lending.DefaultDailyFine),

		LogLevel:    p.slogLevel("LOG_LEVEL", slog.LevelInfo),
		SeedOnStart: p.boolean("SEED_ON_START", false),
	}

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		p.invalid("DB_DRIVER", cfg.Database.Driver)
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Policy builds the lending rules from the configuration.
func (c *Config) Policy() lending.Policy {
	return lending.Policy{
		LoanPeriod:          time.Duration(c.LoanPeriodDays) * 24 * time.Hour,
		MaxActiveLoans:      c.MaxActiveLoans,
		SuspensionThreshold: c.SuspensionThreshold,
		DailyFine:           c.DailyFine,
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser collects malformed values while Load reads the environment.
type parser struct {
	errs []error
}

func (p *parser) invalid(key, value string) {
	p.errs = append(p.errs, fmt.Errorf("invalid value %q for %s", value, key))
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) intAtLeast(key string, defaultValue, minValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minValue {
		p.invalid(key, raw)
		return defaultValue
	}
	return n
}

func (p *parser) positiveInt(key string, defaultValue int) int {
	return p.intAtLeast(key, defaultValue, 1)
}

func (p *parser) nonNegativeInt(key string, defaultValue int) int {
	return p.intAtLeast(key, defaultValue, 0)
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.invalid(key, raw)
		return defaultValue
	}
	return d
}

func (p *parser) boolean(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.invalid(key, raw)
		return defaultValue
	}
	return b
}

func (p *parser) money(key string, defaultValue decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		p.invalid(key, raw)
		return defaultValue
	}
	return d
}

func (p *parser) slogLevel(key string, defaultValue slog.Level) slog.Level {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		p.invalid(key, raw)
		return defaultValue
	}
	return level
}

var gormLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

func (p *parser) gormLevel(key string, defaultValue gormlogger.LogLevel) gormlogger.LogLevel {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	level, ok := gormLevels[strings.ToLower(raw)]
	if !ok {
		p.invalid(key, raw)
		return defaultValue
	}
	return level
}
