// Package config loads the command line settings from WHICHEMAIL_*
// environment variables, reading a .env file first when one exists.
package config

import (
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"

	"github.com/fanyicharllson/whichemail/internal/database"
)

const (
	EnvDBDriver        = "WHICHEMAIL_DB_DRIVER"
	EnvDBDSN           = "WHICHEMAIL_DB_DSN"
	EnvUserID          = "WHICHEMAIL_USER_ID"
	EnvUserEmail       = "WHICHEMAIL_USER_EMAIL"
	EnvVaultPassphrase = "WHICHEMAIL_VAULT_PASSPHRASE"
	EnvCacheTTL        = "WHICHEMAIL_CACHE_TTL"
	EnvLogLevel        = "WHICHEMAIL_LOG_LEVEL"

	DefaultDSN      = "file:whichemail.db?cache=shared"
	DefaultCacheTTL = 5 * time.Minute
	DefaultLogLevel = "info"
)

// Config holds the application settings.
type Config struct {
	DBDriver        string
	DBDSN           string
	UserID          string
	UserEmail       string
	VaultPassphrase string
	CacheTTL        time.Duration
	LogLevel        string
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "load env file")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		DBDriver:        getEnv(EnvDBDriver, database.DriverSQLite),
		DBDSN:           getEnv(EnvDBDSN, DefaultDSN),
		UserID:          strings.TrimSpace(os.Getenv(EnvUserID)),
		UserEmail:       strings.TrimSpace(os.Getenv(EnvUserEmail)),
		VaultPassphrase: os.Getenv(EnvVaultPassphrase),
		CacheTTL:        DefaultCacheTTL,
		LogLevel:        strings.ToLower(getEnv(EnvLogLevel, DefaultLogLevel)),
	}

	if raw, ok := lookup(EnvCacheTTL); ok {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, &ConfigError{Field: EnvCacheTTL, Message: "must be a duration such as 5m"}
		}
		cfg.CacheTTL = ttl
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DBDriver, validation.Required, validation.In(
			database.DriverSQLite, "sqlite", database.DriverPostgres, "pg",
		).Error("must be sqlite3 or postgres")),
		validation.Field(&c.DBDSN, validation.Required),
		validation.Field(&c.CacheTTL, validation.Min(time.Second).Error("must be at least 1s")),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error").Error("must be debug, info, warn or error")),
	)
	if err == nil {
		return nil
	}
	return errors.FromOzzoValidation(err, "invalid configuration")
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ConfigError reports a value that could not be parsed.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func getEnv(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}
