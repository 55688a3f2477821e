// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting of the server.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppIdleTimeout  time.Duration `envconfig:"APP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns      int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns      int32         `envconfig:"DB_MIN_CONNS" default:"5"`
	DBConnLifetime  time.Duration `envconfig:"DB_CONN_LIFETIME" default:"1h"`
	DBConnIdleTime  time.Duration `envconfig:"DB_CONN_IDLE_TIME" default:"30m"`

	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTTL     time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	// CEL expressions evaluated against account rows when listing;
	// empty strings fall back to the built-in rules.
	StockAlertRule string `envconfig:"STOCK_ALERT_RULE" default:""`
	CashAlertRule  string `envconfig:"CASH_ALERT_RULE" default:""`

	Version string `envconfig:"APP_VERSION" default:"dev"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
