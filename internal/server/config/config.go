// Package config handles configuration for the server component: defaults,
// a JSON or YAML file overlay, environment variables and command-line
// flags, applied in that order.
package config

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

// Config holds runtime settings for the AuthKeeper server.
//
// SecretKey signs session cookies; when it is left empty a random key is
// generated at startup and sessions do not survive a restart.
type Config struct {
	APIHost            string        `env:"API_HOST,overwrite"`
	APIPort            int           `env:"API_PORT,overwrite"`
	GRPCHealthAddr     string        `env:"GRPC_HEALTH_ADDR,overwrite"`
	DatabaseDriver     string        `env:"DATABASE_DRIVER,overwrite"`
	DatabaseDSN        string        `env:"DATABASE_DSN,overwrite"`
	AuthType           string        `env:"AUTH_TYPE,overwrite"`
	SessionName        string        `env:"SESSION_NAME,overwrite"`
	SecretKey          string        `env:"SECRET_KEY,overwrite"`
	PasswordHasher     string        `env:"PASSWORD_HASHER,overwrite"`
	BcryptCost         int           `env:"BCRYPT_COST,overwrite"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,overwrite"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,overwrite"`
	RedactFields       []string      `env:"REDACT_FIELDS,overwrite"`
	LogLevel           string        `env:"LOG_LEVEL,overwrite"`
}

// LoadDefaults populates Config with development defaults: an SQLite file
// under ./data and no authentication on /api/v1.
func (c *Config) LoadDefaults() {
	c.APIHost = "0.0.0.0"
	c.APIPort = 5000
	c.GRPCHealthAddr = ":50051"
	c.DatabaseDriver = dbx.DriverSQLite
	c.DatabaseDSN = "data/authkeeper.db"
	c.AuthType = ""
	c.SessionName = common.DefaultSessionCookieName
	c.SecretKey = ""
	c.PasswordHasher = cryptox.HasherBcrypt
	c.BcryptCost = 0
	c.CORSAllowedOrigins = []string{"*"}
	c.ShutdownTimeout = 10 * time.Second
	c.RedactFields = nil
	c.LogLevel = "info"
}

// APIAddr is the HTTP listen address.
func (c *Config) APIAddr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// EnsureSecretKey fills an empty SecretKey with a random one and reports
// whether it did so.
func (c *Config) EnsureSecretKey() (bool, error) {
	if c.SecretKey != "" {
		return false, nil
	}
	key, err := common.MakeRandHexString(32)
	if err != nil {
		return false, err
	}
	c.SecretKey = key
	return true, nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file, the environment and finally command-line
// flags.
func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(ctx, cfg, nil); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies only defaults and the environment. Tools with their
// own flag parsing use it instead of LoadConfig.
func LoadFromEnv(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(ctx, cfg, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}
