package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so both "10s" and integer nanoseconds are accepted. Zero
// values leave the current setting alone.
type FileConfig struct {
	APIHost            string         `json:"api_host" yaml:"api_host"`
	APIPort            int            `json:"api_port" yaml:"api_port"`
	GRPCHealthAddr     string         `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	DatabaseDriver     string         `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN        string         `json:"database_dsn" yaml:"database_dsn"`
	AuthType           string         `json:"auth_type" yaml:"auth_type"`
	SessionName        string         `json:"session_name" yaml:"session_name"`
	SecretKey          string         `json:"secret_key" yaml:"secret_key"`
	PasswordHasher     string         `json:"password_hasher" yaml:"password_hasher"`
	BcryptCost         int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	CORSAllowedOrigins []string       `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	RedactFields       []string       `json:"redact_fields" yaml:"redact_fields"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
}

// parseFile loads the file named by -c / -config, if any. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()

	// nothing to load
	if path == "" {
		return nil
	}

	return loadFile(config, path)
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.APIHost, c.APIHost)
	setInt(&config.APIPort, c.APIPort)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AuthType, c.AuthType)
	setString(&config.SessionName, c.SessionName)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setInt(&config.BcryptCost, c.BcryptCost)
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if len(c.RedactFields) > 0 {
		config.RedactFields = c.RedactFields
	}
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
