package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// parseEnv overlays variables that are set; unset ones keep the current
// value. A nil lookuper reads the process environment.
func parseEnv(ctx context.Context, config *Config, l envconfig.Lookuper) error {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: config, Lookuper: l}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
