package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
	"github.com/urfave/cli/v3"
)

// Setup initializes the configuration file and local storage.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing storage", "path", config.Storage.Path)

	s, err := store.OpenSQLiteStore(config.Storage.Path, config.Storage.MaxOpenConns, config.Storage.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer s.Close()

	r.logger.Infof("setup complete for storage: %v", config.Storage.Path)
	return r.writePlain("✓ Setup complete\n")
}
