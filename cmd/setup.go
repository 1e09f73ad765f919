package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/champbox/internal/shared"
	"github.com/desertthunder/champbox/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("%s\n", ui.OK("wrote "+configPath))
	r.writePlain("%s\n", ui.Help("set dropbox.client_id and dropbox.client_secret, or CHAMPBOX_DROPBOX_CLIENT_ID / CHAMPBOX_DROPBOX_CLIENT_SECRET"))
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	if config.Database.Path == ":memory:" {
		r.logger.Warn("in-memory database, migrations are applied again on every start")
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}
