package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/champbox/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	} else if err := shared.ApplyEnv(config, ""); err != nil {
		logger.Warn("failed to apply environment overrides", "error", err)
	}

	if err := shared.SetLogLevel(logger, config.Server.LogLevel); err != nil {
		logger.Warn("unknown log level, keeping info", "level", config.Server.LogLevel)
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "champbox",
		Usage:    "Upload League of Legends champion art to Dropbox",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
