// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand starts the web service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the champion upload web service",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the service in the default browser once listening",
			},
			&cli.StringFlag{
				Name:  "champion",
				Usage: "Champion to start a flow for when --open is set",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not print pipeline progress",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in defaults",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// validateCommand checks a champion name against Data Dragon
func validateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check that a champion name exists in Data Dragon",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "name",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Validate,
	}
}

// authCommand handles Dropbox authorization helpers
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Dropbox authorization helpers",
		Commands: []*cli.Command{
			{
				Name:  "url",
				Usage: "Print the Dropbox authorize URL",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "state",
						Usage: "Include a random state token",
					},
				},
				Action: r.AuthURL,
			},
		},
	}
}
