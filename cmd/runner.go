package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/champbox/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string // Overrides the --config flag when set
	HTTPClient *http.Client // Shared by all commands when set; otherwise built from the loaded config
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, validateCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// client returns the outbound HTTP client for config.
//
// Without an injected client a new one is built so client_timeout follows the file loaded by the command.
func (r *Runner) client(config *shared.Config) *http.Client {
	if r.httpClient != nil {
		return r.httpClient
	}
	return &http.Client{Timeout: config.Server.ClientTimeout}
}

// loadConfig returns the configuration at path, or the runner's configuration when no file exists there.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if r.configPath != "" {
		path = r.configPath
	}
	if path == "" {
		return r.config, nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return r.config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return config, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
