package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Values tagged with `env` may be overridden by CHAMPBOX_* environment variables.
type Config struct {
	Dropbox  DropboxConfig  `toml:"dropbox" envPrefix:"CHAMPBOX_DROPBOX_"`
	DDragon  DDragonConfig  `toml:"ddragon" envPrefix:"CHAMPBOX_DDRAGON_"`
	Server   ServerConfig   `toml:"server" envPrefix:"CHAMPBOX_SERVER_"`
	Flow     FlowConfig     `toml:"flow" envPrefix:"CHAMPBOX_FLOW_"`
	Storage  StorageConfig  `toml:"storage" envPrefix:"CHAMPBOX_STORAGE_"`
	Database DatabaseConfig `toml:"database" envPrefix:"CHAMPBOX_DATABASE_"`
}

// DropboxConfig contains the OAuth client credentials and endpoints for Dropbox.
type DropboxConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI"`
	AuthorizeURL string `toml:"authorize_url" env:"AUTHORIZE_URL"`
	TokenURL     string `toml:"token_url" env:"TOKEN_URL"`
	ContentURL   string `toml:"content_url" env:"CONTENT_URL"`
	ViewerURL    string `toml:"viewer_url" env:"VIEWER_URL"` // fmt template, %s is the uploaded file name
}

// DDragonConfig points at the Data Dragon game-data CDN.
type DDragonConfig struct {
	Host    string `toml:"host" env:"HOST"`
	Version string `toml:"version" env:"VERSION"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string        `toml:"host" env:"HOST"`
	Port          int           `toml:"port" env:"PORT"`
	LogLevel      string        `toml:"log_level" env:"LOG_LEVEL"`
	RateLimit     float64       `toml:"rate_limit" env:"RATE_LIMIT"` // requests per second, 0 disables
	Burst         int           `toml:"burst" env:"BURST"`
	ClientTimeout time.Duration `toml:"client_timeout" env:"CLIENT_TIMEOUT"` // 0 means no client deadline
}

// FlowConfig selects how the two halves of the authorization flow are correlated.
type FlowConfig struct {
	Mode       string        `toml:"mode" env:"MODE"` // "keyed" or "slot"
	PendingTTL time.Duration `toml:"pending_ttl" env:"PENDING_TTL"`
}

// StorageConfig controls where downloaded images are written before upload.
type StorageConfig struct {
	Dir               string `toml:"dir" env:"DIR"`
	RemoveAfterUpload bool   `toml:"remove_after_upload" env:"REMOVE_AFTER_UPLOAD"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Addr returns the host:port pair the HTTP listener binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate reports missing credentials or unknown settings.
func (c *Config) Validate() error {
	if c.Dropbox.ClientID == "" || c.Dropbox.ClientSecret == "" {
		return fmt.Errorf("%w: dropbox client_id and client_secret must be set", ErrMissingCredentials)
	}
	if c.Dropbox.RedirectURI == "" {
		return fmt.Errorf("%w: dropbox redirect_uri must be set", ErrInvalidConfig)
	}
	switch c.Flow.Mode {
	case "", "keyed", "slot":
	default:
		return fmt.Errorf("%w: unknown flow mode %q", ErrInvalidConfig, c.Flow.Mode)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config, ""); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv loads dotenv (if it exists) into the process environment and then overlays CHAMPBOX_* variables onto config.
//
// An empty dotenv path means ".env" in the working directory.
func ApplyEnv(config *Config, dotenv string) error {
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", dotenv, err)
	}

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
