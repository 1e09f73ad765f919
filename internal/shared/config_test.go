package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != ":memory:" {
			t.Errorf("expected database path :memory:, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.DDragon.Version != "12.5.1" {
			t.Errorf("expected ddragon version 12.5.1, got %s", config.DDragon.Version)
		}

		if config.Flow.Mode != "keyed" {
			t.Errorf("expected flow mode keyed, got %s", config.Flow.Mode)
		}

		if config.Flow.PendingTTL != 15*time.Minute {
			t.Errorf("expected pending ttl 15m, got %v", config.Flow.PendingTTL)
		}

		if config.Server.ClientTimeout != 0 {
			t.Errorf("expected no client timeout by default, got %v", config.Server.ClientTimeout)
		}

		if config.Server.Addr() != "localhost:3000" {
			t.Errorf("expected addr localhost:3000, got %s", config.Server.Addr())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Dropbox.TokenURL != DefaultConfig().Dropbox.TokenURL {
			t.Errorf("created config token url doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[dropbox]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080"

[server]
port = 8080
client_timeout = "5s"

[flow]
mode = "slot"
pending_ttl = "2m"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Dropbox.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Dropbox.ClientID)
		}

		if config.Server.ClientTimeout != 5*time.Second {
			t.Errorf("expected opt-in client timeout 5s, got %v", config.Server.ClientTimeout)
		}

		if config.Flow.Mode != "slot" || config.Flow.PendingTTL != 2*time.Minute {
			t.Errorf("expected slot mode with 2m ttl, got %s %v", config.Flow.Mode, config.Flow.PendingTTL)
		}

		if config.DDragon.Host != "https://ddragon.leagueoflegends.com" {
			t.Errorf("expected missing keys to keep defaults, got ddragon host %q", config.DDragon.Host)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Run("environment overrides file values", func(t *testing.T) {
			t.Setenv("CHAMPBOX_DROPBOX_CLIENT_SECRET", "from_env")
			t.Setenv("CHAMPBOX_SERVER_PORT", "4000")

			config := DefaultConfig()
			if err := ApplyEnv(config, filepath.Join(t.TempDir(), "missing.env")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if config.Dropbox.ClientSecret != "from_env" {
				t.Errorf("expected client secret from env, got %s", config.Dropbox.ClientSecret)
			}
			if config.Server.Port != 4000 {
				t.Errorf("expected port 4000, got %d", config.Server.Port)
			}
			if config.Dropbox.ClientID != "your_dropbox_client_id" {
				t.Errorf("unset variables should keep values, got %s", config.Dropbox.ClientID)
			}
		})

		t.Run("dotenv file is loaded", func(t *testing.T) {
			dotenv := filepath.Join(t.TempDir(), ".env")
			if err := os.WriteFile(dotenv, []byte("CHAMPBOX_DDRAGON_VERSION=14.1.1\n"), 0644); err != nil {
				t.Fatalf("failed to write dotenv: %v", err)
			}
			t.Cleanup(func() { os.Unsetenv("CHAMPBOX_DDRAGON_VERSION") })

			config := DefaultConfig()
			if err := ApplyEnv(config, dotenv); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if config.DDragon.Version != "14.1.1" {
				t.Errorf("expected version from dotenv, got %s", config.DDragon.Version)
			}
		})
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(c *Config)
			wantErr error
		}{
			{name: "defaults are valid", mutate: func(c *Config) {}},
			{name: "missing client id", mutate: func(c *Config) { c.Dropbox.ClientID = "" }, wantErr: ErrMissingCredentials},
			{name: "missing secret", mutate: func(c *Config) { c.Dropbox.ClientSecret = "" }, wantErr: ErrMissingCredentials},
			{name: "missing redirect", mutate: func(c *Config) { c.Dropbox.RedirectURI = "" }, wantErr: ErrInvalidConfig},
			{name: "unknown mode", mutate: func(c *Config) { c.Flow.Mode = "sticky" }, wantErr: ErrInvalidConfig},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)

				err := config.Validate()
				if tt.wantErr == nil && err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})
}
