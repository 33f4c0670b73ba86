package shared

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./ptx.db" {
			t.Errorf("expected database path ./ptx.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.YouTube.ProxyURL != "http://127.0.0.1:8080" {
			t.Errorf("expected youtube proxy URL http://127.0.0.1:8080, got %s", config.Credentials.YouTube.ProxyURL)
		}

		if config.Transfer.NameSuffix != " (transferred)" {
			t.Errorf("expected name suffix ' (transferred)', got %q", config.Transfer.NameSuffix)
		}

		if config.Transfer.SummaryLimit != 5 {
			t.Errorf("expected summary limit 5, got %d", config.Transfer.SummaryLimit)
		}

		if config.HTTP.TimeoutDuration() != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", config.HTTP.TimeoutDuration())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
port = 8081

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
access_token = "abc"
refresh_token = "def"
token_expiry = "2030-01-02T03:04:05Z"

[credentials.tidal]
client_id = "tidal_id"
country_code = "NO"

[transfer]
workers = 4
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 8081 {
			t.Errorf("expected server port 8081, got %d", config.Server.Port)
		}
		if config.Server.Host != "127.0.0.1" {
			t.Errorf("expected default host to survive partial config, got %s", config.Server.Host)
		}
		if config.Credentials.Tidal.CountryCode != "NO" {
			t.Errorf("expected country code NO, got %s", config.Credentials.Tidal.CountryCode)
		}
		if config.Transfer.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", config.Transfer.Workers)
		}

		token := config.Credentials.Spotify.Token()
		if token == nil || token.AccessToken != "abc" || token.RefreshToken != "def" {
			t.Fatalf("unexpected token %+v", token)
		}
		if token.Expiry.Year() != 2030 {
			t.Errorf("expected expiry year 2030, got %v", token.Expiry)
		}
	})

	t.Run("LoadConfig invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()

		expiry := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
		if err := config.Credentials.Tidal.Update(&oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: expiry}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		if err := SaveConfig(context.Background(), configPath, config); err != nil {
			t.Fatalf("SaveConfig failed: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		token := loaded.Credentials.Tidal.Token()
		if token == nil || token.AccessToken != "new" || !token.Expiry.Equal(expiry) {
			t.Errorf("unexpected token after round trip: %+v", token)
		}
	})

	t.Run("FindConfig", func(t *testing.T) {
		dir := t.TempDir()
		explicit := filepath.Join(dir, "custom.toml")

		if _, err := FindConfig(explicit); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig for missing explicit path, got %v", err)
		}

		if err := os.WriteFile(explicit, []byte(""), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		got, err := FindConfig(explicit)
		if err != nil || got != explicit {
			t.Errorf("FindConfig() = %q, %v; want %q", got, err, explicit)
		}
	})
}

func TestOAuthTokenConfig(t *testing.T) {
	t.Run("Token nil when empty", func(t *testing.T) {
		if tok := (OAuthTokenConfig{}).Token(); tok != nil {
			t.Errorf("expected nil token, got %+v", tok)
		}
	})

	t.Run("Update keeps refresh token", func(t *testing.T) {
		c := OAuthTokenConfig{AccessToken: "old", RefreshToken: "keep"}
		if err := c.Update(&oauth2.Token{AccessToken: "fresh"}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if c.AccessToken != "fresh" || c.RefreshToken != "keep" {
			t.Errorf("unexpected config %+v", c)
		}
		if c.TokenExpiry != "" {
			t.Errorf("expected empty expiry for zero time, got %q", c.TokenExpiry)
		}
	})

	t.Run("Update rejects empty token", func(t *testing.T) {
		c := OAuthTokenConfig{}
		if err := c.Update(&oauth2.Token{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
