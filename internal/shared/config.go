package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	OAuth    OAuthConfig    `toml:"oauth"`
	Storage  StorageConfig  `toml:"storage"`
	Cache    CacheConfig    `toml:"cache"`
	Provider ProviderConfig `toml:"provider"`
}

// OAuthConfig contains the device-flow OAuth client credentials and endpoints.
//
// The defaults target Google's TV device-flow client; the endpoints are
// overridable so tests can point at a local server.
type OAuthConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	Scope         string `toml:"scope"`
	DeviceAuthURL string `toml:"device_auth_url"`
	TokenURL      string `toml:"token_url"`
}

// StorageConfig contains durable key-value store settings.
type StorageConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CacheConfig contains stream URL cache settings.
type CacheConfig struct {
	TTLHours int `toml:"ttl_hours"`
}

// TTL converts the configured hours to a [time.Duration]; zero or negative
// values yield 0 so consumers fall back to their own default.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return 0
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// ProviderConfig contains provider endpoint overrides.
//
// Empty values fall back to the production YouTube / YouTube Music hosts.
type ProviderConfig struct {
	PlayerBaseURL  string `toml:"player_base_url"`
	MusicBaseURL   string `toml:"music_base_url"`
	SuggestBaseURL string `toml:"suggest_base_url"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
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
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
