package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Feed        FeedConfig        `toml:"feed"`
	Archive     ArchiveConfig     `toml:"archive"`
	Database    DatabaseConfig    `toml:"database"`
	Credentials CredentialsConfig `toml:"credentials"`
}

// FeedConfig identifies the broadcast feed to mirror.
type FeedConfig struct {
	BaseURL string `toml:"base_url"`
	Channel string `toml:"channel"`
}

// ArchiveConfig controls playlist naming, rotation and local state paths.
type ArchiveConfig struct {
	PlaylistPrefix string  `toml:"playlist_prefix"`
	LedgerPath     string  `toml:"ledger_path"`
	StatePath      string  `toml:"state_path"`
	MaxCapacity    int     `toml:"max_capacity"`
	RotationMargin int     `toml:"rotation_margin"`
	AppendRate     float64 `toml:"append_rate"`
	Public         bool    `toml:"public"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// ApplyEnv lets SPOTIFY_* environment variables override any of these,
// so secrets can stay out of config.toml entirely.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	RedirectURI  string `toml:"redirect_uri"`
	UserID       string `toml:"user_id"`
}

// DatabaseConfig contains journal database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
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
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays SPOTIFY_* environment variables onto the Spotify credentials.
//
// Call LoadDotenv first to pick up a local .env file.
func (c *Config) ApplyEnv() {
	sp := &c.Credentials.Spotify
	sp.ClientID = Getenv("SPOTIFY_CLIENT_ID", sp.ClientID)
	sp.ClientSecret = Getenv("SPOTIFY_CLIENT_SECRET", sp.ClientSecret)
	sp.RefreshToken = Getenv("SPOTIFY_REFRESH_TOKEN", sp.RefreshToken)
	sp.UserID = Getenv("SPOTIFY_USER_ID", sp.UserID)
}

// Validate checks that the credentials required for playlist mutation are present.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: client_id and client_secret are required", ErrMissingCredentials)
	}
	if sp.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrMissingCredentials)
	}
	return nil
}
