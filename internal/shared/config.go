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
	Database  DatabaseConfig  `toml:"database"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Sync      SyncConfig      `toml:"sync"`
	Playback  PlaybackConfig  `toml:"playback"`
	Server    ServerConfig    `toml:"server"`
	Providers ProvidersConfig `toml:"providers"`
}

// DatabaseConfig contains library snapshot persistence settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ResolverConfig tunes the identity resolver's matching behavior.
type ResolverConfig struct {
	DurationToleranceSec int     `toml:"duration_tolerance_seconds"`
	FuzzyThreshold       float64 `toml:"fuzzy_threshold"`
}

// SyncConfig controls the sync scheduler.
type SyncConfig struct {
	Interval      duration `toml:"interval"`
	CallTimeout   duration `toml:"call_timeout"`
	RetryAttempts int      `toml:"retry_attempts"`
}

// PlaybackConfig controls playback source selection.
type PlaybackConfig struct {
	// ProviderOrder is the tie-break preference when two sources have equal
	// quality; earlier entries win.
	ProviderOrder []string `toml:"provider_order"`
}

// ServerConfig contains HTTP status/browse API settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ProvidersConfig contains per-adapter configuration keyed by provider id.
type ProvidersConfig struct {
	Filesystem FilesystemConfig `toml:"filesystem"`
	Spotify    SpotifyConfig    `toml:"spotify"`
	Radio      RadioConfig      `toml:"radio"`
}

// FilesystemConfig configures the local disk adapter.
type FilesystemConfig struct {
	Enabled bool     `toml:"enabled"`
	Roots   []string `toml:"roots"`
}

// SpotifyConfig configures the streaming-service adapter.
type SpotifyConfig struct {
	Enabled      bool    `toml:"enabled"`
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RedirectURI  string  `toml:"redirect_uri"`
	TokenPath    string  `toml:"token_path"`
	RateLimit    float64 `toml:"rate_limit"`
}

// RadioConfig configures the internet radio directory adapter.
type RadioConfig struct {
	Enabled      bool     `toml:"enabled"`
	DirectoryURL string   `toml:"directory_url"`
	Tags         []string `toml:"tags"`
	Limit        int      `toml:"limit"`
}

// duration wraps time.Duration for TOML string parsing ("3h", "30s").
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, text)
	}
	*d = duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d duration) Std() time.Duration { return time.Duration(d) }

// SyncInterval returns the periodic sync interval with a default.
func (c *Config) SyncInterval() time.Duration {
	if c.Sync.Interval.Std() <= 0 {
		return 3 * time.Hour
	}
	return c.Sync.Interval.Std()
}

// CallTimeout returns the per-provider-call timeout with a default.
func (c *Config) CallTimeout() time.Duration {
	if c.Sync.CallTimeout.Std() <= 0 {
		return 30 * time.Second
	}
	return c.Sync.CallTimeout.Std()
}

// RetryAttempts returns the bounded transient-retry count with a default.
func (c *Config) RetryAttempts() int {
	if c.Sync.RetryAttempts <= 0 {
		return 3
	}
	return c.Sync.RetryAttempts
}

// DurationTolerance returns the resolver's duration match window with a default.
func (c *Config) DurationTolerance() time.Duration {
	if c.Resolver.DurationToleranceSec <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Resolver.DurationToleranceSec) * time.Second
}

// FuzzyThreshold returns the resolver's similarity threshold with a default.
func (c *Config) FuzzyThreshold() float64 {
	if c.Resolver.FuzzyThreshold <= 0 {
		return 0.92
	}
	return c.Resolver.FuzzyThreshold
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
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
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
