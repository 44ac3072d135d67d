package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains the program configuration
type Config struct {
	Verbose             bool     `yaml:"verbose"`
	DataDir             string   `yaml:"data_dir"`
	RelayURL            string   `yaml:"relay_url"`
	RelayAddr           string   `yaml:"relay_addr"`
	WebAddr             string   `yaml:"web_addr"`
	GeminiAPIKey        string   `yaml:"gemini_api_key,omitempty"`
	GeminiModels        []string `yaml:"gemini_models,omitempty"`
	SpotifyClientID     string   `yaml:"spotify_client_id,omitempty"`
	SpotifyClientSecret string   `yaml:"spotify_client_secret,omitempty"`
	CacheTTLDays        int      `yaml:"cache_ttl_days"`
	HTTPTimeoutSeconds  int      `yaml:"http_timeout_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Verbose:            false,
		DataDir:            filepath.Join(homeDir(), ".local", "share", "musicinfo"),
		RelayURL:           "http://localhost:3001",
		RelayAddr:          "localhost:3001",
		WebAddr:            "localhost:8080",
		CacheTTLDays:       7,
		HTTPTimeoutSeconds: 30,
	}
}

// LoadConfigFile loads configuration from a YAML file and applies
// environment overrides. If path is empty, searches standard locations.
// Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.DataDir = ExpandHome(cfg.DataDir)

	return cfg, nil
}

// ApplyEnv overrides secrets from the environment when set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.SpotifyClientID = v
	}
	if v := getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.SpotifyClientSecret = v
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./musicinfo.yaml",
		"./musicinfo.yml",
		filepath.Join(home, ".config", "musicinfo", "config.yaml"),
		filepath.Join(home, ".config", "musicinfo", "config.yml"),
		filepath.Join(home, ".musicinfo.yaml"),
		filepath.Join(home, ".musicinfo.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "musicinfo", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "musicinfo", "logs")
}

// DBPath is the location of the local key/value database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "musicinfo.db")
}

// CacheTTL is the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// HTTPTimeout bounds a single provider HTTP call.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// HasSpotifyCredentials reports whether both Spotify credentials are set.
func (c *Config) HasSpotifyCredentials() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}

	if c.RelayURL == "" {
		return fmt.Errorf("relay_url cannot be empty")
	}
	if !strings.HasPrefix(c.RelayURL, "http://") && !strings.HasPrefix(c.RelayURL, "https://") {
		return fmt.Errorf("relay_url must start with http:// or https://")
	}

	if c.CacheTTLDays < 1 {
		return fmt.Errorf("cache_ttl_days must be at least 1, got %d", c.CacheTTLDays)
	}
	if c.CacheTTLDays > 365 {
		return fmt.Errorf("cache_ttl_days cannot exceed 365, got %d", c.CacheTTLDays)
	}

	if c.HTTPTimeoutSeconds < 1 || c.HTTPTimeoutSeconds > 600 {
		return fmt.Errorf("http_timeout_seconds must be between 1 and 600, got %d", c.HTTPTimeoutSeconds)
	}

	if len(c.GeminiModels) > 2 {
		return fmt.Errorf("gemini_models takes a primary and at most one fallback model, got %d", len(c.GeminiModels))
	}
	for _, m := range c.GeminiModels {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("gemini_models cannot contain empty names")
		}
	}

	if (c.SpotifyClientID == "") != (c.SpotifyClientSecret == "") {
		return fmt.Errorf("spotify_client_id and spotify_client_secret must be set together")
	}

	return nil
}
