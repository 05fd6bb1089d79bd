// Package config resolves the server's configuration from its YAML
// config file, environment and command line before the core runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig holds the IMAP server connection settings.
type ServerConfig struct {
	// Host is the IMAP server hostname.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the IMAP server port. Zero selects the conventional
	// default for the chosen TLS mode (993 direct, 143 STARTTLS).
	Port int `mapstructure:"port" yaml:"port"`

	// StartTLS upgrades a plaintext connection instead of dialing
	// TLS directly.
	StartTLS bool `mapstructure:"starttls" yaml:"starttls"`
}

// AuthConfig holds the account credentials. An empty password is
// resolved from the system keyring at startup.
type AuthConfig struct {
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
}

// CacheConfig controls the optional local body cache.
type CacheConfig struct {
	// Path is the sqlite database location; empty disables caching.
	Path string `mapstructure:"path" yaml:"path"`
}

// Config is the top-level configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Auth   AuthConfig   `mapstructure:"auth" yaml:"auth"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
}

// DefaultPath returns the default config file location,
// ~/.config/mcp-server-imap/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mcp-server-imap", "config.yaml")
}

// Load reads the configuration from the given YAML file. A missing
// file is not an error; it yields an empty configuration for the
// flags and environment to fill in.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return &Config{}, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyDefaults fills in values that depend on other settings.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		if c.Server.StartTLS {
			c.Server.Port = 143
		} else {
			c.Server.Port = 993
		}
	}
}

// Validate checks that the configuration is complete enough to open
// sessions.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("no IMAP server host configured")
	}
	if c.Auth.User == "" {
		return fmt.Errorf("no IMAP user configured")
	}
	if c.Auth.Password == "" {
		return fmt.Errorf("no IMAP password available (config, environment or keyring)")
	}
	return nil
}
