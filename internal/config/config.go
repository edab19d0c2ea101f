package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. An explicit path must exist;
// without one the default locations are searched and a missing file falls
// back to defaults and environment variables.
func New(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("properties")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sanitizer")
		v.AddConfigPath("/etc/mail/")
		v.AddConfigPath("$HOME/.mail-sanitizer")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_SANITIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Directories have no defaults and must be configured
	v.SetDefault("source.directory", "")
	v.SetDefault("target.directory", "")

	// Sanitizer defaults
	v.SetDefault("sanitizer.message_id_domain", "mail-sanitizer.local")
	v.SetDefault("sanitizer.max_depth", 5)
	v.SetDefault("sanitizer.max_message_size", 32<<20)
	v.SetDefault("sanitizer.headers", "")

	// Ledger defaults
	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.type", "memory")
	v.SetDefault("ledger.sqlite_path", "/var/lib/mail-sanitizer/ledger.db")
	v.SetDefault("ledger.mysql_dsn", "user:password@tcp(localhost:3306)/mail_sanitizer")
	v.SetDefault("ledger.skip_processed", false)
	v.SetDefault("ledger.retention", "0s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a comma separated list from the configuration.
// Properties files carry lists as plain strings.
func (c *Config) GetStringSlice(key string) []string {
	var out []string
	for _, item := range c.v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// ConfigFileUsed returns the path of the file that was loaded, if any
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}
