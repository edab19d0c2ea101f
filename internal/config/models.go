package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/mail-sanitizer/internal/core"
)

// DirectoryConfig holds the batch source and target directories
type DirectoryConfig struct {
	Source string
	Target string
}

// SanitizerConfig represents the cleaning pipeline settings
type SanitizerConfig struct {
	MessageIDDomain string
	MaxDepth        int
	MaxMessageSize  int
	Headers         []string
}

// LedgerConfig represents the processing ledger settings
type LedgerConfig struct {
	Enabled       bool
	Type          string
	SQLitePath    string
	MySQLDSN      string
	SkipProcessed bool
	Retention     time.Duration
}

// LoggingConfig represents the logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// GetDirectories returns the directory configuration
func (c *Config) GetDirectories() DirectoryConfig {
	return DirectoryConfig{
		Source: strings.TrimSpace(c.GetString("source.directory")),
		Target: strings.TrimSpace(c.GetString("target.directory")),
	}
}

// GetSanitizer returns the sanitizer configuration
func (c *Config) GetSanitizer() SanitizerConfig {
	return SanitizerConfig{
		MessageIDDomain: strings.TrimSpace(c.GetString("sanitizer.message_id_domain")),
		MaxDepth:        c.GetInt("sanitizer.max_depth"),
		MaxMessageSize:  c.GetInt("sanitizer.max_message_size"),
		Headers:         c.GetStringSlice("sanitizer.headers"),
	}
}

// GetLedger returns the ledger configuration
func (c *Config) GetLedger() (LedgerConfig, error) {
	retention, err := c.GetDuration("ledger.retention")
	if err != nil {
		return LedgerConfig{}, fmt.Errorf("%w: invalid ledger retention: %v", core.ErrConfiguration, err)
	}

	return LedgerConfig{
		Enabled:       c.GetBool("ledger.enabled"),
		Type:          strings.ToLower(strings.TrimSpace(c.GetString("ledger.type"))),
		SQLitePath:    c.GetString("ledger.sqlite_path"),
		MySQLDSN:      c.GetString("ledger.mysql_dsn"),
		SkipProcessed: c.GetBool("ledger.skip_processed"),
		Retention:     retention,
	}, nil
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  strings.ToLower(strings.TrimSpace(c.GetString("logging.level"))),
		Format: strings.ToLower(strings.TrimSpace(c.GetString("logging.format"))),
	}
}

// Validate checks the settings the batch cannot start without
func (c *Config) Validate() error {
	dirs := c.GetDirectories()
	if dirs.Source == "" {
		return fmt.Errorf("%w: source.directory is blank", core.ErrConfiguration)
	}
	if dirs.Target == "" {
		return fmt.Errorf("%w: target.directory is blank", core.ErrConfiguration)
	}
	if c.GetSanitizer().MaxDepth < 0 {
		return fmt.Errorf("%w: sanitizer.max_depth must not be negative", core.ErrConfiguration)
	}
	if _, err := c.GetLedger(); err != nil {
		return err
	}
	return nil
}
