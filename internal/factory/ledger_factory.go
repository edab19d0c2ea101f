package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-sanitizer/internal/adapters/ledger"
	"github.com/mikey/mail-sanitizer/internal/config"
	"github.com/mikey/mail-sanitizer/internal/core"
	"go.uber.org/zap"
)

// LedgerFactory creates processing ledgers based on configuration
type LedgerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) *LedgerFactory {
	return &LedgerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLedger creates a ledger based on the configuration. It returns a
// nil ledger when the ledger is disabled.
func (f *LedgerFactory) CreateLedger() (core.Ledger, error) {
	settings, err := f.cfg.GetLedger()
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		f.logger.Debug("Ledger disabled")
		return nil, nil
	}

	f.logger.Info("Opening ledger", zap.String("type", settings.Type))

	switch settings.Type {
	case "memory":
		return ledger.NewMemoryLedger(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(settings.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return ledger.NewSQLiteLedger(settings.SQLitePath, f.logger)
	case "mysql":
		return ledger.NewMySQLLedger(settings.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("%w: unsupported ledger type: %s", core.ErrConfiguration, settings.Type)
	}
}
