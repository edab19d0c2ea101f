package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/mail-sanitizer/internal/core"
	"go.uber.org/zap"
)

// MySQLLedger is a MySQL implementation of the Ledger interface
type MySQLLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLLedger connects to MySQL and creates the ledger table if needed
func NewMySQLLedger(dsn string, logger *zap.Logger) (*MySQLLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sanitizer_ledger (
			source_file VARCHAR(255) PRIMARY KEY,
			identifier VARCHAR(255) NOT NULL,
			message_id VARCHAR(998) NOT NULL,
			status VARCHAR(16) NOT NULL,
			detail TEXT NOT NULL,
			processed_at DATETIME(6) NOT NULL,
			INDEX idx_processed_at (processed_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLLedger{
		db:     db,
		logger: logger,
	}, nil
}

// Record stores or replaces the entry for a source file
func (l *MySQLLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sanitizer_ledger (source_file, identifier, message_id, status, detail, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			identifier = VALUES(identifier),
			message_id = VALUES(message_id),
			status = VALUES(status),
			detail = VALUES(detail),
			processed_at = VALUES(processed_at)
	`, entry.SourceFile, entry.Identifier, entry.MessageID, string(entry.Status), entry.Detail,
		entry.ProcessedAt.UTC().Format(timeLayout))

	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}

// Lookup retrieves the entry for a source file
func (l *MySQLLedger) Lookup(ctx context.Context, sourceFile string) (*core.LedgerEntry, error) {
	var entry core.LedgerEntry
	var status, processedAt string

	err := l.db.QueryRowContext(ctx, `
		SELECT source_file, identifier, message_id, status, detail, processed_at
		FROM sanitizer_ledger
		WHERE source_file = ?
	`, sourceFile).Scan(&entry.SourceFile, &entry.Identifier, &entry.MessageID, &status, &entry.Detail, &processedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	entry.Status = core.Status(status)
	entry.ProcessedAt, err = time.Parse(timeLayout, processedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse processed_at timestamp: %w", err)
	}

	return &entry, nil
}

// Prune removes entries processed before olderThan
func (l *MySQLLedger) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM sanitizer_ledger
		WHERE processed_at < ?
	`, olderThan.UTC().Format(timeLayout))

	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during pruning", zap.Error(err))
		return 0, nil
	}

	l.logger.Debug("Pruned ledger entries", zap.Int64("removed", rowsAffected))
	return rowsAffected, nil
}

// Close closes the database connection
func (l *MySQLLedger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL database: %w", err)
	}
	return nil
}
