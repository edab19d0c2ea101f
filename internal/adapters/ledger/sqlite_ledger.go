package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mail-sanitizer/internal/core"
	"go.uber.org/zap"
)

// timeLayout sorts lexically in the same order as the instants it encodes
const timeLayout = "2006-01-02 15:04:05.000000"

// SQLiteLedger is a SQLite implementation of the Ledger interface
type SQLiteLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteLedger opens or creates a SQLite ledger at dbPath
func NewSQLiteLedger(dbPath string, logger *zap.Logger) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sanitizer_ledger (
			source_file TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			message_id TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL,
			processed_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on processed_at for faster pruning
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_processed_at ON sanitizer_ledger(processed_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteLedger{
		db:     db,
		logger: logger,
	}, nil
}

// Record stores or replaces the entry for a source file
func (l *SQLiteLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sanitizer_ledger (source_file, identifier, message_id, status, detail, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.SourceFile, entry.Identifier, entry.MessageID, string(entry.Status), entry.Detail,
		entry.ProcessedAt.UTC().Format(timeLayout))

	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}

// Lookup retrieves the entry for a source file
func (l *SQLiteLedger) Lookup(ctx context.Context, sourceFile string) (*core.LedgerEntry, error) {
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
func (l *SQLiteLedger) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
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
func (l *SQLiteLedger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
