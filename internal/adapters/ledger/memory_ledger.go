package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/mail-sanitizer/internal/core"
	"go.uber.org/zap"
)

// MemoryLedger is an in-memory implementation of the Ledger interface.
// Entries live for the lifetime of the process.
type MemoryLedger struct {
	entries map[string]core.LedgerEntry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]core.LedgerEntry),
		logger:  logger,
	}
}

// Record stores or replaces the entry for a source file
func (l *MemoryLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[entry.SourceFile] = *entry
	return nil
}

// Lookup retrieves the entry for a source file
func (l *MemoryLedger) Lookup(ctx context.Context, sourceFile string) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[sourceFile]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &entry, nil
}

// Prune removes entries processed before olderThan
func (l *MemoryLedger) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int64
	for key, entry := range l.entries {
		if entry.ProcessedAt.Before(olderThan) {
			delete(l.entries, key)
			removed++
		}
	}

	l.logger.Debug("Pruned ledger entries", zap.Int64("removed", removed))
	return removed, nil
}

// Close releases nothing for the in-memory ledger
func (l *MemoryLedger) Close() error {
	return nil
}
