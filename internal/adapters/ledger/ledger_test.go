package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// exerciseLedger runs the behaviour every backend must share
func exerciseLedger(t *testing.T, l core.Ledger) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := l.Lookup(ctx, "missing.eml")
	assert.ErrorIs(t, err, core.ErrNotFound)

	first := &core.LedgerEntry{
		SourceFile:  "a.eml",
		Identifier:  "0f8fad5b-d9cb-469f-a165-70867728950e",
		MessageID:   "<a@example.com>",
		Status:      core.StatusFailed,
		Detail:      "failed to parse message",
		ProcessedAt: now.Add(-48 * time.Hour),
	}
	require.NoError(t, l.Record(ctx, first))

	got, err := l.Lookup(ctx, "a.eml")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "failed to parse message", got.Detail)
	assert.True(t, first.ProcessedAt.Equal(got.ProcessedAt))

	// A later run replaces the entry
	replaced := *first
	replaced.Status = core.StatusCleaned
	replaced.Detail = ""
	replaced.ProcessedAt = now
	require.NoError(t, l.Record(ctx, &replaced))

	got, err = l.Lookup(ctx, "a.eml")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCleaned, got.Status)
	assert.Equal(t, "<a@example.com>", got.MessageID)
	assert.True(t, now.Equal(got.ProcessedAt))

	old := &core.LedgerEntry{
		SourceFile:  "old.eml",
		Identifier:  "x",
		Status:      core.StatusCleaned,
		ProcessedAt: now.Add(-72 * time.Hour),
	}
	require.NoError(t, l.Record(ctx, old))

	removed, err := l.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = l.Lookup(ctx, "old.eml")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = l.Lookup(ctx, "a.eml")
	assert.NoError(t, err)

	assert.NoError(t, l.Close())
}

func TestMemoryLedger(t *testing.T) {
	exerciseLedger(t, NewMemoryLedger(zap.NewNop()))
}

func TestMemoryLedgerReturnsCopies(t *testing.T) {
	l := NewMemoryLedger(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, &core.LedgerEntry{SourceFile: "a.eml", Status: core.StatusCleaned}))

	got, err := l.Lookup(ctx, "a.eml")
	require.NoError(t, err)
	got.Status = core.StatusFailed

	again, err := l.Lookup(ctx, "a.eml")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCleaned, again.Status)
}

func TestSQLiteLedger(t *testing.T) {
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)

	exerciseLedger(t, l)
}

func TestSQLiteLedgerPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := NewSQLiteLedger(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, &core.LedgerEntry{SourceFile: "a.eml", Status: core.StatusCleaned, ProcessedAt: time.Now()}))
	require.NoError(t, l.Close())

	reopened, err := NewSQLiteLedger(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Lookup(ctx, "a.eml")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCleaned, got.Status)
}

func TestMySQLLedger(t *testing.T) {
	dsn := os.Getenv("MAIL_SANITIZER_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("MAIL_SANITIZER_TEST_MYSQL_DSN not set")
	}

	l, err := NewMySQLLedger(dsn, zap.NewNop())
	require.NoError(t, err)
	_, err = l.db.Exec(`DELETE FROM sanitizer_ledger`)
	require.NoError(t, err)

	exerciseLedger(t, l)
}
