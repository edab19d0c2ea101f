package core

import (
	"time"

	"go.uber.org/zap"
)

// Summary aggregates the outcome of one batch run
type Summary struct {
	// Scanned counts the regular files found in the source directory
	Scanned int
	Cleaned int
	Failed  int
	// Skipped counts directory entries that are not regular files
	Skipped int
	// AlreadyProcessed counts files skipped because the ledger marks them cleaned
	AlreadyProcessed     int
	EmptyBodies          int
	GeneratedIdentifiers int
	Duration             time.Duration
}

// Fields returns the summary as structured log fields
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("scanned", s.Scanned),
		zap.Int("cleaned", s.Cleaned),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped),
		zap.Int("already_processed", s.AlreadyProcessed),
		zap.Int("empty_bodies", s.EmptyBodies),
		zap.Int("generated_identifiers", s.GeneratedIdentifiers),
		zap.Duration("duration", s.Duration),
	}
}
