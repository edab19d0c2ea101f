package ports

import (
	"context"

	"github.com/mikey/mail-sanitizer/internal/core"
)

// BatchRunner cleans every message of a source directory into a target directory
type BatchRunner interface {
	// Run processes the batch and returns its summary
	Run(ctx context.Context, source, target string) (core.Summary, error)
}

var _ BatchRunner = (*core.SanitizerService)(nil)
