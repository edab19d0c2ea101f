package core

import (
	"context"
	"io"
	"time"
)

// MessageParser turns the bytes of one input file into a RawMessage
type MessageParser interface {
	Parse(r io.Reader) (*RawMessage, error)
}

// MessageWriter serializes a CleanMessage
type MessageWriter interface {
	Write(w io.Writer, msg *CleanMessage) error
}

// HeaderFilter selects the header fields kept in a clean message
type HeaderFilter interface {
	Filter(h Header) []HeaderField
}

// HTMLConverter strips markup from an HTML payload
type HTMLConverter interface {
	// Convert decodes html according to transferEncoding and charset and
	// returns its visible text
	Convert(html, transferEncoding, charset string) string
}

// TextExtractor picks the readable body of a message
type TextExtractor interface {
	Extract(msg *RawMessage) ExtractedBody
}

// IdentityResolver derives the output identifier from an input file name
type IdentityResolver interface {
	Resolve(filename string) Identifier
}

// MessageRebuilder assembles the clean message
type MessageRebuilder interface {
	Rebuild(msg *RawMessage, body ExtractedBody) *CleanMessage
}

// Ledger defines the interface for recording per-file outcomes
type Ledger interface {
	// Record stores or replaces the entry for a source file
	Record(ctx context.Context, entry *LedgerEntry) error

	// Lookup retrieves the entry for a source file, or ErrNotFound
	Lookup(ctx context.Context, sourceFile string) (*LedgerEntry, error)

	// Prune removes entries processed before the given time
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases the underlying storage
	Close() error
}
