package whitelist

import (
	"strings"

	"github.com/mikey/mail-sanitizer/internal/core"
	"go.uber.org/zap"
)

// DefaultHeaders lists the header fields carried into a cleaned message, in output order
var DefaultHeaders = []string{
	"From",
	"To",
	"Cc",
	"Bcc",
	"Subject",
	"Date",
	"Message-ID",
	"In-Reply-To",
	"Reply-To",
	"References",
}

// Checker decides which header fields survive sanitization
type Checker struct {
	names  []string
	index  map[string]struct{}
	logger *zap.Logger
}

// NewChecker creates a new header whitelist checker. An empty list selects DefaultHeaders.
func NewChecker(names []string, logger *zap.Logger) *Checker {
	if len(names) == 0 {
		names = DefaultHeaders
	}

	normalizedNames := make([]string, 0, len(names))
	index := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = struct{}{}
		normalizedNames = append(normalizedNames, name)
	}

	if logger != nil {
		logger.Debug("Initialized header whitelist", zap.Strings("headers", normalizedNames))
	}

	return &Checker{
		names:  normalizedNames,
		index:  index,
		logger: logger,
	}
}

// IsWhitelisted checks if the header field name is in the whitelist
func (c *Checker) IsWhitelisted(name string) bool {
	_, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Filter copies the whitelisted fields of h in whitelist order. Only the
// first value of a repeated field is kept and every other field is dropped.
func (c *Checker) Filter(h core.Header) []core.HeaderField {
	fields := make([]core.HeaderField, 0, len(c.names))
	for _, name := range c.names {
		value, ok := h.First(name)
		if !ok {
			continue
		}
		fields = append(fields, core.HeaderField{Name: name, Value: value})
	}

	if c.logger != nil {
		c.logger.Debug("Filtered header fields",
			zap.Int("original", h.Len()),
			zap.Int("kept", len(fields)))
	}

	return fields
}
