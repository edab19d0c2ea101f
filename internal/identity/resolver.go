package identity

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/mikey/mail-sanitizer/internal/core"
	"go.uber.org/zap"
)

// filenamePattern matches a leading token of at least 30 hex digits and
// hyphens, optionally followed by a colon and any suffix
var filenamePattern = regexp.MustCompile(`^([0-9a-fA-F-]{30,})(?::.*)?$`)

// Resolver derives output identifiers from input file names
type Resolver struct {
	logger   *zap.Logger
	generate func() string
}

// NewResolver creates a new identity resolver
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:   logger,
		generate: uuid.NewString,
	}
}

// Resolve returns the identifier encoded in filename. Names that do not
// follow the convention get a freshly generated identifier.
func (r *Resolver) Resolve(filename string) core.Identifier {
	if m := filenamePattern.FindStringSubmatch(filename); m != nil {
		return core.Identifier{Value: m[1]}
	}

	generated := r.generate()
	r.logger.Warn("Could not resolve identifier from filename, generated a new one",
		zap.String("filename", filename),
		zap.String("generated", generated))

	return core.Identifier{Value: generated, Generated: true}
}
