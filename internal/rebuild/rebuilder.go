package rebuild

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/mikey/mail-sanitizer/internal/utils"
	"go.uber.org/zap"
)

const (
	messageIDField = "Message-ID"

	// DefaultDomain is the right-hand side of generated Message-ID values
	DefaultDomain = "mail-sanitizer.local"
)

// Fields that follow Message-ID in the output
var afterMessageID = []string{"In-Reply-To", "Reply-To", "References"}

// Rebuilder assembles clean messages from parsed ones
type Rebuilder struct {
	filter   core.HeaderFilter
	text     *utils.TextProcessor
	logger   *zap.Logger
	domain   string
	generate func() string
}

// NewRebuilder creates a new message rebuilder
func NewRebuilder(filter core.HeaderFilter, text *utils.TextProcessor, logger *zap.Logger, domain string) *Rebuilder {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		domain = DefaultDomain
	}
	return &Rebuilder{
		filter:   filter,
		text:     text,
		logger:   logger,
		domain:   domain,
		generate: uuid.NewString,
	}
}

// Rebuild returns a new message holding the whitelisted header fields of msg
// and body as its only content. The original Message-ID is kept unchanged
// when it is present and not blank; otherwise a new one is generated.
func (r *Rebuilder) Rebuild(msg *core.RawMessage, body core.ExtractedBody) *core.CleanMessage {
	var original core.Header
	if msg != nil {
		original = msg.Header
	}

	subject, _ := original.First("Subject")
	id, hasID := original.First(messageIDField)
	r.logger.Debug("Loaded message",
		zap.String("subject", subject),
		zap.String("message_id", id))

	fields := r.filter.Filter(original)

	if !hasID || strings.TrimSpace(id) == "" {
		id = fmt.Sprintf("<%s@%s>", r.generate(), r.domain)
		r.logger.Debug("Message has no Message-ID, generated one", zap.String("message_id", id))
	}
	// Message-ID is carried whatever the whitelist says
	fields = setMessageID(fields, id)

	return &core.CleanMessage{
		Header: core.NewHeader(fields...),
		Body:   r.text.SanitizeUTF8(body.String()),
	}
}

// setMessageID overwrites the Message-ID field or inserts one ahead of the
// threading fields
func setMessageID(fields []core.HeaderField, value string) []core.HeaderField {
	for i := range fields {
		if strings.EqualFold(fields[i].Name, messageIDField) {
			fields[i].Value = value
			return fields
		}
	}

	pos := len(fields)
	for i, f := range fields {
		if isAfterMessageID(f.Name) {
			pos = i
			break
		}
	}

	out := make([]core.HeaderField, 0, len(fields)+1)
	out = append(out, fields[:pos]...)
	out = append(out, core.HeaderField{Name: messageIDField, Value: value})
	return append(out, fields[pos:]...)
}

func isAfterMessageID(name string) bool {
	for _, n := range afterMessageID {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
