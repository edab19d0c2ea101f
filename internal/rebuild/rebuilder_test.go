package rebuild

import (
	"regexp"
	"testing"

	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/mikey/mail-sanitizer/internal/utils"
	"github.com/mikey/mail-sanitizer/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var generatedID = regexp.MustCompile(`^<[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}@mail-sanitizer\.local>$`)

func newRebuilder() *Rebuilder {
	logger := zap.NewNop()
	return NewRebuilder(whitelist.NewChecker(nil, logger), utils.NewTextProcessor(logger), logger, "")
}

func raw(fields ...core.HeaderField) *core.RawMessage {
	return &core.RawMessage{Header: core.NewHeader(fields...)}
}

func TestRebuildPreservesMessageID(t *testing.T) {
	msg := raw(
		core.HeaderField{Name: "Received", Value: "from relay"},
		core.HeaderField{Name: "message-id", Value: " <Orig.ID+1@example.com>"},
		core.HeaderField{Name: "Subject", Value: "Hi"},
		core.HeaderField{Name: "X-Campaign", Value: "spring"},
	)

	clean := newRebuilder().Rebuild(msg, core.ExtractedBody{Text: "body"})

	assert.Equal(t, " <Orig.ID+1@example.com>", clean.MessageID())
	assert.Equal(t, []core.HeaderField{
		{Name: "Subject", Value: "Hi"},
		{Name: "Message-ID", Value: " <Orig.ID+1@example.com>"},
	}, clean.Header.Fields())
	assert.Equal(t, "body", clean.Body)
}

func TestRebuildGeneratesMissingMessageID(t *testing.T) {
	msg := raw(
		core.HeaderField{Name: "From", Value: "alice@example.com"},
		core.HeaderField{Name: "References", Value: "<a@x>"},
		core.HeaderField{Name: "Date", Value: "Mon, 1 Jan 2024 10:00:00 +0000"},
	)

	clean := newRebuilder().Rebuild(msg, core.NoContent())

	require.Regexp(t, generatedID, clean.MessageID())
	names := make([]string, 0)
	for _, f := range clean.Header.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"From", "Date", "Message-ID", "References"}, names)
	assert.Equal(t, core.EmptyBody, clean.Body)
}

func TestRebuildReplacesBlankMessageID(t *testing.T) {
	msg := raw(core.HeaderField{Name: "Message-ID", Value: "   "})

	r := newRebuilder()
	r.generate = func() string { return "fixed" }
	r.domain = "example.org"

	clean := r.Rebuild(msg, core.ExtractedBody{Text: "x"})

	assert.Equal(t, "<fixed@example.org>", clean.MessageID())
	values, _ := clean.Header.Values("Message-ID")
	assert.Len(t, values, 1)
}

func TestRebuildFreshIDPerMessage(t *testing.T) {
	r := newRebuilder()

	first := r.Rebuild(raw(), core.ExtractedBody{Text: "a"})
	second := r.Rebuild(raw(), core.ExtractedBody{Text: "a"})

	assert.NotEqual(t, first.MessageID(), second.MessageID())
}

func TestRebuildDoesNotShareState(t *testing.T) {
	r := newRebuilder()
	msg := raw(core.HeaderField{Name: "Subject", Value: "one"})

	clean := r.Rebuild(msg, core.ExtractedBody{Text: "a"})
	fields := clean.Header.Fields()
	fields[0].Value = "changed"

	subject, _ := clean.Header.First("Subject")
	assert.Equal(t, "one", subject)
	original, _ := msg.Header.First("Subject")
	assert.Equal(t, "one", original)
}

func TestRebuildSanitizesBody(t *testing.T) {
	clean := newRebuilder().Rebuild(raw(), core.ExtractedBody{Text: "ok\xff!"})

	assert.Equal(t, "ok!", clean.Body)
}

func TestRebuildKeepsMessageIDOutsideWhitelist(t *testing.T) {
	logger := zap.NewNop()
	r := NewRebuilder(whitelist.NewChecker([]string{"From", "Subject"}, logger), utils.NewTextProcessor(logger), logger, "")

	msg := raw(
		core.HeaderField{Name: "From", Value: "a@example.com"},
		core.HeaderField{Name: "Message-ID", Value: "<keep@example.com>"},
	)

	clean := r.Rebuild(msg, core.ExtractedBody{Text: "body"})

	assert.Equal(t, "<keep@example.com>", clean.MessageID())
	assert.Equal(t, []core.HeaderField{
		{Name: "From", Value: "a@example.com"},
		{Name: "Message-ID", Value: "<keep@example.com>"},
	}, clean.Header.Fields())
}

func TestRebuildGeneratesMessageIDOutsideWhitelist(t *testing.T) {
	logger := zap.NewNop()
	r := NewRebuilder(whitelist.NewChecker([]string{"Subject"}, logger), utils.NewTextProcessor(logger), logger, "")

	clean := r.Rebuild(raw(core.HeaderField{Name: "Subject", Value: "Hi"}), core.NoContent())

	assert.Regexp(t, generatedID, clean.MessageID())
}
