package extract

import (
	"bytes"
	"io"
	"strings"

	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/mikey/mail-sanitizer/internal/utils"
	"github.com/zostay/go-email/v2/message/transfer"
	"go.uber.org/zap"
)

// DefaultMaxDepth is the deepest nesting searched below a related container
const DefaultMaxDepth = 5

const (
	dispositionAttachment = "attachment"
	dispositionInline     = "inline"
)

// Extractor picks the readable body of a parsed message
type Extractor struct {
	converter core.HTMLConverter
	text      *utils.TextProcessor
	logger    *zap.Logger
	maxDepth  int
}

// NewExtractor creates a new text extractor. A negative maxDepth selects DefaultMaxDepth.
func NewExtractor(converter core.HTMLConverter, text *utils.TextProcessor, logger *zap.Logger, maxDepth int) *Extractor {
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Extractor{
		converter: converter,
		text:      text,
		logger:    logger,
		maxDepth:  maxDepth,
	}
}

// Extract returns the readable text of msg, or the empty sentinel when the
// message carries none
func (e *Extractor) Extract(msg *core.RawMessage) core.ExtractedBody {
	var text string
	if msg != nil {
		switch root := msg.Root.(type) {
		case *core.TextPart:
			text = e.single(root)
		case *core.Container:
			text = e.scan(root)
		}
	}

	if strings.TrimSpace(text) == "" {
		e.logger.Warn("No readable text content found in this message")
		return core.NoContent()
	}

	return core.ExtractedBody{Text: text}
}

// single handles a message whose body is one payload
func (e *Extractor) single(part *core.TextPart) string {
	switch {
	case part.IsPlain():
		e.logger.Debug("Found direct text/plain content")
		return e.decode(part)
	case part.IsHTML():
		e.logger.Debug("Converting text/html to plain text")
		return e.html(part)
	}
	e.logger.Debug("Message body is not text", zap.String("media_type", part.MediaType))
	return ""
}

// scan looks at the immediate children of the root container. The first
// plain, HTML or related child decides the result.
func (e *Extractor) scan(root *core.Container) string {
	e.logger.Debug("Processing multipart message",
		zap.String("subtype", root.Subtype),
		zap.Int("parts", len(root.Children)))

	for _, child := range root.Children {
		switch node := child.(type) {
		case *core.TextPart:
			if node.IsPlain() {
				return e.decode(node)
			}
			if node.IsHTML() {
				return e.html(node)
			}
		case *core.Container:
			if node.Subtype == "related" {
				return e.recurse(node, 0)
			}
		}
	}
	return ""
}

// recurse searches depth-first for the first non-empty text. Attachments are
// skipped and nothing below maxDepth is visited.
func (e *Extractor) recurse(n core.Node, depth int) string {
	if depth > e.maxDepth {
		e.logger.Debug("Maximum multipart depth exceeded", zap.Int("depth", depth))
		return ""
	}

	switch node := n.(type) {
	case *core.Container:
		for _, child := range node.Children {
			if isAttachment(child) {
				continue
			}
			if result := e.recurse(child, depth+1); result != "" {
				return result
			}
		}
		return ""

	case *core.TextPart:
		if node.IsHTML() {
			return e.html(node)
		}
		if strings.HasPrefix(node.MediaType, "text/") {
			return strings.TrimSpace(e.decode(node))
		}
	}

	return ""
}

func isAttachment(n core.Node) bool {
	var disposition, filename string
	switch node := n.(type) {
	case *core.TextPart:
		disposition, filename = node.Disposition, node.Filename
	case *core.Container:
		disposition, filename = node.Disposition, node.Filename
	}

	switch strings.ToLower(disposition) {
	case dispositionAttachment:
		return true
	case dispositionInline:
		return filename != ""
	}
	return false
}

// html hands an HTML part to the converter. Quoted-printable payloads are
// passed still encoded; the converter decodes them.
func (e *Extractor) html(part *core.TextPart) string {
	if isQuotedPrintable(part) {
		return e.converter.Convert(string(part.Body), part.TransferEncoding, part.Charset)
	}
	return e.converter.Convert(string(e.transferDecode(part)), part.TransferEncoding, part.Charset)
}

// decode returns the payload as UTF-8 text
func (e *Extractor) decode(part *core.TextPart) string {
	return e.text.ToUTF8(e.transferDecode(part), part.Charset)
}

// transferDecode undoes the content transfer encoding. Unknown encodings and
// decode failures leave the bytes as they are.
func (e *Extractor) transferDecode(part *core.TextPart) []byte {
	tc, ok := transfer.Transcodings[part.TransferEncoding]
	if !ok {
		e.logger.Debug("Unknown transfer encoding, using body as-is",
			zap.String("encoding", part.TransferEncoding))
		return part.Body
	}

	decoded, err := io.ReadAll(tc.Decoder(bytes.NewReader(part.Body)))
	if err != nil {
		e.logger.Warn("Failed to decode part body, using it as-is",
			zap.String("encoding", part.TransferEncoding),
			zap.Error(err))
		return part.Body
	}
	return decoded
}

func isQuotedPrintable(part *core.TextPart) bool {
	return part.TransferEncoding == transfer.QuotedPrintable
}
