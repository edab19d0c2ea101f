package eml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/zostay/go-email/v2/message"
	"github.com/zostay/go-email/v2/message/header"
	"github.com/zostay/go-email/v2/message/header/param"
	"go.uber.org/zap"
)

const (
	// DefaultMaxMessageSize bounds the header and every part scanned by the parser
	DefaultMaxMessageSize = 32 << 20

	defaultMediaType = "text/plain"
	opaqueMediaType  = "application/octet-stream"
)

// Parser reads MIME messages into the core message model
type Parser struct {
	logger  *zap.Logger
	maxSize int
}

// NewParser creates a new MIME parser. A maxSize of zero selects DefaultMaxMessageSize.
func NewParser(logger *zap.Logger, maxSize int) *Parser {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Parser{
		logger:  logger,
		maxSize: maxSize,
	}
}

// Parse reads one message from r
func (p *Parser) Parse(r io.Reader) (*core.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: message is empty", core.ErrParse)
	}

	msg, err := message.Parse(bytes.NewReader(data),
		message.WithMaxHeaderLength(p.maxSize),
		message.WithMaxPartLength(p.maxSize),
		message.WithUnlimitedRecursion(),
	)
	if err != nil {
		// A part declared multipart without a boundary leaves the enclosing
		// message unsplit. The message is still usable.
		if !errors.Is(err, message.ErrNoBoundary) || msg == nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		p.logger.Debug("Multipart boundary missing, keeping part unsplit", zap.Error(err))
	}

	root, err := p.convert(msg)
	if err != nil {
		return nil, err
	}

	return &core.RawMessage{
		Header: convertHeader(msg.GetHeader()),
		Root:   root,
	}, nil
}

// convert maps a parsed part onto the Node sum type
func (p *Parser) convert(part message.Part) (core.Node, error) {
	h := part.GetHeader()
	contentType := contentParams(h, header.ContentType)
	disposition := contentParams(h, header.ContentDisposition)

	mediaType := defaultMediaType
	if contentType != nil {
		mediaType = strings.ToLower(contentType.MediaType())
		if !strings.Contains(mediaType, "/") {
			mediaType = opaqueMediaType
		}
	}

	var presentation, filename string
	if disposition != nil {
		presentation = strings.ToLower(disposition.Disposition())
		filename = disposition.Parameter(param.Filename)
	}
	if filename == "" && contentType != nil {
		filename = contentType.Parameter("name")
	}

	if part.IsMultipart() {
		parts := part.GetParts()
		container := &core.Container{
			Subtype:     subtype(mediaType),
			Disposition: presentation,
			Filename:    filename,
			Children:    make([]core.Node, 0, len(parts)),
		}
		for _, child := range parts {
			node, err := p.convert(child)
			if err != nil {
				return nil, err
			}
			container.Children = append(container.Children, node)
		}
		return container, nil
	}

	// Declared multipart but left unsplit by the parser
	if strings.HasPrefix(mediaType, "multipart/") {
		return &core.Container{
			Subtype:     subtype(mediaType),
			Disposition: presentation,
			Filename:    filename,
		}, nil
	}

	var body []byte
	if rd := part.GetReader(); rd != nil {
		b, err := io.ReadAll(rd)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s part: %v", core.ErrParse, mediaType, err)
		}
		body = b
	}

	var charset string
	if contentType != nil {
		charset = contentType.Parameter(param.Charset)
	}

	return &core.TextPart{
		MediaType:        mediaType,
		Charset:          charset,
		TransferEncoding: transferEncoding(h),
		Disposition:      presentation,
		Filename:         filename,
		Body:             body,
	}, nil
}

// contentParams parses the first occurrence of a parameterized field, or nil
// when the field is absent or unreadable
func contentParams(h *header.Header, name string) *param.Value {
	values, err := h.GetAll(name)
	if err != nil || len(values) == 0 {
		return nil
	}
	pv, err := param.Parse(unfold(values[0]))
	if err != nil {
		return nil
	}
	return pv
}

func transferEncoding(h *header.Header) string {
	values, err := h.GetAll(header.ContentTransferEncoding)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(unfold(values[0])))
}

func subtype(mediaType string) string {
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		return mediaType[i+1:]
	}
	return mediaType
}

// convertHeader copies the fields of h in their original order
func convertHeader(h *header.Header) core.Header {
	fields := make([]core.HeaderField, 0, h.Len())
	for i := 0; i < h.Len(); i++ {
		f := h.GetField(i)
		if f == nil {
			continue
		}
		fields = append(fields, core.HeaderField{
			Name:  strings.TrimSpace(f.Name()),
			Value: unfold(f.Body()),
		})
	}
	return core.NewHeader(fields...)
}

// unfold removes the line breaks of folded header lines, keeping the
// whitespace that starts each continuation, and trims the ends
func unfold(s string) string {
	s = strings.NewReplacer("\r\n ", " ", "\r\n\t", "\t", "\n ", " ", "\n\t", "\t").Replace(s)
	s = strings.TrimRight(s, "\r\n")
	return strings.TrimSpace(s)
}
