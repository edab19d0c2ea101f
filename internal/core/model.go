package core

import (
	"strings"
	"time"
)

// EmptyBody is the placeholder written when a message has no readable text
const EmptyBody = "(empty)"

// HeaderField is a single header line of a message
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered list of header fields. Name lookups are case-insensitive.
type Header struct {
	fields []HeaderField
}

// NewHeader creates a header from fields in their original order
func NewHeader(fields ...HeaderField) Header {
	cp := make([]HeaderField, len(fields))
	copy(cp, fields)
	return Header{fields: cp}
}

// Values returns every value of the named field in order of occurrence.
// The boolean is false when the field does not occur at all.
func (h Header) Values(name string) ([]string, bool) {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values, len(values) > 0
}

// First returns the first value of the named field
func (h Header) First(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns a copy of all header fields
func (h Header) Fields() []HeaderField {
	cp := make([]HeaderField, len(h.fields))
	copy(cp, h.fields)
	return cp
}

// Len returns the number of header fields
func (h Header) Len() int {
	return len(h.fields)
}

// Node is one node of a parsed MIME tree. It is either a *TextPart or a
// *Container; consumers switch on the concrete type.
type Node interface {
	node()
}

// TextPart is a terminal payload. Body still carries its transfer encoding.
type TextPart struct {
	MediaType        string
	Charset          string
	TransferEncoding string
	Disposition      string
	Filename         string
	Body             []byte
}

func (*TextPart) node() {}

// IsPlain reports whether the part is declared as text/plain
func (p *TextPart) IsPlain() bool {
	return p.MediaType == "text/plain"
}

// IsHTML reports whether the part is declared as text/html
func (p *TextPart) IsHTML() bool {
	return p.MediaType == "text/html"
}

// Container is a multipart node with ordered children
type Container struct {
	Subtype     string
	Disposition string
	Filename    string
	Children    []Node
}

func (*Container) node() {}

// RawMessage is the parsed, read-only form of one input file
type RawMessage struct {
	Header Header
	Root   Node
}

// ExtractedBody is the readable text chosen for a message
type ExtractedBody struct {
	Text  string
	Empty bool
}

// NoContent is the sentinel body for messages without readable text
func NoContent() ExtractedBody {
	return ExtractedBody{Text: EmptyBody, Empty: true}
}

// String renders the body, using the placeholder for the empty sentinel
func (b ExtractedBody) String() string {
	if b.Empty {
		return EmptyBody
	}
	return b.Text
}

// Identifier is the token used to name an output file
type Identifier struct {
	Value     string
	Generated bool
}

// CleanMessage is a freshly built message holding only whitelisted headers
// and a single UTF-8 plain-text body. Its header set is final.
type CleanMessage struct {
	Header Header
	Body   string
}

// MessageID returns the identifier header of the clean message
func (m CleanMessage) MessageID() string {
	id, _ := m.Header.First("Message-ID")
	return id
}

// Status is the recorded outcome of sanitizing one file
type Status string

const (
	StatusCleaned Status = "cleaned"
	StatusFailed  Status = "failed"
)

// LedgerEntry records what happened to one source file
type LedgerEntry struct {
	SourceFile  string
	Identifier  string
	MessageID   string
	Status      Status
	Detail      string
	ProcessedAt time.Time
}
