package html

import (
	"bytes"
	"io"
	"strings"
	"unicode"

	"github.com/mikey/mail-sanitizer/internal/utils"
	"github.com/zostay/go-email/v2/message/transfer"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"
)

// Elements whose content is never visible text
var hiddenElements = map[string]bool{
	"head":     true,
	"title":    true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"object":   true,
	"svg":      true,
}

// Elements that start and end a line of text
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"center": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "tfoot": true, "thead": true, "tr": true,
	"ul": true,
}

// Elements separated from their neighbours by a blank line
var paragraphElements = map[string]bool{
	"p": true, "blockquote": true, "pre": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Converter strips markup from HTML bodies
type Converter struct {
	logger   *zap.Logger
	text     *utils.TextProcessor
	decodeQP func([]byte) ([]byte, error)
}

// NewConverter creates a new HTML-to-text converter
func NewConverter(logger *zap.Logger, text *utils.TextProcessor) *Converter {
	return &Converter{
		logger:   logger,
		text:     text,
		decodeQP: decodeQuotedPrintable,
	}
}

func decodeQuotedPrintable(data []byte) ([]byte, error) {
	return io.ReadAll(transfer.NewQuotedPrintableDecoder(bytes.NewReader(data)))
}

// Convert returns the visible text of an HTML payload. A quoted-printable
// payload is decoded first; when decoding fails the undecoded string is
// parsed instead.
func (c *Converter) Convert(html, transferEncoding, charset string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	data := []byte(html)
	if strings.EqualFold(strings.TrimSpace(transferEncoding), transfer.QuotedPrintable) {
		decoded, err := c.decodeQP(data)
		if err != nil {
			c.logger.Error("Failed to decode quoted-printable HTML, parsing it undecoded",
				zap.Error(err))
		} else {
			data = decoded
		}
	}

	return c.text.NormalizeText(extractText(c.text.ToUTF8(data, charset)))
}

// textWriter accumulates visible text with collapsed whitespace
type textWriter struct {
	buf          strings.Builder
	breaks       int
	pendingSpace bool
}

func (w *textWriter) text(s string, preformatted bool) {
	if preformatted {
		w.buf.WriteString(s)
		w.breaks = len(s) - len(strings.TrimRight(s, "\n"))
		w.pendingSpace = false
		return
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			if w.breaks == 0 {
				w.pendingSpace = true
			}
			continue
		}
		if w.pendingSpace {
			w.buf.WriteByte(' ')
			w.pendingSpace = false
		}
		w.buf.WriteRune(r)
		w.breaks = 0
	}
}

func (w *textWriter) space() {
	if w.breaks == 0 {
		w.pendingSpace = true
	}
}

// lineBreak ends the current line unconditionally
func (w *textWriter) lineBreak() {
	w.buf.WriteByte('\n')
	w.breaks++
	w.pendingSpace = false
}

// block makes sure the output ends with at least n line breaks
func (w *textWriter) block(n int) {
	for w.breaks < n {
		w.buf.WriteByte('\n')
		w.breaks++
	}
	w.pendingSpace = false
}

// extractText walks the token stream and keeps text in document order
func extractText(html string) string {
	z := xhtml.NewTokenizer(strings.NewReader(html))
	w := &textWriter{breaks: 2}
	hidden := 0
	pre := 0

	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			// io.EOF or a malformed tail; either way the document ends here
			return w.buf.String()

		case xhtml.TextToken:
			if hidden > 0 {
				continue
			}
			w.text(string(z.Text()), pre > 0)

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "body" {
				// an unclosed head must not hide the body
				hidden = 0
				continue
			}
			if hiddenElements[tag] {
				if tt == xhtml.StartTagToken {
					hidden++
				}
				continue
			}
			if hidden > 0 {
				continue
			}
			switch {
			case tag == "br":
				w.lineBreak()
			case tag == "td" || tag == "th":
				w.space()
			case paragraphElements[tag]:
				w.block(2)
			case blockElements[tag]:
				w.block(1)
			}
			if tag == "pre" && tt == xhtml.StartTagToken {
				pre++
			}

		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if hiddenElements[tag] {
				if hidden > 0 {
					hidden--
				}
				continue
			}
			if hidden > 0 {
				continue
			}
			if tag == "pre" && pre > 0 {
				pre--
			}
			switch {
			case paragraphElements[tag]:
				w.block(2)
			case blockElements[tag]:
				w.block(1)
			}

		case xhtml.CommentToken, xhtml.DoctypeToken:
			// not visible
		}
	}
}
