package eml

import (
	"fmt"
	"io"
	"strings"

	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/zostay/go-email/v2/message"
	"github.com/zostay/go-email/v2/message/header"
	"github.com/zostay/go-email/v2/message/transfer"
)

const (
	mimeVersion = "MIME-Version"

	// maxLineLength is the longest line RFC 5322 allows in a 7bit body
	maxLineLength = 998
)

// Writer serializes clean messages. The header set of the message is written
// as given; the writer only adds the MIME framing fields.
type Writer struct{}

// NewWriter creates a new MIME writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write serializes msg to w
func (wr *Writer) Write(w io.Writer, msg *core.CleanMessage) error {
	if msg == nil {
		return fmt.Errorf("nothing to write")
	}

	body := normalizeBreaks(msg.Body)

	out := &message.Opaque{
		Reader: strings.NewReader(body),
	}
	out.SetBreak(header.CRLF)

	for _, f := range msg.Header.Fields() {
		out.Set(f.Name, f.Value)
	}

	out.Set(mimeVersion, "1.0")
	out.SetMediaType("text/plain")
	if err := out.SetCharset("utf-8"); err != nil {
		return fmt.Errorf("failed to set charset: %w", err)
	}
	out.SetTransferEncoding(chooseTransferEncoding(body))

	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// chooseTransferEncoding picks 7bit for short-lined ASCII text and
// quoted-printable otherwise
func chooseTransferEncoding(body string) string {
	for _, line := range strings.Split(body, "\r\n") {
		if len(line) > maxLineLength {
			return transfer.QuotedPrintable
		}
		for i := 0; i < len(line); i++ {
			c := line[i]
			if c >= 0x80 || c == 0 || c == '\r' || c == '\n' {
				return transfer.QuotedPrintable
			}
		}
	}
	return transfer.Bit7
}

// normalizeBreaks rewrites every line break as CRLF and ends the body with one
func normalizeBreaks(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	if !strings.HasSuffix(body, "\r\n") {
		body += "\r\n"
	}
	return body
}
