package extract

import (
	"testing"

	"github.com/mikey/mail-sanitizer/internal/adapters/html"
	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/mikey/mail-sanitizer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newExtractor(logger *zap.Logger) *Extractor {
	text := utils.NewTextProcessor(logger)
	return NewExtractor(html.NewConverter(logger, text), text, logger, DefaultMaxDepth)
}

func plain(body string) *core.TextPart {
	return &core.TextPart{MediaType: "text/plain", Body: []byte(body)}
}

func htmlPart(body string) *core.TextPart {
	return &core.TextPart{MediaType: "text/html", Body: []byte(body)}
}

func related(children ...core.Node) *core.Container {
	return &core.Container{Subtype: "related", Children: children}
}

// nested wraps leaf in the given number of related containers
func nested(levels int, leaf core.Node) core.Node {
	n := leaf
	for i := 0; i < levels; i++ {
		n = related(n)
	}
	return n
}

func message(root core.Node) *core.RawMessage {
	return &core.RawMessage{Root: root}
}

func TestExtractPlainRootVerbatim(t *testing.T) {
	body := newExtractor(zap.NewNop()).Extract(message(plain("Hello\r\n  there\r\n")))

	assert.False(t, body.Empty)
	assert.Equal(t, "Hello\r\n  there\r\n", body.Text)
}

func TestExtractHTMLRoot(t *testing.T) {
	body := newExtractor(zap.NewNop()).Extract(message(htmlPart("<p>Hello <b>World</b></p>")))

	assert.Equal(t, "Hello World", body.String())
	assert.NotContains(t, body.Text, "<")
	assert.NotContains(t, body.Text, ">")
}

func TestExtractBase64Latin1(t *testing.T) {
	part := &core.TextPart{
		MediaType:        "text/plain",
		Charset:          "iso-8859-1",
		TransferEncoding: "base64",
		Body:             []byte("Q2Fm6SBjcuhtZQ=="),
	}

	body := newExtractor(zap.NewNop()).Extract(message(part))

	assert.Equal(t, "Café crème", body.Text)
}

func TestExtractQuotedPrintableHTML(t *testing.T) {
	part := &core.TextPart{
		MediaType:        "text/html",
		Charset:          "utf-8",
		TransferEncoding: "quoted-printable",
		Body:             []byte("<div>Gr=C3=BC=C3=9Fe</div>"),
	}

	body := newExtractor(zap.NewNop()).Extract(message(part))

	assert.Equal(t, "Grüße", body.Text)
}

func TestExtractFirstReadableChildWins(t *testing.T) {
	e := newExtractor(zap.NewNop())

	alt := &core.Container{Subtype: "alternative", Children: []core.Node{
		plain("plain version"),
		htmlPart("<p>html version</p>"),
	}}
	assert.Equal(t, "plain version", e.Extract(message(alt)).Text)

	htmlFirst := &core.Container{Subtype: "alternative", Children: []core.Node{
		htmlPart("<p>html version</p>"),
		plain("plain version"),
	}}
	assert.Equal(t, "html version", e.Extract(message(htmlFirst)).Text)
}

func TestExtractAttachmentOnly(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	e := newExtractor(zap.New(obs))

	mixed := &core.Container{Subtype: "mixed", Children: []core.Node{
		&core.TextPart{
			MediaType:        "application/pdf",
			Disposition:      "attachment",
			Filename:         "invoice.pdf",
			TransferEncoding: "base64",
			Body:             []byte("JVBERi0xLjQ="),
		},
	}}

	body := e.Extract(message(mixed))

	assert.True(t, body.Empty)
	assert.Equal(t, core.EmptyBody, body.String())
	assert.Len(t, logs.FilterLevelExact(zapcore.WarnLevel).All(), 1)
	assert.Empty(t, logs.FilterLevelExact(zapcore.ErrorLevel).All())
}

func TestExtractRelatedSkipsAttachments(t *testing.T) {
	mixed := &core.Container{Subtype: "mixed", Children: []core.Node{
		&core.TextPart{MediaType: "image/png", Disposition: "inline", Filename: "logo.png"},
		related(
			&core.TextPart{MediaType: "text/plain", Disposition: "attachment", Filename: "notes.txt", Body: []byte("attached notes")},
			&core.TextPart{MediaType: "text/plain", Disposition: "inline", Filename: "inline.txt", Body: []byte("inline file")},
			&core.Container{Subtype: "alternative", Children: []core.Node{
				plain("   "),
				htmlPart("<p>Body in <i>related</i></p>"),
			}},
		),
	}}

	body := newExtractor(zap.NewNop()).Extract(message(mixed))

	assert.Equal(t, "Body in related", body.Text)
}

func TestExtractRelatedTrimsPlainText(t *testing.T) {
	mixed := &core.Container{Subtype: "mixed", Children: []core.Node{
		related(&core.TextPart{MediaType: "text/plain", Disposition: "inline", Body: []byte("\n  trimmed  \n")}),
	}}

	body := newExtractor(zap.NewNop()).Extract(message(mixed))

	assert.Equal(t, "trimmed", body.Text)
}

func TestExtractRelatedEmptyResultIsNotReplaced(t *testing.T) {
	mixed := &core.Container{Subtype: "mixed", Children: []core.Node{
		related(&core.TextPart{MediaType: "image/gif"}),
		plain("after the related part"),
	}}

	body := newExtractor(zap.NewNop()).Extract(message(mixed))

	assert.True(t, body.Empty)
}

func TestExtractDepthCap(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	e := newExtractor(zap.New(obs))

	within := &core.Container{Subtype: "mixed", Children: []core.Node{nested(DefaultMaxDepth, plain("deep text"))}}
	assert.Equal(t, "deep text", e.Extract(message(within)).Text)

	beyond := &core.Container{Subtype: "mixed", Children: []core.Node{nested(DefaultMaxDepth+1, plain("too deep"))}}
	body := e.Extract(message(beyond))
	assert.True(t, body.Empty)
	assert.Equal(t, core.EmptyBody, body.String())
	assert.Empty(t, logs.FilterLevelExact(zapcore.ErrorLevel).All())
}

func TestExtractNonTextRoot(t *testing.T) {
	body := newExtractor(zap.NewNop()).Extract(message(&core.TextPart{MediaType: "application/octet-stream", Body: []byte("xyz")}))

	assert.True(t, body.Empty)
}

func TestExtractBlankPlainIsEmpty(t *testing.T) {
	body := newExtractor(zap.NewNop()).Extract(message(plain(" \r\n ")))

	assert.True(t, body.Empty)
}

func TestExtractContainerWithoutChildren(t *testing.T) {
	body := newExtractor(zap.NewNop()).Extract(message(&core.Container{Subtype: "mixed"}))

	require.True(t, body.Empty)
}
