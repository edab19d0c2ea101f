package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// ToUTF8 converts data from the declared charset to UTF-8. An empty or
// unknown charset leaves the bytes as they are.
func (tp *TextProcessor) ToUTF8(data []byte, charset string) string {
	charset = strings.ToLower(strings.Trim(strings.TrimSpace(charset), `"'`))
	switch charset {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return tp.SanitizeUTF8(string(data))
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		tp.logger.Debug("Unknown charset, keeping bytes as-is",
			zap.String("charset", charset),
			zap.Error(err))
		return tp.SanitizeUTF8(string(data))
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		tp.logger.Debug("Failed to convert charset",
			zap.String("charset", charset),
			zap.Error(err))
		return tp.SanitizeUTF8(string(data))
	}

	return tp.SanitizeUTF8(string(decoded))
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	// Drop invalid UTF-8 sequences
	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}

// NormalizeText trims trailing whitespace from every line and collapses runs
// of blank lines into one
func (tp *TextProcessor) NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, isSpace)
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\u00a0' || r == '\f' || r == '\v'
}
