package extract

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor passes plain text and Markdown through unchanged.
type TextExtractor struct{}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// MediaTypes implements Extractor.
func (e *TextExtractor) MediaTypes() []string {
	return []string{MediaTypeText, MediaTypeMarkdown, "text/x-markdown"}
}

// Extract returns data as a string after stripping a UTF-8 byte order mark.
// Anything that isn't valid UTF-8 (UTF-16, Latin-1, binary) is rejected.
func (e *TextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("text: content is not valid UTF-8")
	}
	return string(data), nil
}
