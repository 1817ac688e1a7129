package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// HTMLExtractor turns an HTML page into Markdown-flavoured text.
//
// goquery parses the page and drops everything a reader never sees (scripts,
// styles, templates, inline SVG). The remaining <body> is converted to
// Markdown, which keeps headings and lists as plain-text structure the model
// can use, without any markup noise.
type HTMLExtractor struct {
	converter *md.Converter
}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{converter: md.NewConverter("", true, nil)}
}

// MediaTypes implements Extractor.
func (e *HTMLExtractor) MediaTypes() []string {
	return []string{MediaTypeHTML, "application/xhtml+xml"}
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("html: parsing document: %w", err)
	}

	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	return cleanLines(e.converter.Convert(body)), nil
}

// cleanLines trims every line and collapses runs of blank lines to one.
func cleanLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
