package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text layer of a PDF.
//
// Scanned PDFs without a text layer yield an empty string, which the
// summary service then rejects as empty input.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// MediaTypes implements Extractor.
func (e *PDFExtractor) MediaTypes() []string { return []string{MediaTypePDF} }

// Extract returns the text of every page in page order, joined with "\n".
//
// The pdf package panics on some malformed inputs instead of returning an
// error, so the whole read runs under recover.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf: opening document: %w", err)
	}

	// Fonts are shared across pages; caching them avoids re-parsing each
	// font's character map on every page.
	fonts := make(map[string]*pdf.Font)

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("pdf: reading page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}
