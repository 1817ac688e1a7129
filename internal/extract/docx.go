package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXExtractor reads the raw text of a Word document.
//
// go-docx unpacks the archive and decodes word/document.xml into body items.
// We walk them and keep only the text:
//
//	paragraph  → its runs, then "\n"
//	<w:tab/>   → "\t"
//	<w:br/>    → "\n"
//	table      → one line per row, cells separated by "\t"
//
// Styles, numbering, headers/footers and images are ignored.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a DOCXExtractor.
func NewDOCXExtractor() *DOCXExtractor { return &DOCXExtractor{} }

// MediaTypes implements Extractor.
func (e *DOCXExtractor) MediaTypes() []string { return []string{MediaTypeDOCX} }

// Extract implements Extractor.
func (e *DOCXExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: parsing document: %w", err)
	}
	// Parse accepts any zip; the name is only set when document.xml was read.
	if doc.Document.XMLName.Local == "" {
		return "", errors.New("docx: archive has no word/document.xml")
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		switch it := item.(type) {
		case *docx.Paragraph:
			lines = append(lines, paragraphText(it))
		case *docx.Table:
			lines = append(lines, tableLines(it)...)
		}
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n"), nil
}

func paragraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(&sb, c)
		case *docx.Hyperlink:
			writeRun(&sb, &c.Run)
		}
	}
	return sb.String()
}

func writeRun(sb *strings.Builder, r *docx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			sb.WriteString(c.Text)
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			sb.WriteByte('\n')
		}
	}
}

func tableLines(t *docx.Table) []string {
	lines := make([]string, 0, len(t.TableRows))
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			paras := make([]string, 0, len(cell.Paragraphs))
			for _, p := range cell.Paragraphs {
				paras = append(paras, paragraphText(p))
			}
			cells = append(cells, strings.Join(paras, " "))
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return lines
}
