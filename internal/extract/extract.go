// Package extract turns uploaded documents into plain text for summarization.
//
// KEY CONCEPTS:
//
//  1. ONE EXTRACTOR PER MEDIA TYPE:
//     Each format (PDF, DOCX, HTML, plain text) is an Extractor that declares
//     the media types it handles. A Registry maps media type → Extractor, so
//     adding a format never touches the upload handler or the service.
//
//  2. MEDIA TYPE RESOLUTION:
//     Browsers usually send a correct Content-Type for the file part. When
//     they don't (empty or application/octet-stream), we fall back to the
//     file extension, then to content sniffing.
//
//  3. TWO FAILURE KINDS:
//     A format we don't handle is apperror.ErrUnsupported (415). A format we
//     handle but can't read (corrupt, truncated, encrypted) is
//     apperror.ErrExtraction (422).
package extract

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sakif/text-summarizer/internal/apperror"
)

// Media types with built-in extractors.
const (
	MediaTypePDF      = "application/pdf"
	MediaTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeHTML     = "text/html"
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
)

// extensionTypes maps lowercase file extensions to media types.
var extensionTypes = map[string]string{
	".pdf":      MediaTypePDF,
	".docx":     MediaTypeDOCX,
	".html":     MediaTypeHTML,
	".htm":      MediaTypeHTML,
	".txt":      MediaTypeText,
	".text":     MediaTypeText,
	".md":       MediaTypeMarkdown,
	".markdown": MediaTypeMarkdown,
}

// File is an uploaded document held in memory.
type File struct {
	Name        string // original file name, used for extension fallback
	ContentType string // declared Content-Type of the upload part
	Data        []byte
}

// Extractor converts one family of formats to plain text.
type Extractor interface {
	// MediaTypes lists the media types this extractor handles.
	MediaTypes() []string

	// Extract returns the document text. Errors mean the content could not
	// be read; the Registry wraps them as extraction failures.
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches files to the extractor for their media type.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the given extractors registered.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in extractor.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPDFExtractor(),
		NewDOCXExtractor(),
		NewHTMLExtractor(),
		NewTextExtractor(),
	)
}

// Register adds e for each of its media types, replacing earlier entries.
func (r *Registry) Register(e Extractor) {
	for _, mt := range e.MediaTypes() {
		r.extractors[mt] = e
	}
}

// Supported returns the registered media types, sorted.
func (r *Registry) Supported() []string {
	types := make([]string, 0, len(r.extractors))
	for mt := range r.extractors {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// Extract resolves the media type of f and runs the matching extractor.
func (r *Registry) Extract(ctx context.Context, f File) (string, error) {
	mediaType := MediaType(f)

	e, ok := r.extractors[mediaType]
	if !ok {
		return "", apperror.UnsupportedFormat(mediaType)
	}

	text, err := e.Extract(ctx, f.Data)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperror.ExtractionFailed(formatName(mediaType), err)
	}
	return text, nil
}

// MediaType resolves the media type of f: the declared Content-Type unless it
// is missing or generic, then the file extension, then content sniffing.
// Parameters such as "; charset=utf-8" are dropped.
func MediaType(f File) string {
	if mt := parseMediaType(f.ContentType); mt != "" && mt != "application/octet-stream" {
		return mt
	}

	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(f.Name))]; ok {
		return mt
	}

	if len(f.Data) > 0 {
		if mt := parseMediaType(http.DetectContentType(f.Data)); mt != "" {
			return mt
		}
	}
	return "application/octet-stream"
}

func parseMediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// formatName is the short name used in "Could not read <format> document".
func formatName(mediaType string) string {
	switch mediaType {
	case MediaTypePDF:
		return "PDF"
	case MediaTypeDOCX:
		return "DOCX"
	case MediaTypeHTML:
		return "HTML"
	default:
		return "text"
	}
}
