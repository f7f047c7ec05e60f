// Package extract turns uploaded file bytes into prompt material: plain text,
// a page count and, for images, an inline payload for multi-modal generation.
//
// Dispatch is table driven. Each supported format registers an Extractor
// with a Matcher; the first matching entry wins. Extraction is total: parser
// errors and panics degrade to the empty Result.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
)

// Media types with dedicated extractors.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// MediaTypeImagePrefix matches every image/* type.
	MediaTypeImagePrefix = "image/"
)

// ParseFailureKind tags log records of files that could not be parsed.
const ParseFailureKind = "parse_failure"

// ImagePayload is an image handed inline to a multi-modal model.
type ImagePayload struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
}

// Result is the normalized outcome of extracting one file.
type Result struct {
	Text string
	// PageCount is nil when the format has no derivable page count.
	PageCount *int
	// Image is set only for image formats.
	Image *ImagePayload
}

// Empty reports whether the result carries no usable content.
func (r Result) Empty() bool {
	return r.Text == "" && r.PageCount == nil && r.Image == nil
}

// Extractor converts the bytes of one format.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (Result, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, data []byte, mediaType string) (Result, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte, mediaType string) (Result, error) {
	return f(ctx, data, mediaType)
}

// Matcher selects the media types an extractor handles. It receives the
// normalized media type (lower case, parameters stripped).
type Matcher func(mediaType string) bool

// Exact matches one media type.
func Exact(mediaType string) Matcher {
	want := NormalizeMediaType(mediaType)
	return func(got string) bool { return got == want }
}

// Prefix matches every media type starting with prefix.
func Prefix(prefix string) Matcher {
	want := strings.ToLower(strings.TrimSpace(prefix))
	return func(got string) bool { return strings.HasPrefix(got, want) }
}

type entry struct {
	name      string
	match     Matcher
	extractor Extractor
}

// Registry dispatches extraction by media type.
type Registry struct {
	entries []entry
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{logger: log.With(slog.String("service", "extract"))}
}

// NewDefaultRegistry registers the PDF, DOCX and image extractors.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.Register("pdf", Exact(MediaTypePDF), PDFExtractor{})
	r.Register("docx", Exact(MediaTypeDOCX), DOCXExtractor{})
	r.Register("image", Prefix(MediaTypeImagePrefix), ImageExtractor{})
	return r
}

// Register appends an extractor. Earlier registrations take precedence.
func (r *Registry) Register(name string, match Matcher, extractor Extractor) {
	r.entries = append(r.entries, entry{name: name, match: match, extractor: extractor})
}

// Extract runs the matching extractor. It never fails: unsupported types,
// parser errors and parser panics all yield the empty Result.
func (r *Registry) Extract(ctx context.Context, data []byte, mediaType string) (result Result) {
	normalized := NormalizeMediaType(mediaType)
	e, ok := r.lookup(normalized)
	if !ok {
		return Result{}
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logParseFailure(e.name, mediaType, fmt.Errorf("panic: %v", rec))
			result = Result{}
		}
	}()
	res, err := e.extractor.Extract(ctx, data, normalized)
	if err != nil {
		r.logParseFailure(e.name, mediaType, err)
		return Result{}
	}
	return res
}

func (r *Registry) lookup(mediaType string) (entry, bool) {
	if mediaType == "" {
		return entry{}, false
	}
	for _, e := range r.entries {
		if e.match(mediaType) {
			return e, true
		}
	}
	return entry{}, false
}

func (r *Registry) logParseFailure(format, mediaType string, err error) {
	r.logger.Warn("file extraction failed",
		slog.String("kind", ParseFailureKind),
		slog.String("format", format),
		slog.String("media_type", mediaType),
		slog.Any("error", err),
	)
}

// NormalizeMediaType lower-cases mediaType and strips parameters.
func NormalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	return strings.ToLower(mediaType)
}

func intPtr(n int) *int { return &n }
