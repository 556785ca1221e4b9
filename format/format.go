package format

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultContentType is assumed when a request does not name one.
const DefaultContentType = "text/html"

// ErrUnsupportedContentType is returned when no converter is registered for a content type.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// Converter moves content between its native format and HTML, the format links are
// injected into.
type Converter interface {
	// ToHTML renders content as HTML.
	ToHTML(ctx context.Context, content []byte) ([]byte, error)
	// FromHTML converts linked HTML back into the native format.
	FromHTML(ctx context.Context, content []byte) ([]byte, error)
}

// Registry routes content to a converter based on its content type.
type Registry struct {
	converters map[string]Converter
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		converters: make(map[string]Converter),
	}
}

// Default returns a registry with HTML and Markdown converters registered.
func Default() *Registry {
	r := New()
	r.Register([]string{"text/html", "application/xhtml+xml"}, HTML{})
	r.Register([]string{"text/markdown", "text/x-markdown"}, NewMarkdown())
	return r
}

// Register registers a converter for one or more content types.
// Content types are matched case-insensitively and ignore parameters (e.g., charset).
func (r *Registry) Register(contentTypes []string, c Converter) {
	for _, ct := range contentTypes {
		r.converters[NormalizeContentType(ct)] = c
	}
}

// Lookup returns the converter for a content type. An empty type means text/html.
func (r *Registry) Lookup(contentType string) (Converter, error) {
	baseType := NormalizeContentType(contentType)
	if baseType == "" {
		baseType = DefaultContentType
	}

	c, ok := r.converters[baseType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, baseType)
	}
	return c, nil
}

// Supports returns true if a converter is registered for the content type.
func (r *Registry) Supports(contentType string) bool {
	_, err := r.Lookup(contentType)
	return err == nil
}

// NormalizeContentType extracts the base content-type, removing parameters.
// Examples:
//   - "text/html; charset=utf-8" -> "text/html"
//   - "TEXT/MARKDOWN" -> "text/markdown"
func NormalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}

	return strings.ToLower(strings.TrimSpace(contentType))
}

// HTML is the identity converter.
type HTML struct{}

// ToHTML returns content unchanged.
func (HTML) ToHTML(_ context.Context, content []byte) ([]byte, error) {
	return content, nil
}

// FromHTML returns content unchanged.
func (HTML) FromHTML(_ context.Context, content []byte) ([]byte, error) {
	return content, nil
}
