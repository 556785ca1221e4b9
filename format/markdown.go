package format

import (
	"bytes"
	"context"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	nethtml "golang.org/x/net/html"
)

// Markdown renders Markdown to HTML for linking and converts the result back.
// Formatting of the round trip follows CommonMark, so untouched Markdown may be
// normalized (e.g. emphasis markers, list bullets).
type Markdown struct {
	md   goldmark.Markdown
	conv *converter.Converter
}

// NewMarkdown creates a Markdown converter. Raw HTML in the source is kept so that
// existing inline anchors are still recognized.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// ToHTML renders Markdown as HTML.
func (m *Markdown) ToHTML(_ context.Context, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(content, &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// FromHTML converts HTML back to Markdown.
func (m *Markdown) FromHTML(_ context.Context, content []byte) ([]byte, error) {
	doc, err := nethtml.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	out, err := m.conv.ConvertNode(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert html to markdown: %w", err)
	}
	return out, nil
}
