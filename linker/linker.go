// Package linker inserts hyperlinks around keyword occurrences in HTML content.
//
// Content is tokenized into tag and text spans. Only text outside anchors and
// raw-text elements is searched, so existing links and tag attributes are never
// modified and anchors are never nested. Every token is re-emitted from its raw
// bytes, leaving untouched content byte-identical.
package linker

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/joeychilson/autolink/rules"
)

// DefaultMaxLinks is the number of occurrences linked per keyword when unset.
const DefaultMaxLinks = 1

// alwaysSkipped are elements whose text is never linked. Besides anchors this is
// every element the tokenizer reads as raw text, whose body may hold markup.
var alwaysSkipped = []string{
	"a", "iframe", "noembed", "noframes", "noscript", "plaintext",
	"script", "style", "textarea", "title", "xmp",
}

// Options configures a Linker.
type Options struct {
	// MaxLinks is the number of occurrences linked per keyword (default 1).
	MaxLinks int
	// Title adds a title attribute carrying the keyword to each link.
	Title bool
	// SkipElements lists extra elements whose text is never linked.
	SkipElements []string
	// URLSchemes lists the allowed absolute URL schemes (default http, https, mailto).
	URLSchemes []string
}

// DefaultOptions returns the options used by Transform.
func DefaultOptions() Options {
	return Options{
		MaxLinks:   DefaultMaxLinks,
		Title:      true,
		URLSchemes: DefaultURLSchemes,
	}
}

// KeywordResult reports what happened to a single rule.
type KeywordResult struct {
	Keyword     string `json:"keyword"`
	URL         string `json:"url"`
	Links       int    `json:"links"`
	URLRejected bool   `json:"url_rejected,omitempty"`
}

// Result is the outcome of applying a RuleSet.
type Result struct {
	Content  string
	Links    int
	Keywords []KeywordResult
}

// Linker applies keyword rules to content. It is safe for concurrent use.
type Linker struct {
	opts Options
	skip map[string]bool
	urls *urlPolicy
}

// New creates a Linker, filling unset options with defaults.
func New(opts Options) *Linker {
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = DefaultMaxLinks
	}
	if len(opts.URLSchemes) == 0 {
		opts.URLSchemes = DefaultURLSchemes
	}

	skip := make(map[string]bool, len(alwaysSkipped)+len(opts.SkipElements))
	for _, name := range alwaysSkipped {
		skip[name] = true
	}
	for _, name := range opts.SkipElements {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			skip[name] = true
		}
	}

	return &Linker{
		opts: opts,
		skip: skip,
		urls: newURLPolicy(opts.URLSchemes),
	}
}

// Options returns the effective options.
func (l *Linker) Options() Options {
	return l.opts
}

// Transform parses raw "keyword|url" rules and links content with default options.
func Transform(content, raw string) string {
	return New(DefaultOptions()).Link(content, rules.Parse(raw))
}

// Link returns content with rules applied.
func (l *Linker) Link(content string, set rules.RuleSet) string {
	return l.Apply(content, set).Content
}

// Apply links content with every rule, longest keyword first. Each rule sees the
// content as modified by the rules before it.
func (l *Linker) Apply(content string, set rules.RuleSet) Result {
	result := Result{Content: content}
	if len(set) == 0 || content == "" {
		return result
	}

	for _, rule := range set.ByLength() {
		kr := KeywordResult{Keyword: rule.Keyword, URL: rule.URL}

		href, ok := l.urls.sanitize(rule.URL)
		if !ok {
			kr.URLRejected = true
			result.Keywords = append(result.Keywords, kr)
			continue
		}

		result.Content, kr.Links = l.inject(result.Content, rule.Keyword, href)
		result.Links += kr.Links
		result.Keywords = append(result.Keywords, kr)
	}

	return result
}

// inject links up to MaxLinks occurrences of keyword in the linkable text of content.
func (l *Linker) inject(content, keyword, href string) (string, int) {
	patterns := patternsFor(keyword)
	open := l.openTag(keyword, href)
	remaining := l.opts.MaxLinks

	var out strings.Builder
	out.Grow(len(content) + len(open) + 4)

	linked := 0
	offset := 0
	w := newSpanWalker(content, l.skip)
	for remaining > 0 {
		sp, ok := w.next()
		if !ok {
			break
		}
		offset += len(sp.raw)

		if !sp.linkable {
			out.WriteString(sp.raw)
			continue
		}

		n := linkText(&out, sp.raw, patterns, open, remaining)
		remaining -= n
		linked += n
	}

	if linked == 0 {
		return content, 0
	}
	out.WriteString(content[offset:])
	return out.String(), linked
}

func (l *Linker) openTag(keyword, href string) string {
	var sb strings.Builder
	sb.WriteString(`<a href="`)
	sb.WriteString(html.EscapeString(href))
	sb.WriteByte('"')
	if l.opts.Title {
		sb.WriteString(` title="`)
		sb.WriteString(html.EscapeString(keyword))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	return sb.String()
}

// linkText writes text to out, wrapping at most limit keyword occurrences.
func linkText(out *strings.Builder, text string, patterns []string, open string, limit int) int {
	n := 0
	pos := 0
	for n < limit {
		start, end, ok := findWord(text, pos, patterns)
		if !ok {
			break
		}
		out.WriteString(text[pos:start])
		out.WriteString(open)
		out.WriteString(text[start:end])
		out.WriteString("</a>")
		pos = end
		n++
	}
	out.WriteString(text[pos:])
	return n
}

// span is a raw slice of content produced by the tokenizer.
type span struct {
	raw      string
	linkable bool
}

// spanWalker yields the tokens of an HTML document in order, tracking whether the
// current position is nested inside an element whose text must not be linked.
type spanWalker struct {
	z     *nethtml.Tokenizer
	skip  map[string]bool
	depth map[string]int
	open  int
}

func newSpanWalker(content string, skip map[string]bool) *spanWalker {
	return &spanWalker{
		z:     nethtml.NewTokenizer(strings.NewReader(content)),
		skip:  skip,
		depth: make(map[string]int),
	}
}

func (w *spanWalker) next() (span, bool) {
	tt := w.z.Next()
	if tt == nethtml.ErrorToken {
		return span{}, false
	}

	// Raw is only valid until the next call to Next.
	raw := string(w.z.Raw())

	switch tt {
	case nethtml.TextToken:
		return span{raw: raw, linkable: w.open == 0}, true
	case nethtml.StartTagToken:
		name, _ := w.z.TagName()
		if tag := string(name); w.skip[tag] {
			w.depth[tag]++
			w.open++
		}
	case nethtml.EndTagToken:
		name, _ := w.z.TagName()
		if tag := string(name); w.depth[tag] > 0 {
			w.depth[tag]--
			w.open--
		}
	}
	return span{raw: raw}, true
}
