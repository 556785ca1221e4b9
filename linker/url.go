package linker

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
)

// DefaultURLSchemes are the absolute URL schemes a link may target.
var DefaultURLSchemes = []string{"http", "https", "mailto"}

// urlPolicy validates link targets with the same rules bluemonday applies to href.
type urlPolicy struct {
	policy *bluemonday.Policy
}

func newURLPolicy(schemes []string) *urlPolicy {
	p := bluemonday.NewPolicy()
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes(schemes...)
	p.AllowAttrs("href").OnElements("a")
	return &urlPolicy{policy: p}
}

// sanitize returns the cleaned URL, or false if the policy strips it.
func (u *urlPolicy) sanitize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	cleaned := u.policy.Sanitize(`<a href="` + html.EscapeString(raw) + `">x</a>`)

	z := nethtml.NewTokenizer(strings.NewReader(cleaned))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return "", false
		case nethtml.StartTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "href" && attr.Val != "" {
					return attr.Val, true
				}
			}
			return "", false
		}
	}
}
