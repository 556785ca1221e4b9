package rules

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// Delimiter separates the keyword from the URL on a configuration line.
const Delimiter = "|"

// Rule maps a keyword to the URL its occurrences should link to.
type Rule struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	URL     string `json:"url" yaml:"url"`
}

// RuleSet is an ordered collection of rules with unique keywords.
// Keywords are compared by exact string equality.
type RuleSet []Rule

// Parse converts a raw configuration string into a RuleSet.
// Each line holds one "keyword|url" pair. Lines without exactly one delimiter,
// or with an empty keyword or URL after trimming, are skipped.
func Parse(raw string) RuleSet {
	if strings.TrimSpace(raw) == "" {
		return RuleSet{}
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	b := newBuilder()
	for line := range strings.SplitSeq(raw, "\n") {
		parts := strings.Split(line, Delimiter)
		if len(parts) != 2 {
			continue
		}
		b.add(parts[0], parts[1])
	}
	return b.set
}

// FromMap builds a RuleSet from a keyword to URL mapping.
// Map iteration order is random, so keywords are applied in sorted order.
func FromMap(m map[string]string) RuleSet {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := newBuilder()
	for _, k := range keys {
		b.add(k, m[k])
	}
	return b.set
}

// FromPairs builds a RuleSet from ordered pairs, applying the same validation as Parse.
func FromPairs(pairs []Rule) RuleSet {
	b := newBuilder()
	for _, p := range pairs {
		b.add(p.Keyword, p.URL)
	}
	return b.set
}

// Merge returns a new RuleSet containing rs followed by other.
// A keyword present in both keeps its position in rs and takes the URL from other.
func (rs RuleSet) Merge(other RuleSet) RuleSet {
	b := newBuilder()
	for _, r := range rs {
		b.add(r.Keyword, r.URL)
	}
	for _, r := range other {
		b.add(r.Keyword, r.URL)
	}
	return b.set
}

// Lookup returns the rule with exactly the given keyword.
func (rs RuleSet) Lookup(keyword string) (Rule, bool) {
	for _, r := range rs {
		if r.Keyword == keyword {
			return r, true
		}
	}
	return Rule{}, false
}

// ByLength returns a copy sorted by descending keyword length in runes.
// Equal lengths keep their relative order.
func (rs RuleSet) ByLength() RuleSet {
	sorted := slices.Clone(rs)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		return utf8.RuneCountInString(b.Keyword) - utf8.RuneCountInString(a.Keyword)
	})
	return sorted
}

// String serializes the set back to "keyword|url" lines in stored order.
func (rs RuleSet) String() string {
	var sb strings.Builder
	for i, r := range rs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(r.Keyword)
		sb.WriteString(Delimiter)
		sb.WriteString(r.URL)
	}
	return sb.String()
}

// builder accumulates rules with last-write-wins semantics per keyword.
type builder struct {
	set   RuleSet
	index map[string]int
}

func newBuilder() *builder {
	return &builder{
		set:   RuleSet{},
		index: make(map[string]int),
	}
}

func (b *builder) add(keyword, url string) {
	keyword = strings.TrimSpace(keyword)
	url = strings.TrimSpace(url)
	if keyword == "" || url == "" {
		return
	}
	if strings.Contains(keyword, Delimiter) || strings.Contains(url, Delimiter) {
		return
	}
	if strings.ContainsAny(keyword, "\r\n") || strings.ContainsAny(url, "\r\n") {
		return
	}

	if i, ok := b.index[keyword]; ok {
		b.set[i].URL = url
		return
	}
	b.index[keyword] = len(b.set)
	b.set = append(b.set, Rule{Keyword: keyword, URL: url})
}
