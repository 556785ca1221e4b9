package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/joeychilson/autolink/linker"
	"github.com/joeychilson/autolink/rules"
)

// View names the kind of page content is rendered for.
const (
	ViewSingle  = "single"
	ViewArchive = "archive"
	ViewFeed    = "feed"
	ViewSearch  = "search"
	ViewAdmin   = "admin"
)

// KnownViews lists every view a request may declare.
var KnownViews = []string{ViewSingle, ViewArchive, ViewFeed, ViewSearch, ViewAdmin}

// Config represents the top-level configuration structure for the link injector.
type Config struct {
	Default DefaultConfig `yaml:"default"`
	Sites   []SiteConfig  `yaml:"sites"`
}

// New returns a new Config with sensible defaults.
func New() *Config {
	return &Config{
		Default: DefaultConfig{},
		Sites:   []SiteConfig{},
	}
}

// ResolvedConfig is the final merged configuration for a specific page URL.
type ResolvedConfig struct {
	Link  LinkConfig
	Rules rules.RuleSet
	Cache CacheConfig
}

// GetConfigForURL returns the merged configuration for a given page URL.
// Rules of every matching site are merged over the default rules in order.
func (c *Config) GetConfigForURL(pageURL string) ResolvedConfig {
	resolved := ResolvedConfig{
		Link:  c.Default.Link,
		Rules: c.Default.RuleSet(),
		Cache: c.Default.Cache,
	}
	if pageURL == "" {
		return resolved
	}
	for _, site := range c.Sites {
		if matchPattern(pageURL, site.Pattern) {
			if site.Link != nil {
				resolved.Link = mergeLink(resolved.Link, *site.Link)
			}
			if site.Cache != nil {
				resolved.Cache = mergeCache(resolved.Cache, *site.Cache)
			}
			resolved.Rules = resolved.Rules.Merge(site.RuleSet())
		}
	}
	return resolved
}

// DefaultConfig contains default settings applied to all pages unless overridden.
type DefaultConfig struct {
	Link     LinkConfig    `yaml:"link"`
	Rules    string        `yaml:"rules,omitempty"`
	Keywords yaml.MapSlice `yaml:"keywords,omitempty"`
	Cache    CacheConfig   `yaml:"cache"`
}

// RuleSet returns the default rules: the raw `rules` block followed by `keywords`.
func (d *DefaultConfig) RuleSet() rules.RuleSet {
	return buildRuleSet(d.Rules, d.Keywords)
}

// SiteConfig represents configuration overrides for pages matching a specific pattern.
type SiteConfig struct {
	Pattern  string        `yaml:"pattern"`
	Link     *LinkConfig   `yaml:"link,omitempty"`
	Rules    string        `yaml:"rules,omitempty"`
	Keywords yaml.MapSlice `yaml:"keywords,omitempty"`
	Cache    *CacheConfig  `yaml:"cache,omitempty"`
}

// RuleSet returns the site's own rules.
func (s *SiteConfig) RuleSet() rules.RuleSet {
	return buildRuleSet(s.Rules, s.Keywords)
}

// LinkConfig defines how keywords are turned into links.
type LinkConfig struct {
	MaxLinks     int      `yaml:"max_links,omitempty"`
	Title        *bool    `yaml:"title,omitempty"`
	SkipElements []string `yaml:"skip_elements,omitempty"`
	URLSchemes   []string `yaml:"url_schemes,omitempty"`
	Views        []string `yaml:"views,omitempty"`
}

// GetMaxLinks returns the per-keyword link limit with a default of 1.
func (l *LinkConfig) GetMaxLinks() int {
	if l.MaxLinks > 0 {
		return l.MaxLinks
	}
	return linker.DefaultMaxLinks
}

// IncludeTitle returns whether links carry a title attribute (default: true).
func (l *LinkConfig) IncludeTitle() bool {
	if l.Title != nil {
		return *l.Title
	}
	return true
}

// GetURLSchemes returns the allowed URL schemes with defaults [http, https, mailto].
func (l *LinkConfig) GetURLSchemes() []string {
	if len(l.URLSchemes) > 0 {
		return l.URLSchemes
	}
	return linker.DefaultURLSchemes
}

// GetViews returns the views links are injected for with a default of [single].
func (l *LinkConfig) GetViews() []string {
	if len(l.Views) > 0 {
		return l.Views
	}
	return []string{ViewSingle}
}

// AllowsView returns true if content rendered for view should be linked.
// An empty view is treated as a single-document view.
func (l *LinkConfig) AllowsView(view string) bool {
	if view == "" {
		view = ViewSingle
	}
	return slices.Contains(l.GetViews(), strings.ToLower(view))
}

// Options converts the configuration into linker options.
func (l *LinkConfig) Options() linker.Options {
	return linker.Options{
		MaxLinks:     l.GetMaxLinks(),
		Title:        l.IncludeTitle(),
		SkipElements: l.SkipElements,
		URLSchemes:   l.GetURLSchemes(),
	}
}

// CacheConfig defines caching behavior for transform results.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// IsEnabled returns true if caching is enabled
func (c *CacheConfig) IsEnabled() bool {
	return c.TTL > 0
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors and conflicts
func (c *Config) Validate() error {
	if err := c.validateLink("default", c.Default.Link); err != nil {
		return err
	}
	if err := c.validateCache("default", c.Default.Cache); err != nil {
		return err
	}
	if err := c.validateKeywords("default", c.Default.Keywords); err != nil {
		return err
	}

	for i, site := range c.Sites {
		if site.Pattern == "" {
			return fmt.Errorf("sites[%d]: pattern cannot be empty", i)
		}

		siteCtx := fmt.Sprintf("sites[%d](%s)", i, site.Pattern)

		if site.Link != nil {
			if err := c.validateLink(siteCtx, *site.Link); err != nil {
				return err
			}
		}
		if site.Cache != nil {
			if err := c.validateCache(siteCtx, *site.Cache); err != nil {
				return err
			}
		}
		if err := c.validateKeywords(siteCtx, site.Keywords); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateLink(ctx string, l LinkConfig) error {
	if l.MaxLinks < 0 {
		return fmt.Errorf("%s.link: 'max_links' must be >= 0", ctx)
	}

	for i, name := range l.SkipElements {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s.link.skip_elements[%d]: element name cannot be empty", ctx, i)
		}
	}

	for i, scheme := range l.URLSchemes {
		if strings.TrimSpace(scheme) == "" || strings.ContainsAny(scheme, ":/ ") {
			return fmt.Errorf("%s.link.url_schemes[%d]: invalid scheme %q", ctx, i, scheme)
		}
	}

	for i, view := range l.Views {
		if !slices.Contains(KnownViews, strings.ToLower(view)) {
			return fmt.Errorf("%s.link.views[%d]: unknown view %q (must be one of %s)",
				ctx, i, view, strings.Join(KnownViews, ", "))
		}
	}

	return nil
}

func (c *Config) validateCache(ctx string, cc CacheConfig) error {
	if cc.TTL < 0 {
		return fmt.Errorf("%s.cache: 'ttl' must be >= 0", ctx)
	}
	return nil
}

func (c *Config) validateKeywords(ctx string, keywords yaml.MapSlice) error {
	for i, item := range keywords {
		if _, ok := item.Key.(string); !ok {
			return fmt.Errorf("%s.keywords[%d]: keyword must be a string", ctx, i)
		}
		if _, ok := item.Value.(string); !ok {
			return fmt.Errorf("%s.keywords[%d](%v): url must be a string", ctx, i, item.Key)
		}
	}
	return nil
}

// buildRuleSet parses raw rule lines and appends ordered keyword mappings.
func buildRuleSet(raw string, keywords yaml.MapSlice) rules.RuleSet {
	set := rules.Parse(raw)
	if len(keywords) == 0 {
		return set
	}

	pairs := make([]rules.Rule, 0, len(keywords))
	for _, item := range keywords {
		k, kok := item.Key.(string)
		v, vok := item.Value.(string)
		if !kok || !vok {
			continue
		}
		pairs = append(pairs, rules.Rule{Keyword: k, URL: v})
	}
	return set.Merge(rules.FromPairs(pairs))
}

func matchPattern(urlStr, pattern string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" {
		return urlStr == pattern
	}

	host := parsedURL.Hostname()
	path := parsedURL.Path

	if strings.HasPrefix(pattern, "*.") {
		if strings.Contains(pattern, "/") {
			return matchWildcardDomainAndPath(host, path, pattern)
		}
		return matchWildcardDomain(host, pattern[2:])
	}

	if strings.Contains(pattern, "/") {
		return matchHostAndPath(host, path, pattern)
	}

	return matchHostPattern(host, pattern)
}

func matchWildcardDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func matchWildcardDomainAndPath(host, path, pattern string) bool {
	domainPattern, pathPattern, _ := strings.Cut(pattern, "/")
	if len(domainPattern) < 3 {
		return false
	}

	if !matchWildcardDomain(host, domainPattern[2:]) {
		return false
	}

	return matchPathPattern(path, "/"+pathPattern)
}

func matchHostAndPath(host, path, pattern string) bool {
	hostPattern, pathPattern, _ := strings.Cut(pattern, "/")

	if !matchHostPattern(host, hostPattern) {
		return false
	}

	return matchPathPattern(path, "/"+pathPattern)
}

func matchHostPattern(host, pattern string) bool {
	if len(pattern) > 1 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		return strings.Contains(host, strings.Trim(pattern, "*"))
	}

	if after, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(host, after)
	}

	if before, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(host, before)
	}

	return host == pattern
}

func matchPathPattern(path, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}

	return path == pattern
}

func mergeLink(base, override LinkConfig) LinkConfig {
	result := base

	if override.MaxLinks > 0 {
		result.MaxLinks = override.MaxLinks
	}

	if override.Title != nil {
		result.Title = override.Title
	}

	if len(override.SkipElements) > 0 {
		result.SkipElements = append(slices.Clone(result.SkipElements), override.SkipElements...)
	}

	if len(override.URLSchemes) > 0 {
		result.URLSchemes = override.URLSchemes
	}

	if len(override.Views) > 0 {
		result.Views = override.Views
	}

	return result
}

func mergeCache(base, override CacheConfig) CacheConfig {
	result := base

	if override.TTL != 0 {
		result.TTL = override.TTL
	}

	return result
}
