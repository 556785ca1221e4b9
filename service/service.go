package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joeychilson/autolink/cache"
	"github.com/joeychilson/autolink/config"
	"github.com/joeychilson/autolink/format"
	"github.com/joeychilson/autolink/linker"
	"github.com/joeychilson/autolink/logger"
	"github.com/joeychilson/autolink/metrics"
	"github.com/joeychilson/autolink/rules"
)

// Cache states reported on a Response.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

// ErrInvalidRequest is returned for requests that can never be linked.
var ErrInvalidRequest = errors.New("invalid request")

// Service orchestrates configuration, formats, the linker and the result cache.
type Service struct {
	config  *config.Config
	formats *format.Registry
	cache   cache.Cache
	metrics metrics.Recorder
	logger  logger.Logger
}

// Request describes content to link.
type Request struct {
	Content     string
	ContentType string
	// URL selects site overrides from the configuration.
	URL string
	// View is the kind of page the content is rendered for. Empty means single.
	View string
	// Rules and Keywords replace the configured rules when either is set.
	// Keywords are applied over Rules.
	Rules    string
	Keywords map[string]string
	// MaxLinks overrides the configured per-keyword limit when positive.
	MaxLinks int
}

// Response is the outcome of a Link call.
type Response struct {
	Content    string
	Applied    bool
	Links      int
	Keywords   []linker.KeywordResult
	CacheState string
}

// RulesResult is a parsed rule list.
type RulesResult struct {
	// Rules are in first-seen order.
	Rules rules.RuleSet
	// Order is the order rules are injected in.
	Order rules.RuleSet
	// Normalized is the canonical "keyword|url" text form.
	Normalized string
}

// New creates a new Service with the given configuration.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		config:  cfg,
		formats: format.Default(),
		cache:   cache.NewMemoryCache(cache.DefaultConfig()),
		metrics: metrics.Noop(),
		logger:  logger.Noop(),
	}, nil
}

// NewFromFile creates a new Service by loading configuration from a YAML file.
func NewFromFile(path string) (*Service, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(cfg)
}

// WithCache replaces the result cache. A nil cache disables caching.
func (s *Service) WithCache(c cache.Cache) *Service {
	s.cache = c
	return s
}

// WithLogger sets the logger for the service.
func (s *Service) WithLogger(log logger.Logger) *Service {
	s.logger = log
	return s
}

// WithMetrics sets the metrics recorder for the service.
func (s *Service) WithMetrics(rec metrics.Recorder) *Service {
	s.metrics = rec
	return s
}

// WithFormats replaces the content-type registry.
func (s *Service) WithFormats(reg *format.Registry) *Service {
	s.formats = reg
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Link injects links into the request content. Content that cannot be linked
// is returned unchanged with Applied set to false.
func (s *Service) Link(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}
	if req.MaxLinks < 0 {
		return nil, fmt.Errorf("%w: max_links must be non-negative", ErrInvalidRequest)
	}

	contentType := format.NormalizeContentType(req.ContentType)
	if contentType == "" {
		contentType = format.DefaultContentType
	}
	conv, err := s.formats.Lookup(contentType)
	if err != nil {
		return nil, err
	}

	resolved := s.config.GetConfigForURL(req.URL)
	set := resolved.Rules
	if req.Rules != "" || len(req.Keywords) > 0 {
		set = rules.Parse(req.Rules).Merge(rules.FromMap(req.Keywords))
	}

	unchanged := &Response{Content: req.Content, CacheState: CacheBypass}
	switch {
	case !resolved.Link.AllowsView(req.View):
		s.logger.Debug("view not linked", "url", req.URL, "view", req.View)
		s.metrics.ObserveSkip(metrics.SkipView)
		return unchanged, nil
	case len(set) == 0:
		s.metrics.ObserveSkip(metrics.SkipNoRules)
		return unchanged, nil
	case strings.TrimSpace(req.Content) == "":
		s.metrics.ObserveSkip(metrics.SkipNoContent)
		return unchanged, nil
	}

	opts := resolved.Link.Options()
	if req.MaxLinks > 0 {
		opts.MaxLinks = req.MaxLinks
	}

	start := time.Now()
	useCache := s.cache != nil && resolved.Cache.IsEnabled()
	key := cache.Key(set.String(), optionsKey(opts), contentType, req.Content)

	if useCache {
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Error("cache get failed", "url", req.URL, "error", err)
		} else if entry != nil {
			s.logger.Debug("cache hit", "url", req.URL)
			s.metrics.ObserveTransform(contentType, CacheHit, time.Since(start), entry.Links)
			return &Response{
				Content:    entry.Content,
				Applied:    true,
				Links:      entry.Links,
				Keywords:   entry.Keywords,
				CacheState: CacheHit,
			}, nil
		}
	}

	resp, err := s.transform(ctx, conv, req.Content, set, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to link %s content: %w", contentType, err)
	}

	resp.CacheState = CacheBypass
	if useCache {
		resp.CacheState = CacheMiss
		entry := &cache.Entry{
			Key:      key,
			Content:  resp.Content,
			Links:    resp.Links,
			Keywords: resp.Keywords,
			StoredAt: time.Now(),
			TTL:      resolved.Cache.TTL,
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("cache set failed", "url", req.URL, "error", err)
		}
	}

	s.logger.Debug("content linked",
		"url", req.URL,
		"content_type", contentType,
		"rules", len(set),
		"links", resp.Links)
	s.metrics.ObserveTransform(contentType, resp.CacheState, time.Since(start), resp.Links)

	return resp, nil
}

// transform converts content to HTML, links it and converts it back. Content
// in which nothing was linked is returned as given.
func (s *Service) transform(ctx context.Context, conv format.Converter, content string, set rules.RuleSet, opts linker.Options) (*Response, error) {
	htmlContent, err := conv.ToHTML(ctx, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to convert to html: %w", err)
	}

	result := linker.New(opts).Apply(string(htmlContent), set)
	resp := &Response{
		Content:  content,
		Applied:  true,
		Links:    result.Links,
		Keywords: result.Keywords,
	}
	if result.Links == 0 {
		return resp, nil
	}

	out, err := conv.FromHTML(ctx, []byte(result.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to convert from html: %w", err)
	}
	resp.Content = string(out)

	return resp, nil
}

// ParseRules parses a raw rule list.
func (s *Service) ParseRules(raw string) *RulesResult {
	set := rules.Parse(raw)
	return &RulesResult{
		Rules:      set,
		Order:      set.ByLength(),
		Normalized: set.String(),
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func optionsKey(opts linker.Options) string {
	return strings.Join([]string{
		strconv.Itoa(opts.MaxLinks),
		strconv.FormatBool(opts.Title),
		strings.Join(opts.SkipElements, ","),
		strings.Join(opts.URLSchemes, ","),
	}, "|")
}
