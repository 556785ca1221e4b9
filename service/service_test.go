package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeychilson/autolink/cache"
	"github.com/joeychilson/autolink/config"
	"github.com/joeychilson/autolink/format"
	"github.com/joeychilson/autolink/rules"
)

const testConfig = `
default:
  rules: |
    WordPress|https://example.com/wp
  cache:
    ttl: 10m
sites:
  - pattern: "blog.example.com"
    rules: |
      Go|https://go.dev
`

type fakeRecorder struct {
	transforms []string
	skips      []string
	links      int
}

func (f *fakeRecorder) ObserveTransform(contentType, cacheState string, d time.Duration, links int) {
	f.transforms = append(f.transforms, cacheState)
	f.links += links
}

func (f *fakeRecorder) ObserveSkip(reason string) {
	f.skips = append(f.skips, reason)
}

func newTestService(t *testing.T) (*Service, *fakeRecorder) {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rec := &fakeRecorder{}
	s.WithMetrics(rec)
	return s, rec
}

func TestLinkConfiguredRules(t *testing.T) {
	s, _ := newTestService(t)

	resp, err := s.Link(context.Background(), &Request{
		Content: "<p>I use WordPress daily</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, `<p>I use <a href="https://example.com/wp" title="WordPress">WordPress</a> daily</p>`, resp.Content)
	assert.True(t, resp.Applied)
	assert.Equal(t, 1, resp.Links)
	require.Len(t, resp.Keywords, 1)
	assert.Equal(t, "WordPress", resp.Keywords[0].Keyword)
	assert.Equal(t, CacheMiss, resp.CacheState)
}

func TestLinkSiteRules(t *testing.T) {
	s, _ := newTestService(t)

	resp, err := s.Link(context.Background(), &Request{
		Content: "WordPress and Go",
		URL:     "https://blog.example.com/post",
	})
	require.NoError(t, err)

	assert.Equal(t,
		`<a href="https://example.com/wp" title="WordPress">WordPress</a> and <a href="https://go.dev" title="Go">Go</a>`,
		resp.Content)
	assert.Equal(t, 2, resp.Links)
}

func TestLinkRequestRulesReplaceConfigured(t *testing.T) {
	s, _ := newTestService(t)

	resp, err := s.Link(context.Background(), &Request{
		Content:  "WordPress today",
		Rules:    "today|/old",
		Keywords: map[string]string{"today": "/today"},
	})
	require.NoError(t, err)

	assert.Equal(t, `WordPress <a href="/today" title="today">today</a>`, resp.Content)
}

func TestLinkMaxLinksOverride(t *testing.T) {
	s, _ := newTestService(t)

	resp, err := s.Link(context.Background(), &Request{
		Content:  "WordPress, WordPress, WordPress",
		MaxLinks: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Links)
	assert.Contains(t, resp.Content, "</a>, WordPress")
}

func TestLinkSkips(t *testing.T) {
	tests := []struct {
		name   string
		req    *Request
		reason string
	}{
		{"archive view", &Request{Content: "WordPress", View: config.ViewArchive}, "view"},
		{"unknown view", &Request{Content: "WordPress", View: "sitemap"}, "view"},
		{"no rules", &Request{Content: "WordPress", Rules: "no delimiter"}, "no_rules"},
		{"blank content", &Request{Content: "  \n"}, "no_content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestService(t)

			resp, err := s.Link(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.req.Content, resp.Content)
			assert.False(t, resp.Applied)
			assert.Equal(t, CacheBypass, resp.CacheState)
			assert.Equal(t, []string{tt.reason}, rec.skips)
			assert.Empty(t, rec.transforms)
		})
	}
}

func TestLinkInvalidRequests(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Link(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Link(ctx, &Request{Content: "x", MaxLinks: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Link(ctx, &Request{Content: "x", ContentType: "application/pdf"})
	assert.ErrorIs(t, err, format.ErrUnsupportedContentType)
}

// TestLinkCacheHit verifies a repeated request is served from the cache.
func TestLinkCacheHit(t *testing.T) {
	s, rec := newTestService(t)
	ctx := context.Background()
	req := &Request{Content: "<p>WordPress</p>"}

	first, err := s.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, first.CacheState)

	second, err := s.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, second.CacheState)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Keywords, second.Keywords)
	assert.True(t, second.Applied)

	assert.Equal(t, []string{CacheMiss, CacheHit}, rec.transforms)
	assert.Equal(t, 2, rec.links)
}

// TestLinkCacheKeyIncludesOptions verifies different limits do not share entries.
func TestLinkCacheKeyIncludesOptions(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	content := "WordPress WordPress"

	_, err := s.Link(ctx, &Request{Content: content})
	require.NoError(t, err)

	resp, err := s.Link(ctx, &Request{Content: content, MaxLinks: 2})
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, resp.CacheState)
	assert.Equal(t, 2, resp.Links)
}

// TestLinkCacheDisabled verifies results are not cached without a TTL.
func TestLinkCacheDisabled(t *testing.T) {
	cfg := config.New()
	cfg.Default.Rules = "WordPress|https://example.com/wp"

	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()
	req := &Request{Content: "WordPress"}

	for range 2 {
		resp, err := s.Link(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, CacheBypass, resp.CacheState)
		assert.Equal(t, 1, resp.Links)
	}
}

func TestLinkWithoutCache(t *testing.T) {
	s, _ := newTestService(t)
	s.WithCache(nil)

	resp, err := s.Link(context.Background(), &Request{Content: "WordPress"})
	require.NoError(t, err)
	assert.Equal(t, CacheBypass, resp.CacheState)
}

// TestLinkRedisCache verifies results are stored in and served from Redis.
func TestLinkRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s, _ := newTestService(t)
	s.WithCache(cache.NewRedisCache(client, cache.Config{}))
	ctx := context.Background()
	req := &Request{Content: "WordPress"}

	_, err := s.Link(ctx, req)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	resp, err := s.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, resp.CacheState)
}

// TestLinkRedisUnavailable verifies cache failures do not fail the request.
func TestLinkRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	s, _ := newTestService(t)
	s.WithCache(cache.NewRedisCache(client, cache.Config{}))

	resp, err := s.Link(context.Background(), &Request{Content: "WordPress"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Links)
}

func TestLinkMarkdown(t *testing.T) {
	s, _ := newTestService(t)

	resp, err := s.Link(context.Background(), &Request{
		Content:     "Learn Go today.\n",
		ContentType: "text/markdown; charset=utf-8",
		Rules:       "Go|https://go.dev",
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Content, "[Go](https://go.dev")
	assert.NotContains(t, resp.Content, "<a ")
	assert.Equal(t, 1, resp.Links)
}

// TestLinkMarkdownUnmatched verifies markdown without matches is not reformatted.
func TestLinkMarkdownUnmatched(t *testing.T) {
	s, _ := newTestService(t)
	content := "*  loose   list\n*  item\n"

	resp, err := s.Link(context.Background(), &Request{
		Content:     content,
		ContentType: "text/markdown",
	})
	require.NoError(t, err)

	assert.Equal(t, content, resp.Content)
	assert.True(t, resp.Applied)
	assert.Zero(t, resp.Links)
}

func TestParseRules(t *testing.T) {
	s, _ := newTestService(t)

	got := s.ParseRules("Go|https://go.dev\r\nGolang Tips|/tips\nbad\nGo|https://golang.org")

	assert.Equal(t, rules.RuleSet{
		{Keyword: "Go", URL: "https://golang.org"},
		{Keyword: "Golang Tips", URL: "/tips"},
	}, got.Rules)
	assert.Equal(t, "Golang Tips", got.Order[0].Keyword)
	assert.Equal(t, "Go|https://golang.org\nGolang Tips|/tips", got.Normalized)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := config.New()
	cfg.Default.Link.MaxLinks = -1

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile("/nonexistent/autolink.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
