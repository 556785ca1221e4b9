package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeychilson/autolink/config"
	"github.com/joeychilson/autolink/metrics"
	"github.com/joeychilson/autolink/service"
)

const testConfig = `
default:
  rules: |
    WordPress|https://example.com/wp
    Go|https://go.dev
  cache:
    ttl: 1m
`

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()

	c, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	svc, err := service.New(c)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	s, err := New(svc, nil, cfg)
	require.NoError(t, err)
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

// TestNewRequiresService verifies a server cannot be built without a service.
func TestNewRequiresService(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}

// TestServerHealth verifies the health endpoint.
func TestServerHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["time"])
}

// TestServerMetrics verifies transforms show up on the metrics endpoint.
func TestServerMetrics(t *testing.T) {
	rec := metrics.NewPrometheusRecorder(nil)

	c, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	svc, err := service.New(c)
	require.NoError(t, err)
	svc.WithMetrics(rec)
	defer svc.Close()

	s, err := New(svc, nil, &Config{Metrics: rec.Handler()})
	require.NoError(t, err)

	w := postJSON(t, s, "/v1/link", LinkRequest{Content: "Go"})
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `autolink_links_inserted_total{content_type="text/html"} 1`)
	assert.Contains(t, w.Body.String(), `autolink_transforms_total{cache="miss"} 1`)
}

// TestServerMethodNotAllowed verifies link only accepts POST.
func TestServerMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/link", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestServerRateLimit verifies requests over the limit receive 429.
func TestServerRateLimit(t *testing.T) {
	s := newTestServer(t, &Config{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for range 2 {
		w := postJSON(t, s, "/v1/rules", RulesRequest{Rules: "Go|https://go.dev"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postJSON(t, s, "/v1/rules", RulesRequest{Rules: "Go|https://go.dev"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded","status_code":429}`, w.Body.String())

	health := httptest.NewRecorder()
	s.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code, "health is not rate limited")
}

// TestServerRateLimitRedis verifies the limit is kept in Redis when configured.
func TestServerRateLimitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := newTestServer(t, &Config{
		RedisClient:       client,
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	})

	w := postJSON(t, s, "/v1/rules", RulesRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, s, "/v1/rules", RulesRequest{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	hasCounter := false
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "autolink:ratelimit") {
			hasCounter = true
		}
	}
	assert.True(t, hasCounter, "rate limit counters live in redis")
}

// TestServerAPIKey verifies /v1 routes require the configured key.
func TestServerAPIKey(t *testing.T) {
	s := newTestServer(t, &Config{APIKey: "secret"})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"x-api-key", "X-API-Key", "secret", http.StatusOK},
		{"bearer", "Authorization", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/rules", strings.NewReader(`{"rules":""}`))
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			s.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health does not require a key")
}

// TestServerBodyLimit verifies oversized bodies are rejected.
func TestServerBodyLimit(t *testing.T) {
	s := newTestServer(t, &Config{MaxBodyBytes: 64})

	w := postJSON(t, s, "/v1/link", LinkRequest{Content: strings.Repeat("Go ", 100)})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
