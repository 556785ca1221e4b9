package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveTransform("text/html", "miss", 5*time.Millisecond, 3)
	pr.ObserveTransform("text/html", "hit", time.Millisecond, 3)
	pr.ObserveSkip(SkipView)

	assert.Equal(t, 6.0, testutil.ToFloat64(pr.links.WithLabelValues("text/html")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.transforms.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.transforms.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.skipped.WithLabelValues(SkipView)))
	assert.Equal(t, 1, testutil.CollectAndCount(pr.duration))
}

func TestPrometheusHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveSkip(SkipNoRules)

	rec := httptest.NewRecorder()
	pr.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `autolink_skipped_total{reason="no_rules"} 1`)
}

func TestNoop(t *testing.T) {
	r := Noop()
	r.ObserveTransform("text/html", "miss", time.Second, 1)
	r.ObserveSkip(SkipNoContent)
}
