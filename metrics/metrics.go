package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a transform is skipped without linking.
const (
	SkipView      = "view"
	SkipNoRules   = "no_rules"
	SkipNoContent = "no_content"
)

// Recorder receives transform observations.
type Recorder interface {
	ObserveTransform(contentType, cacheState string, d time.Duration, links int)
	ObserveSkip(reason string)
}

// Noop returns a Recorder that discards observations.
func Noop() Recorder {
	return noopRecorder{}
}

type noopRecorder struct{}

func (noopRecorder) ObserveTransform(string, string, time.Duration, int) {}
func (noopRecorder) ObserveSkip(string) {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry   *prom.Registry
	duration   *prom.HistogramVec
	links      *prom.CounterVec
	transforms *prom.CounterVec
	skipped    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers metrics on reg, or on a new registry when nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		registry: reg,
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "autolink",
			Name:      "transform_duration_seconds",
			Help:      "Duration of link transforms",
			Buckets:   prom.DefBuckets,
		}, []string{"content_type"}),
		links: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "autolink",
			Name:      "links_inserted_total",
			Help:      "Links inserted into content",
		}, []string{"content_type"}),
		transforms: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "autolink",
			Name:      "transforms_total",
			Help:      "Transforms by cache state",
		}, []string{"cache"}),
		skipped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "autolink",
			Name:      "skipped_total",
			Help:      "Transforms skipped without linking, by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(pr.duration, pr.links, pr.transforms, pr.skipped)
	return pr
}

// ObserveTransform records a completed transform.
func (pr *PrometheusRecorder) ObserveTransform(contentType, cacheState string, d time.Duration, links int) {
	pr.duration.WithLabelValues(contentType).Observe(d.Seconds())
	pr.links.WithLabelValues(contentType).Add(float64(links))
	pr.transforms.WithLabelValues(cacheState).Inc()
}

// ObserveSkip records a transform that returned content unchanged.
func (pr *PrometheusRecorder) ObserveSkip(reason string) {
	pr.skipped.WithLabelValues(reason).Inc()
}

// Handler exposes the recorder's registry in the Prometheus text format.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{})
}
