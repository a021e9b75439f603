// Package metrics exposes the custom metrics reactview publishes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the custom metrics published by reactview.
type Metrics struct {
	ResourceRequests     *prometheus.CounterVec
	ResourceLoadFailures prometheus.Counter
	ViewCacheHits        prometheus.Counter
	ViewCacheMisses      prometheus.Counter
	ViewsPreloaded       prometheus.Counter
	ViewConstructSeconds prometheus.Histogram
}

// RegisterMetrics creates and registers reactview's metrics with the given
// registerer and returns our internal struct pointer.
func RegisterMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResourceRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reactview_resource_requests_total",
			Help: "Resource requests intercepted, partitioned by scheme.",
		}, []string{"scheme"}),
		ResourceLoadFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "reactview_resource_load_failures_total",
			Help: "Resource loads the engine reported as failed.",
		}),
		ViewCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "reactview_view_cache_hits_total",
			Help: "View acquisitions served from the preload cache.",
		}),
		ViewCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "reactview_view_cache_misses_total",
			Help: "View acquisitions that had to construct synchronously.",
		}),
		ViewsPreloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "reactview_views_preloaded_total",
			Help: "View instances constructed speculatively in the background.",
		}),
		ViewConstructSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reactview_view_construct_seconds",
			Help:    "Wall time spent constructing view instances.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}
