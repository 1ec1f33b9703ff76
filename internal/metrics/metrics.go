// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventradar_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Media URL cache
	MediaCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_media_url_cache_hits_total",
			Help: "Signed URL cache hits",
		},
		[]string{"backend"},
	)

	MediaCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_media_url_cache_misses_total",
			Help: "Signed URL cache misses",
		},
		[]string{"backend"},
	)

	MediaResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_media_url_resolutions_total",
			Help: "Media URL resolutions by outcome (passthrough, cached, signed, public, original)",
		},
		[]string{"outcome"},
	)

	SigningFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_media_signing_failures_total",
			Help: "Failed signing calls by kind (error, rejected)",
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventradar_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Interaction policy
	EligibilityDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_eligibility_denials_total",
			Help: "Denied interaction attempts by action and reason",
		},
		[]string{"action", "reason"},
	)

	// Location
	LocationResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventradar_location_resolutions_total",
			Help: "Viewer location resolutions by winning source",
		},
		[]string{"source"},
	)

	// Feed
	FeedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventradar_feed_requests_total",
			Help: "Feed requests started",
		},
	)

	FeedSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventradar_feed_superseded_total",
			Help: "Feed requests abandoned because a newer request for the same session began",
		},
	)

	FeedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventradar_feed_duration_seconds",
			Help:    "Time to build a ranked feed",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDenial counts a policy denial.
func RecordDenial(action, reason string) {
	EligibilityDenials.WithLabelValues(action, reason).Inc()
}

func RecordLocation(source string) {
	LocationResolutions.WithLabelValues(source).Inc()
}

func RecordCacheLookup(backend string, hit bool) {
	if hit {
		MediaCacheHits.WithLabelValues(backend).Inc()
		return
	}
	MediaCacheMisses.WithLabelValues(backend).Inc()
}
