// Package metrics collects Prometheus metrics for the client layers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the API client, caches, poller and prober.
type Recorder interface {
	RecordAPIRequest(endpoint string, status int, elapsed time.Duration)
	RecordCacheLookup(query string, hit bool)
	RecordPoll(outcome string)
	RecordProbe(platform, outcome string)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordAPIRequest(string, int, time.Duration) {}
func (Nop) RecordCacheLookup(string, bool)              {}
func (Nop) RecordPoll(string)                           {}
func (Nop) RecordProbe(string, string)                  {}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	polls        *prometheus.CounterVec
	probes       *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidinsight_api_requests_total",
			Help: "Backend API requests by endpoint and status code.",
		}, []string{"endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidinsight_api_request_seconds",
			Help:    "Backend API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidinsight_cache_lookups_total",
			Help: "Query cache lookups by query and result.",
		}, []string{"query", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidinsight_status_polls_total",
			Help: "Submission status polls by outcome.",
		}, []string{"outcome"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidinsight_metadata_probes_total",
			Help: "Metadata preview lookups by platform and outcome.",
		}, []string{"platform", "outcome"}),
	}

	reg.MustRegister(c.apiRequests, c.apiLatency, c.cacheLookups, c.polls, c.probes)
	return c
}

// RecordAPIRequest counts a completed backend call. Status 0 means a transport error.
func (c *Collector) RecordAPIRequest(endpoint string, status int, elapsed time.Duration) {
	c.apiRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a query cache hit or miss.
func (c *Collector) RecordCacheLookup(query string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(query, result).Inc()
}

// RecordPoll counts a status poll tick.
func (c *Collector) RecordPoll(outcome string) {
	c.polls.WithLabelValues(outcome).Inc()
}

// RecordProbe counts a metadata lookup.
func (c *Collector) RecordProbe(platform, outcome string) {
	c.probes.WithLabelValues(platform, outcome).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
