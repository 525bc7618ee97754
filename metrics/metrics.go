// Package metrics collects and exposes Prometheus metrics for the HTTP
// surface and the upstream collaborators.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records counters for upstream calls and fallbacks. Handlers
// share one instance; all methods are safe for concurrent use.
type Collector struct {
	upstreamCalls *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	staleServed   prometheus.Counter
	aiCalls       *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plum_upstream_calls_total",
			Help: "Signed platform API calls by operation and status code.",
		}, []string{"operation", "status"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plum_rate_limited_total",
			Help: "Platform 429 responses by operation.",
		}, []string{"operation"}),
		staleServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plum_stale_search_served_total",
			Help: "Search requests answered from the local cache after a rate limit.",
		}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plum_ai_calls_total",
			Help: "Generation API calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plum_logins_total",
			Help: "OAuth login attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.upstreamCalls,
		c.rateLimited,
		c.staleServed,
		c.aiCalls,
		c.logins,
	)

	return c
}

// RecordUpstream records one completed platform call.
func (c *Collector) RecordUpstream(operation string, statusCode int) {
	c.upstreamCalls.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited records a platform 429 for operation.
func (c *Collector) RecordRateLimited(operation string) {
	c.rateLimited.WithLabelValues(operation).Inc()
}

// RecordStaleServed records a search answered from the local cache.
func (c *Collector) RecordStaleServed() {
	c.staleServed.Inc()
}

// RecordAICall records a generation call ("text" or "image") and its outcome.
func (c *Collector) RecordAICall(kind, outcome string) {
	c.aiCalls.WithLabelValues(kind, outcome).Inc()
}

// RecordLogin records a login attempt outcome ("started", "completed", "failed").
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}
