// Package metrics collects Prometheus metrics and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the GitHub client, the explorer and the auth handlers
// report to.
type Recorder interface {
	RecordUpstream(endpoint string, statusCode int, duration time.Duration)
	RecordSearch(outcome string)
	RecordSignIn(provider string, ok bool)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	searches        *prometheus.CounterVec
	signIns         *prometheus.CounterVec
}

// compile-time check that *Collector implements Recorder
var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_upstream_requests_total",
			Help: "GitHub API requests by endpoint and status code (0 = no response).",
		}, []string{"endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "explorer_upstream_latency_seconds",
			Help:    "GitHub API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_searches_total",
			Help: "Completed searches by outcome.",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_sign_ins_total",
			Help: "Sign-in attempts by provider and result.",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.upstreamStatus,
		c.upstreamLatency,
		c.searches,
		c.signIns,
	)

	return c
}

func (c *Collector) RecordUpstream(endpoint string, statusCode int, duration time.Duration) {
	c.upstreamStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (c *Collector) RecordSearch(outcome string) {
	c.searches.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSignIn(provider string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.signIns.WithLabelValues(provider, result).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used where metrics are not wired, e.g. tests.
type Nop struct{}

func (Nop) RecordUpstream(string, int, time.Duration) {}
func (Nop) RecordSearch(string)                       {}
func (Nop) RecordSignIn(string, bool)                 {}
