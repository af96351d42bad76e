// Package telemetry holds the Prometheus collectors exported on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RecurringMaterialized counts transactions created from recurring definitions.
var RecurringMaterialized = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "recurring",
	Name:      "materialized_total",
	Help:      "Total transactions materialized from recurring definitions.",
})

// RecurringPartialFailures counts batches whose transactions were stored
// but whose markers could not be moved.
var RecurringPartialFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "recurring",
	Name:      "partial_failures_total",
	Help:      "Materialization batches left with stale markers after retries.",
})

// RecurringRuns counts materialization runs by outcome.
var RecurringRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "recurring",
	Name:      "runs_total",
	Help:      "Recurring materialization runs by outcome.",
}, []string{"outcome"})

// JobsConsumed counts AMQP materialization jobs by result.
var JobsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "worker",
	Name:      "jobs_total",
	Help:      "Materialization jobs consumed from the queue by result.",
}, []string{"result"})

// HTTPRequests counts API requests by method, route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by method, route and status.",
}, []string{"method", "route", "status"})

// HTTPDuration observes request latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ledger",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// RateLimited counts requests rejected by the API rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected with 429 by the rate limiter.",
})

// SessionsOpen tracks ledger sessions currently held in the session cache.
var SessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ledger",
	Subsystem: "session",
	Name:      "open",
	Help:      "Ledger sessions currently cached in memory.",
})
