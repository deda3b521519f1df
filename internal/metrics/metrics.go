// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts API requests by route, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syscope",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "The total number of API requests",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes API request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syscope",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// GitHubCalls counts GitHub API calls by operation and outcome.
	GitHubCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syscope",
		Subsystem: "github",
		Name:      "calls_total",
		Help:      "The total number of GitHub API calls",
	}, []string{"operation", "outcome"})

	// GitHubRateRemaining tracks the last seen GitHub rate limit remaining.
	GitHubRateRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syscope",
		Subsystem: "github",
		Name:      "rate_remaining",
		Help:      "Remaining GitHub API calls in the current window",
	})

	// CacheLookups counts commit cache lookups by result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syscope",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "The total number of commit cache lookups",
	}, []string{"result"})

	// MembersInserted counts member records created by collaborator syncs.
	MembersInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syscope",
		Subsystem: "members",
		Name:      "inserted_total",
		Help:      "The total number of member records created",
	})
)
