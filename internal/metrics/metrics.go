package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "predicated"

var (
	// PredicateOperations counts lifecycle operations by outcome kind.
	PredicateOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "predicates",
		Name:      "operations_total",
		Help:      "Predicate lifecycle operations by operation and result kind",
	}, []string{"operation", "result"})

	// PredicateTransitions counts status changes.
	PredicateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "predicates",
		Name:      "transitions_total",
		Help:      "Predicate status transitions",
	}, []string{"from", "to"})

	OracleFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "fetch_duration_seconds",
		Help:      "Oracle price fetch latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	OracleFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "fetch_errors_total",
		Help:      "Failed oracle price fetches",
	}, []string{"provider"})

	OracleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "cache_hits_total",
		Help:      "Oracle quotes served from cache",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// SweepRuns counts scheduler ticks by outcome.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "runs_total",
		Help:      "Expiry and revalidation sweeps",
	}, []string{"result"})
)
