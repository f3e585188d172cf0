// Package metrics exposes Prometheus collectors for the billing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionDecisions counts permission evaluations by outcome. The code
	// label carries the warning or error code, or "none".
	PermissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ninja_permission_decisions_total",
		Help: "Permission evaluations by outcome and code.",
	}, []string{"outcome", "code"})

	// CacheRefreshes counts snapshot refreshes by kind and result.
	CacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ninja_cache_refreshes_total",
		Help: "System snapshot cache refreshes by kind and result.",
	}, []string{"kind", "result"})

	// WritebackFailures counts failed writeback operations. Writebacks never
	// fail the request, so this is the only visibility into them.
	WritebackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ninja_writeback_failures_total",
		Help: "Writeback operations that failed after retries.",
	}, []string{"operation"})

	// MeterEvents counts Stripe meter event submissions by event name and
	// result.
	MeterEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ninja_meter_events_total",
		Help: "Stripe meter events submitted by event name and result.",
	}, []string{"event", "result"})

	// FailOpen counts requests that proceeded without billing after an
	// infrastructure failure during preprocessing.
	FailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ninja_billing_fail_open_total",
		Help: "Requests allowed through after a preprocessing infrastructure failure.",
	})
)
