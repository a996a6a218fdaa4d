package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one probe tick.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tick"})

	tickSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "tick_skips_total",
		Help:      "Ticks skipped because the previous one was still running.",
	})

	issuesReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "issues_reported_total",
		Help:      "Issues recorded by the tracker, after dedupe.",
	}, []string{"type"})

	openIssues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "open_issues",
		Help:      "Currently open (not auto-fixed) issues.",
	}, []string{"type"})

	remediationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "remediation_attempts_total",
		Help:      "Remediation dispatches by issue type and outcome.",
	}, []string{"type", "outcome"})

	providerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "provider_status",
		Help:      "Provider reachability: 1 online, 0.5 degraded, 0 offline.",
	}, []string{"provider"})

	sessionCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "medavatar",
		Subsystem: "monitor",
		Name:      "session_cache_size",
		Help:      "Tracked sessions in the health score cache.",
	})
)
