// Package metrics provides Prometheus instrumentation for the moderation
// engine. It exposes counters for event and action throughput, per-rule
// trigger counts, gauges for the directory and window stores, and a
// histogram for event handling latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts events consumed from the transport, labeled by
	// kind: "message", "membership", "command", or "invalid".
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modengine_events_total",
		Help: "Total number of events consumed from the transport",
	}, []string{"kind"})

	// RuleTriggersTotal counts moderation rule firings, labeled by rule.
	RuleTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modengine_rule_triggers_total",
		Help: "Total number of moderation rule firings",
	}, []string{"rule"})

	// ActionsTotal counts platform action calls, labeled by action method
	// and outcome ("ok" or "error").
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modengine_actions_total",
		Help: "Total number of platform action calls issued",
	}, []string{"action", "outcome"})

	// EventLatency records end-to-end event handling latency in seconds.
	EventLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "modengine_event_latency_seconds",
		Help:    "Event handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// KnownChats tracks the size of the known-chat set.
	KnownChats = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modengine_known_chats",
		Help: "Number of chats the engine has observed",
	})

	// TrackedWindows tracks the number of live spam windows.
	TrackedWindows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modengine_tracked_windows",
		Help: "Number of live sliding windows across all keys",
	})
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		RuleTriggersTotal,
		ActionsTotal,
		EventLatency,
		KnownChats,
		TrackedWindows,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
