// Package metrics holds the prometheus collectors for the dashboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratapulse_propagation_passes_total",
		Help: "Total number of reactive propagation passes across all sessions",
	})

	NodeRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratapulse_derived_recomputes_total",
		Help: "Total number of derived node recomputations",
	})

	SinkRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratapulse_sink_runs_total",
		Help: "Total number of sink invocations",
	})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratapulse_fetch_failures_total",
		Help: "Failed datasource queries by query id",
	}, []string{"query"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratapulse_fetch_duration_seconds",
		Help:    "Duration of datasource queries",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"query"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stratapulse_active_sessions",
		Help: "Dashboard sessions currently registered",
	})

	AttachedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stratapulse_attached_clients",
		Help: "Websocket clients currently attached to a session",
	})

	FragmentsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratapulse_fragments_sent_total",
		Help: "View fragments pushed to clients by target",
	}, []string{"target"})

	DiscardedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratapulse_discarded_events_total",
		Help: "Events posted to a session after it was closed",
	})

	SessionPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratapulse_session_panics_total",
		Help: "Sessions closed because an event panicked",
	})
)

// InitQueries creates the per-query series at zero so dashboards see every
// query before its first failure.
func InitQueries(queries []string) {
	for _, q := range queries {
		FetchFailures.WithLabelValues(q)
		FetchDuration.WithLabelValues(q)
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
