// Package metrics holds the Prometheus collectors of the match host.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

// Outcome labels of finished matches.
const (
	OutcomeWin     = "win"
	OutcomeDraw    = "draw"
	OutcomeIOError = "io_error"
	OutcomeFailed  = "failed"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MatchesStarted  prometheus.Counter
	MatchesFinished *prometheus.CounterVec
	ActiveMatches   prometheus.Gauge
	Mutations       prometheus.Counter
	Batches         prometheus.Counter
	RPCDuration     *prometheus.HistogramVec
	Rounds          prometheus.Histogram
}

// New creates the collectors on a private registry, together with the
// standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		MatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitcg_matches_started_total",
			Help: "Total number of matches started",
		}),
		MatchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitcg_matches_finished_total",
			Help: "Total number of matches finished by outcome",
		}, []string{"outcome"}),
		ActiveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitcg_active_matches",
			Help: "Number of matches currently running",
		}),
		Mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitcg_mutations_total",
			Help: "Total number of state mutations applied",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitcg_notify_batches_total",
			Help: "Total number of notification batches flushed",
		}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gitcg_rpc_duration_seconds",
			Help:    "Time players took to answer requests",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"method", "status"}),
		Rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gitcg_match_rounds",
			Help:    "Rounds played per finished match",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}),
	}
	reg.MustRegister(m.MatchesStarted, m.MatchesFinished, m.ActiveMatches,
		m.Mutations, m.Batches, m.RPCDuration, m.Rounds)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.MatchesStarted.Inc()
	m.ActiveMatches.Inc()
}

// MatchFinished records the end of a match.
func (m *Metrics) MatchFinished(outcome string, rounds int) {
	if m == nil {
		return
	}
	m.MatchesFinished.WithLabelValues(outcome).Inc()
	m.ActiveMatches.Dec()
	m.Rounds.Observe(float64(rounds))
}

// ObserveBatch counts one flushed batch and its mutations.
func (m *Metrics) ObserveBatch(b game.NotifyBatch) {
	if m == nil {
		return
	}
	m.Batches.Inc()
	m.Mutations.Add(float64(len(b.Mutations)))
}

// ObserveRPC records one completed request. It matches
// GameOptions.OnRPC.
func (m *Metrics) ObserveRPC(_ int, method game.RPCMethod, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RPCDuration.WithLabelValues(string(method), status).Observe(elapsed.Seconds())
}
