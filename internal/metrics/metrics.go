// Package metrics exposes swipe, engine and cache counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
)

const namespace = "timecard"

// Metrics satisfies attendance.Observer, attendance.CacheObserver and
// service.SwipeObserver.  Each instance owns its registry so tests can
// build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	outcomes     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	swipes       *prometheus.CounterVec
	swipeLatency prometheus.Histogram
	pending      prometheus.GaugeFunc
}

// New registers the collectors.  pending, when non-nil, reports how many
// status writes are waiting for a flush.
func New(pending func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "outcomes_total",
			Help:      "Engine outcomes by class.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status_cache",
			Name:      "lookups_total",
			Help:      "Status cache lookups by result.",
		}, []string{"result"}),
		swipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swipes_total",
			Help:      "Handled swipes by outcome, including suppressed and unknown-reader swipes.",
		}, []string{"outcome"}),
		swipeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "swipe_duration_seconds",
			Help:      "Time from swipe receipt to decision.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.outcomes,
		m.cacheLookups,
		m.swipes,
		m.swipeLatency,
	)

	if pending != nil {
		m.pending = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "status_cache",
			Name:      "pending_writes",
			Help:      "Status writes waiting to be flushed.",
		}, func() float64 { return float64(pending()) })
		m.registry.MustRegister(m.pending)
	}
	return m
}

func (m *Metrics) ObserveOutcome(o attendance.Outcome) {
	m.outcomes.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSwipe(outcome string, elapsed time.Duration) {
	m.swipes.WithLabelValues(outcome).Inc()
	m.swipeLatency.Observe(elapsed.Seconds())
}

// WatchWriterQueue exports the depth of the SQLite write queue.
func (m *Metrics) WatchWriterQueue(depth func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "writer_queue_depth",
		Help:      "Write transactions waiting for the SQLite writer.",
	}, func() float64 { return float64(depth()) }))
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
