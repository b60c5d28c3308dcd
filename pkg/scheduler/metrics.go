package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fault sources reported by nova_faults_total.
const (
	FaultSourceAction    = "action"
	FaultSourceHook      = "hook"
	FaultSourceScheduler = "scheduler"
)

// Metrics holds the scheduler's Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  prometheus.Gauge
	faults   *prometheus.CounterVec
}

// NewMetrics registers the scheduler collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nova_actions_total",
			Help: "Actions that reached a terminal state, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nova_action_execute_seconds",
			Help:    "Time spent in the Execute phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nova_actions_pending",
			Help: "Actions queued behind a blocking action or an earlier queued action.",
		}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nova_faults_total",
			Help: "Contained failures routed to the fault handler, by source.",
		}, []string{"source"}),
	}
}

func (m *Metrics) observeOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observeExecute(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) queued(delta float64) {
	if m == nil {
		return
	}
	m.pending.Add(delta)
}

func (m *Metrics) fault(source string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(source).Inc()
}

// Outcomes exposes nova_actions_total.
func (m *Metrics) Outcomes() *prometheus.CounterVec { return m.actions }

// Faults exposes nova_faults_total.
func (m *Metrics) Faults() *prometheus.CounterVec { return m.faults }
