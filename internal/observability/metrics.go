package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting workflow activity.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec

	sessionsActive prometheus.Gauge

	eventsSent        prometheus.Counter
	eventsDropped     prometheus.Counter
	streamConnections prometheus.Gauge

	tasksCompleted *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. Collectors are created once to avoid
// duplicate registration panics when services are constructed repeatedly in
// tests.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers supply a fresh registry when unique metric names are required (for
// example in tests). Registration errors panic, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "deepresearch",
				Subsystem: "workflow",
				Name:      "step_duration_seconds",
				Help:      "Duration of each research workflow step.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step", "status"},
		),
		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepresearch",
				Subsystem: "workflow",
				Name:      "step_failures_total",
				Help:      "Workflow steps that failed and forced the error phase.",
			},
			[]string{"step"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "deepresearch",
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Sessions currently executing a workflow step.",
			},
		),
		eventsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "deepresearch",
				Subsystem: "stream",
				Name:      "events_sent_total",
				Help:      "Events delivered to stream subscribers.",
			},
		),
		eventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "deepresearch",
				Subsystem: "stream",
				Name:      "events_dropped_total",
				Help:      "Events dropped because a subscriber buffer was full.",
			},
		),
		streamConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "deepresearch",
				Subsystem: "stream",
				Name:      "connections",
				Help:      "Currently attached stream subscribers.",
			},
		),
		tasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepresearch",
				Subsystem: "workflow",
				Name:      "search_tasks_total",
				Help:      "Search task outcomes by state.",
			},
			[]string{"state"},
		),
	}

	collectors := []prometheus.Collector{
		m.stepDuration, m.stepFailures, m.sessionsActive,
		m.eventsSent, m.eventsDropped, m.streamConnections, m.tasksCompleted,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}

// ObserveStep records one workflow step execution.
func (m *Metrics) ObserveStep(step string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step, status).Observe(elapsed.Seconds())
	if status == "error" {
		m.stepFailures.WithLabelValues(step).Inc()
	}
}

// StepStarted marks a session as actively executing.
func (m *Metrics) StepStarted() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

// StepFinished marks a session as done executing.
func (m *Metrics) StepFinished() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

// EventSent counts a delivered stream event.
func (m *Metrics) EventSent() {
	if m != nil {
		m.eventsSent.Inc()
	}
}

// EventDropped counts a dropped stream event.
func (m *Metrics) EventDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}

// SubscriberAttached tracks a new stream connection.
func (m *Metrics) SubscriberAttached() {
	if m != nil {
		m.streamConnections.Inc()
	}
}

// SubscriberDetached tracks a closed stream connection.
func (m *Metrics) SubscriberDetached() {
	if m != nil {
		m.streamConnections.Dec()
	}
}

// TaskFinished counts one search task outcome ("completed" or "failed").
func (m *Metrics) TaskFinished(state string) {
	if m != nil {
		m.tasksCompleted.WithLabelValues(state).Inc()
	}
}
