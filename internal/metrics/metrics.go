// Package metrics exposes Prometheus collectors that report engine
// activity: task completions, dispatch latency, agent occupancy, file
// conflict resolutions, and context handoffs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	tasksFinished     *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	dispatchLatency   prometheus.Histogram
	agentsActive      prometheus.Gauge
	conflictsResolved *prometheus.CounterVec
	handoffs          prometheus.Counter
}

var (
	defaultOnce   sync.Once
	sharedMetrics *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. The collectors are created only once so
// repeated engine construction (unit tests, embedded use) does not trip
// duplicate registration panics.
func Default() *Metrics {
	defaultOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided
// registerer. Supply a fresh registry when unique metric values are
// required (for example in tests). Registration errors other than
// AlreadyRegistered panic, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	tasksFinished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symphony",
			Subsystem: "engine",
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal status.",
		},
		[]string{"status", "category"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "symphony",
			Subsystem: "engine",
			Name:      "task_duration_seconds",
			Help:      "Wall time spent executing each task.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"category"},
	)
	dispatchLatency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "symphony",
			Subsystem: "engine",
			Name:      "dispatch_latency_seconds",
			Help:      "Time between a task becoming ready and an agent accepting it.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	agentsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "symphony",
			Subsystem: "engine",
			Name:      "agents_active",
			Help:      "Agents currently executing a task.",
		},
	)
	conflictsResolved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symphony",
			Subsystem: "engine",
			Name:      "file_conflicts_resolved_total",
			Help:      "File edit conflicts arbitrated by the coordinator.",
		},
		[]string{"severity"},
	)
	handoffs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "symphony",
			Subsystem: "engine",
			Name:      "handoffs_total",
			Help:      "Context handoffs between a retiring agent and its replacement.",
		},
	)

	return &Metrics{
		tasksFinished:     register(reg, tasksFinished),
		taskDuration:      register(reg, taskDuration),
		dispatchLatency:   register(reg, dispatchLatency),
		agentsActive:      register(reg, agentsActive),
		conflictsResolved: register(reg, conflictsResolved),
		handoffs:          register(reg, handoffs),
	}
}

// register adds c to reg, reusing the previously registered collector
// when one with the same descriptor already exists.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveTaskFinished records a task reaching a terminal status along
// with its measured duration.
func (m *Metrics) ObserveTaskFinished(status, category string, duration time.Duration) {
	if m == nil || m.tasksFinished == nil {
		return
	}
	m.tasksFinished.WithLabelValues(status, category).Inc()
	m.taskDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// ObserveDispatchLatency records the wait between readiness and dispatch.
func (m *Metrics) ObserveDispatchLatency(duration time.Duration) {
	if m == nil || m.dispatchLatency == nil {
		return
	}
	m.dispatchLatency.Observe(duration.Seconds())
}

// IncActiveAgents marks an agent as busy.
func (m *Metrics) IncActiveAgents() {
	if m == nil || m.agentsActive == nil {
		return
	}
	m.agentsActive.Inc()
}

// DecActiveAgents marks an agent as released.
func (m *Metrics) DecActiveAgents() {
	if m == nil || m.agentsActive == nil {
		return
	}
	m.agentsActive.Dec()
}

// IncConflictResolved counts an arbitrated file conflict by severity.
func (m *Metrics) IncConflictResolved(severity string) {
	if m == nil || m.conflictsResolved == nil {
		return
	}
	m.conflictsResolved.WithLabelValues(severity).Inc()
}

// IncHandoff counts a completed context handoff.
func (m *Metrics) IncHandoff() {
	if m == nil || m.handoffs == nil {
		return
	}
	m.handoffs.Inc()
}
