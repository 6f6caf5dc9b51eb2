package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor collects engine metrics and exposes them through prometheus
type Monitor struct {
	transitions    *prometheus.CounterVec
	staleSnapshots prometheus.Counter
	malformed      prometheus.Counter
	forceReady     *prometheus.CounterVec
	liveOrders     prometheus.Gauge
	liveTimers     prometheus.Gauge
	overdueTimers  prometheus.Gauge
	startTime      time.Time
}

// NewMonitor creates a monitor and registers its collectors. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expeditor_transitions_total",
			Help: "Lifecycle transitions applied, by entity kind and resulting status.",
		}, []string{"entity", "status"}),
		staleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expeditor_stale_snapshots_total",
			Help: "Inbound snapshots dropped because local state was newer.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expeditor_malformed_events_total",
			Help: "Inbound events dropped because they could not be interpreted.",
		}),
		forceReady: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expeditor_force_ready_total",
			Help: "Force-ready overrides applied, by entity kind.",
		}, []string{"entity"}),
		liveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "expeditor_live_orders",
			Help: "Orders currently held in engine memory.",
		}),
		liveTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "expeditor_live_timers",
			Help: "Timers currently held in engine memory.",
		}),
		overdueTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "expeditor_overdue_timers",
			Help: "Timers currently classified overdue.",
		}),
		startTime: time.Now(),
	}

	reg.MustRegister(m.transitions, m.staleSnapshots, m.malformed,
		m.forceReady, m.liveOrders, m.liveTimers, m.overdueTimers)
	return m
}

// RecordTransition counts an applied lifecycle transition
func (m *Monitor) RecordTransition(entity, status string) {
	m.transitions.WithLabelValues(entity, status).Inc()
}

// RecordStaleSnapshot counts a dropped stale inbound snapshot
func (m *Monitor) RecordStaleSnapshot() {
	m.staleSnapshots.Inc()
}

// RecordMalformedEvent counts a dropped uninterpretable inbound event
func (m *Monitor) RecordMalformedEvent() {
	m.malformed.Inc()
}

// RecordForceReady counts a force-ready override
func (m *Monitor) RecordForceReady(entity string) {
	m.forceReady.WithLabelValues(entity).Inc()
}

// SetLiveOrders updates the live order gauge
func (m *Monitor) SetLiveOrders(n int) {
	m.liveOrders.Set(float64(n))
}

// SetLiveTimers updates the live timer gauges
func (m *Monitor) SetLiveTimers(total, overdue int) {
	m.liveTimers.Set(float64(total))
	m.overdueTimers.Set(float64(overdue))
}

// Uptime returns how long the monitor has been alive
func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.startTime)
}
