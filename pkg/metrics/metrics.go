package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// Metrics holds the daemon's Prometheus collectors.
type Metrics struct {
	ticks      *prometheus.CounterVec
	alerts     prometheus.Counter
	deliveries *prometheus.CounterVec
	tickTime   prometheus.Histogram
	delta      *prometheus.GaugeVec
	state      prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mguard_ticks_total",
			Help: "Detection ticks by outcome.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mguard_alerts_total",
			Help: "Completed alert sequences.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mguard_deliveries_total",
			Help: "Artifact deliveries by notifier and result.",
		}, []string{"notifier", "result"}),
		tickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mguard_tick_duration_seconds",
			Help:    "Wall time of one detection tick, including any alert sequence.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		delta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mguard_motion_delta_g",
			Help: "Last averaged acceleration delta from the baseline, per axis.",
		}, []string{"axis"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mguard_alert_state",
			Help: "Alert state: 0 idle, 1 alerting, 2 cooldown.",
		}),
	}

	reg.MustRegister(m.ticks, m.alerts, m.deliveries, m.tickTime, m.delta, m.state)
	return m
}

func (m *Metrics) ObserveTick(outcome string, d time.Duration) {
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickTime.Observe(d.Seconds())
}

func (m *Metrics) AlertCompleted() {
	m.alerts.Inc()
}

func (m *Metrics) Delivery(notifier string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.deliveries.WithLabelValues(notifier, result).Inc()
}

func (m *Metrics) MotionDelta(v model.Vec3) {
	m.delta.WithLabelValues("x").Set(v.X)
	m.delta.WithLabelValues("y").Set(v.Y)
	m.delta.WithLabelValues("z").Set(v.Z)
}

func (m *Metrics) State(s model.AlertState) {
	m.state.Set(float64(s))
}
