package foundation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts driver lifecycle events. A nil *Metrics records nothing.
type Metrics struct {
	provisioned      *prometheus.CounterVec
	setupFailures    *prometheus.CounterVec
	provisionLatency prometheus.Histogram
	initialPages     *prometheus.CounterVec
	teardowns        *prometheus.CounterVec
	advisoryFailures *prometheus.CounterVec
	releaseFailures  prometheus.Counter
	activeDrivers    prometheus.Gauge
}

// NewMetrics registers the lifecycle metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		provisioned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selenium_foundation",
			Name:      "drivers_provisioned_total",
			Help:      "Drivers bound to invocations, by source.",
		}, []string{"source"}),
		setupFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selenium_foundation",
			Name:      "setup_failures_total",
			Help:      "Invocations whose setup failed, by step.",
		}, []string{"step"}),
		provisionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "selenium_foundation",
			Name:      "provision_duration_seconds",
			Help:      "Time taken to obtain a driver from a provisioner or grid.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		initialPages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selenium_foundation",
			Name:      "initial_pages_opened_total",
			Help:      "Initial pages opened before test bodies, by page type.",
		}, []string{"page_type"}),
		teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selenium_foundation",
			Name:      "teardowns_total",
			Help:      "Drivers released after a test outcome, by outcome.",
		}, []string{"outcome"}),
		advisoryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selenium_foundation",
			Name:      "advisory_cleanup_failures_total",
			Help:      "Best-effort cleanup steps that did not succeed, by step.",
		}, []string{"step"}),
		releaseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "selenium_foundation",
			Name:      "release_failures_total",
			Help:      "Driver sessions that could not be quit.",
		}),
		activeDrivers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "selenium_foundation",
			Name:      "active_drivers",
			Help:      "Drivers bound through the manager and not yet released.",
		}),
	}
}

func (m *Metrics) recordProvision(source string, took time.Duration) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(source).Inc()
	if took > 0 {
		m.provisionLatency.Observe(took.Seconds())
	}
	m.activeDrivers.Inc()
}

func (m *Metrics) recordSetupFailure(step SetupStep) {
	if m == nil {
		return
	}
	m.setupFailures.WithLabelValues(string(step)).Inc()
}

func (m *Metrics) recordInitialPage(pageType string) {
	if m == nil {
		return
	}
	m.initialPages.WithLabelValues(pageType).Inc()
}

func (m *Metrics) recordAdvisory(r AdvisoryResult) {
	if m == nil || r.OK() {
		return
	}
	m.advisoryFailures.WithLabelValues(r.Step).Inc()
}

// recordTeardown counts a released driver. Only drivers that recordProvision
// counted leave the active driver gauge.
func (m *Metrics) recordTeardown(o Outcome, released, counted bool) {
	if m == nil {
		return
	}
	m.teardowns.WithLabelValues(o.String()).Inc()
	if !released {
		m.releaseFailures.Inc()
	}
	if counted {
		m.activeDrivers.Dec()
	}
}
