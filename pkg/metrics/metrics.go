package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "windowavg"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Window  = "window"
	Fetch   = "fetch"
	Publish = "publish"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple service instances.
type Labels struct {
	Instance      string // Instance name (e.g., "windowavg-0")
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Instance != "" {
		labels["instance_name"] = l.Instance
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Window state
	windowSize    prometheus.Gauge
	windowLength  prometheus.Gauge
	windowAverage prometheus.Gauge

	// Update counters
	updates        *prometheus.CounterVec
	updateDuration prometheus.Histogram
	numbersAdded   prometheus.Counter
	evictions      prometheus.Counter
	errors         *prometheus.CounterVec

	// Gateway metrics
	fetchCalls       *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	fetchInFlight    prometheus.Gauge
	budgetViolations *prometheus.CounterVec

	// Outcome publishing
	published       *prometheus.CounterVec
	publishDuration prometheus.Histogram
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., environment), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	// Wrap the registerer with constant labels if any are provided
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

// Buckets cover typical feed latencies around the 500ms budget: 1ms, 5ms,
// 10ms, 25ms, 50ms, 100ms, 200ms, 300ms, 400ms, 500ms, 750ms, 1s, 2.5s
var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .2, .3, .4, .5, .75, 1, 2.5}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "size",
			Help:      "Configured window capacity",
		}),
		windowLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "length",
			Help:      "Number of values currently held in the window",
		}),
		windowAverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "average",
			Help:      "Arithmetic mean of the window after the last update",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "updates_total",
			Help:      "Total window updates by category and status",
		}, []string{"category", "status"}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "update_duration_seconds",
			Help:      "Time to fetch and merge a batch end-to-end",
			Buckets:   latencyBuckets,
		}),
		numbersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "numbers_added_total",
			Help:      "Total values appended to the window",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "evictions_total",
			Help:      "Total values evicted from the window to respect its capacity",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		fetchCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Fetch,
			Name:      "calls_total",
			Help:      "Total gateway calls by category and status",
		}, []string{"category", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Fetch,
			Name:      "duration_seconds",
			Help:      "Gateway call duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"category"}),
		fetchInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Fetch,
			Name:      "in_flight",
			Help:      "Number of gateway calls currently in progress",
		}),
		budgetViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Fetch,
			Name:      "budget_violations_total",
			Help:      "Successful gateway calls that took at least the latency warning threshold",
		}, []string{"category"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Publish,
			Name:      "outcomes_total",
			Help:      "Total outcomes published to the queue by status",
		}, []string{"status"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Publish,
			Name:      "duration_seconds",
			Help:      "Time taken to publish an outcome to the queue",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	err := errors.Join(
		reg.Register(m.windowSize),
		reg.Register(m.windowLength),
		reg.Register(m.windowAverage),
		reg.Register(m.updates),
		reg.Register(m.updateDuration),
		reg.Register(m.numbersAdded),
		reg.Register(m.evictions),
		reg.Register(m.errors),
		reg.Register(m.fetchCalls),
		reg.Register(m.fetchDuration),
		reg.Register(m.fetchInFlight),
		reg.Register(m.budgetViolations),
		reg.Register(m.published),
		reg.Register(m.publishDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants (gateway outcomes are also tracked via fetchCalls{status="error"}).
const (
	ErrTypeTimeout   = "timeout"
	ErrTypeTransport = "transport"
	ErrTypePublish   = "publish"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// UpdateWindowMetrics updates window state gauges.
func (m *Metrics) UpdateWindowMetrics(size, length int, avg float64) {
	if m == nil {
		return
	}
	m.windowSize.Set(float64(size))
	m.windowLength.Set(float64(length))
	m.windowAverage.Set(avg)
}

// RecordMerge records values appended to and evicted from the window.
func (m *Metrics) RecordMerge(added, evicted int) {
	if m == nil {
		return
	}
	if added > 0 {
		m.numbersAdded.Add(float64(added))
	}
	if evicted > 0 {
		m.evictions.Add(float64(evicted))
	}
}

// RecordUpdate records an update outcome with its end-to-end duration.
func (m *Metrics) RecordUpdate(category string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(category, status(err)).Inc()
	m.updateDuration.Observe(durationSeconds)
}

// IncFetchInFlight increments the in-flight gateway call gauge.
func (m *Metrics) IncFetchInFlight() {
	if m == nil {
		return
	}
	m.fetchInFlight.Inc()
}

// DecFetchInFlight decrements the in-flight gateway call gauge.
func (m *Metrics) DecFetchInFlight() {
	if m == nil {
		return
	}
	m.fetchInFlight.Dec()
}

// RecordFetch records a gateway call outcome.
func (m *Metrics) RecordFetch(category string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.fetchCalls.WithLabelValues(category, status(err)).Inc()
	m.fetchDuration.WithLabelValues(category).Observe(durationSeconds)
}

// RecordBudgetViolation records a successful gateway call that was too slow.
func (m *Metrics) RecordBudgetViolation(category string) {
	if m == nil {
		return
	}
	m.budgetViolations.WithLabelValues(category).Inc()
}

// RecordPublish records an outcome publish attempt with duration.
// Pass nil error for successful publishes, non-nil for failures.
func (m *Metrics) RecordPublish(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(status(err)).Inc()
	m.publishDuration.Observe(durationSeconds)
	if err != nil {
		m.errors.WithLabelValues(ErrTypePublish).Inc()
	}
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
