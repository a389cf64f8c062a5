package scorer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priority_scorer_requests_total",
			Help: "Total number of scoring requests",
		},
		[]string{"kind", "status"}, // kind: single, batch
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "priority_scorer_request_duration_seconds",
			Help:    "Duration of scoring requests in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"kind"},
	)

	// Batch metrics
	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "priority_scorer_batch_size",
			Help:    "Size of scoring batches",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
		},
	)

	itemsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "priority_scorer_items_scored_total",
			Help: "Total number of items scored",
		},
	)

	// Error metrics
	invalidInputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priority_scorer_invalid_inputs_total",
			Help: "Total number of rejected inputs by field",
		},
		[]string{"field"},
	)

	// Score distribution
	scoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "priority_scorer_score_distribution",
			Help:    "Distribution of total scores (0-100)",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	componentPoints = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "priority_scorer_component_points",
			Help:    "Points awarded per score component",
			Buckets: []float64{0, 5, 10, 15, 20, 25, 30, 40, 50},
		},
		[]string{"component"},
	)

	// Concurrent processing metrics
	concurrentBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priority_scorer_concurrent_batches",
			Help: "Number of batches being processed",
		},
	)
)

// MetricsRecorder provides methods to record metrics
type MetricsRecorder struct {
	enabled bool
}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder(enabled bool) *MetricsRecorder {
	return &MetricsRecorder{enabled: enabled}
}

// Enabled reports whether the recorder records anything
func (m *MetricsRecorder) Enabled() bool {
	return m != nil && m.enabled
}

// RecordRequest records a request metric
func (m *MetricsRecorder) RecordRequest(kind, status string) {
	if !m.Enabled() {
		return
	}
	requestsTotal.WithLabelValues(kind, status).Inc()
}

// RecordRequestDuration records request duration
func (m *MetricsRecorder) RecordRequestDuration(kind string, seconds float64) {
	if !m.Enabled() {
		return
	}
	requestDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordBatchSize records the size of a batch
func (m *MetricsRecorder) RecordBatchSize(size int) {
	if !m.Enabled() {
		return
	}
	batchSize.Observe(float64(size))
}

// RecordInvalidInput records a rejected input
func (m *MetricsRecorder) RecordInvalidInput(field string) {
	if !m.Enabled() {
		return
	}
	invalidInputs.WithLabelValues(field).Inc()
}

// RecordResult records the total and per-component points of a result
func (m *MetricsRecorder) RecordResult(r ScoreResult) {
	if !m.Enabled() {
		return
	}
	itemsScored.Inc()
	scoreDistribution.Observe(float64(r.TotalScore))
	componentPoints.WithLabelValues(FactorDeadline).Observe(float64(r.DeadlineScore))
	componentPoints.WithLabelValues(FactorSender).Observe(float64(r.SenderScore))
	componentPoints.WithLabelValues(FactorUrgency).Observe(float64(r.UrgencyScore))
}

// RecordConcurrentBatches updates the in-flight batch count
func (m *MetricsRecorder) RecordConcurrentBatches(delta float64) {
	if !m.Enabled() {
		return
	}
	concurrentBatches.Add(delta)
}

// GetMetricsHandler returns an HTTP handler for Prometheus metrics
func GetMetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RegisterCustomMetrics allows registration of custom metrics
func RegisterCustomMetrics(collector prometheus.Collector) error {
	return prometheus.Register(collector)
}
