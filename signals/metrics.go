package signals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_extractor_requests_total",
			Help: "Total number of signal extraction requests",
		},
		[]string{"extractor", "status"},
	)

	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signal_extractor_request_duration_seconds",
			Help:    "Duration of signal extraction requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"extractor"},
	)

	signalsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_extractor_signals_total",
			Help: "Total number of urgency signals detected by type",
		},
		[]string{"type"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_extractor_cache_lookups_total",
			Help: "Signal cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	fallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_extractor_fallbacks_total",
			Help: "Total number of extractions served by the fallback extractor",
		},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signal_extractor_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	circuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_extractor_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)

	retryAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signal_extractor_retry_attempts",
			Help:    "Number of attempts per request",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	retryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_extractor_retry_total",
			Help: "Total number of retries by reason",
		},
		[]string{"reason"},
	)

	apiTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_extractor_api_tokens_used_total",
			Help: "Total number of tokens used in API calls",
		},
		[]string{"type"}, // prompt, completion
	)
)

// MetricsRecorder provides methods to record extraction metrics
type MetricsRecorder struct {
	enabled bool
}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder(enabled bool) *MetricsRecorder {
	return &MetricsRecorder{enabled: enabled}
}

func (m *MetricsRecorder) on() bool {
	return m != nil && m.enabled
}

// RecordExtraction records one extraction request
func (m *MetricsRecorder) RecordExtraction(extractor, status string, seconds float64) {
	if !m.on() {
		return
	}
	extractionsTotal.WithLabelValues(extractor, status).Inc()
	extractionDuration.WithLabelValues(extractor).Observe(seconds)
}

// RecordSignal records a detected signal
func (m *MetricsRecorder) RecordSignal(signalType string) {
	if !m.on() {
		return
	}
	signalsDetected.WithLabelValues(signalType).Inc()
}

// RecordCacheLookup records a cache hit, miss or error
func (m *MetricsRecorder) RecordCacheLookup(result string) {
	if !m.on() {
		return
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordFallback records an extraction served by the fallback
func (m *MetricsRecorder) RecordFallback() {
	if !m.on() {
		return
	}
	fallbacksTotal.Inc()
}

// RecordCircuitBreakerState records circuit breaker state
func (m *MetricsRecorder) RecordCircuitBreakerState(name string, state int) {
	if !m.on() {
		return
	}
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *MetricsRecorder) RecordCircuitBreakerTrip(name string) {
	if !m.on() {
		return
	}
	circuitBreakerTrips.WithLabelValues(name).Inc()
}

// RecordRetryAttempts records the attempts a request took
func (m *MetricsRecorder) RecordRetryAttempts(attempts int) {
	if !m.on() {
		return
	}
	retryAttempts.Observe(float64(attempts))
}

// RecordRetry records a retry
func (m *MetricsRecorder) RecordRetry(reason string) {
	if !m.on() {
		return
	}
	retryTotal.WithLabelValues(reason).Inc()
}

// RecordTokensUsed records tokens used
func (m *MetricsRecorder) RecordTokensUsed(tokenType string, count int) {
	if !m.on() {
		return
	}
	apiTokensUsed.WithLabelValues(tokenType).Add(float64(count))
}
