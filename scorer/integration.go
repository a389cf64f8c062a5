package scorer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// IntegratedScorer combines the base scorer with metrics and monitoring
type IntegratedScorer struct {
	baseScorer Scorer
	metrics    *MetricsRecorder
	config     Config
}

// NewIntegratedScorer creates a scorer that records Prometheus metrics when
// cfg.EnableMetrics is set
func NewIntegratedScorer(cfg Config) (Scorer, error) {
	base, err := New(cfg)
	if err != nil {
		return nil, err
	}

	integrated := &IntegratedScorer{
		baseScorer: base,
		metrics:    NewMetricsRecorder(cfg.EnableMetrics),
		config:     cfg,
	}

	slog.Info("Integrated scorer created",
		"signal_types", len(cfg.SignalWeights),
		"deadline_buckets", len(cfg.DeadlineBuckets),
		"max_concurrent", cfg.MaxConcurrent,
		"metrics", cfg.EnableMetrics)

	return integrated, nil
}

// BuildProductionScorer creates a scorer with production defaults
func BuildProductionScorer() (Scorer, error) {
	return NewIntegratedScorer(NewProductionConfig())
}

// Score implements Scorer with metrics
func (s *IntegratedScorer) Score(input ScoringInput) (ScoreResult, error) {
	start := time.Now()

	result, err := s.baseScorer.Score(input)
	s.metrics.RecordRequestDuration("single", time.Since(start).Seconds())

	if err != nil {
		s.metrics.RecordRequest("single", "invalid")
		s.metrics.RecordInvalidInput(classifyError(err))
		return result, err
	}

	s.metrics.RecordRequest("single", "success")
	s.metrics.RecordResult(result)
	return result, nil
}

// ScoreBatch implements Scorer with metrics
func (s *IntegratedScorer) ScoreBatch(ctx context.Context, inputs []ScoringInput) ([]BatchResult, error) {
	start := time.Now()

	s.metrics.RecordBatchSize(len(inputs))
	s.metrics.RecordConcurrentBatches(1)
	defer s.metrics.RecordConcurrentBatches(-1)

	results, err := s.baseScorer.ScoreBatch(ctx, inputs)
	s.metrics.RecordRequestDuration("batch", time.Since(start).Seconds())

	if err != nil {
		s.metrics.RecordRequest("batch", classifyError(err))
		return nil, err
	}

	s.metrics.RecordRequest("batch", "success")
	for _, r := range results {
		if r.OK() {
			s.metrics.RecordResult(*r.Result)
			continue
		}
		s.metrics.RecordInvalidInput(classifyError(r.Err))
	}

	return results, nil
}

// GetHealth returns comprehensive health status
func (s *IntegratedScorer) GetHealth(ctx context.Context) HealthStatus {
	baseHealth := s.baseScorer.GetHealth(ctx)
	if baseHealth.Details == nil {
		baseHealth.Details = map[string]interface{}{}
	}

	baseHealth.Details["integration"] = map[string]interface{}{
		"metrics_enabled": s.metrics.Enabled(),
		"max_concurrent":  s.config.MaxConcurrent,
	}

	return baseHealth
}

// classifyError returns the metric label for an error
func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	var inputErr *InvalidInputError
	if errors.As(err, &inputErr) {
		return inputErr.Field
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	return "unknown"
}
