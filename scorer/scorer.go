package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
)

// Internal scorer implementation
type scorer struct {
	config  Config
	weights map[string]float64
	buckets []DeadlineBucket
}

// New creates a new instance of the Scorer
func New(cfg Config) (Scorer, error) {
	return newScorer(cfg)
}

func newScorer(cfg Config) (*scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	weights := make(map[string]float64, len(cfg.SignalWeights))
	for k, v := range cfg.SignalWeights {
		weights[NormalizeSignalType(k)] = v
	}

	return &scorer{
		config:  cfg,
		weights: weights,
		buckets: append([]DeadlineBucket(nil), cfg.DeadlineBuckets...),
	}, nil
}

// Score evaluates a single item. It never performs I/O and is safe for
// concurrent use.
func (s *scorer) Score(input ScoringInput) (ScoreResult, error) {
	if err := checkInput(input); err != nil {
		return ScoreResult{}, err
	}

	deadline := s.deadlineFactor(input.Deadline, input.ReferenceTime)
	sender := senderFactor(input.SenderRank)
	urgency := s.urgencyFactor(NormalizeSignals(input.UrgencySignals))

	factors := []Factor{deadline, sender, urgency}
	result := ScoreResult{
		ID:            input.ID,
		DeadlineScore: deadline.Points,
		SenderScore:   sender.Points,
		UrgencyScore:  urgency.Points,
		TotalScore:    deadline.Points + sender.Points + urgency.Points,
		Explanation:   explain(factors),
		Factors:       factors,
		Deadline:      input.Deadline,
	}

	slog.Debug("Item scored",
		"id", input.ID,
		"deadline_score", result.DeadlineScore,
		"sender_score", result.SenderScore,
		"urgency_score", result.UrgencyScore,
		"total_score", result.TotalScore)

	return result, nil
}

// GetHealth reports the scorer configuration. A pure scorer is always healthy.
func (s *scorer) GetHealth(ctx context.Context) HealthStatus {
	return HealthStatus{
		Healthy: true,
		Status:  "healthy",
		Details: map[string]interface{}{
			"signal_types":     s.config.signalTypes(),
			"deadline_buckets": len(s.buckets),
			"max_concurrent":   s.config.MaxConcurrent,
		},
	}
}

func (s *scorer) deadlineFactor(deadline *time.Time, ref time.Time) Factor {
	f := Factor{Name: FactorDeadline, MaxPoints: MaxDeadlineScore}

	if deadline == nil {
		f.Detail = "no explicit deadline"
		return f
	}

	remaining := deadline.Sub(ref)
	if remaining < 0 {
		// Overdue items are already critical.
		f.Points = MaxDeadlineScore
		f.Detail = fmt.Sprintf("overdue by %s", humanDuration(-remaining))
		return f
	}

	for _, b := range s.buckets {
		if remaining <= b.MaxDuration {
			f.Points = b.Points
			f.Detail = fmt.Sprintf("due within %s", humanDuration(b.MaxDuration))
			return f
		}
	}

	if n := len(s.buckets); n > 0 {
		f.Detail = fmt.Sprintf("due in more than %s", humanDuration(s.buckets[n-1].MaxDuration))
	} else {
		f.Detail = fmt.Sprintf("due in %s", humanDuration(remaining))
	}
	return f
}

func senderFactor(rank float64) Factor {
	points := clampInt(int(math.Round(rank*MaxSenderScore)), 0, MaxSenderScore)
	return Factor{
		Name:      FactorSender,
		Points:    points,
		MaxPoints: MaxSenderScore,
		Detail:    fmt.Sprintf("sender rank %.2f", rank),
	}
}

type contribution struct {
	signal string
	value  float64
}

func (s *scorer) urgencyFactor(signals []UrgencySignal) Factor {
	f := Factor{Name: FactorUrgency, MaxPoints: MaxUrgencyScore}

	var sum float64
	fired := make([]contribution, 0, len(signals))
	for _, sig := range signals {
		v := sig.Confidence * s.weightFor(sig.Type)
		if v <= 0 {
			continue
		}
		sum += v
		fired = append(fired, contribution{signal: sig.Type, value: v})
	}

	if len(fired) == 0 {
		f.Detail = "no urgency signals detected"
		return f
	}

	capped := sum > MaxUrgencyScore
	f.Points = clampInt(int(math.Round(math.Min(sum, MaxUrgencyScore))), 0, MaxUrgencyScore)

	sort.SliceStable(fired, func(i, j int) bool { return fired[i].value > fired[j].value })
	parts := make([]string, len(fired))
	for i, c := range fired {
		name := c.signal
		if name == "" {
			name = "unnamed"
		}
		parts[i] = fmt.Sprintf("%s (%.1f)", name, c.value)
	}
	f.Detail = "signals " + strings.Join(parts, ", ")
	if capped {
		f.Detail += fmt.Sprintf(", capped from %.1f", sum)
	}
	return f
}

func (s *scorer) weightFor(signalType string) float64 {
	if w, ok := s.weights[signalType]; ok {
		return w
	}
	return s.config.DefaultSignalWeight
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
