package scorer

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DeadlineBucket maps a time-to-deadline range to a fixed point value.
// A deadline falls in the first bucket whose MaxDuration it does not exceed.
type DeadlineBucket struct {
	MaxDuration time.Duration `yaml:"max_duration"`
	Points      int           `yaml:"points"`
}

// Config holds the configuration for the scorer
type Config struct {
	SignalWeights       map[string]float64 `yaml:"signal_weights"`        // Per signal-type weight
	DefaultSignalWeight float64            `yaml:"default_signal_weight"` // Weight for unrecognized signal types
	DeadlineBuckets     []DeadlineBucket   `yaml:"deadline_buckets"`      // Ordered by MaxDuration ascending
	MaxConcurrent       int                `yaml:"max_concurrent"`        // Batch worker limit (0 = unbounded)
	EnableMetrics       bool               `yaml:"enable_metrics"`        // Record Prometheus metrics
}

// Recognized signal types
const (
	SignalBlocking      = "blocking"
	SignalEscalation    = "escalation"
	SignalTimeSensitive = "time-sensitive"

	DefaultSignalWeight = 2.0
)

// DefaultSignalWeights returns the default per-signal urgency weights
func DefaultSignalWeights() map[string]float64 {
	return map[string]float64{
		SignalBlocking:      8,
		SignalEscalation:    6,
		SignalTimeSensitive: 4,
	}
}

// DefaultDeadlineBuckets returns the default deadline step function
func DefaultDeadlineBuckets() []DeadlineBucket {
	return []DeadlineBucket{
		{MaxDuration: time.Hour, Points: 50},
		{MaxDuration: 24 * time.Hour, Points: 40},
		{MaxDuration: 3 * 24 * time.Hour, Points: 25},
		{MaxDuration: 7 * 24 * time.Hour, Points: 10},
	}
}

// NewDefaultConfig creates a config with sensible defaults
func NewDefaultConfig() Config {
	return Config{
		SignalWeights:       DefaultSignalWeights(),
		DefaultSignalWeight: DefaultSignalWeight,
		DeadlineBuckets:     DefaultDeadlineBuckets(),
		MaxConcurrent:       4,
	}
}

// NewProductionConfig creates a config with metrics enabled
func NewProductionConfig() Config {
	return NewDefaultConfig().WithMaxConcurrent(8).WithMetrics(true)
}

// LoadConfig reads a YAML file on top of the defaults. Signal weights in the
// file are merged into the default table; deadline buckets replace it.
func LoadConfig(path string) (Config, error) {
	cfg := NewDefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// WithSignalWeight sets the weight for a single signal type
func (c Config) WithSignalWeight(signalType string, weight float64) Config {
	weights := make(map[string]float64, len(c.SignalWeights)+1)
	for k, v := range c.SignalWeights {
		weights[k] = v
	}
	weights[NormalizeSignalType(signalType)] = weight
	c.SignalWeights = weights
	return c
}

// WithSignalWeights replaces the whole weight table
func (c Config) WithSignalWeights(weights map[string]float64) Config {
	c.SignalWeights = make(map[string]float64, len(weights))
	for k, v := range weights {
		c.SignalWeights[NormalizeSignalType(k)] = v
	}
	return c
}

// WithDefaultSignalWeight sets the weight used for unknown signal types
func (c Config) WithDefaultSignalWeight(weight float64) Config {
	c.DefaultSignalWeight = weight
	return c
}

// WithDeadlineBuckets replaces the deadline step function
func (c Config) WithDeadlineBuckets(buckets []DeadlineBucket) Config {
	c.DeadlineBuckets = append([]DeadlineBucket(nil), buckets...)
	return c
}

// WithMaxConcurrent sets the maximum number of concurrent batch workers
func (c Config) WithMaxConcurrent(max int) Config {
	if max < 0 {
		panic("MaxConcurrent must be non-negative")
	}
	c.MaxConcurrent = max
	return c
}

// WithMetrics toggles Prometheus metric recording
func (c Config) WithMetrics(enabled bool) Config {
	c.EnableMetrics = enabled
	return c
}

// Validate checks if the config is valid
func (c Config) Validate() error {
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: MaxConcurrent must be non-negative", ErrInvalidConfig)
	}

	if !validWeight(c.DefaultSignalWeight) {
		return fmt.Errorf("%w: default signal weight %v must be a non-negative number", ErrInvalidConfig, c.DefaultSignalWeight)
	}

	for signalType, weight := range c.SignalWeights {
		if NormalizeSignalType(signalType) == "" {
			return fmt.Errorf("%w: signal weight with empty type", ErrInvalidConfig)
		}
		if !validWeight(weight) {
			return fmt.Errorf("%w: weight %v for signal %q must be a non-negative number", ErrInvalidConfig, weight, signalType)
		}
	}

	return validateBuckets(c.DeadlineBuckets)
}

// validateBuckets enforces a monotonically decreasing step function
func validateBuckets(buckets []DeadlineBucket) error {
	for i, b := range buckets {
		if b.MaxDuration <= 0 {
			return fmt.Errorf("%w: deadline bucket %d MaxDuration must be positive", ErrInvalidConfig, i)
		}
		if b.Points < 0 || b.Points > MaxDeadlineScore {
			return fmt.Errorf("%w: deadline bucket %d points %d outside [0, %d]", ErrInvalidConfig, i, b.Points, MaxDeadlineScore)
		}
		if i == 0 {
			continue
		}
		prev := buckets[i-1]
		if b.MaxDuration <= prev.MaxDuration {
			return fmt.Errorf("%w: deadline buckets must be ordered by MaxDuration (bucket %d)", ErrInvalidConfig, i)
		}
		if b.Points > prev.Points {
			return errors.Join(ErrInvalidConfig,
				fmt.Errorf("deadline bucket %d awards more points than a nearer bucket", i))
		}
	}
	return nil
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

// signalTypes returns the configured signal types in a stable order
func (c Config) signalTypes() []string {
	types := make([]string, 0, len(c.SignalWeights))
	for k := range c.SignalWeights {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}
