package signals

import (
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

// NewDefaultConfig creates a config with sensible defaults
func NewDefaultConfig(apiKey string) Config {
	if apiKey == "" {
		panic("API key is required")
	}

	return Config{
		APIKey:      apiKey,
		Model:       openai.GPT4oMini,
		SignalTypes: DefaultSignalTypes(),
		Timeout:     30 * time.Second,
	}
}

// NewProductionConfig creates a production-ready config with all resilience features
func NewProductionConfig(apiKey string) Config {
	return NewDefaultConfig(apiKey).
		WithTimeout(60 * time.Second).
		WithCircuitBreaker().
		WithRetry()
}

// defaultReadyToTrip trips on 5 consecutive failures or a failure rate above 60%
func defaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.ConsecutiveFailures >= 5 ||
		(counts.Requests >= 10 && failureRatio > 0.6)
}

func defaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: defaultReadyToTrip,
	}
}

func defaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		Strategy:     RetryStrategyExponential,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// WithCircuitBreaker enables circuit breaker with default settings
func (c Config) WithCircuitBreaker() Config {
	c.EnableCircuitBreaker = true
	c.CircuitBreakerConfig = defaultCircuitBreakerConfig()
	return c
}

// WithCircuitBreakerConfig enables circuit breaker with custom settings
func (c Config) WithCircuitBreakerConfig(config *CircuitBreakerConfig) Config {
	c.EnableCircuitBreaker = true
	c.CircuitBreakerConfig = config
	return c
}

// WithRetry enables retry with default exponential backoff
func (c Config) WithRetry() Config {
	c.EnableRetry = true
	c.RetryConfig = defaultRetryConfig()
	return c
}

// WithRetryStrategy enables retry with specified strategy
func (c Config) WithRetryStrategy(strategy RetryStrategy, maxAttempts int) Config {
	c.EnableRetry = true
	c.RetryConfig = defaultRetryConfig()
	c.RetryConfig.Strategy = strategy
	c.RetryConfig.MaxAttempts = maxAttempts
	return c
}

// WithRetryConfig enables retry with custom settings
func (c Config) WithRetryConfig(config *RetryConfig) Config {
	c.EnableRetry = true
	c.RetryConfig = config
	return c
}

// WithModel sets the OpenAI model
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func (c Config) WithBaseURL(baseURL string) Config {
	c.BaseURL = baseURL
	return c
}

// WithTimeout sets the per-extraction timeout
func (c Config) WithTimeout(timeout time.Duration) Config {
	if timeout < 0 {
		panic("timeout must be positive")
	}
	c.Timeout = timeout
	return c
}

// WithSignalTypes restricts the signal types the model may report
func (c Config) WithSignalTypes(types ...string) Config {
	c.SignalTypes = append([]string(nil), types...)
	return c
}

// WithPromptTemplate sets a custom prompt template
func (c Config) WithPromptTemplate(templateText string) Config {
	if _, err := parsePrompt(templateText); err != nil {
		panic(fmt.Sprintf("invalid template syntax: %v", err))
	}
	c.PromptText = templateText
	return c
}

// Validate checks if the config is valid
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Model != "" && !isValidModel(c.Model) {
		return fmt.Errorf("%w: unsupported model: %s", ErrInvalidConfig, c.Model)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}

	if c.EnableCircuitBreaker && c.CircuitBreakerConfig == nil {
		return fmt.Errorf("%w: circuit breaker enabled but config is nil", ErrInvalidConfig)
	}

	if c.EnableRetry {
		if err := c.validateRetry(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	if c.PromptText != "" {
		if _, err := parsePrompt(c.PromptText); err != nil {
			return fmt.Errorf("%w: invalid prompt template: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}

func (c Config) validateRetry() error {
	if c.RetryConfig == nil {
		return errors.New("retry enabled but config is nil")
	}
	if !isValidRetryStrategy(c.RetryConfig.Strategy) {
		return fmt.Errorf("invalid retry strategy: %s", c.RetryConfig.Strategy)
	}
	if c.RetryConfig.MaxAttempts <= 0 {
		return errors.New("retry MaxAttempts must be positive")
	}
	if c.RetryConfig.InitialDelay <= 0 {
		return errors.New("retry InitialDelay must be positive")
	}
	if c.RetryConfig.MaxDelay <= 0 {
		return errors.New("retry MaxDelay must be positive")
	}
	return nil
}

// isValidModel checks if the model is supported
func isValidModel(model string) bool {
	validModels := []string{
		openai.GPT4,
		openai.GPT4o,
		openai.GPT4oMini,
		openai.GPT4Turbo,
		openai.GPT3Dot5Turbo,
	}

	for _, valid := range validModels {
		if model == valid {
			return true
		}
	}
	return false
}

// isValidRetryStrategy checks if the retry strategy is valid
func isValidRetryStrategy(strategy RetryStrategy) bool {
	switch strategy {
	case RetryStrategyExponential, RetryStrategyConstant, RetryStrategyFibonacci:
		return true
	default:
		return false
	}
}
