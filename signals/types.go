package signals

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

// Message is the text of a communication item signals are extracted from
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Extractor detects urgency signals in a message
type Extractor interface {
	Extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error)
}

// Named is implemented by extractors that identify themselves in cache keys
type Named interface {
	Name() string
}

// NameOf returns e's name, or "custom" for extractors that do not have one
func NameOf(e Extractor) string {
	if n, ok := e.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return "custom"
}

// ExtractorFunc adapts a plain function to the Extractor interface
type ExtractorFunc func(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error)

// Extract calls f
func (f ExtractorFunc) Extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error) {
	return f(ctx, msg)
}

// OpenAIClient defines the interface for interacting with OpenAI API
type OpenAIClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the configuration for the LLM-backed extractor
type Config struct {
	APIKey               string                // OpenAI API key (required)
	Model                string                // OpenAI model to use
	BaseURL              string                // Optional OpenAI-compatible endpoint
	PromptText           string                // Custom prompt template
	SignalTypes          []string              // Signal types the model may report
	EnableCircuitBreaker bool                  // Enable circuit breaker pattern
	EnableRetry          bool                  // Enable retry with backoff
	Timeout              time.Duration         // Per-extraction timeout
	CircuitBreakerConfig *CircuitBreakerConfig // Circuit breaker configuration
	RetryConfig          *RetryConfig          // Retry configuration
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	MaxRequests   uint32                                      // Max requests in half-open state
	Interval      time.Duration                               // Interval for closed state
	Timeout       time.Duration                               // Timeout for open state
	ReadyToTrip   func(counts gobreaker.Counts) bool          // Custom trip condition
	OnStateChange func(name string, from, to gobreaker.State) // State change callback
}

// RetryConfig holds retry settings
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts
	Strategy     RetryStrategy // Backoff strategy to use
	InitialDelay time.Duration // Initial delay between retries
	MaxDelay     time.Duration // Maximum delay between retries
}

// RetryStrategy defines the backoff strategy for retries
type RetryStrategy string

const (
	RetryStrategyExponential RetryStrategy = "exponential"
	RetryStrategyConstant    RetryStrategy = "constant"
	RetryStrategyFibonacci   RetryStrategy = "fibonacci"
)

// Signal types reported by the bundled extractors beyond the scorer's
// weighted ones. They score with the default signal weight.
const (
	SignalActionRequired = "action-required"
	SignalHighStakes     = "high-stakes"
	SignalFollowUp       = "follow-up"
)

// DefaultSignalTypes lists every signal type the bundled extractors emit
func DefaultSignalTypes() []string {
	return []string{
		scorer.SignalBlocking,
		scorer.SignalEscalation,
		scorer.SignalTimeSensitive,
		SignalActionRequired,
		SignalHighStakes,
		SignalFollowUp,
	}
}

// Error definitions
var (
	ErrMissingAPIKey   = errors.New("OpenAI API key is required")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrEmptyResponse   = errors.New("OpenAI returned empty response with no choices")
	ErrInvalidResponse = errors.New("invalid signal response")
)
