package signals

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

const breakerName = "signal-extractor"

// CircuitBreakerWrapper wraps an OpenAI client with circuit breaker functionality
type CircuitBreakerWrapper struct {
	client OpenAIClient
	cb     *gobreaker.CircuitBreaker[openai.ChatCompletionResponse]
}

// NewCircuitBreakerWrapper creates a new circuit breaker wrapper around an OpenAI client
func NewCircuitBreakerWrapper(client OpenAIClient, config *CircuitBreakerConfig) *CircuitBreakerWrapper {
	if config == nil {
		config = defaultCircuitBreakerConfig()
	}

	readyToTrip := config.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = defaultReadyToTrip
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			if config.OnStateChange != nil {
				config.OnStateChange(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			// Rate limits and timeouts are transient and left to the retry layer
			return err == nil || !ShouldTripCircuit(err)
		},
	}

	return &CircuitBreakerWrapper{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[openai.ChatCompletionResponse](settings),
	}
}

// CreateChatCompletion executes the API call through the circuit breaker
func (w *CircuitBreakerWrapper) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := w.cb.Execute(func() (openai.ChatCompletionResponse, error) {
		return w.client.CreateChatCompletion(ctx, req)
	})

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			slog.Debug("Circuit breaker is open, request rejected", "error", err)
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			slog.Debug("Circuit breaker in half-open state, too many requests", "error", err)
		default:
			slog.Debug("Request failed through circuit breaker",
				"error", err,
				"should_trip", ShouldTripCircuit(err))
		}
	}

	return resp, err
}

// State returns the current state of the circuit breaker
func (w *CircuitBreakerWrapper) State() gobreaker.State {
	return w.cb.State()
}

// Counts returns the current counts of the circuit breaker
func (w *CircuitBreakerWrapper) Counts() gobreaker.Counts {
	return w.cb.Counts()
}

// Health reports whether extraction requests are flowing
func (w *CircuitBreakerWrapper) Health() (healthy bool, status string, details map[string]interface{}) {
	state := w.cb.State()
	counts := w.cb.Counts()

	switch state {
	case gobreaker.StateClosed:
		healthy, status = true, "closed"
	case gobreaker.StateHalfOpen:
		healthy, status = true, "half-open" // Degraded but operational
	case gobreaker.StateOpen:
		healthy, status = false, "open"
	default:
		status = "unknown"
	}

	details = map[string]interface{}{
		"state":                 state.String(),
		"requests":              counts.Requests,
		"total_successes":       counts.TotalSuccesses,
		"total_failures":        counts.TotalFailures,
		"consecutive_failures":  counts.ConsecutiveFailures,
		"consecutive_successes": counts.ConsecutiveSuccesses,
	}

	return healthy, status, details
}

// ShouldTripCircuit determines if an error should cause the circuit to trip
func ShouldTripCircuit(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Rate limits are expected under load; every other status trips
		return apiErr.HTTPStatusCode != 429
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

// stateToInt converts circuit breaker state to int for metrics
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
