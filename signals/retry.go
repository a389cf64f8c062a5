package signals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

// RetryWrapper wraps an OpenAI client with retry logic
type RetryWrapper struct {
	client  OpenAIClient
	config  *RetryConfig
	metrics *MetricsRecorder
}

// NewRetryWrapper creates a new retry wrapper around an OpenAI client
func NewRetryWrapper(client OpenAIClient, config *RetryConfig) *RetryWrapper {
	if config == nil {
		config = defaultRetryConfig()
	}

	return &RetryWrapper{
		client:  client,
		config:  config,
		metrics: NewMetricsRecorder(false),
	}
}

// WithMetrics records retries on m
func (w *RetryWrapper) WithMetrics(m *MetricsRecorder) *RetryWrapper {
	w.metrics = m
	return w
}

// CreateChatCompletion executes the API call with retry logic
func (w *RetryWrapper) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var attempts int

	backoff := newBackoff(w.config)

	for {
		attempts++

		resp, err := w.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if attempts > 1 {
				slog.Info("Request succeeded after retry", "attempts", attempts)
			}
			w.metrics.RecordRetryAttempts(attempts)
			return resp, nil
		}

		if !IsRetryableError(err) {
			slog.Debug("Non-retryable error, giving up",
				"error", err,
				"attempts", attempts)
			return openai.ChatCompletionResponse{}, err
		}

		if attempts >= w.config.MaxAttempts {
			slog.Warn("Max retry attempts reached",
				"attempts", attempts,
				"error", err)
			w.metrics.RecordRetryAttempts(attempts)
			return openai.ChatCompletionResponse{}, err
		}

		delay, stop := backoff.Next()
		if stop {
			slog.Warn("Backoff strategy stopped",
				"attempts", attempts,
				"error", err)
			return openai.ChatCompletionResponse{}, err
		}

		slog.Debug("Retrying request after delay",
			"attempt", attempts,
			"delay", delay,
			"error", err)
		w.metrics.RecordRetry(retryReason(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return openai.ChatCompletionResponse{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// newBackoff returns the go-retry backoff for the configured strategy
func newBackoff(config *RetryConfig) retry.Backoff {
	jitter := config.InitialDelay / 10

	var b retry.Backoff
	switch config.Strategy {
	case RetryStrategyConstant:
		b = retry.NewConstant(config.InitialDelay)
	case RetryStrategyFibonacci:
		b = retry.NewFibonacci(config.InitialDelay)
	default:
		b = retry.NewExponential(config.InitialDelay)
	}

	if jitter > 0 {
		b = retry.WithJitter(jitter, b)
	}
	b = retry.WithCappedDuration(config.MaxDelay, b)

	return retry.WithMaxRetries(uint64(config.MaxAttempts), b)
}

// IsRetryableError determines if an error should trigger a retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429: // Rate limit - definitely retry
			return true
		case 500, 502, 503, 504:
			return true
		case 400, 401, 403, 404:
			return false
		default:
			return apiErr.HTTPStatusCode >= 500
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// Unknown errors are most likely transport failures
	return true
}

func retryReason(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return "rate_limit"
		}
		return "server_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "transport"
}
