package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sony/gobreaker/v2"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

// Internal response types for JSON parsing
type signalResponse struct {
	Signals []signalItem `json:"signals"`
}

type signalItem struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// LLMExtractor asks an OpenAI chat model which urgency signals a message carries
type LLMExtractor struct {
	client  OpenAIClient
	breaker *CircuitBreakerWrapper
	model   string
	tmpl    *template.Template
	allowed map[string]bool
	types   []string
	timeout time.Duration
	metrics *MetricsRecorder
}

// NewLLMExtractor creates an extractor backed by the OpenAI API, wrapped with
// the resilience layers enabled in cfg
func NewLLMExtractor(cfg Config) (*LLMExtractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return NewLLMExtractorWithClient(openai.NewClientWithConfig(clientCfg), cfg, NewMetricsRecorder(true))
}

// NewLLMExtractorWithClient creates an extractor around a custom client
func NewLLMExtractorWithClient(client OpenAIClient, cfg Config, metrics *MetricsRecorder) (*LLMExtractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := parsePrompt(cfg.PromptText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	types := cfg.SignalTypes
	if len(types) == 0 {
		types = DefaultSignalTypes()
	}
	allowed := make(map[string]bool, len(types))
	normalized := make([]string, 0, len(types))
	for _, t := range types {
		n := scorer.NormalizeSignalType(t)
		if n == "" || allowed[n] {
			continue
		}
		allowed[n] = true
		normalized = append(normalized, n)
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	e := &LLMExtractor{
		model:   model,
		tmpl:    tmpl,
		allowed: allowed,
		types:   normalized,
		timeout: cfg.Timeout,
		metrics: metrics,
	}

	// Layer 1: retry (innermost)
	if cfg.EnableRetry {
		slog.Info("Enabling retry logic",
			"max_attempts", cfg.RetryConfig.MaxAttempts,
			"strategy", cfg.RetryConfig.Strategy)
		client = NewRetryWrapper(client, cfg.RetryConfig).WithMetrics(metrics)
	}

	// Layer 2: circuit breaker (wraps retry)
	if cfg.EnableCircuitBreaker {
		slog.Info("Enabling circuit breaker",
			"max_requests", cfg.CircuitBreakerConfig.MaxRequests,
			"timeout", cfg.CircuitBreakerConfig.Timeout)

		cbConfig := *cfg.CircuitBreakerConfig
		userHook := cbConfig.OnStateChange
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
			if userHook != nil {
				userHook(name, from, to)
			}
		}
		e.breaker = NewCircuitBreakerWrapper(client, &cbConfig)
		client = e.breaker
	}

	e.client = client

	slog.Info("LLM signal extractor created",
		"model", model,
		"signal_types", len(normalized),
		"circuit_breaker", cfg.EnableCircuitBreaker,
		"retry", cfg.EnableRetry)

	return e, nil
}

// Name implements Named. Results of different models are kept apart.
func (e *LLMExtractor) Name() string {
	return "llm:" + e.model
}

// Extract implements Extractor
func (e *LLMExtractor) Extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error) {
	start := time.Now()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := e.extract(ctx, msg)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordExtraction("llm", status, time.Since(start).Seconds())

	return out, err
}

func (e *LLMExtractor) extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error) {
	prompt, err := renderPrompt(e.tmpl, promptData{
		Subject:     msg.Subject,
		Body:        msg.Body,
		SignalTypes: e.types,
	})
	if err != nil {
		return nil, err
	}

	schema, err := jsonschema.GenerateSchemaForType(signalResponse{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON schema: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, e.buildChatRequest(prompt, schema))
	if err != nil {
		return nil, fmt.Errorf("OpenAI API request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	e.metrics.RecordTokensUsed("prompt", resp.Usage.PromptTokens)
	e.metrics.RecordTokensUsed("completion", resp.Usage.CompletionTokens)

	return e.parseResponse(resp.Choices[0].Message.Content)
}

func (e *LLMExtractor) buildChatRequest(prompt string, schema *jsonschema.Definition) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Schema: schema,
				Name:   "urgency_signals",
			},
		},
	}
}

func (e *LLMExtractor) parseResponse(content string) ([]scorer.UrgencySignal, error) {
	var result signalResponse
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal OpenAI response: %w", ErrInvalidResponse, err)
	}

	out := make([]scorer.UrgencySignal, 0, len(result.Signals))
	for _, s := range result.Signals {
		t := scorer.NormalizeSignalType(s.Type)
		if !e.allowed[t] {
			slog.Warn("ignoring unrequested signal type from model", "type", s.Type)
			continue
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			return nil, fmt.Errorf("%w: confidence %v for %q must be between 0 and 1", ErrInvalidResponse, s.Confidence, s.Type)
		}
		out = append(out, scorer.UrgencySignal{Type: t, Confidence: s.Confidence})
		e.metrics.RecordSignal(t)
	}

	return scorer.NormalizeSignals(out), nil
}

// GetHealth reports the circuit breaker state, when one is configured
func (e *LLMExtractor) GetHealth(ctx context.Context) scorer.HealthStatus {
	if e.breaker == nil {
		return scorer.HealthStatus{
			Healthy: true,
			Status:  "healthy",
			Details: map[string]interface{}{"model": e.model},
		}
	}

	healthy, status, details := e.breaker.Health()
	details["model"] = e.model
	return scorer.HealthStatus{Healthy: healthy, Status: status, Details: details}
}
