package signals_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"

	"github.com/JohnPlummer/priority-scorer/scorer"
	"github.com/JohnPlummer/priority-scorer/signals"
)

// blockingClient never answers before the context ends
type blockingClient struct{}

func (blockingClient) CreateChatCompletion(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	<-ctx.Done()
	return openai.ChatCompletionResponse{}, ctx.Err()
}

var _ = Describe("LLMExtractor", func() {
	var (
		mockAPI *mockAPIClient
		ctx     context.Context
		msg     signals.Message
	)

	newExtractor := func(cfg signals.Config) *signals.LLMExtractor {
		e, err := signals.NewLLMExtractorWithClient(mockAPI, cfg, nil)
		Expect(err).ToNot(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		mockAPI = &mockAPIClient{}
		msg = signals.Message{Subject: "Board deck review", Body: "Need this before the investor call tonight."}
	})

	Describe("Extract", func() {
		It("should return the signals reported by the model", func() {
			mockAPI.response = contentResponse(`{"signals":[
				{"type":"blocking","confidence":0.9},
				{"type":"Time Sensitive","confidence":0.7}
			]}`)

			sigs, err := newExtractor(signals.NewDefaultConfig("test-key")).Extract(ctx, msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(sigs).To(Equal([]scorer.UrgencySignal{
				{Type: "blocking", Confidence: 0.9},
				{Type: "time-sensitive", Confidence: 0.7},
			}))
		})

		It("should build a structured request from the prompt", func() {
			mockAPI.response = contentResponse(`{"signals":[]}`)

			_, err := newExtractor(signals.NewDefaultConfig("test-key")).Extract(ctx, msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(mockAPI.requests).To(HaveLen(1))

			req := mockAPI.requests[0]
			Expect(req.Model).To(Equal(openai.GPT4oMini))
			Expect(req.Messages).To(HaveLen(2))
			Expect(req.Messages[0].Role).To(Equal(openai.ChatMessageRoleSystem))
			Expect(req.Messages[1].Content).To(ContainSubstring("Subject: Board deck review"))
			Expect(req.Messages[1].Content).To(ContainSubstring("investor call tonight"))
			Expect(req.Messages[1].Content).To(ContainSubstring(
				"blocking, escalation, time-sensitive, action-required, high-stakes, follow-up"))
			Expect(req.ResponseFormat.Type).To(Equal(openai.ChatCompletionResponseFormatTypeJSONSchema))
			Expect(req.ResponseFormat.JSONSchema.Name).To(Equal("urgency_signals"))
		})

		It("should restrict the prompt to configured signal types", func() {
			mockAPI.response = contentResponse(`{"signals":[
				{"type":"blocking","confidence":1},
				{"type":"escalation","confidence":1}
			]}`)

			e := newExtractor(signals.NewDefaultConfig("test-key").WithSignalTypes("Blocking"))
			sigs, err := e.Extract(ctx, msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(sigs).To(Equal([]scorer.UrgencySignal{{Type: "blocking", Confidence: 1}}))
			Expect(mockAPI.requests[0].Messages[1].Content).To(ContainSubstring("of these types: blocking."))
		})

		It("should render a custom prompt", func() {
			mockAPI.response = contentResponse(`{"signals":[]}`)

			e := newExtractor(signals.NewDefaultConfig("test-key").WithPromptTemplate("Triage: {{.Subject}}"))
			_, err := e.Extract(ctx, msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(mockAPI.requests[0].Messages[1].Content).To(Equal("Triage: Board deck review"))
		})

		It("should fail on an empty response", func() {
			mockAPI.response = openai.ChatCompletionResponse{}

			_, err := newExtractor(signals.NewDefaultConfig("test-key")).Extract(ctx, msg)
			Expect(err).To(MatchError(signals.ErrEmptyResponse))
		})

		It("should fail on malformed content", func() {
			mockAPI.response = contentResponse("not json")

			_, err := newExtractor(signals.NewDefaultConfig("test-key")).Extract(ctx, msg)
			Expect(err).To(MatchError(signals.ErrInvalidResponse))
		})

		It("should fail on out-of-range confidence", func() {
			mockAPI.response = contentResponse(`{"signals":[{"type":"blocking","confidence":1.5}]}`)

			_, err := newExtractor(signals.NewDefaultConfig("test-key")).Extract(ctx, msg)
			Expect(err).To(MatchError(signals.ErrInvalidResponse))
		})

		It("should surface API errors", func() {
			mockAPI.err = &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}

			_, err := newExtractor(signals.NewDefaultConfig("test-key")).Extract(ctx, msg)
			var apiErr *openai.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.HTTPStatusCode).To(Equal(401))
		})

		It("should give up after the timeout", func() {
			e, err := signals.NewLLMExtractorWithClient(blockingClient{},
				signals.NewDefaultConfig("test-key").WithTimeout(20*time.Millisecond), nil)
			Expect(err).ToNot(HaveOccurred())

			_, err = e.Extract(ctx, msg)
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})

	Describe("resilience layers", func() {
		It("should retry transient failures behind the circuit breaker", func() {
			mockAPI.errs = []error{&openai.APIError{HTTPStatusCode: 503}}
			mockAPI.response = contentResponse(`{"signals":[{"type":"escalation","confidence":1}]}`)

			cfg := signals.NewDefaultConfig("test-key").
				WithCircuitBreaker().
				WithRetryConfig(&signals.RetryConfig{
					MaxAttempts:  3,
					Strategy:     signals.RetryStrategyConstant,
					InitialDelay: time.Millisecond,
					MaxDelay:     5 * time.Millisecond,
				})
			e, err := signals.NewLLMExtractorWithClient(mockAPI, cfg, signals.NewMetricsRecorder(true))
			Expect(err).ToNot(HaveOccurred())

			sigs, err := e.Extract(ctx, msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(sigs).To(HaveLen(1))
			Expect(mockAPI.calls).To(Equal(2))

			health := e.GetHealth(ctx)
			Expect(health.Healthy).To(BeTrue())
			Expect(health.Status).To(Equal("closed"))
			Expect(health.Details["model"]).To(Equal(openai.GPT4oMini))
		})

		It("should report healthy without a circuit breaker", func() {
			health := newExtractor(signals.NewDefaultConfig("test-key")).GetHealth(ctx)
			Expect(health.Healthy).To(BeTrue())
			Expect(health.Status).To(Equal("healthy"))
		})

		It("should reject an invalid config", func() {
			_, err := signals.NewLLMExtractorWithClient(mockAPI, signals.Config{}, nil)
			Expect(err).To(MatchError(signals.ErrMissingAPIKey))
		})
	})

	Describe("NewLLMExtractor", func() {
		It("should talk to an OpenAI-compatible endpoint", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(HaveSuffix("/chat/completions"))
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))

				var req struct {
					Model    string `json:"model"`
					Messages []struct {
						Role    string `json:"role"`
						Content string `json:"content"`
					} `json:"messages"`
					ResponseFormat map[string]any `json:"response_format"`
				}
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Model).To(Equal(openai.GPT4o))
				Expect(req.Messages).To(HaveLen(2))
				Expect(req.Messages[1].Role).To(Equal(openai.ChatMessageRoleUser))
				Expect(req.ResponseFormat).To(HaveKeyWithValue("type", "json_schema"))

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(contentResponse(`{"signals":[{"type":"high-stakes","confidence":0.8}]}`))
			}))
			defer server.Close()

			e, err := signals.NewLLMExtractor(signals.NewDefaultConfig("test-key").
				WithModel(openai.GPT4o).
				WithBaseURL(server.URL + "/v1"))
			Expect(err).ToNot(HaveOccurred())

			sigs, err := e.Extract(ctx, msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(sigs).To(Equal([]scorer.UrgencySignal{{Type: "high-stakes", Confidence: 0.8}}))
		})
	})
})
