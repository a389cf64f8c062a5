package signals

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

// KeywordRule maps a set of phrases to a signal type
type KeywordRule struct {
	Type       string
	Confidence float64
	Phrases    []string
}

// DefaultKeywordRules returns the built-in phrase table
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Type: scorer.SignalBlocking, Confidence: 1.0, Phrases: []string{"blocking", "blocked", "blocker", "dependency", "waiting on"}},
		{Type: scorer.SignalEscalation, Confidence: 1.0, Phrases: []string{"urgent", "asap", "critical", "immediately", "escalate", "escalated", "escalation"}},
		{Type: scorer.SignalTimeSensitive, Confidence: 0.8, Phrases: []string{"deadline", "due", "eod", "end of day", "time-sensitive", "time sensitive", "expires", "tonight"}},
		{Type: SignalHighStakes, Confidence: 1.0, Phrases: []string{"board", "investor", "investors", "series", "funding"}},
		{Type: SignalActionRequired, Confidence: 1.0, Phrases: []string{"review", "approval", "approve", "sign off", "sign-off", "decision"}},
		{Type: SignalFollowUp, Confidence: 0.5, Phrases: []string{"reminder", "follow up", "follow-up", "pending"}},
	}
}

type compiledRule struct {
	signalType string
	confidence float64
	pattern    *regexp.Regexp
}

// KeywordExtractor detects signals by whole-phrase matches in the subject and body
type KeywordExtractor struct {
	rules   []compiledRule
	metrics *MetricsRecorder
}

// NewKeywordExtractor compiles rules into an extractor. With no rules the
// default table is used.
func NewKeywordExtractor(rules ...KeywordRule) *KeywordExtractor {
	if len(rules) == 0 {
		rules = DefaultKeywordRules()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if len(r.Phrases) == 0 {
			continue
		}
		quoted := make([]string, len(r.Phrases))
		for i, p := range r.Phrases {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(p))
		}
		compiled = append(compiled, compiledRule{
			signalType: scorer.NormalizeSignalType(r.Type),
			confidence: r.Confidence,
			pattern:    regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}

	return &KeywordExtractor{rules: compiled, metrics: NewMetricsRecorder(false)}
}

// WithMetrics records extractions on m
func (e *KeywordExtractor) WithMetrics(m *MetricsRecorder) *KeywordExtractor {
	e.metrics = m
	return e
}

// Name implements Named
func (e *KeywordExtractor) Name() string {
	return "keyword"
}

// Extract returns one signal per matching rule
func (e *KeywordExtractor) Extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error) {
	start := time.Now()
	text := strings.ToLower(msg.Subject + "\n" + msg.Body)

	var out []scorer.UrgencySignal
	for _, r := range e.rules {
		if r.pattern.MatchString(text) {
			out = append(out, scorer.UrgencySignal{Type: r.signalType, Confidence: r.confidence})
			e.metrics.RecordSignal(r.signalType)
		}
	}

	e.metrics.RecordExtraction("keyword", "success", time.Since(start).Seconds())
	return scorer.NormalizeSignals(out), nil
}
