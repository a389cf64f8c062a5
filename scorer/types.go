package scorer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UrgencySignal is a detected cue indicating time-criticality
type UrgencySignal struct {
	Type       string  `json:"type" yaml:"type"`             // Signal type identifier, e.g. "blocking"
	Confidence float64 `json:"confidence" yaml:"confidence"` // Detector confidence in [0,1]
}

// ScoringInput holds the features of a single communication item
type ScoringInput struct {
	ID             string          `json:"id,omitempty"`              // Optional identifier echoed in the result
	Deadline       *time.Time      `json:"deadline,omitempty"`        // Explicit deadline, nil when none
	SenderRank     float64         `json:"sender_rank"`               // Organizational importance in [0,1]
	UrgencySignals []UrgencySignal `json:"urgency_signals,omitempty"` // Detected urgency cues
	ReferenceTime  time.Time       `json:"reference_time"`            // The "now" deadlines are measured from
}

// Factor is the structured form of one scored dimension
type Factor struct {
	Name      string `json:"name" yaml:"name"`
	Points    int    `json:"points" yaml:"points"`
	MaxPoints int    `json:"max_points" yaml:"max_points"`
	Detail    string `json:"detail" yaml:"detail"`
}

// ScoreResult is the score breakdown for a single item
type ScoreResult struct {
	ID            string     `json:"id,omitempty" yaml:"id,omitempty"`
	DeadlineScore int        `json:"deadline_score" yaml:"deadline_score"` // 0-50
	SenderScore   int        `json:"sender_score" yaml:"sender_score"`     // 0-30
	UrgencyScore  int        `json:"urgency_score" yaml:"urgency_score"`   // 0-20
	TotalScore    int        `json:"total_score" yaml:"total_score"`       // 0-100
	Rank          int        `json:"rank,omitempty" yaml:"rank,omitempty"` // 1 = highest within a batch
	Explanation   []string   `json:"explanation" yaml:"explanation"`
	Factors       []Factor   `json:"factors" yaml:"factors"`
	Deadline      *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// BatchResult is one slot of a batch, parallel to the input slice.
// Exactly one of Result and Err is set.
type BatchResult struct {
	Index  int          `json:"index" yaml:"index"`
	Result *ScoreResult `json:"result,omitempty" yaml:"result,omitempty"`
	Err    error        `json:"-" yaml:"-"`
}

// OK reports whether the item was scored
func (b BatchResult) OK() bool {
	return b.Err == nil && b.Result != nil
}

// Scorer provides methods to score communication items
type Scorer interface {
	// Score computes the breakdown for a single item
	Score(input ScoringInput) (ScoreResult, error)

	// ScoreBatch scores every item independently and ranks the successful ones
	ScoreBatch(ctx context.Context, inputs []ScoringInput) ([]BatchResult, error)

	// GetHealth returns the current health status of the scorer
	GetHealth(ctx context.Context) HealthStatus
}

// HealthStatus represents the health state of the scorer
type HealthStatus struct {
	Healthy bool                   `json:"healthy"`
	Status  string                 `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Component caps
const (
	MaxDeadlineScore = 50
	MaxSenderScore   = 30
	MaxUrgencyScore  = 20
	MaxTotalScore    = MaxDeadlineScore + MaxSenderScore + MaxUrgencyScore
)

// Factor names
const (
	FactorDeadline = "deadline"
	FactorSender   = "sender"
	FactorUrgency  = "urgency"
)

// Error definitions
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvalidInputError describes which field of a ScoringInput was rejected
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalidInput(field, format string, args ...interface{}) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
