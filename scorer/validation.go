package scorer

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ValidationResult contains the results of input validation
type ValidationResult struct {
	Valid       bool
	Issues      []string
	Suggestions []string
}

// ValidateInput reports every problem with a single input. Score stops at the
// first one; this is for callers that want to check items up front.
func ValidateInput(input ScoringInput) ValidationResult {
	result := ValidationResult{Valid: true}

	if input.ReferenceTime.IsZero() {
		result.Valid = false
		result.Issues = append(result.Issues, "reference time is missing")
		result.Suggestions = append(result.Suggestions, "set ReferenceTime to the instant deadlines are measured from")
	}

	if !inUnitRange(input.SenderRank) {
		result.Valid = false
		result.Issues = append(result.Issues, fmt.Sprintf("sender rank %v outside [0, 1]", input.SenderRank))
		result.Suggestions = append(result.Suggestions, "normalize sender rank to the range 0.0-1.0")
	}

	for _, s := range input.UrgencySignals {
		if !inUnitRange(s.Confidence) {
			result.Valid = false
			result.Issues = append(result.Issues,
				fmt.Sprintf("confidence %v for signal %q outside [0, 1]", s.Confidence, s.Type))
			result.Suggestions = append(result.Suggestions, "pass detector confidences in the range 0.0-1.0")
		}
	}

	return result
}

// ValidateInputs validates a batch of inputs
func ValidateInputs(inputs []ScoringInput) ([]ValidationResult, error) {
	results := make([]ValidationResult, len(inputs))
	hasErrors := false

	for i, input := range inputs {
		results[i] = ValidateInput(input)
		if !results[i].Valid {
			hasErrors = true
		}
	}

	if hasErrors {
		// Return results even with errors so caller can see what failed
		return results, fmt.Errorf("%w: validation failed for one or more items", ErrInvalidInput)
	}

	return results, nil
}

// checkInput returns the first problem as an *InvalidInputError
func checkInput(input ScoringInput) error {
	if input.ReferenceTime.IsZero() {
		return invalidInput("reference_time", "is required")
	}
	if !inUnitRange(input.SenderRank) {
		return invalidInput("sender_rank", "%v outside [0, 1]", input.SenderRank)
	}
	for _, s := range input.UrgencySignals {
		if !inUnitRange(s.Confidence) {
			return invalidInput("urgency_signals", "confidence %v for %q outside [0, 1]", s.Confidence, s.Type)
		}
	}
	return nil
}

// IsInvalidInput reports whether err was caused by a rejected input
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// NormalizeSignalType lower-cases and trims a signal identifier and joins
// inner whitespace or underscores with a dash ("Time Sensitive" -> "time-sensitive").
func NormalizeSignalType(signalType string) string {
	fields := strings.FieldsFunc(strings.ToLower(signalType), func(r rune) bool {
		return r == ' ' || r == '_' || r == '\t' || r == '\n'
	})
	return strings.Join(fields, "-")
}

// NormalizeSignals treats the signals as a set keyed by normalized type.
// Duplicates keep the highest confidence; first-seen order is preserved.
func NormalizeSignals(signals []UrgencySignal) []UrgencySignal {
	if len(signals) == 0 {
		return nil
	}

	index := make(map[string]int, len(signals))
	out := make([]UrgencySignal, 0, len(signals))
	for _, s := range signals {
		t := NormalizeSignalType(s.Type)
		if i, ok := index[t]; ok {
			if s.Confidence > out[i].Confidence {
				out[i].Confidence = s.Confidence
			}
			continue
		}
		index[t] = len(out)
		out = append(out, UrgencySignal{Type: t, Confidence: s.Confidence})
	}
	return out
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
