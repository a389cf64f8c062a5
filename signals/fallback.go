package signals

import (
	"context"
	"log/slog"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

// FallbackExtractor serves from the primary extractor and falls back to the
// secondary when the primary fails. Context cancellation is not masked.
type FallbackExtractor struct {
	primary  Extractor
	fallback Extractor
	metrics  *MetricsRecorder
}

// NewFallbackExtractor creates a fallback chain of two extractors
func NewFallbackExtractor(primary, fallback Extractor, metrics *MetricsRecorder) *FallbackExtractor {
	return &FallbackExtractor{primary: primary, fallback: fallback, metrics: metrics}
}

// Name implements Named with the primary's name, the only results worth caching
func (f *FallbackExtractor) Name() string {
	return NameOf(f.primary)
}

// Extract implements Extractor
func (f *FallbackExtractor) Extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error) {
	out, _, err := f.extract(ctx, msg)
	return out, err
}

// extract also reports whether the fallback served the result
func (f *FallbackExtractor) extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, bool, error) {
	out, err := f.primary.Extract(ctx, msg)
	if err == nil {
		return out, false, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}

	slog.Warn("signal extraction failed, using fallback extractor", "error", err)
	f.metrics.RecordFallback()

	out, err = f.fallback.Extract(ctx, msg)
	return out, true, err
}
