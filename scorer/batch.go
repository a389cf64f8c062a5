package scorer

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ScoreBatch scores each input independently and ranks the successful
// results. The returned slice is parallel to inputs; an invalid item carries
// its error and leaves the rest of the batch untouched. The error return is
// only set when ctx is done before every item was scored.
func (s *scorer) ScoreBatch(ctx context.Context, inputs []ScoringInput) ([]BatchResult, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	slog.Info("Processing batch of items", "batch_size", len(inputs))

	results := make([]BatchResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrent > 0 {
		g.SetLimit(s.config.MaxConcurrent)
	}

	for i := range inputs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Score(inputs[i])
			if err != nil {
				results[i] = BatchResult{Index: i, Err: err}
				return nil
			}
			results[i] = BatchResult{Index: i, Result: &res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := assignRanks(results)

	slog.Info("Batch scoring completed",
		"items_scored", len(inputs)-failed,
		"items_failed", failed)

	return results, nil
}

// assignRanks sets Rank on every successful slot and returns the number of
// failed slots
func assignRanks(results []BatchResult) int {
	ok := make([]*ScoreResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r.Result)
		}
	}
	sortByPriority(ok)
	for i, r := range ok {
		r.Rank = i + 1
	}
	return len(results) - len(ok)
}

// Ranked returns the successful results of a batch in rank order
func Ranked(batch []BatchResult) []ScoreResult {
	out := make([]ScoreResult, 0, len(batch))
	for _, r := range batch {
		if r.OK() {
			out = append(out, *r.Result)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// Rank orders results in place by priority and assigns 1-based ranks.
// Ties on total score go to the nearer deadline (none sorts last), then to
// the original order.
func Rank(results []ScoreResult) {
	ptrs := make([]*ScoreResult, len(results))
	for i := range results {
		ptrs[i] = &results[i]
	}
	sortByPriority(ptrs)

	ranked := make([]ScoreResult, len(results))
	for i, p := range ptrs {
		ranked[i] = *p
		ranked[i].Rank = i + 1
	}
	copy(results, ranked)
}

func sortByPriority(results []*ScoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return higherPriority(results[i], results[j])
	})
}

func higherPriority(a, b *ScoreResult) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	switch {
	case a.Deadline == nil:
		return false
	case b.Deadline == nil:
		return true
	default:
		return a.Deadline.Before(*b.Deadline)
	}
}
