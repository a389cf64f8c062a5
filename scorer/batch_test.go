package scorer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

var _ = Describe("ScoreBatch", func() {
	var (
		s   scorer.Scorer
		ctx context.Context
		ref time.Time
	)

	at := func(d time.Duration) *time.Time {
		t := ref.Add(d)
		return &t
	}

	BeforeEach(func() {
		var err error
		s, err = scorer.New(scorer.NewDefaultConfig())
		Expect(err).ToNot(HaveOccurred())
		ctx = context.Background()
		ref = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	})

	It("should return nothing for an empty batch", func() {
		results, err := s.ScoreBatch(ctx, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("should rank items by total score", func() {
		results, err := s.ScoreBatch(ctx, []scorer.ScoringInput{
			{ID: "newsletter", SenderRank: 0.2, ReferenceTime: ref},
			{ID: "board-deck", Deadline: at(30 * time.Minute), SenderRank: 0.93, ReferenceTime: ref,
				UrgencySignals: []scorer.UrgencySignal{{Type: "blocking", Confidence: 1}}},
			{ID: "budget", Deadline: at(48 * time.Hour), SenderRank: 0.87, ReferenceTime: ref},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(3))

		for i, r := range results {
			Expect(r.Index).To(Equal(i))
			Expect(r.OK()).To(BeTrue())
		}
		Expect(results[0].Result.Rank).To(Equal(3))
		Expect(results[1].Result.Rank).To(Equal(1))
		Expect(results[2].Result.Rank).To(Equal(2))

		ranked := scorer.Ranked(results)
		Expect(ranked).To(HaveLen(3))
		Expect(ranked[0].ID).To(Equal("board-deck"))
		Expect(ranked[1].ID).To(Equal("budget"))
		Expect(ranked[2].ID).To(Equal("newsletter"))
	})

	It("should match scoring each item on its own", func() {
		input := scorer.ScoringInput{ID: "a", Deadline: at(5 * time.Hour), SenderRank: 0.6, ReferenceTime: ref}
		single, err := s.Score(input)
		Expect(err).ToNot(HaveOccurred())

		results, err := s.ScoreBatch(ctx, []scorer.ScoringInput{input})
		Expect(err).ToNot(HaveOccurred())
		Expect(results[0].Result.TotalScore).To(Equal(single.TotalScore))
		Expect(results[0].Result.Explanation).To(Equal(single.Explanation))
		Expect(results[0].Result.Rank).To(Equal(1))
	})

	It("should break ties by the nearer deadline", func() {
		results, err := s.ScoreBatch(ctx, []scorer.ScoringInput{
			{ID: "later", Deadline: at(20 * time.Hour), SenderRank: 0.5, ReferenceTime: ref},
			{ID: "sooner", Deadline: at(2 * time.Hour), SenderRank: 0.5, ReferenceTime: ref},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(results[0].Result.TotalScore).To(Equal(results[1].Result.TotalScore))
		Expect(results[1].Result.Rank).To(Equal(1))
		Expect(results[0].Result.Rank).To(Equal(2))
	})

	It("should rank a tied item without a deadline last", func() {
		results, err := s.ScoreBatch(ctx, []scorer.ScoringInput{
			{ID: "no-deadline", SenderRank: 1.0, ReferenceTime: ref},
			{ID: "due-friday", Deadline: at(5 * 24 * time.Hour), SenderRank: 0.67, ReferenceTime: ref},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(results[0].Result.TotalScore).To(Equal(30))
		Expect(results[1].Result.TotalScore).To(Equal(30))
		Expect(results[1].Result.Rank).To(Equal(1))
	})

	It("should keep input order for complete ties", func() {
		inputs := make([]scorer.ScoringInput, 5)
		for i := range inputs {
			inputs[i] = scorer.ScoringInput{ID: fmt.Sprintf("item-%d", i), SenderRank: 0.5, ReferenceTime: ref}
		}
		results, err := s.ScoreBatch(ctx, inputs)
		Expect(err).ToNot(HaveOccurred())
		for i, r := range results {
			Expect(r.Result.Rank).To(Equal(i + 1))
		}
	})

	It("should isolate invalid items", func() {
		results, err := s.ScoreBatch(ctx, []scorer.ScoringInput{
			{ID: "ok-low", SenderRank: 0.1, ReferenceTime: ref},
			{ID: "bad", SenderRank: 1.5, ReferenceTime: ref},
			{ID: "ok-high", SenderRank: 0.9, ReferenceTime: ref},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(3))

		Expect(results[1].OK()).To(BeFalse())
		Expect(results[1].Result).To(BeNil())
		Expect(scorer.IsInvalidInput(results[1].Err)).To(BeTrue())

		Expect(results[0].Result.Rank).To(Equal(2))
		Expect(results[2].Result.Rank).To(Equal(1))
		Expect(scorer.Ranked(results)).To(HaveLen(2))
	})

	It("should keep results parallel to inputs under concurrency", func() {
		limited, err := scorer.New(scorer.NewDefaultConfig().WithMaxConcurrent(2))
		Expect(err).ToNot(HaveOccurred())

		inputs := make([]scorer.ScoringInput, 50)
		for i := range inputs {
			inputs[i] = scorer.ScoringInput{ID: fmt.Sprintf("item-%d", i), SenderRank: float64(i) / 50, ReferenceTime: ref}
		}
		results, err := limited.ScoreBatch(ctx, inputs)
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(50))

		ranks := map[int]bool{}
		for i, r := range results {
			Expect(r.Index).To(Equal(i))
			Expect(r.Result.ID).To(Equal(inputs[i].ID))
			ranks[r.Result.Rank] = true
		}
		Expect(ranks).To(HaveLen(50))
	})

	It("should stop when the context is cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.ScoreBatch(cancelled, []scorer.ScoringInput{{SenderRank: 0.5, ReferenceTime: ref}})
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Rank", func() {
	It("should sort results in place and number them", func() {
		results := []scorer.ScoreResult{
			{ID: "low", TotalScore: 10},
			{ID: "high", TotalScore: 80},
			{ID: "mid", TotalScore: 45},
		}
		scorer.Rank(results)

		Expect(results[0].ID).To(Equal("high"))
		Expect(results[0].Rank).To(Equal(1))
		Expect(results[1].ID).To(Equal("mid"))
		Expect(results[2].ID).To(Equal("low"))
		Expect(results[2].Rank).To(Equal(3))
	})
})

var _ = Describe("BatchResult", func() {
	It("should encode to JSON without the error value", func() {
		ok, err := json.Marshal(scorer.BatchResult{Index: 2, Result: &scorer.ScoreResult{ID: "a", TotalScore: 40, Rank: 1}})
		Expect(err).ToNot(HaveOccurred())
		Expect(string(ok)).To(ContainSubstring(`"index":2`))
		Expect(string(ok)).To(ContainSubstring(`"total_score":40`))

		failed, err := json.Marshal(scorer.BatchResult{Index: 0, Err: errors.New("bad rank")})
		Expect(err).ToNot(HaveOccurred())
		Expect(string(failed)).To(MatchJSON(`{"index":0}`))
	})
})
