package scorer_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

var _ = Describe("Scorer", func() {
	var (
		s   scorer.Scorer
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
		ref = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	})

	Describe("Score", func() {
		It("should score an urgent item from leadership", func() {
			result, err := s.Score(scorer.ScoringInput{
				ID:         "board-deck",
				Deadline:   at(30 * time.Minute),
				SenderRank: 0.93,
				UrgencySignals: []scorer.UrgencySignal{
					{Type: "blocking", Confidence: 1.0},
					{Type: "time-sensitive", Confidence: 1.0},
				},
				ReferenceTime: ref,
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(result.ID).To(Equal("board-deck"))
			Expect(result.DeadlineScore).To(Equal(50))
			Expect(result.SenderScore).To(Equal(28))
			Expect(result.UrgencyScore).To(Equal(12))
			Expect(result.TotalScore).To(Equal(90))
			Expect(result.Rank).To(BeZero())

			Expect(result.Explanation).To(Equal([]string{
				"Deadline contributes 50 of 50 points: due within 1 hour.",
				"Sender contributes 28 of 30 points: sender rank 0.93.",
				"Urgency contributes 12 of 20 points: signals blocking (8.0), time-sensitive (4.0).",
			}))
		})

		It("should score an item with nothing going for it as zero", func() {
			result, err := s.Score(scorer.ScoringInput{ReferenceTime: ref})
			Expect(err).ToNot(HaveOccurred())

			Expect(result.TotalScore).To(Equal(0))
			Expect(result.Explanation).To(ContainElement("Deadline contributes 0 of 50 points: no explicit deadline."))
			Expect(result.Explanation).To(ContainElement("Urgency contributes 0 of 20 points: no urgency signals detected."))
		})

		It("should return the factors in deadline, sender, urgency order", func() {
			result, err := s.Score(scorer.ScoringInput{SenderRank: 0.5, ReferenceTime: ref})
			Expect(err).ToNot(HaveOccurred())

			Expect(result.Factors).To(HaveLen(3))
			Expect(result.Factors[0].Name).To(Equal(scorer.FactorDeadline))
			Expect(result.Factors[1].Name).To(Equal(scorer.FactorSender))
			Expect(result.Factors[2].Name).To(Equal(scorer.FactorUrgency))
			Expect(result.Factors[1].Points).To(Equal(15))
			Expect(result.Factors[1].MaxPoints).To(Equal(scorer.MaxSenderScore))
		})

		It("should keep the total equal to the sum of its components", func() {
			result, err := s.Score(scorer.ScoringInput{
				Deadline:       at(5 * time.Hour),
				SenderRank:     0.71,
				UrgencySignals: []scorer.UrgencySignal{{Type: "escalation", Confidence: 0.7}},
				ReferenceTime:  ref,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.TotalScore).To(Equal(result.DeadlineScore + result.SenderScore + result.UrgencyScore))
			Expect(result.TotalScore).To(BeNumerically("<=", scorer.MaxTotalScore))
		})

		It("should be deterministic", func() {
			input := scorer.ScoringInput{
				Deadline:       at(26 * time.Hour),
				SenderRank:     0.8,
				UrgencySignals: []scorer.UrgencySignal{{Type: "blocking", Confidence: 0.4}},
				ReferenceTime:  ref,
			}
			first, err := s.Score(input)
			Expect(err).ToNot(HaveOccurred())
			second, err := s.Score(input)
			Expect(err).ToNot(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})

	Describe("deadline component", func() {
		DescribeTable("should step down with time remaining",
			func(remaining time.Duration, points int, detail string) {
				result, err := s.Score(scorer.ScoringInput{Deadline: at(remaining), ReferenceTime: ref})
				Expect(err).ToNot(HaveOccurred())
				Expect(result.DeadlineScore).To(Equal(points))
				Expect(result.Factors[0].Detail).To(Equal(detail))
			},
			Entry("due right now", time.Duration(0), 50, "due within 1 hour"),
			Entry("exactly one hour", time.Hour, 50, "due within 1 hour"),
			Entry("just over an hour", 61*time.Minute, 40, "due within 1 day"),
			Entry("exactly one day", 24*time.Hour, 40, "due within 1 day"),
			Entry("a day and an hour", 25*time.Hour, 25, "due within 3 days"),
			Entry("exactly three days", 72*time.Hour, 25, "due within 3 days"),
			Entry("just over three days", 73*time.Hour, 10, "due within 7 days"),
			Entry("exactly a week", 7*24*time.Hour, 10, "due within 7 days"),
			Entry("over a week", 7*24*time.Hour+time.Minute, 0, "due in more than 7 days"),
		)

		DescribeTable("should treat overdue items as most urgent",
			func(overdue time.Duration, detail string) {
				result, err := s.Score(scorer.ScoringInput{Deadline: at(-overdue), ReferenceTime: ref})
				Expect(err).ToNot(HaveOccurred())
				Expect(result.DeadlineScore).To(Equal(scorer.MaxDeadlineScore))
				Expect(result.Factors[0].Detail).To(Equal(detail))
			},
			Entry("by a second", time.Second, "overdue by moments"),
			Entry("by ninety minutes", 90*time.Minute, "overdue by 90 minutes"),
			Entry("by two hours", 2*time.Hour, "overdue by 2 hours"),
			Entry("by three days", 72*time.Hour, "overdue by 3 days"),
		)

		It("should never score a nearer deadline lower", func() {
			previous := math.MaxInt
			for h := 0; h <= 24*10; h++ {
				result, err := s.Score(scorer.ScoringInput{Deadline: at(time.Duration(h) * time.Hour), ReferenceTime: ref})
				Expect(err).ToNot(HaveOccurred())
				Expect(result.DeadlineScore).To(BeNumerically("<=", previous))
				previous = result.DeadlineScore
			}
		})

		It("should use custom buckets", func() {
			custom, err := scorer.New(scorer.NewDefaultConfig().WithDeadlineBuckets([]scorer.DeadlineBucket{
				{MaxDuration: 4 * time.Hour, Points: 30},
			}))
			Expect(err).ToNot(HaveOccurred())

			near, err := custom.Score(scorer.ScoringInput{Deadline: at(3 * time.Hour), ReferenceTime: ref})
			Expect(err).ToNot(HaveOccurred())
			Expect(near.DeadlineScore).To(Equal(30))

			far, err := custom.Score(scorer.ScoringInput{Deadline: at(5 * time.Hour), ReferenceTime: ref})
			Expect(err).ToNot(HaveOccurred())
			Expect(far.DeadlineScore).To(Equal(0))
			Expect(far.Factors[0].Detail).To(Equal("due in more than 4 hours"))
		})
	})

	Describe("sender component", func() {
		DescribeTable("should scale rank to 30 points",
			func(rank float64, points int) {
				result, err := s.Score(scorer.ScoringInput{SenderRank: rank, ReferenceTime: ref})
				Expect(err).ToNot(HaveOccurred())
				Expect(result.SenderScore).To(Equal(points))
			},
			Entry("lowest rank", 0.0, 0),
			Entry("rounds down", 0.01, 0),
			Entry("rounds up", 0.02, 1),
			Entry("middle", 0.5, 15),
			Entry("leadership", 0.93, 28),
			Entry("highest rank", 1.0, 30),
		)

		It("should never score a higher rank lower", func() {
			previous := -1
			for i := 0; i <= 100; i++ {
				result, err := s.Score(scorer.ScoringInput{SenderRank: float64(i) / 100, ReferenceTime: ref})
				Expect(err).ToNot(HaveOccurred())
				Expect(result.SenderScore).To(BeNumerically(">=", previous))
				previous = result.SenderScore
			}
		})
	})

	Describe("urgency component", func() {
		score := func(signals ...scorer.UrgencySignal) scorer.ScoreResult {
			result, err := s.Score(scorer.ScoringInput{UrgencySignals: signals, ReferenceTime: ref})
			Expect(err).ToNot(HaveOccurred())
			return result
		}

		It("should weight signals by confidence", func() {
			Expect(score(scorer.UrgencySignal{Type: "escalation", Confidence: 0.5}).UrgencyScore).To(Equal(3))
		})

		It("should round the weighted sum", func() {
			Expect(score(scorer.UrgencySignal{Type: "time-sensitive", Confidence: 0.6}).UrgencyScore).To(Equal(2))
			Expect(score(scorer.UrgencySignal{Type: "time-sensitive", Confidence: 0.65}).UrgencyScore).To(Equal(3))
		})

		It("should use the default weight for unknown signal types", func() {
			result := score(scorer.UrgencySignal{Type: "follow-up", Confidence: 1.0})
			Expect(result.UrgencyScore).To(Equal(2))
			Expect(result.Factors[2].Detail).To(Equal("signals follow-up (2.0)"))
		})

		It("should use the default weight for an unnamed signal", func() {
			result := score(scorer.UrgencySignal{Confidence: 1.0})
			Expect(result.UrgencyScore).To(Equal(2))
			Expect(result.Factors[2].Detail).To(Equal("signals unnamed (2.0)"))
		})

		It("should cap the sum at 20 points", func() {
			result := score(
				scorer.UrgencySignal{Type: "blocking", Confidence: 1.0},
				scorer.UrgencySignal{Type: "escalation", Confidence: 1.0},
				scorer.UrgencySignal{Type: "time-sensitive", Confidence: 1.0},
				scorer.UrgencySignal{Type: "legal", Confidence: 1.0},
				scorer.UrgencySignal{Type: "budget", Confidence: 1.0},
			)
			Expect(result.UrgencyScore).To(Equal(scorer.MaxUrgencyScore))
			Expect(result.Factors[2].Detail).To(HaveSuffix("capped from 22.0"))
		})

		It("should not mention a cap when the sum fits", func() {
			result := score(
				scorer.UrgencySignal{Type: "blocking", Confidence: 1.0},
				scorer.UrgencySignal{Type: "escalation", Confidence: 1.0},
				scorer.UrgencySignal{Type: "time-sensitive", Confidence: 1.0},
				scorer.UrgencySignal{Type: "legal", Confidence: 1.0},
			)
			Expect(result.UrgencyScore).To(Equal(20))
			Expect(result.Factors[2].Detail).ToNot(ContainSubstring("capped"))
		})

		It("should count a repeated signal type once at its highest confidence", func() {
			result := score(
				scorer.UrgencySignal{Type: "blocking", Confidence: 0.5},
				scorer.UrgencySignal{Type: "Blocking", Confidence: 1.0},
				scorer.UrgencySignal{Type: "blocking", Confidence: 0.2},
			)
			Expect(result.UrgencyScore).To(Equal(8))
		})

		It("should normalize signal type spelling", func() {
			Expect(score(scorer.UrgencySignal{Type: "Time Sensitive", Confidence: 1.0}).UrgencyScore).To(Equal(4))
			Expect(score(scorer.UrgencySignal{Type: "TIME_SENSITIVE", Confidence: 1.0}).UrgencyScore).To(Equal(4))
		})

		It("should ignore zero-confidence signals in the explanation", func() {
			result := score(
				scorer.UrgencySignal{Type: "blocking", Confidence: 0},
				scorer.UrgencySignal{Type: "escalation", Confidence: 1.0},
			)
			Expect(result.UrgencyScore).To(Equal(6))
			Expect(result.Factors[2].Detail).To(Equal("signals escalation (6.0)"))
		})

		It("should honor custom weights", func() {
			custom, err := scorer.New(scorer.NewDefaultConfig().
				WithSignalWeight("blocking", 10).
				WithDefaultSignalWeight(0))
			Expect(err).ToNot(HaveOccurred())

			result, err := custom.Score(scorer.ScoringInput{
				UrgencySignals: []scorer.UrgencySignal{
					{Type: "blocking", Confidence: 1.0},
					{Type: "follow-up", Confidence: 1.0},
				},
				ReferenceTime: ref,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.UrgencyScore).To(Equal(10))
		})
	})

	Describe("input validation", func() {
		DescribeTable("should reject invalid inputs",
			func(input scorer.ScoringInput, field string) {
				_, err := s.Score(input)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, scorer.ErrInvalidInput)).To(BeTrue())
				Expect(scorer.IsInvalidInput(err)).To(BeTrue())

				var inputErr *scorer.InvalidInputError
				Expect(errors.As(err, &inputErr)).To(BeTrue())
				Expect(inputErr.Field).To(Equal(field))
			},
			Entry("sender rank above one",
				scorer.ScoringInput{SenderRank: 1.5, ReferenceTime: time.Now()}, "sender_rank"),
			Entry("negative sender rank",
				scorer.ScoringInput{SenderRank: -0.1, ReferenceTime: time.Now()}, "sender_rank"),
			Entry("NaN sender rank",
				scorer.ScoringInput{SenderRank: math.NaN(), ReferenceTime: time.Now()}, "sender_rank"),
			Entry("confidence above one",
				scorer.ScoringInput{
					UrgencySignals: []scorer.UrgencySignal{{Type: "blocking", Confidence: 1.2}},
					ReferenceTime:  time.Now(),
				}, "urgency_signals"),
			Entry("negative confidence",
				scorer.ScoringInput{
					UrgencySignals: []scorer.UrgencySignal{{Type: "blocking", Confidence: -1}},
					ReferenceTime:  time.Now(),
				}, "urgency_signals"),
			Entry("missing reference time",
				scorer.ScoringInput{SenderRank: 0.5}, "reference_time"),
		)

		It("should describe the rejected value", func() {
			_, err := s.Score(scorer.ScoringInput{SenderRank: 1.5, ReferenceTime: ref})
			Expect(err).To(MatchError("invalid input: sender_rank 1.5 outside [0, 1]"))
		})
	})

	Describe("GetHealth", func() {
		It("should report the configured signal types", func() {
			health := s.GetHealth(context.Background())
			Expect(health.Healthy).To(BeTrue())
			Expect(health.Status).To(Equal("healthy"))
			Expect(health.Details["signal_types"]).To(Equal([]string{"blocking", "escalation", "time-sensitive"}))
			Expect(health.Details["deadline_buckets"]).To(Equal(4))
		})
	})

	Describe("Sentence", func() {
		It("should label known factors", func() {
			Expect(scorer.Sentence(scorer.Factor{
				Name: scorer.FactorSender, Points: 15, MaxPoints: 30, Detail: "sender rank 0.50",
			})).To(Equal("Sender contributes 15 of 30 points: sender rank 0.50."))
		})

		It("should capitalize unknown factor names", func() {
			Expect(scorer.Sentence(scorer.Factor{Name: "topic", Points: 3, MaxPoints: 5, Detail: "finance"})).
				To(Equal("Topic contributes 3 of 5 points: finance."))
		})

		It("should cope with an unnamed factor", func() {
			Expect(scorer.Sentence(scorer.Factor{Detail: "n/a"})).
				To(Equal("Factor contributes 0 of 0 points: n/a."))
		})
	})

	Describe("GetVersion", func() {
		It("should name the module", func() {
			info := scorer.GetVersion()
			Expect(info.Name).To(Equal("priority-scorer"))
			Expect(info.Version).To(Equal(scorer.Version))
		})
	})
})
