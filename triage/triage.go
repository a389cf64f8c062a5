// Package triage turns raw messages into ranked priority outcomes: it
// resolves deadlines, looks senders up in the directory, asks an extractor
// for urgency signals and hands the resulting inputs to the scorer.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JohnPlummer/priority-scorer/directory"
	"github.com/JohnPlummer/priority-scorer/scorer"
	"github.com/JohnPlummer/priority-scorer/signals"
)

// ErrNotFound is returned by Explain for unknown message IDs
var ErrNotFound = errors.New("message not found")

// ErrExtraction marks items whose signals could not be detected
var ErrExtraction = errors.New("signal extraction failed")

// Message is a communication item as received from the mailbox layer
type Message struct {
	ID       string `json:"id" yaml:"id"`
	Sender   string `json:"sender" yaml:"sender"`
	Subject  string `json:"subject" yaml:"subject"`
	Preview  string `json:"preview,omitempty" yaml:"preview,omitempty"`
	Deadline string `json:"deadline,omitempty" yaml:"deadline,omitempty"` // descriptor, see scorer.ParseDeadline

	// Signals skips extraction when set
	Signals []scorer.UrgencySignal `json:"signals,omitempty" yaml:"signals,omitempty"`
}

// Outcome is the triage result for one message
type Outcome struct {
	Message    Message             `json:"message" yaml:"message"`
	SenderTier directory.Tier      `json:"sender_tier,omitempty" yaml:"sender_tier,omitempty"`
	Result     *scorer.ScoreResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	Err        error               `json:"-" yaml:"-"`
}

// Triager prioritizes messages
type Triager struct {
	scorer      scorer.Scorer
	directory   directory.Directory
	extractor   signals.Extractor
	store       Store
	now         func() time.Time
	concurrency int
}

// Option configures a Triager
type Option func(*Triager)

// WithExtractor sets the urgency signal extractor
func WithExtractor(e signals.Extractor) Option {
	return func(t *Triager) { t.extractor = e }
}

// WithStore sets the message store used by Explain
func WithStore(s Store) Option {
	return func(t *Triager) { t.store = s }
}

// WithClock sets the source of the reference time
func WithClock(now func() time.Time) Option {
	return func(t *Triager) { t.now = now }
}

// WithConcurrency bounds concurrent signal extractions
func WithConcurrency(n int) Option {
	return func(t *Triager) { t.concurrency = n }
}

// New creates a Triager. Without options it uses keyword extraction, an
// in-memory store and the wall clock.
func New(s scorer.Scorer, dir directory.Directory, opts ...Option) *Triager {
	t := &Triager{
		scorer:      s,
		directory:   dir,
		extractor:   signals.NewKeywordExtractor(),
		store:       NewMemoryStore(),
		now:         time.Now,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type prepared struct {
	input scorer.ScoringInput
	tier  directory.Tier
	err   error
}

// Prioritize scores msgs and returns them ranked. Messages that could not be
// scored follow the ranked ones in input order, each carrying its error. The
// error return is only set when ctx is done.
func (t *Triager) Prioritize(ctx context.Context, msgs []Message) ([]Outcome, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	ref := t.now()
	msgs = withIDs(msgs)
	t.store.Put(msgs...)

	preps, err := t.prepareAll(ctx, msgs, ref)
	if err != nil {
		return nil, err
	}

	var inputs []scorer.ScoringInput
	var slots []int
	for i, p := range preps {
		if p.err == nil {
			inputs = append(inputs, p.input)
			slots = append(slots, i)
		}
	}

	outcomes := make([]Outcome, len(msgs))
	for i, m := range msgs {
		outcomes[i] = Outcome{Message: m, SenderTier: preps[i].tier}
		if preps[i].err != nil {
			outcomes[i].setErr(preps[i].err)
		}
	}

	batch, err := t.scorer.ScoreBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for _, b := range batch {
		o := &outcomes[slots[b.Index]]
		if b.OK() {
			o.Result = b.Result
			continue
		}
		o.setErr(b.Err)
	}

	sortOutcomes(outcomes)

	slog.Info("Messages prioritized",
		"messages", len(msgs),
		"scored", len(inputs))

	return outcomes, nil
}

// Explain re-scores a stored message
func (t *Triager) Explain(ctx context.Context, id string) (Outcome, error) {
	msg, ok := t.store.Get(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := t.prepare(ctx, msg, t.now())
	out := Outcome{Message: msg, SenderTier: p.tier}
	if p.err != nil {
		out.setErr(p.err)
		return out, p.err
	}

	res, err := t.scorer.Score(p.input)
	if err != nil {
		out.setErr(err)
		return out, err
	}
	out.Result = &res
	return out, nil
}

// Messages lists the stored messages ordered by ID
func (t *Triager) Messages() []Message {
	return t.store.List()
}

func (t *Triager) prepareAll(ctx context.Context, msgs []Message, ref time.Time) ([]prepared, error) {
	preps := make([]prepared, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	if t.concurrency > 0 {
		g.SetLimit(t.concurrency)
	}
	for i := range msgs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			preps[i] = t.prepare(gctx, msgs[i], ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return preps, nil
}

func (t *Triager) prepare(ctx context.Context, msg Message, ref time.Time) prepared {
	entry := t.directory.Lookup(msg.Sender)
	p := prepared{tier: entry.Tier}

	deadline, err := scorer.ParseDeadline(msg.Deadline, ref)
	if err != nil {
		p.err = err
		return p
	}

	sigs := msg.Signals
	if sigs == nil {
		sigs, err = t.extractor.Extract(ctx, signals.Message{Subject: msg.Subject, Body: msg.Preview})
		if err != nil {
			slog.Warn("could not extract urgency signals", "id", msg.ID, "error", err)
			p.err = fmt.Errorf("%w: %w", ErrExtraction, err)
			return p
		}
	}

	p.input = scorer.ScoringInput{
		ID:             msg.ID,
		Deadline:       deadline,
		SenderRank:     entry.Rank,
		UrgencySignals: sigs,
		ReferenceTime:  ref,
	}
	return p
}

func (o *Outcome) setErr(err error) {
	o.Err = err
	o.Error = err.Error()
}

// sortOutcomes puts ranked outcomes first by rank, then failures in input order
func sortOutcomes(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i].Result, outcomes[j].Result
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Rank < b.Rank
		}
	})
}

func withIDs(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}
