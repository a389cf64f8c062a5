// Package directory resolves message senders to an organizational rank in
// [0, 1], the sender feature of a scoring input.
package directory

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRank is used for senders the directory does not know
const DefaultRank = 0.5

// ErrInvalidRank is returned for ranks outside [0, 1]
var ErrInvalidRank = errors.New("sender rank must be between 0 and 1")

// Tier groups ranks into the labels used in explanations
type Tier string

const (
	TierExecutive  Tier = "executive"
	TierLeadership Tier = "leadership"
	TierSenior     Tier = "senior"
	TierStandard   Tier = "standard"
)

// TierFor maps a rank to its tier
func TierFor(rank float64) Tier {
	switch {
	case rank >= 0.9:
		return TierExecutive
	case rank >= 0.8:
		return TierLeadership
	case rank >= 0.66:
		return TierSenior
	default:
		return TierStandard
	}
}

// Entry is the result of a lookup
type Entry struct {
	Sender string
	Rank   float64
	Tier   Tier
	Known  bool
}

// Directory looks up sender ranks
type Directory interface {
	Lookup(sender string) Entry
}

// Sender is one configured directory record
type Sender struct {
	Name  string  `yaml:"name"`
	Email string  `yaml:"email,omitempty"`
	Title string  `yaml:"title,omitempty"`
	Rank  float64 `yaml:"rank"`
}

type file struct {
	DefaultRank *float64 `yaml:"default_rank"`
	Senders     []Sender `yaml:"senders"`
}

// StaticDirectory is an immutable in-memory Directory, safe for concurrent use
type StaticDirectory struct {
	ranks       map[string]float64
	defaultRank float64
}

// New builds a directory from sender records. Names and addresses are
// matched case-insensitively.
func New(defaultRank float64, senders ...Sender) (*StaticDirectory, error) {
	if !validRank(defaultRank) {
		return nil, fmt.Errorf("default rank %v: %w", defaultRank, ErrInvalidRank)
	}

	d := &StaticDirectory{ranks: make(map[string]float64, len(senders)*2), defaultRank: defaultRank}
	for _, s := range senders {
		if !validRank(s.Rank) {
			return nil, fmt.Errorf("sender %q rank %v: %w", s.Name, s.Rank, ErrInvalidRank)
		}
		if k := key(s.Name); k != "" {
			d.ranks[k] = s.Rank
		}
		if k := key(s.Email); k != "" {
			d.ranks[k] = s.Rank
		}
	}
	return d, nil
}

// Default returns the seeded directory: leadership ranks scaled from the
// 30-point sender scale, everyone else at DefaultRank
func Default() *StaticDirectory {
	d, _ := New(DefaultRank,
		Sender{Name: "Sarah Chen", Title: "Chief of Staff", Rank: 28.0 / 30},
		Sender{Name: "Mike Rodriguez", Title: "VP Finance", Rank: 26.0 / 30},
		Sender{Name: "David Park", Title: "VP Engineering", Rank: 25.0 / 30},
		Sender{Name: "Emily Watson", Title: "HR Director", Rank: 24.0 / 30},
		Sender{Name: "Lisa Anderson", Title: "VP Marketing", Rank: 22.0 / 30},
	)
	return d
}

// Load reads a YAML directory file
func Load(path string) (*StaticDirectory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory file %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing directory file %s: %w", path, err)
	}

	defaultRank := DefaultRank
	if f.DefaultRank != nil {
		defaultRank = *f.DefaultRank
	}

	return New(defaultRank, f.Senders...)
}

// Lookup resolves a sender given as a name, an address or "Name <address>"
func (d *StaticDirectory) Lookup(sender string) Entry {
	for _, k := range candidates(sender) {
		if rank, ok := d.ranks[k]; ok {
			return Entry{Sender: sender, Rank: rank, Tier: TierFor(rank), Known: true}
		}
	}
	return Entry{Sender: sender, Rank: d.defaultRank, Tier: TierFor(d.defaultRank)}
}

// Len is the number of distinct lookup keys
func (d *StaticDirectory) Len() int {
	return len(d.ranks)
}

// Keys returns the lookup keys in sorted order
func (d *StaticDirectory) Keys() []string {
	keys := make([]string, 0, len(d.ranks))
	for k := range d.ranks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func candidates(sender string) []string {
	out := []string{key(sender)}
	if addr, err := mail.ParseAddress(sender); err == nil {
		out = append(out, key(addr.Address))
		if addr.Name != "" {
			out = append(out, key(addr.Name))
		}
	}
	return out
}

func key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func validRank(r float64) bool {
	return !math.IsNaN(r) && r >= 0 && r <= 1
}
