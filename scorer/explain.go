package scorer

import (
	"fmt"
	"strings"
	"time"
)

var factorLabels = map[string]string{
	FactorDeadline: "Deadline",
	FactorSender:   "Sender",
	FactorUrgency:  "Urgency",
}

// explain renders one sentence per factor, in factor order
func explain(factors []Factor) []string {
	lines := make([]string, len(factors))
	for i, f := range factors {
		lines[i] = Sentence(f)
	}
	return lines
}

// Sentence renders a factor as a human-readable explanation line,
// e.g. "Deadline contributes 50 of 50 points: due within 1 hour."
func Sentence(f Factor) string {
	label, ok := factorLabels[f.Name]
	if !ok {
		label = "Factor"
		if f.Name != "" {
			label = strings.ToUpper(f.Name[:1]) + f.Name[1:]
		}
	}
	return fmt.Sprintf("%s contributes %d of %d points: %s.", label, f.Points, f.MaxPoints, f.Detail)
}

// humanDuration prints durations the way people say them: "1 hour",
// "3 days", "90 minutes".
func humanDuration(d time.Duration) string {
	const day = 24 * time.Hour

	d = d.Round(time.Minute)
	switch {
	case d <= 0:
		return "moments"
	case d >= day && d%day == 0:
		return plural(int(d/day), "day")
	case d >= 2*day:
		return plural(int(d/day), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= 2*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
