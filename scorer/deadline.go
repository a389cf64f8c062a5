package scorer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clockPattern   = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?(?:\s|,|$)`)
	weekdayPattern = regexp.MustCompile(`\b(next\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDeadline resolves a deadline descriptor against ref. It accepts
// RFC 3339 timestamps, plain dates, Go durations relative to ref ("90m",
// "-2h") and phrases such as "overdue", "today", "tomorrow", "friday",
// "next monday", "this week", "next week", "this month" and "next month".
// Day phrases end at 23:59:59 unless a clock time follows them, as in
// "Today, 3:00 PM". An empty descriptor or "no deadline" yields nil.
func ParseDeadline(desc string, ref time.Time) (*time.Time, error) {
	d := strings.ToLower(strings.TrimSpace(desc))
	if d == "" || d == "none" || strings.Contains(d, "no deadline") {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(desc)); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", d, ref.Location()); err == nil {
		t = endOfDay(t)
		return &t, nil
	}
	if dur, err := time.ParseDuration(d); err == nil {
		t := ref.Add(dur)
		return &t, nil
	}

	var day time.Time
	switch {
	case strings.Contains(d, "overdue"), strings.Contains(d, "past due"):
		t := ref.Add(-time.Second)
		return &t, nil
	case d == "now", d == "asap", d == "immediately":
		return &ref, nil
	case strings.Contains(d, "today"), strings.Contains(d, "tonight"), strings.Contains(d, "end of day"):
		day = ref
	case strings.Contains(d, "tomorrow"):
		day = ref.AddDate(0, 0, 1)
	case strings.Contains(d, "this week"), strings.Contains(d, "end of week"):
		t := endOfWeek(ref)
		return &t, nil
	case strings.Contains(d, "next week"):
		t := ref.AddDate(0, 0, 7)
		return &t, nil
	case strings.Contains(d, "this month"), strings.Contains(d, "end of month"):
		t := endOfMonth(ref)
		return &t, nil
	case strings.Contains(d, "next month"):
		t := ref.AddDate(0, 1, 0)
		return &t, nil
	case weekdayPattern.MatchString(d):
		m := weekdayPattern.FindStringSubmatch(d)
		day = nextWeekday(ref, weekdays[m[2]], m[1] != "")
	default:
		return nil, invalidInput("deadline", "unrecognized descriptor %q", desc)
	}

	t, err := atClock(day, d)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nextWeekday finds the coming wd. A plain weekday may be today; "next"
// always means a later day.
func nextWeekday(ref time.Time, wd time.Weekday, next bool) time.Time {
	days := (int(wd) - int(ref.Weekday()) + 7) % 7
	if next && days == 0 {
		days = 7
	}
	return ref.AddDate(0, 0, days)
}

// atClock sets the clock time named in desc on day, or the end of day when
// desc has none
func atClock(day time.Time, desc string) (time.Time, error) {
	for _, m := range clockPattern.FindAllStringSubmatch(desc, -1) {
		minutes, meridiem := m[2], strings.ReplaceAll(m[3], ".", "")
		if minutes == "" && meridiem == "" {
			continue
		}

		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if minutes != "" {
			minute, _ = strconv.Atoi(minutes)
		}

		switch meridiem {
		case "am", "pm":
			if hour < 1 || hour > 12 {
				return time.Time{}, invalidInput("deadline", "hour %d outside 1-12 in %q", hour, desc)
			}
			hour %= 12
			if meridiem == "pm" {
				hour += 12
			}
		default:
			if hour > 23 {
				return time.Time{}, invalidInput("deadline", "hour %d outside 0-23 in %q", hour, desc)
			}
		}
		if minute > 59 {
			return time.Time{}, invalidInput("deadline", "minute %d outside 0-59 in %q", minute, desc)
		}

		y, mo, dd := day.Date()
		return time.Date(y, mo, dd, hour, minute, 0, 0, day.Location()), nil
	}
	return endOfDay(day), nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// endOfWeek is the end of the coming Sunday (or today, on a Sunday)
func endOfWeek(t time.Time) time.Time {
	days := (7 - int(t.Weekday())) % 7
	return endOfDay(t.AddDate(0, 0, days))
}

func endOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return endOfDay(first.AddDate(0, 1, -1))
}
