package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var everyPattern = regexp.MustCompile(`\bevery\s+(\d+)\s+(day|week|month|year)s?\b`)

// Describe renders the rule as short English text, for example "Daily",
// "Every 2 Weeks", "Monthly until 2025-01-01" or "Yearly for 3 times". Dates
// are formatted in loc; nil means UTC. Invalid rules describe as "".
func (r Rule) Describe(loc *time.Location) string {
	if !r.Frequency.Valid() || r.Interval < 1 {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}

	base := r.Frequency.String()
	if r.Interval > 1 {
		base = fmt.Sprintf("Every %d %s", r.Interval, pluralUnit(r.Frequency))
	}

	if until, ok := r.End.Until().Get(); ok {
		return fmt.Sprintf("%s until %s", base, until.In(loc).Format("2006-01-02"))
	}
	if count, ok := r.End.Count().Get(); ok && count > 0 {
		noun := "times"
		if count == 1 {
			noun = "time"
		}
		return fmt.Sprintf("%s for %d %s", base, count, noun)
	}
	return base
}

func pluralUnit(f Frequency) string {
	switch f {
	case FrequencyDaily:
		return "Days"
	case FrequencyWeekly:
		return "Weeks"
	case FrequencyMonthly:
		return "Months"
	default:
		return "Years"
	}
}

// ParseText reads "daily", "weekly", "every 3 days", "every 2 weeks" and the
// like. Unrecognised text yields FrequencyNone with an interval of 1.
func ParseText(text string) (Frequency, int) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "daily":
		return FrequencyDaily, 1
	case "weekly":
		return FrequencyWeekly, 1
	case "monthly":
		return FrequencyMonthly, 1
	case "yearly":
		return FrequencyYearly, 1
	}

	m := everyPattern.FindStringSubmatch(t)
	if m == nil {
		return FrequencyNone, 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		n = 1
	}
	switch m[2] {
	case "day":
		return FrequencyDaily, n
	case "week":
		return FrequencyWeekly, n
	case "month":
		return FrequencyMonthly, n
	default:
		return FrequencyYearly, n
	}
}
