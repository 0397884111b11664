package persistence

import (
	"math"
	"time"

	"github.com/samber/mo"
)

// Persisted recurrence_frequency_index values.
const (
	FrequencyIndexNone = iota
	FrequencyIndexDaily
	FrequencyIndexWeekly
	FrequencyIndexMonthly
	FrequencyIndexYearly
)

// Persisted recurrence_end_mode values.
const (
	EndModeNever = iota
	EndModeUntilDate
	EndModeAfterCount
)

// EventRow is one stored event definition in the events table layout.
// Timestamps are real-valued seconds since the Unix epoch.
type EventRow struct {
	ID             string
	Name           string
	Description    string
	Start          float64
	End            float64
	IsRecurring    bool
	IsAlerting     bool
	FrequencyIndex int
	Reminders      []int
	Interval       int
	EndMode        int
	EndDate        mo.Option[float64]
	EndCount       mo.Option[int64]
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Seconds converts an instant to epoch seconds with sub-second precision.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// Time converts epoch seconds back to a UTC instant, rounded to the microsecond.
func Time(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	nanos := math.Round(frac*1e6) * 1e3
	return time.Unix(int64(whole), int64(nanos)).UTC()
}
