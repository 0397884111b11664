package application

import (
	"time"

	"github.com/example/followup/internal/calendar"
	"github.com/example/followup/internal/recurrence"
)

// Event is a stored event definition together with its bookkeeping timestamps.
type Event struct {
	recurrence.EventRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAlerting reports whether the event has any reminders.
func (e Event) IsAlerting() bool {
	return len(e.Reminders) > 0
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Name        string
	Description string
	Start       time.Time
	End         time.Time
	Recurrence  *RecurrenceInput
	Reminders   []int
}

// RecurrenceInput captures caller provided recurrence settings. Frequency and
// EndMode are the lowercase names used on the wire. When Frequency is empty,
// Text may carry a phrase such as "every 2 weeks".
type RecurrenceInput struct {
	Frequency string
	Interval  int
	EndMode   string
	Until     time.Time
	Count     int
	Text      string
}

// Recurrence end modes accepted in RecurrenceInput.EndMode.
const (
	EndModeNever = "never"
	EndModeUntil = "until"
	EndModeCount = "count"
)

// Input limits.
const (
	MaxInterval = 365
	MaxCount    = 10000
	// MaxYearlyInterval keeps yearly steps within a representable duration.
	MaxYearlyInterval = 100
	// OverlapHorizon is how far ahead overlap warnings look.
	OverlapHorizon = 30 * 24 * time.Hour
)

// OverlapWarning describes an occurrence of the saved event that overlaps an
// occurrence of another event. Warnings never block a save.
type OverlapWarning struct {
	// OccurrenceStart is the start of the saved event's overlapping occurrence.
	OccurrenceStart time.Time
	EventID         string
	EventName       string
	Start           time.Time
	End             time.Time
}

// MonthGrid is the 42-day calendar grid for a month.
type MonthGrid struct {
	Year    int
	Month   time.Month
	Start   time.Time
	Days    int
	Buckets calendar.DayBuckets
}

// DayEntry is one populated day of the important dates view.
type DayEntry struct {
	Offset      int
	Date        time.Time
	Occurrences []recurrence.Occurrence
	More        int
}

// ImportantDates lists the populated days of a month, capped per day.
type ImportantDates struct {
	Year  int
	Month time.Month
	Start time.Time
	End   time.Time
	Days  []DayEntry
}

// RangeView is the bucketed result of an arbitrary window query.
type RangeView struct {
	Start   time.Time
	End     time.Time
	Days    int
	Buckets calendar.DayBuckets
}

// Export is a rendered iCalendar document and its entity tag.
type Export struct {
	Body []byte
	ETag string
}
