package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Frequency identifies the calendar unit a rule repeats on. The numeric values
// match the persisted recurrence_frequency_index column.
type Frequency int

const (
	// FrequencyNone marks a record without a recurrence.
	FrequencyNone Frequency = iota
	// FrequencyDaily repeats every N days.
	FrequencyDaily
	// FrequencyWeekly repeats every N weeks.
	FrequencyWeekly
	// FrequencyMonthly repeats every N months.
	FrequencyMonthly
	// FrequencyYearly repeats every N years.
	FrequencyYearly
)

// Fixed unit lengths used by the default stepper.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

// Valid reports whether f names a repeating frequency.
func (f Frequency) Valid() bool {
	return f >= FrequencyDaily && f <= FrequencyYearly
}

// Unit returns the fixed-length duration of a single step of f.
func (f Frequency) Unit() (time.Duration, bool) {
	switch f {
	case FrequencyDaily:
		return Day, true
	case FrequencyWeekly:
		return Week, true
	case FrequencyMonthly:
		return Month, true
	case FrequencyYearly:
		return Year, true
	default:
		return 0, false
	}
}

func (f Frequency) String() string {
	switch f {
	case FrequencyNone:
		return "None"
	case FrequencyDaily:
		return "Daily"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyMonthly:
		return "Monthly"
	case FrequencyYearly:
		return "Yearly"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// ParseFrequency accepts the lowercase or capitalised frequency names.
func ParseFrequency(name string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "daily":
		return FrequencyDaily, true
	case "weekly":
		return FrequencyWeekly, true
	case "monthly":
		return FrequencyMonthly, true
	case "yearly":
		return FrequencyYearly, true
	default:
		return FrequencyNone, false
	}
}

// EndKind discriminates the EndCondition union. The numeric values match the
// persisted recurrence_end_mode column.
type EndKind int

const (
	EndNever EndKind = iota
	EndUntilDate
	EndAfterCount
)

func (k EndKind) String() string {
	switch k {
	case EndNever:
		return "never"
	case EndUntilDate:
		return "until"
	case EndAfterCount:
		return "count"
	default:
		return fmt.Sprintf("EndKind(%d)", int(k))
	}
}

// EndCondition states when a recurrence stops. Exactly one of the variants is
// populated; build values with Never, UntilDate or AfterCount.
type EndCondition struct {
	kind  EndKind
	until time.Time
	count int
}

// Never returns an unbounded end condition.
func Never() EndCondition {
	return EndCondition{kind: EndNever}
}

// UntilDate stops the recurrence once an occurrence would start after limit.
func UntilDate(limit time.Time) EndCondition {
	return EndCondition{kind: EndUntilDate, until: limit}
}

// AfterCount stops the recurrence after n occurrences beyond the original one.
func AfterCount(n int) EndCondition {
	return EndCondition{kind: EndAfterCount, count: n}
}

// NewEndCondition rebuilds an end condition from stored fields without
// validating them. Malformed combinations are caught by Rule.Validate.
func NewEndCondition(kind EndKind, until mo.Option[time.Time], count mo.Option[int]) EndCondition {
	return EndCondition{kind: kind, until: until.OrEmpty(), count: count.OrEmpty()}
}

// Kind returns the active variant.
func (c EndCondition) Kind() EndKind {
	return c.kind
}

// Until returns the limit of an UntilDate condition.
func (c EndCondition) Until() mo.Option[time.Time] {
	if c.kind != EndUntilDate {
		return mo.None[time.Time]()
	}
	return mo.Some(c.until)
}

// Count returns the occurrence count of an AfterCount condition.
func (c EndCondition) Count() mo.Option[int] {
	if c.kind != EndAfterCount {
		return mo.None[int]()
	}
	return mo.Some(c.count)
}

// Rule is the frequency/interval/end-condition triple of a recurring record.
type Rule struct {
	Frequency Frequency
	Interval  int
	End       EndCondition
}

var (
	// ErrInvalidFrequency indicates the rule frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidInterval indicates the interval is not a positive integer.
	ErrInvalidInterval = errors.New("recurrence: interval must be at least 1")
	// ErrInvalidEndCondition indicates a malformed end condition.
	ErrInvalidEndCondition = errors.New("recurrence: invalid end condition")
	// ErrStalledSequence indicates a stepper produced an occurrence that does
	// not follow the previous one.
	ErrStalledSequence = errors.New("recurrence: occurrence sequence does not advance")
)

// Validate reports the first structural problem with the rule.
func (r Rule) Validate() error {
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, r.Interval)
	}
	switch r.End.kind {
	case EndNever:
	case EndUntilDate:
		if r.End.until.IsZero() {
			return fmt.Errorf("%w: until date is required", ErrInvalidEndCondition)
		}
	case EndAfterCount:
		if r.End.count < 1 {
			return fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalidEndCondition, r.End.count)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEndCondition, r.End.kind)
	}
	return nil
}

// EventRecord is the stored definition of an event, recurring or not.
type EventRecord struct {
	ID          string
	Name        string
	Description string
	Start       time.Time
	End         time.Time
	IsRecurring bool
	Rule        Rule
	Reminders   []int
}

// Duration is the length of every occurrence of the record.
func (r EventRecord) Duration() time.Duration {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Literal returns the record's own occurrence (sequence 0).
func (r EventRecord) Literal() Occurrence {
	return r.occurrenceAt(r.Start, 0)
}

func (r EventRecord) occurrenceAt(start time.Time, sequence int) Occurrence {
	occ := Occurrence{
		RecordID:  r.ID,
		Name:      r.Name,
		Start:     start,
		End:       start.Add(r.Duration()),
		Recurring: r.IsRecurring,
		Reminders: r.Reminders,
		Sequence:  sequence,
	}
	if r.IsRecurring {
		occ.Frequency = r.Rule.Frequency
		occ.Interval = r.Rule.Interval
	}
	return occ
}

// Occurrence is one concrete instance of a record. It is derived on demand and
// never persisted.
type Occurrence struct {
	RecordID  string
	Name      string
	Start     time.Time
	End       time.Time
	Recurring bool
	Frequency Frequency
	Interval  int
	// Reminders are minute offsets before Start, shared with the record.
	Reminders []int
	// Sequence is 0 for the stored start and k for the k-th step after it.
	Sequence int
}
