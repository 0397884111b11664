package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/followup/internal/application"
	"github.com/example/followup/internal/persistence"
	"github.com/example/followup/internal/recurrence"
)

var eventCounter uint64

// EventFixture is a deterministic event definition usable at every layer.
type EventFixture struct {
	ID          string
	Name        string
	Description string
	Start       time.Time
	End         time.Time
	Rule        *recurrence.Rule
	Reminders   []int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventOption configures an EventFixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one-hour event. Each call starts one hour after the
// previous fixture so that default fixtures never share a (start, end) key.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		ID:        fmt.Sprintf("fixture-%03d", idx),
		Name:      fmt.Sprintf("Event %03d", idx),
		Start:     start,
		End:       start.Add(time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

// WithEventName overrides the generated name.
func WithEventName(name string) EventOption {
	return func(f *EventFixture) { f.Name = name }
}

// WithEventDescription sets the description.
func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) { f.Description = description }
}

// WithEventTimes sets start and end.
func WithEventTimes(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventStart moves the event to start, keeping its duration.
func WithEventStart(start time.Time) EventOption {
	return func(f *EventFixture) {
		d := f.End.Sub(f.Start)
		f.Start = start
		f.End = start.Add(d)
	}
}

// WithRecurrence makes the event recurring.
func WithRecurrence(freq recurrence.Frequency, interval int, end recurrence.EndCondition) EventOption {
	return func(f *EventFixture) {
		f.Rule = &recurrence.Rule{Frequency: freq, Interval: interval, End: end}
	}
}

// WithReminders sets the reminder offsets in minutes.
func WithReminders(minutes ...int) EventOption {
	return func(f *EventFixture) { f.Reminders = append([]int(nil), minutes...) }
}

// WithEventTimestamps sets created and updated times.
func WithEventTimestamps(created, updated time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Record returns the fixture as a recurrence.EventRecord.
func (f EventFixture) Record() recurrence.EventRecord {
	record := recurrence.EventRecord{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Reminders:   append([]int(nil), f.Reminders...),
	}
	if len(f.Reminders) == 0 {
		record.Reminders = nil
	}
	if f.Rule != nil {
		record.IsRecurring = true
		record.Rule = *f.Rule
	}
	return record
}

// Event returns the fixture as an application.Event.
func (f EventFixture) Event() application.Event {
	return application.Event{EventRecord: f.Record(), CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

// Row returns the fixture in the stored column layout.
func (f EventFixture) Row() persistence.EventRow {
	return application.ToRow(f.Event())
}

// Input returns the fixture as service input.
func (f EventFixture) Input() application.EventInput {
	input := application.EventInput{
		Name:        f.Name,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Reminders:   append([]int(nil), f.Reminders...),
	}
	if f.Rule == nil {
		return input
	}

	rec := &application.RecurrenceInput{
		Frequency: frequencyName(f.Rule.Frequency),
		Interval:  f.Rule.Interval,
		EndMode:   f.Rule.End.Kind().String(),
	}
	if until, ok := f.Rule.End.Until().Get(); ok {
		rec.Until = until
	}
	if count, ok := f.Rule.End.Count().Get(); ok {
		rec.Count = count
	}
	input.Recurrence = rec
	return input
}

func frequencyName(freq recurrence.Frequency) string {
	switch freq {
	case recurrence.FrequencyDaily:
		return "daily"
	case recurrence.FrequencyWeekly:
		return "weekly"
	case recurrence.FrequencyMonthly:
		return "monthly"
	case recurrence.FrequencyYearly:
		return "yearly"
	default:
		return ""
	}
}
