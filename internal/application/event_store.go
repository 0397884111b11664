package application

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/example/followup/internal/persistence"
	"github.com/example/followup/internal/recurrence"
)

// EventStore adapts a row-level persistence.EventRepository to the event
// services and to the calendar engine's record source.
type EventStore struct {
	rows persistence.EventRepository
}

// NewEventStore wraps rows.
func NewEventStore(rows persistence.EventRepository) *EventStore {
	return &EventStore{rows: rows}
}

// CreateEvent inserts the event.
func (s *EventStore) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if err := s.rows.Insert(ctx, ToRow(event)); err != nil {
		return Event{}, err
	}
	return s.GetEvent(ctx, event.ID)
}

// GetEvent loads one event by ID.
func (s *EventStore) GetEvent(ctx context.Context, id string) (Event, error) {
	row, err := s.rows.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	return FromRow(row), nil
}

// UpdateEvent replaces the stored event with the same ID.
func (s *EventStore) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	if err := s.rows.Update(ctx, ToRow(event)); err != nil {
		return Event{}, err
	}
	return s.GetEvent(ctx, event.ID)
}

// UpdateEventByKey replaces the event stored under (start, end).
func (s *EventStore) UpdateEventByKey(ctx context.Context, start, end time.Time, event Event) (Event, error) {
	row, err := s.rows.UpdateByKey(ctx, persistence.Seconds(start), persistence.Seconds(end), ToRow(event))
	if err != nil {
		return Event{}, err
	}
	return FromRow(row), nil
}

// DeleteEvent removes the event with the given ID.
func (s *EventStore) DeleteEvent(ctx context.Context, id string) error {
	return s.rows.Delete(ctx, id)
}

// DeleteEventByKey removes the event stored under (start, end).
func (s *EventStore) DeleteEventByKey(ctx context.Context, start, end time.Time) error {
	return s.rows.DeleteByKey(ctx, persistence.Seconds(start), persistence.Seconds(end))
}

// ListEvents returns every stored event.
func (s *EventStore) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.rows.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, FromRow(row))
	}
	return events, nil
}

// FindByRange returns records whose start lies in [start, end].
func (s *EventStore) FindByRange(ctx context.Context, start, end time.Time) ([]recurrence.EventRecord, error) {
	rows, err := s.rows.FindByRange(ctx, persistence.Seconds(start), persistence.Seconds(end))
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// FindAllRecurring returns every recurring record.
func (s *EventStore) FindAllRecurring(ctx context.Context) ([]recurrence.EventRecord, error) {
	rows, err := s.rows.FindAllRecurring(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func toRecords(rows []persistence.EventRow) []recurrence.EventRecord {
	records := make([]recurrence.EventRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, FromRow(row).EventRecord)
	}
	return records
}

// ToRow flattens an event into the stored column layout.
func ToRow(event Event) persistence.EventRow {
	row := persistence.EventRow{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Start:       persistence.Seconds(event.Start),
		End:         persistence.Seconds(event.End),
		IsRecurring: event.IsRecurring,
		IsAlerting:  event.IsAlerting(),
		Reminders:   event.Reminders,
		Interval:    1,
		EndMode:     persistence.EndModeNever,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
	if !event.IsRecurring {
		return row
	}

	row.FrequencyIndex = int(event.Rule.Frequency)
	row.Interval = event.Rule.Interval
	switch event.Rule.End.Kind() {
	case recurrence.EndUntilDate:
		row.EndMode = persistence.EndModeUntilDate
		row.EndDate = mo.Some(persistence.Seconds(event.Rule.End.Until().OrEmpty()))
	case recurrence.EndAfterCount:
		row.EndMode = persistence.EndModeAfterCount
		row.EndCount = mo.Some(int64(event.Rule.End.Count().OrEmpty()))
	}
	return row
}

// FromRow rebuilds an event from its stored columns. Malformed recurrence
// columns are carried through and rejected later by rule validation.
func FromRow(row persistence.EventRow) Event {
	record := recurrence.EventRecord{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Start:       persistence.Time(row.Start),
		End:         persistence.Time(row.End),
		IsRecurring: row.IsRecurring,
		Reminders:   row.Reminders,
	}
	if row.IsRecurring {
		until := mo.None[time.Time]()
		if seconds, ok := row.EndDate.Get(); ok {
			until = mo.Some(persistence.Time(seconds))
		}
		count := mo.None[int]()
		if n, ok := row.EndCount.Get(); ok {
			count = mo.Some(int(n))
		}
		record.Rule = recurrence.Rule{
			Frequency: recurrence.Frequency(row.FrequencyIndex),
			Interval:  row.Interval,
			End:       recurrence.NewEndCondition(recurrence.EndKind(row.EndMode), until, count),
		}
	}
	return Event{EventRecord: record, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}
}
