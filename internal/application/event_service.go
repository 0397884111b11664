package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/followup/internal/persistence"
	"github.com/example/followup/internal/recurrence"
	"github.com/example/followup/internal/reminder"
	"github.com/example/followup/internal/scheduler"
)

// EventRepository captures the persistence operations needed by the services.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	// UpdateEventByKey replaces the event stored under (start, end).
	UpdateEventByKey(ctx context.Context, start, end time.Time, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	DeleteEventByKey(ctx context.Context, start, end time.Time) error
	ListEvents(ctx context.Context) ([]Event, error)
}

// OccurrenceFinder lists literal and expanded occurrences starting in [start, end].
type OccurrenceFinder interface {
	Occurrences(ctx context.Context, start, end time.Time) ([]recurrence.Occurrence, error)
}

// Expander expands a single recurring record over a window.
type Expander interface {
	Expand(record recurrence.EventRecord, windowStart, windowEnd time.Time) []recurrence.Occurrence
}

// EventService orchestrates validation and persistence for event operations.
type EventService struct {
	events      EventRepository
	occurrences OccurrenceFinder
	expander    Expander
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, occurrences OccurrenceFinder, expander Expander, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, occurrences, expander, idGenerator, now, nil)
}

// NewEventServiceWithLogger wires dependencies for event operations with a specified logger.
func NewEventServiceWithLogger(events EventRepository, occurrences OccurrenceFinder, expander Expander, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		occurrences: occurrences,
		expander:    expander,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates the input, stores a new event and reports overlaps
// with other events over the next thirty days.
func (s *EventService) CreateEvent(ctx context.Context, input EventInput) (event Event, warnings []OverlapWarning, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created", "overlaps", len(warnings))
	}()

	record, vErr := buildRecord(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	createdAt := s.now()
	record.ID = s.idGenerator()
	candidate := Event{EventRecord: record, CreatedAt: createdAt, UpdatedAt: createdAt}

	warnings = s.detectOverlaps(ctx, logger, candidate.EventRecord)

	event, err = s.events.CreateEvent(ctx, candidate)
	if err != nil {
		err = mapEventRepoError(err)
		warnings = nil
		return
	}
	return
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Event{}, ErrNotFound
	}

	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	return event, nil
}

// ListEvents returns every stored event ordered by start then ID.
func (s *EventService) ListEvents(ctx context.Context) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}

	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, mapEventRepoError(err)
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})
	return ordered, nil
}

// UpdateEvent replaces the definition of the event with the given ID.
func (s *EventService) UpdateEvent(ctx context.Context, id string, input EventInput) (event Event, warnings []OverlapWarning, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "event_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated", "overlaps", len(warnings))
	}()

	var existing Event
	existing, err = s.GetEvent(ctx, id)
	if err != nil {
		return
	}

	record, vErr := buildRecord(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record.ID = existing.ID
	updated := Event{EventRecord: record, CreatedAt: existing.CreatedAt, UpdatedAt: s.now()}

	warnings = s.detectOverlaps(ctx, logger, updated.EventRecord)

	event, err = s.events.UpdateEvent(ctx, updated)
	if err != nil {
		err = mapEventRepoError(err)
		warnings = nil
		return
	}
	return
}

// UpdateEventByKey replaces the event stored under its (start, end) pair.
func (s *EventService) UpdateEventByKey(ctx context.Context, start, end time.Time, input EventInput) (event Event, warnings []OverlapWarning, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEventByKey", "start", start, "end", end)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event updated", "overlaps", len(warnings))
	}()

	if vErr := validateKey(start, end); vErr.HasErrors() {
		err = vErr
		return
	}

	record, vErr := buildRecord(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := Event{EventRecord: record, UpdatedAt: s.now()}

	event, err = s.events.UpdateEventByKey(ctx, start, end, updated)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}

	warnings = s.detectOverlaps(ctx, logger, event.EventRecord)
	return
}

// DeleteEvent removes the event with the given ID.
func (s *EventService) DeleteEvent(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "event_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return mapEventRepoError(s.events.DeleteEvent(ctx, id))
}

// DeleteEventByKey removes the event stored under its (start, end) pair.
func (s *EventService) DeleteEventByKey(ctx context.Context, start, end time.Time) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEventByKey", "start", start, "end", end)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if vErr := validateKey(start, end); vErr.HasErrors() {
		return vErr
	}
	return mapEventRepoError(s.events.DeleteEventByKey(ctx, start, end))
}

// detectOverlaps never fails the surrounding operation; lookup problems are
// logged and yield no warnings.
func (s *EventService) detectOverlaps(ctx context.Context, logger *slog.Logger, record recurrence.EventRecord) []OverlapWarning {
	if s.occurrences == nil {
		return nil
	}

	from := s.now()
	to := from.Add(OverlapHorizon)

	existing, err := s.occurrences.Occurrences(ctx, from, to)
	if err != nil {
		logger.WarnContext(ctx, "overlap detection skipped", "error", err)
		return nil
	}

	candidate := make([]recurrence.Occurrence, 0, 1)
	if !record.Start.Before(from) && !record.Start.After(to) {
		candidate = append(candidate, record.Literal())
	}
	if s.expander != nil {
		candidate = append(candidate, s.expander.Expand(record, from, to)...)
	}

	overlaps := scheduler.DetectOverlaps(toSlots(existing), toSlots(candidate))
	if len(overlaps) == 0 {
		return nil
	}

	warnings := make([]OverlapWarning, 0, len(overlaps))
	for _, overlap := range overlaps {
		warnings = append(warnings, OverlapWarning{
			OccurrenceStart: overlap.Candidate.Start,
			EventID:         overlap.With.RecordID,
			EventName:       overlap.With.Name,
			Start:           overlap.With.Start,
			End:             overlap.With.End,
		})
	}
	return warnings
}

func toSlots(occurrences []recurrence.Occurrence) []scheduler.Slot {
	slots := make([]scheduler.Slot, 0, len(occurrences))
	for _, occ := range occurrences {
		slots = append(slots, scheduler.Slot{
			RecordID: occ.RecordID,
			Name:     occ.Name,
			Sequence: occ.Sequence,
			Start:    occ.Start,
			End:      occ.End,
		})
	}
	return slots
}

func buildRecord(input EventInput) (recurrence.EventRecord, *ValidationError) {
	vErr := &ValidationError{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}

	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.End.After(input.Start) {
		vErr.add("end", "end must be after start")
	}

	reminders, remindersErr := normalizeReminders(input.Reminders)
	vErr.merge(remindersErr)

	record := recurrence.EventRecord{
		Name:        name,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		Reminders:   reminders,
	}

	if input.Recurrence != nil {
		rule, ruleErr := buildRule(*input.Recurrence, input.Start)
		vErr.merge(ruleErr)
		record.IsRecurring = true
		record.Rule = rule
	}

	return record, vErr
}

func buildRule(input RecurrenceInput, start time.Time) (recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}
	rule := recurrence.Rule{Interval: input.Interval}

	if strings.TrimSpace(input.Frequency) != "" {
		freq, ok := recurrence.ParseFrequency(input.Frequency)
		if !ok {
			vErr.add("recurrence.frequency", "frequency must be one of daily, weekly, monthly, yearly")
		}
		rule.Frequency = freq
	} else if strings.TrimSpace(input.Text) != "" {
		freq, interval := recurrence.ParseText(input.Text)
		if freq == recurrence.FrequencyNone {
			vErr.add("recurrence.text", "recurrence text is not recognised")
		}
		rule.Frequency = freq
		if rule.Interval == 0 {
			rule.Interval = interval
		}
	} else {
		vErr.add("recurrence.frequency", "frequency is required")
	}

	if rule.Interval == 0 {
		rule.Interval = 1
	}
	maxInterval := MaxInterval
	if rule.Frequency == recurrence.FrequencyYearly {
		maxInterval = MaxYearlyInterval
	}
	if rule.Interval < 1 || rule.Interval > maxInterval {
		vErr.add("recurrence.interval", fmt.Sprintf("interval must be between 1 and %d", maxInterval))
	}

	switch strings.ToLower(strings.TrimSpace(input.EndMode)) {
	case "", EndModeNever:
		rule.End = recurrence.Never()
	case EndModeUntil:
		switch {
		case input.Until.IsZero():
			vErr.add("recurrence.until", "until is required when end mode is until")
		case !start.IsZero() && input.Until.Before(start):
			vErr.add("recurrence.until", "until must not be before start")
		}
		rule.End = recurrence.UntilDate(input.Until)
	case EndModeCount:
		if input.Count < 1 || input.Count > MaxCount {
			vErr.add("recurrence.count", fmt.Sprintf("count must be between 1 and %d", MaxCount))
		}
		rule.End = recurrence.AfterCount(input.Count)
	default:
		vErr.add("recurrence.end_mode", "end mode must be one of never, until, count")
	}

	return rule, vErr
}

func normalizeReminders(reminders []int) ([]int, *ValidationError) {
	if len(reminders) == 0 {
		return nil, nil
	}

	vErr := &ValidationError{}
	seen := make(map[int]struct{}, len(reminders))
	out := make([]int, 0, len(reminders))
	for _, minutes := range reminders {
		if minutes < 0 || minutes > reminder.MaxPreset {
			vErr.add("reminders", fmt.Sprintf("reminder offsets must be between 0 and %d minutes", reminder.MaxPreset))
			continue
		}
		if _, ok := seen[minutes]; ok {
			continue
		}
		seen[minutes] = struct{}{}
		out = append(out, minutes)
	}
	sort.Ints(out)
	return out, vErr
}

func validateKey(start, end time.Time) *ValidationError {
	vErr := &ValidationError{}
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	return vErr
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return NewValidationError("event", "event violates a storage constraint")
	}
	return err
}
