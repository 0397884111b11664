package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/followup/internal/calendar"
	"github.com/example/followup/internal/ics"
	"github.com/example/followup/internal/recurrence"
)

// View sizes.
const (
	MonthGridDays          = 42
	DefaultMaxEventsPerDay = 5
	MaxRangeDays           = 3660
)

// RangeQuerier answers bucketed and flat occurrence queries.
type RangeQuerier interface {
	OccurrencesByDay(ctx context.Context, q calendar.Query) (calendar.DayBuckets, error)
	Occurrences(ctx context.Context, start, end time.Time) ([]recurrence.Occurrence, error)
}

// CalendarOptions tunes the calendar views.
type CalendarOptions struct {
	Location        *time.Location
	MaxEventsPerDay int
	Now             func() time.Time
	Logger          *slog.Logger
}

// CalendarService computes view windows and renders calendar exports.
type CalendarService struct {
	engine    RangeQuerier
	events    EventRepository
	encoder   *ics.Encoder
	signer    *ics.Signer
	location  *time.Location
	maxPerDay int
	now       func() time.Time
	logger    *slog.Logger
}

// NewCalendarService wires the calendar views. encoder and signer are only
// needed by Export.
func NewCalendarService(engine RangeQuerier, events EventRepository, encoder *ics.Encoder, signer *ics.Signer, opts CalendarOptions) *CalendarService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxEventsPerDay < 1 {
		opts.MaxEventsPerDay = DefaultMaxEventsPerDay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CalendarService{
		engine:    engine,
		events:    events,
		encoder:   encoder,
		signer:    signer,
		location:  opts.Location,
		maxPerDay: opts.MaxEventsPerDay,
		now:       opts.Now,
		logger:    defaultLogger(opts.Logger),
	}
}

// Location is the zone used for day boundaries.
func (s *CalendarService) Location() *time.Location {
	if s == nil {
		return time.Local
	}
	return s.location
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

// MonthGrid returns the 42-day grid starting at local midnight of the Sunday
// on or before the first of the month. Buckets are half-open 24h slots, so
// after a clock change they start an hour off local midnight and an event in
// that hour shows up in the neighbouring cell.
func (s *CalendarService) MonthGrid(ctx context.Context, year int, month time.Month) (MonthGrid, error) {
	if err := s.ready(); err != nil {
		return MonthGrid{}, err
	}
	if vErr := validateMonth(year, month); vErr.HasErrors() {
		return MonthGrid{}, vErr
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, s.location)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	query := calendar.Query{
		Start: start,
		End:   start.Add(MonthGridDays * calendar.BucketDuration),
		Days:  MonthGridDays,
		Mode:  calendar.BucketHalfOpen,
	}

	buckets, err := s.engine.OccurrencesByDay(ctx, query)
	if err != nil {
		s.loggerWith(ctx, "MonthGrid", "year", year, "month", int(month)).
			ErrorContext(ctx, "failed to build month grid", "error", err, "error_kind", ErrorKind(err))
		return MonthGrid{}, err
	}

	return MonthGrid{Year: year, Month: month, Start: start, Days: MonthGridDays, Buckets: buckets}, nil
}

// ImportantDates lists the populated days of the month. The window runs from
// local midnight of the first to the last nanosecond of the last day and the
// final bucket is inclusive. At most MaxEventsPerDay occurrences are kept per
// day; the rest are counted in More.
func (s *CalendarService) ImportantDates(ctx context.Context, year int, month time.Month) (ImportantDates, error) {
	if err := s.ready(); err != nil {
		return ImportantDates{}, err
	}
	if vErr := validateMonth(year, month); vErr.HasErrors() {
		return ImportantDates{}, vErr
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, s.location)
	days := daysIn(year, month)
	end := time.Date(year, month, days, 23, 59, 59, 999999999, s.location)

	buckets, err := s.engine.OccurrencesByDay(ctx, calendar.Query{
		Start: start,
		End:   end,
		Days:  days,
		Mode:  calendar.BucketInclusiveEnd,
	})
	if err != nil {
		s.loggerWith(ctx, "ImportantDates", "year", year, "month", int(month)).
			ErrorContext(ctx, "failed to build important dates", "error", err, "error_kind", ErrorKind(err))
		return ImportantDates{}, err
	}

	view := ImportantDates{Year: year, Month: month, Start: start, End: end}
	for _, offset := range buckets.Offsets() {
		occurrences := buckets[offset]
		entry := DayEntry{Offset: offset, Date: start.AddDate(0, 0, offset)}
		if len(occurrences) > s.maxPerDay {
			entry.More = len(occurrences) - s.maxPerDay
			occurrences = occurrences[:s.maxPerDay]
		}
		entry.Occurrences = occurrences
		view.Days = append(view.Days, entry)
	}
	return view, nil
}

// Range buckets an arbitrary inclusive window into ceil((to-from)/24h) days.
func (s *CalendarService) Range(ctx context.Context, from, to time.Time) (RangeView, error) {
	if err := s.ready(); err != nil {
		return RangeView{}, err
	}

	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("from", "from is required")
	}
	if to.IsZero() {
		vErr.add("to", "to is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		vErr.add("to", "to must not be before from")
	}
	if vErr.HasErrors() {
		return RangeView{}, vErr
	}

	days := rangeDays(from, to)
	if days > MaxRangeDays {
		return RangeView{}, NewValidationError("to", fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}

	buckets, err := s.engine.OccurrencesByDay(ctx, calendar.Query{
		Start: from,
		End:   to,
		Days:  days,
		Mode:  calendar.BucketInclusiveEnd,
	})
	if err != nil {
		return RangeView{}, err
	}
	return RangeView{Start: from, End: to, Days: days, Buckets: buckets}, nil
}

// Upcoming lists occurrences from now through the end of the current month.
func (s *CalendarService) Upcoming(ctx context.Context) ([]recurrence.Occurrence, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	now := s.now().In(s.location)
	end := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, s.location).Add(-time.Nanosecond)

	occurrences, err := s.engine.Occurrences(ctx, now, end)
	if err != nil {
		s.loggerWith(ctx, "Upcoming").ErrorContext(ctx, "failed to list upcoming occurrences", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return occurrences, nil
}

// Export renders every stored event as an iCalendar document.
func (s *CalendarService) Export(ctx context.Context) (Export, error) {
	if s == nil {
		return Export{}, fmt.Errorf("CalendarService is nil")
	}
	if s.events == nil || s.encoder == nil || s.signer == nil {
		return Export{}, fmt.Errorf("calendar export not configured")
	}

	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return Export{}, mapEventRepoError(err)
	}

	entries := make([]ics.Entry, 0, len(events))
	for _, event := range events {
		entries = append(entries, ics.Entry{Record: event.EventRecord, Modified: event.UpdatedAt})
	}

	body, err := s.encoder.Marshal(entries)
	if err != nil {
		return Export{}, err
	}
	etag, err := s.signer.ETag(body)
	if err != nil {
		return Export{}, err
	}

	s.loggerWith(ctx, "Export").DebugContext(ctx, "calendar exported", "events", len(entries), "bytes", len(body))
	return Export{Body: body, ETag: etag}, nil
}

func (s *CalendarService) ready() error {
	if s == nil {
		return fmt.Errorf("CalendarService is nil")
	}
	if s.engine == nil {
		return errors.New("calendar engine not configured")
	}
	return nil
}

func validateMonth(year int, month time.Month) *ValidationError {
	vErr := &ValidationError{}
	if year < 1 || year > 9999 {
		vErr.add("month", "year must be between 1 and 9999")
	}
	if month < time.January || month > time.December {
		vErr.add("month", "month must be between 1 and 12")
	}
	return vErr
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func rangeDays(from, to time.Time) int {
	span := to.Sub(from)
	days := int(span / calendar.BucketDuration)
	if span%calendar.BucketDuration != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}
