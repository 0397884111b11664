package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/followup/internal/calendar"
	"github.com/example/followup/internal/ics"
	"github.com/example/followup/internal/recurrence"
)

type recordSourceStub struct {
	records []recurrence.EventRecord
	err     error
}

func (s *recordSourceStub) FindByRange(ctx context.Context, start, end time.Time) ([]recurrence.EventRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []recurrence.EventRecord
	for _, r := range s.records {
		if !r.Start.Before(start) && !r.Start.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *recordSourceStub) FindAllRecurring(ctx context.Context) ([]recurrence.EventRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []recurrence.EventRecord
	for _, r := range s.records {
		if r.IsRecurring {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestCalendarService(records []recurrence.EventRecord, opts CalendarOptions) (*CalendarService, *recordSourceStub) {
	source := &recordSourceStub{records: records}
	expander := recurrence.NewEngine(nil, nil)
	engine := calendar.NewEngine(source, expander, nil)
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	return NewCalendarService(engine, nil, nil, nil, opts), source
}

func record(id string, start time.Time, d time.Duration) recurrence.EventRecord {
	return recurrence.EventRecord{ID: id, Name: id, Start: start, End: start.Add(d)}
}

func TestCalendarService_MonthGrid(t *testing.T) {
	// March 2024 starts on a Friday; the grid starts Sunday February 25.
	gridStart := time.Date(2024, time.February, 25, 0, 0, 0, 0, time.UTC)
	gridEnd := gridStart.Add(MonthGridDays * calendar.BucketDuration)

	svc, _ := newTestCalendarService([]recurrence.EventRecord{
		record("first-cell", gridStart, time.Hour),
		record("mid-month", time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC), time.Hour),
		record("past-grid", gridEnd, time.Hour),
	}, CalendarOptions{})

	grid, err := svc.MonthGrid(context.Background(), 2024, time.March)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !grid.Start.Equal(gridStart) {
		t.Fatalf("expected grid start %v, got %v", gridStart, grid.Start)
	}
	if grid.Days != 42 {
		t.Fatalf("expected 42 days, got %d", grid.Days)
	}
	if got := grid.Buckets[0]; len(got) != 1 || got[0].RecordID != "first-cell" {
		t.Fatalf("unexpected first bucket %v", got)
	}
	if got := grid.Buckets[19]; len(got) != 1 || got[0].RecordID != "mid-month" {
		t.Fatalf("unexpected bucket 19 %v", got)
	}
	if grid.Buckets.Count() != 2 {
		t.Fatalf("expected the half-open end to drop the event at the grid end, got %d", grid.Buckets.Count())
	}
}

func TestCalendarService_MonthGridStartsOnSundayFirst(t *testing.T) {
	// September 2024 begins on a Sunday.
	svc, _ := newTestCalendarService(nil, CalendarOptions{})

	grid, err := svc.MonthGrid(context.Background(), 2024, time.September)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC); !grid.Start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, grid.Start)
	}
}

func TestCalendarService_MonthGridValidatesMonth(t *testing.T) {
	svc, _ := newTestCalendarService(nil, CalendarOptions{})

	var vErr *ValidationError
	if _, err := svc.MonthGrid(context.Background(), 2024, time.Month(13)); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := svc.ImportantDates(context.Background(), 0, time.May); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCalendarService_ImportantDates(t *testing.T) {
	lastDay := time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)
	busy := time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC)

	records := []recurrence.EventRecord{record("leap", lastDay, 30*time.Minute)}
	for i := 0; i < 7; i++ {
		records = append(records, record(string(rune('a'+i)), busy.Add(time.Duration(i)*time.Hour), time.Hour))
	}

	svc, _ := newTestCalendarService(records, CalendarOptions{MaxEventsPerDay: 5})

	view, err := svc.ImportantDates(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, time.February, 29, 23, 59, 59, 999999999, time.UTC); !view.End.Equal(want) {
		t.Fatalf("expected end %v, got %v", want, view.End)
	}
	if len(view.Days) != 2 {
		t.Fatalf("expected two populated days, got %d", len(view.Days))
	}

	busyDay := view.Days[0]
	if busyDay.Offset != 9 || busyDay.Date.Day() != 10 {
		t.Fatalf("unexpected busy day %+v", busyDay)
	}
	if len(busyDay.Occurrences) != 5 || busyDay.More != 2 {
		t.Fatalf("expected 5 shown and 2 more, got %d and %d", len(busyDay.Occurrences), busyDay.More)
	}
	if busyDay.Occurrences[0].RecordID != "a" {
		t.Fatalf("expected earliest first, got %s", busyDay.Occurrences[0].RecordID)
	}

	if leap := view.Days[1]; leap.Offset != 28 || leap.More != 0 || leap.Occurrences[0].RecordID != "leap" {
		t.Fatalf("unexpected last day %+v", leap)
	}
}

func TestCalendarService_ImportantDatesKeepsLastHourAfterFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	late := time.Date(2025, time.November, 30, 23, 30, 0, 0, ny)

	svc, _ := newTestCalendarService([]recurrence.EventRecord{record("late", late, 15*time.Minute)}, CalendarOptions{Location: ny})

	view, err := svc.ImportantDates(context.Background(), 2025, time.November)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Days) != 1 {
		t.Fatalf("expected the late event to be kept, got %d days", len(view.Days))
	}
	if day := view.Days[0]; day.Offset != 29 || day.Occurrences[0].RecordID != "late" {
		t.Fatalf("unexpected day %+v", day)
	}
}

func TestCalendarService_MonthGridUsesFixedDaysAcrossFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Clocks fall back on November 2 2025, so from then on each 24h cell
	// runs from 23:00 to 23:00 local time.
	beforeShift := time.Date(2025, time.November, 10, 22, 30, 0, 0, ny)
	afterShift := time.Date(2025, time.November, 10, 23, 30, 0, 0, ny)

	svc, _ := newTestCalendarService([]recurrence.EventRecord{
		record("before", beforeShift, 15*time.Minute),
		record("after", afterShift, 15*time.Minute),
	}, CalendarOptions{Location: ny})

	grid, err := svc.MonthGrid(context.Background(), 2025, time.November)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, time.October, 26, 0, 0, 0, 0, ny); !grid.Start.Equal(want) {
		t.Fatalf("expected grid start %v, got %v", want, grid.Start)
	}
	if got := grid.Buckets[15]; len(got) != 1 || got[0].RecordID != "before" {
		t.Fatalf("expected only the 22:30 event in cell 15, got %+v", got)
	}
	if got := grid.Buckets[16]; len(got) != 1 || got[0].RecordID != "after" {
		t.Fatalf("expected the 23:30 event in cell 16, got %+v", got)
	}
}

func TestCalendarService_ImportantDatesExpandsRecurring(t *testing.T) {
	weekly := record("weekly", time.Date(2024, time.January, 3, 9, 0, 0, 0, time.UTC), time.Hour)
	weekly.IsRecurring = true
	weekly.Rule = recurrence.Rule{Frequency: recurrence.FrequencyWeekly, Interval: 1, End: recurrence.Never()}

	svc, _ := newTestCalendarService([]recurrence.EventRecord{weekly}, CalendarOptions{})

	view, err := svc.ImportantDates(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var days []int
	for _, d := range view.Days {
		days = append(days, d.Date.Day())
	}
	want := []int{7, 14, 21, 28}
	if len(days) != len(want) {
		t.Fatalf("expected days %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected days %v, got %v", want, days)
		}
	}
}

func TestCalendarService_Range(t *testing.T) {
	from := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestCalendarService([]recurrence.EventRecord{
		record("start", from, time.Hour),
		record("edge", from.Add(36*time.Hour), time.Hour),
	}, CalendarOptions{})

	view, err := svc.Range(context.Background(), from, from.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Days != 2 {
		t.Fatalf("expected 2 days, got %d", view.Days)
	}
	if len(view.Buckets[0]) != 1 || len(view.Buckets[1]) != 1 {
		t.Fatalf("unexpected buckets %v", view.Buckets)
	}

	single, err := svc.Range(context.Background(), from, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if single.Days != 1 || len(single.Buckets[0]) != 1 {
		t.Fatalf("expected a single inclusive day, got %+v", single)
	}

	var vErr *ValidationError
	if _, err := svc.Range(context.Background(), from, from.Add(-time.Hour)); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := svc.Range(context.Background(), from, from.Add((MaxRangeDays+1)*calendar.BucketDuration)); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for long range, got %v", err)
	}
}

func TestCalendarService_Upcoming(t *testing.T) {
	svc, _ := newTestCalendarService([]recurrence.EventRecord{
		record("past", serviceNow.Add(-time.Hour), time.Hour),
		record("soon", serviceNow.Add(time.Hour), time.Hour),
		record("month-end", time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC), time.Hour),
		record("next-month", time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), time.Hour),
	}, CalendarOptions{})

	occurrences, err := svc.Upcoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 2 || occurrences[0].RecordID != "soon" || occurrences[1].RecordID != "month-end" {
		t.Fatalf("unexpected occurrences %v", occurrences)
	}
}

func TestCalendarService_SourceError(t *testing.T) {
	svc, source := newTestCalendarService(nil, CalendarOptions{})
	source.err = errors.New("db down")

	if _, err := svc.MonthGrid(context.Background(), 2024, time.March); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := svc.Upcoming(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCalendarService_Export(t *testing.T) {
	modified := time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC)
	repo := &eventRepoStub{list: []Event{{
		EventRecord: recurrence.EventRecord{
			ID:        "evt-1",
			Name:      "Dentist",
			Start:     time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC),
			End:       time.Date(2024, time.March, 5, 15, 0, 0, 0, time.UTC),
			Reminders: []int{30},
		},
		UpdatedAt: modified,
	}}}
	expander := recurrence.NewEngine(nil, nil)
	engine := calendar.NewEngine(&recordSourceStub{}, expander, nil)
	encoder := ics.NewEncoder(ics.DefaultProductID, expander, fixedNow)
	signer := ics.NewSigner("secret")
	svc := NewCalendarService(engine, repo, encoder, signer, CalendarOptions{Location: time.UTC, Now: fixedNow})

	first, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := string(first.Body)
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:evt-1", "SUMMARY:Dentist", "BEGIN:VALARM"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in export:\n%s", want, body)
		}
	}
	if first.ETag == "" {
		t.Fatalf("expected etag")
	}

	second, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ETag != first.ETag {
		t.Fatalf("expected stable etag, got %s and %s", first.ETag, second.ETag)
	}

	repo.list[0].Name = "Dentist (moved)"
	third, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.ETag == first.ETag {
		t.Fatalf("expected etag to change with content")
	}
}

func TestCalendarService_ExportNotConfigured(t *testing.T) {
	svc, _ := newTestCalendarService(nil, CalendarOptions{})
	if _, err := svc.Export(context.Background()); err == nil {
		t.Fatalf("expected error without encoder")
	}
}
