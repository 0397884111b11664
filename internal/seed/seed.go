// Package seed loads demo events from YAML and stores them through the event
// service.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/followup/internal/application"
)

//go:embed demo.yaml
var demoYAML []byte

// File is the seed document.
type File struct {
	Events []Event `yaml:"events"`
}

// Event describes one event relative to the seed day.
type Event struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// DayOffset counts days from today, or from the first of the month when
	// MonthOffset is set.
	DayOffset   int         `yaml:"day_offset"`
	MonthOffset *int        `yaml:"month_offset"`
	Start       string      `yaml:"start"`
	End         string      `yaml:"end"`
	Recurrence  *Recurrence `yaml:"recurrence"`
	Reminders   []int       `yaml:"reminders"`
}

// Recurrence mirrors the API recurrence fields with a relative until date.
type Recurrence struct {
	Frequency      string `yaml:"frequency"`
	Interval       int    `yaml:"interval"`
	EndMode        string `yaml:"end_mode"`
	Count          int    `yaml:"count"`
	UntilDayOffset int    `yaml:"until_day_offset"`
	UntilTime      string `yaml:"until_time"`
}

// Parse decodes a seed document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

// Load reads a seed document from path, or the embedded demo set when path
// is empty.
func Load(path string) (File, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded demo events.
func Default() (File, error) {
	return Parse(demoYAML)
}

// Inputs resolves every event against today's date in loc.
func (f File) Inputs(today time.Time, loc *time.Location) ([]application.EventInput, error) {
	if loc == nil {
		loc = time.Local
	}
	day := today.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	inputs := make([]application.EventInput, 0, len(f.Events))
	for i, ev := range f.Events {
		input, err := ev.input(day)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Name, err)
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func (s Event) input(today time.Time) (application.EventInput, error) {
	date := today
	if s.MonthOffset != nil {
		date = time.Date(today.Year(), today.Month()+time.Month(*s.MonthOffset), 1, 0, 0, 0, 0, today.Location())
	}
	date = date.AddDate(0, 0, s.DayOffset)

	start, err := atClock(date, s.Start)
	if err != nil {
		return application.EventInput{}, fmt.Errorf("start: %w", err)
	}
	end, err := atClock(date, s.End)
	if err != nil {
		return application.EventInput{}, fmt.Errorf("end: %w", err)
	}

	input := application.EventInput{
		Name:        s.Name,
		Description: s.Description,
		Start:       start,
		End:         end,
		Reminders:   append([]int(nil), s.Reminders...),
	}
	if s.Recurrence == nil {
		return input, nil
	}

	rec := &application.RecurrenceInput{
		Frequency: s.Recurrence.Frequency,
		Interval:  s.Recurrence.Interval,
		EndMode:   s.Recurrence.EndMode,
		Count:     s.Recurrence.Count,
	}
	if s.Recurrence.EndMode == application.EndModeUntil {
		clock := s.Recurrence.UntilTime
		if clock == "" {
			clock = "23:59"
		}
		until, err := atClock(today.AddDate(0, 0, s.Recurrence.UntilDayOffset), clock)
		if err != nil {
			return application.EventInput{}, fmt.Errorf("until: %w", err)
		}
		rec.Until = until
	}
	input.Recurrence = rec
	return input, nil
}

func atClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an HH:MM time", clock)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// Creator stores one event.
type Creator interface {
	CreateEvent(ctx context.Context, input application.EventInput) (application.Event, []application.OverlapWarning, error)
}

// Result counts the outcome of a seed run.
type Result struct {
	Created int
	Skipped int
}

// Run stores every input. Events whose start and end are already taken are
// skipped so that seeding twice is harmless.
func Run(ctx context.Context, creator Creator, inputs []application.EventInput, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var result Result
	for _, input := range inputs {
		event, _, err := creator.CreateEvent(ctx, input)
		switch {
		case errors.Is(err, application.ErrAlreadyExists):
			result.Skipped++
			logger.InfoContext(ctx, "seed event already present", "name", input.Name, "start", input.Start)
		case err != nil:
			return result, fmt.Errorf("seed %q: %w", input.Name, err)
		default:
			result.Created++
			logger.DebugContext(ctx, "seed event created", "event_id", event.ID, "name", event.Name)
		}
	}
	return result, nil
}
