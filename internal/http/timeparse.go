package http

import (
	"fmt"
	"strings"
	"time"
)

// wallClockLayouts are read in the configured location.
var wallClockLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 03:04 PM",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 or a wall-clock layout. An empty value
// yields the zero time and no error; callers decide whether it is required.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range wallClockLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a recognised timestamp", value)
}

// parseMonth reads YYYY-MM.
func parseMonth(value string) (int, time.Month, error) {
	ts, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not a YYYY-MM month", value)
	}
	return ts.Year(), ts.Month(), nil
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339)
}

func formatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
