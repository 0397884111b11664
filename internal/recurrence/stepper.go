package recurrence

import (
	"fmt"
	"math"
	"time"

	"github.com/teambition/rrule-go"
)

// Sequence yields successive occurrence starts strictly after a record's
// stored start. It returns false once no further occurrence exists.
type Sequence func() (time.Time, bool)

// Stepper produces the occurrence sequence for a rule and describes the same
// arithmetic as an RFC 5545 recurrence.
type Stepper interface {
	Sequence(start time.Time, rule Rule) (Sequence, error)
	ROption(start time.Time, rule Rule) (rrule.ROption, error)
}

// FixedStepper advances by interval × unit seconds, approximating a month as
// 30 days and a year as 365 days.
type FixedStepper struct{}

func (FixedStepper) Sequence(start time.Time, rule Rule) (Sequence, error) {
	unit, ok := rule.Frequency.Unit()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, rule.Frequency)
	}
	if rule.Interval < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, rule.Interval)
	}
	if int64(rule.Interval) > math.MaxInt64/int64(unit) {
		return nil, fmt.Errorf("%w: %d %s steps overflow a duration", ErrInvalidInterval, rule.Interval, rule.Frequency)
	}
	step := time.Duration(rule.Interval) * unit
	current := start
	return func() (time.Time, bool) {
		current = current.Add(step)
		return current, true
	}, nil
}

// ROption expresses fixed steps in whole days so that calendar clients
// reproduce the same instants.
func (FixedStepper) ROption(start time.Time, rule Rule) (rrule.ROption, error) {
	if err := rule.Validate(); err != nil {
		return rrule.ROption{}, err
	}
	opt := rrule.ROption{Interval: rule.Interval}
	switch rule.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case FrequencyMonthly:
		opt.Freq = rrule.DAILY
		opt.Interval = rule.Interval * 30
	case FrequencyYearly:
		opt.Freq = rrule.DAILY
		opt.Interval = rule.Interval * 365
	}
	applyEnd(&opt, rule.End)
	return opt, nil
}

// CalendarStepper advances in calendar units of Location using rrule-go.
// Monthly rules anchored after the 28th and yearly rules anchored on
// February 29 fall back to the last day of shorter months.
type CalendarStepper struct {
	Location *time.Location
}

func (s CalendarStepper) Sequence(start time.Time, rule Rule) (Sequence, error) {
	opt, err := s.calendarOption(start, rule)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = start.In(s.location())
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rrule: %w", err)
	}
	next := rr.Iterator()
	return func() (time.Time, bool) {
		for {
			at, ok := next()
			if !ok {
				return time.Time{}, false
			}
			if at.After(start) {
				return at, true
			}
		}
	}, nil
}

func (s CalendarStepper) ROption(start time.Time, rule Rule) (rrule.ROption, error) {
	if err := rule.Validate(); err != nil {
		return rrule.ROption{}, err
	}
	opt, err := s.calendarOption(start, rule)
	if err != nil {
		return rrule.ROption{}, err
	}
	applyEnd(&opt, rule.End)
	return opt, nil
}

func (s CalendarStepper) calendarOption(start time.Time, rule Rule) (rrule.ROption, error) {
	if rule.Interval < 1 {
		return rrule.ROption{}, fmt.Errorf("%w: got %d", ErrInvalidInterval, rule.Interval)
	}
	local := start.In(s.location())
	opt := rrule.ROption{Interval: rule.Interval}
	switch rule.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		if day := local.Day(); day > 28 {
			opt.Bymonthday = daysFrom28(day)
			opt.Bysetpos = []int{-1}
		}
	case FrequencyYearly:
		opt.Freq = rrule.YEARLY
		if local.Month() == time.February && local.Day() == 29 {
			opt.Bymonth = []int{2}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	default:
		return rrule.ROption{}, fmt.Errorf("%w: %s", ErrInvalidFrequency, rule.Frequency)
	}
	return opt, nil
}

func (s CalendarStepper) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func daysFrom28(day int) []int {
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days
}

// applyEnd maps the end condition onto RRULE terms. COUNT in RFC 5545 includes
// the first instance, AfterCount does not.
func applyEnd(opt *rrule.ROption, end EndCondition) {
	if until, ok := end.Until().Get(); ok {
		opt.Until = until.UTC()
	}
	if count, ok := end.Count().Get(); ok {
		opt.Count = count + 1
	}
}
