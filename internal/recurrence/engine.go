package recurrence

import (
	"log/slog"
	"time"

	"github.com/teambition/rrule-go"
)

// Engine expands recurring records into occurrences.
type Engine struct {
	stepper Stepper
	logger  *slog.Logger
}

// NewEngine constructs an Engine. A nil stepper selects FixedStepper and a nil
// logger selects slog.Default.
func NewEngine(stepper Stepper, logger *slog.Logger) *Engine {
	if stepper == nil {
		stepper = FixedStepper{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{stepper: stepper, logger: logger}
}

// Expand returns the occurrences of record that follow its stored start and
// whose start lies within [windowStart, windowEnd], inclusive at both ends.
//
// The stored start itself is never returned; callers obtain it from the literal
// range lookup. The three end conditions are handled separately:
//   - Never: steps until the window end.
//   - UntilDate: steps while the occurrence does not start after the limit.
//   - AfterCount(n): takes exactly the first n steps.
//
// A malformed rule yields no occurrences and a warning; Expand never fails.
func (e *Engine) Expand(record EventRecord, windowStart, windowEnd time.Time) []Occurrence {
	if !record.IsRecurring || windowEnd.Before(windowStart) {
		return nil
	}

	rule := record.Rule
	if err := rule.Validate(); err != nil {
		e.warn(record, err)
		return nil
	}

	next, err := e.stepper.Sequence(record.Start, rule)
	if err != nil {
		e.warn(record, err)
		return nil
	}

	next, stalled := advancing(record.Start, next)

	var out []Occurrence
	switch rule.End.Kind() {
	case EndNever:
		out = expandNever(record, next, windowStart, windowEnd)
	case EndUntilDate:
		out = expandUntil(record, next, rule.End.Until().MustGet(), windowStart, windowEnd)
	case EndAfterCount:
		out = expandCount(record, next, rule.End.Count().MustGet(), windowStart, windowEnd)
	default:
		e.warn(record, ErrInvalidEndCondition)
		return nil
	}

	if *stalled {
		e.warn(record, ErrStalledSequence)
		return nil
	}
	return out
}

// advancing ends next as soon as it yields an instant that is not strictly
// after the previous one, and reports that through the returned flag.
func advancing(start time.Time, next Sequence) (Sequence, *bool) {
	stalled := false
	prev := start
	return func() (time.Time, bool) {
		at, ok := next()
		if !ok {
			return at, false
		}
		if !at.After(prev) {
			stalled = true
			return at, false
		}
		prev = at
		return at, true
	}, &stalled
}

// ROption describes the record's recurrence with the engine's arithmetic.
func (e *Engine) ROption(record EventRecord) (rrule.ROption, bool) {
	if !record.IsRecurring {
		return rrule.ROption{}, false
	}
	opt, err := e.stepper.ROption(record.Start, record.Rule)
	if err != nil {
		e.warn(record, err)
		return rrule.ROption{}, false
	}
	return opt, true
}

func (e *Engine) warn(record EventRecord, err error) {
	e.logger.Warn("skipping malformed recurrence rule",
		"record_id", record.ID,
		"frequency", record.Rule.Frequency.String(),
		"interval", record.Rule.Interval,
		"end", record.Rule.End.Kind().String(),
		"error", err,
	)
}

func expandNever(record EventRecord, next Sequence, windowStart, windowEnd time.Time) []Occurrence {
	var out []Occurrence
	for seq := 1; ; seq++ {
		at, ok := next()
		if !ok || at.After(windowEnd) {
			return out
		}
		if !at.Before(windowStart) {
			out = append(out, record.occurrenceAt(at, seq))
		}
	}
}

func expandUntil(record EventRecord, next Sequence, limit, windowStart, windowEnd time.Time) []Occurrence {
	var out []Occurrence
	for seq := 1; ; seq++ {
		at, ok := next()
		if !ok || at.After(limit) || at.After(windowEnd) {
			return out
		}
		if !at.Before(windowStart) {
			out = append(out, record.occurrenceAt(at, seq))
		}
	}
}

func expandCount(record EventRecord, next Sequence, count int, windowStart, windowEnd time.Time) []Occurrence {
	var out []Occurrence
	for seq := 1; seq <= count; seq++ {
		at, ok := next()
		if !ok || at.After(windowEnd) {
			break
		}
		if !at.Before(windowStart) {
			out = append(out, record.occurrenceAt(at, seq))
		}
	}
	return out
}
