// Package calendar answers "which occurrences fall in this window" by merging
// literal range hits with expanded recurring records and bucketing them by day.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/followup/internal/recurrence"
)

// BucketDuration is the fixed width of one day bucket.
const BucketDuration = 24 * time.Hour

// ErrInvalidQuery is returned for windows that cannot be bucketed.
var ErrInvalidQuery = errors.New("calendar: invalid query")

// Source supplies stored event records to the engine.
type Source interface {
	// FindByRange returns records whose stored start lies in [start, end].
	FindByRange(ctx context.Context, start, end time.Time) ([]recurrence.EventRecord, error)
	FindAllRecurring(ctx context.Context) ([]recurrence.EventRecord, error)
}

// BucketMode selects how the last bucket treats the window end.
type BucketMode int

const (
	// BucketHalfOpen makes every bucket [lo, hi).
	BucketHalfOpen BucketMode = iota
	// BucketInclusiveEnd makes the last bucket [lo, max(hi, End)].
	BucketInclusiveEnd
)

func (m BucketMode) String() string {
	if m == BucketInclusiveEnd {
		return "inclusive_end"
	}
	return "half_open"
}

// Query describes a bucketed range request.
type Query struct {
	Start time.Time
	End   time.Time
	Days  int
	Mode  BucketMode
}

// DayBuckets maps a zero-based day offset from the window start to the
// occurrences starting in that day. Empty days are absent.
type DayBuckets map[int][]recurrence.Occurrence

// Count returns the number of occurrences across all buckets.
func (b DayBuckets) Count() int {
	total := 0
	for _, occurrences := range b {
		total += len(occurrences)
	}
	return total
}

// Offsets returns the populated day offsets in ascending order.
func (b DayBuckets) Offsets() []int {
	offsets := make([]int, 0, len(b))
	for offset := range b {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}

// Engine fetches, expands, merges and buckets occurrences.
type Engine struct {
	source   Source
	expander *recurrence.Engine
	logger   *slog.Logger
}

// NewEngine wires the range query engine. A nil expander uses the fixed stepper.
func NewEngine(source Source, expander *recurrence.Engine, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if expander == nil {
		expander = recurrence.NewEngine(nil, logger)
	}
	return &Engine{source: source, expander: expander, logger: logger}
}

// Expander exposes the recurrence engine used for expansion.
func (e *Engine) Expander() *recurrence.Engine {
	return e.expander
}

// Occurrences returns every occurrence starting in [start, end], literal and
// expanded, in display order.
func (e *Engine) Occurrences(ctx context.Context, start, end time.Time) ([]recurrence.Occurrence, error) {
	if e == nil || e.source == nil {
		return nil, fmt.Errorf("calendar engine not configured")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidQuery, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	literal, err := e.source.FindByRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("find events in range: %w", err)
	}

	recurring, err := e.source.FindAllRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("find recurring events: %w", err)
	}

	occurrences := make([]recurrence.Occurrence, 0, len(literal))
	for _, record := range literal {
		occurrences = append(occurrences, record.Literal())
	}
	for _, record := range recurring {
		if record.Start.After(end) {
			continue
		}
		occurrences = append(occurrences, e.expander.Expand(record, start, end)...)
	}

	SortOccurrences(occurrences)
	return occurrences, nil
}

// OccurrencesByDay runs the query and buckets the result by day offset.
func (e *Engine) OccurrencesByDay(ctx context.Context, q Query) (DayBuckets, error) {
	if q.Days < 1 {
		return nil, fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidQuery, q.Days)
	}

	occurrences, err := e.Occurrences(ctx, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	buckets := make(DayBuckets)
	dropped := 0
	for _, occ := range occurrences {
		offset, ok := q.bucketFor(occ.Start)
		if !ok {
			dropped++
			continue
		}
		buckets[offset] = append(buckets[offset], occ)
	}

	e.logger.Debug("calendar query bucketed",
		"window_start", q.Start,
		"window_end", q.End,
		"days", q.Days,
		"mode", q.Mode.String(),
		"occurrences", len(occurrences),
		"dropped", dropped,
	)

	return buckets, nil
}

func (q Query) bucketFor(start time.Time) (int, bool) {
	if start.Before(q.Start) {
		return 0, false
	}
	offset := int(start.Sub(q.Start) / BucketDuration)
	if offset < q.Days {
		return offset, true
	}
	// Fixed 24h buckets end an hour short of End in a month where clocks fall
	// back; the last bucket takes everything up to End.
	if q.Mode == BucketInclusiveEnd && !start.After(q.End) {
		return q.Days - 1, true
	}
	return 0, false
}

// SortOccurrences orders by start, then name, record ID and sequence.
func SortOccurrences(occurrences []recurrence.Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.RecordID != b.RecordID {
			return a.RecordID < b.RecordID
		}
		return a.Sequence < b.Sequence
	})
}
