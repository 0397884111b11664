package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/followup/internal/recurrence"
)

// DefaultSchedule runs the dispatcher once a minute.
const DefaultSchedule = "* * * * *"

const sentRetention = 24 * time.Hour

// OccurrenceSource lists occurrences starting in [start, end].
type OccurrenceSource interface {
	Occurrences(ctx context.Context, start, end time.Time) ([]recurrence.Occurrence, error)
}

// Config tunes the dispatcher.
type Config struct {
	Schedule  string
	Location  *time.Location
	Lookback  time.Duration
	MaxOffset time.Duration
}

type sentKey struct {
	recordID string
	start    int64
	offset   int
}

// Dispatcher periodically computes due reminders and hands them to a Notifier.
type Dispatcher struct {
	source   OccurrenceSource
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
	cfg      Config

	mu      sync.Mutex
	lastRun time.Time
	sent    map[sentKey]time.Time
}

// NewDispatcher wires a dispatcher. Zero config values fall back to a
// one-minute schedule, a one-minute lookback and the largest preset offset.
func NewDispatcher(source OccurrenceSource, notifier Notifier, cfg Config, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = time.Minute
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = MaxPreset * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Dispatcher{
		source:   source,
		notifier: notifier,
		now:      now,
		logger:   logger.With("component", "reminder_dispatcher"),
		cfg:      cfg,
		sent:     make(map[sentKey]time.Time),
	}
}

// Run schedules Tick on the configured cron spec until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(d.cfg.Location),
		cron.WithLogger(cronLogger{logger: d.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: d.logger})),
	)

	if _, err := c.AddFunc(d.cfg.Schedule, func() {
		if _, err := d.Tick(ctx); err != nil {
			d.logger.Error("reminder tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reminders %q: %w", d.cfg.Schedule, err)
	}

	d.logger.Info("reminder dispatcher started", "schedule", d.cfg.Schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	d.logger.Info("reminder dispatcher stopped")
	return nil
}

// Tick notifies every reminder whose fire time falls after the previous tick
// and at or before now. It returns the number of reminders delivered.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	from := d.lastRun
	if from.IsZero() || now.Sub(from) > d.cfg.Lookback+d.cfg.MaxOffset {
		from = now.Add(-d.cfg.Lookback)
	}

	occurrences, err := d.source.Occurrences(ctx, from, now.Add(d.cfg.MaxOffset))
	if err != nil {
		return 0, fmt.Errorf("load upcoming occurrences: %w", err)
	}

	delivered := 0
	for _, occ := range occurrences {
		for _, offset := range occ.Reminders {
			fireAt := occ.Start.Add(-time.Duration(offset) * time.Minute)
			if !fireAt.After(from) || fireAt.After(now) {
				continue
			}

			key := sentKey{recordID: occ.RecordID, start: occ.Start.UnixNano(), offset: offset}
			if _, ok := d.sent[key]; ok {
				continue
			}

			reminder := Reminder{
				RecordID:      occ.RecordID,
				Name:          occ.Name,
				Start:         occ.Start,
				End:           occ.End,
				OffsetMinutes: offset,
				FireAt:        fireAt,
			}
			if err := d.notifier.Notify(ctx, reminder); err != nil {
				d.logger.Warn("reminder notification failed",
					"record_id", occ.RecordID,
					"start", occ.Start,
					"offset", offset,
					"error", err,
				)
				continue
			}
			d.sent[key] = occ.Start
			delivered++
		}
	}

	d.prune(now)
	d.lastRun = now
	return delivered, nil
}

func (d *Dispatcher) prune(now time.Time) {
	cutoff := now.Add(-sentRetention)
	for key, start := range d.sent {
		if start.Before(cutoff) {
			delete(d.sent, key)
		}
	}
}
