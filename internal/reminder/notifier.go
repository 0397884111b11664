package reminder

import (
	"context"
	"log/slog"
	"time"
)

// Reminder is one due notification.
type Reminder struct {
	RecordID      string
	Name          string
	Start         time.Time
	End           time.Time
	OffsetMinutes int
	FireAt        time.Time
}

// Notifier delivers due reminders.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

// LogNotifier writes reminders to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier logging through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, reminder Reminder) error {
	n.logger.InfoContext(ctx, "reminder due",
		"record_id", reminder.RecordID,
		"name", reminder.Name,
		"start", reminder.Start,
		"offset", Label(reminder.OffsetMinutes),
		"fire_at", reminder.FireAt,
	)
	return nil
}
