package persistence

import "context"

// EventRepository stores event definitions and answers the range and recurring
// scans used by calendar queries.
type EventRepository interface {
	// Insert stores a new row. A row whose ID or (start, end) pair already
	// exists is rejected with ErrDuplicate.
	Insert(ctx context.Context, row EventRow) error
	Get(ctx context.Context, id string) (EventRow, error)
	// FindByRange returns rows whose start lies in [min, max].
	FindByRange(ctx context.Context, min, max float64) ([]EventRow, error)
	FindAllRecurring(ctx context.Context) ([]EventRow, error)
	Update(ctx context.Context, row EventRow) error
	// UpdateByKey replaces the row identified by its legacy (start, end) key and
	// returns it as stored. The existing ID and creation time are kept.
	UpdateByKey(ctx context.Context, oldStart, oldEnd float64, row EventRow) (EventRow, error)
	Delete(ctx context.Context, id string) error
	DeleteByKey(ctx context.Context, start, end float64) error
	ListAll(ctx context.Context) ([]EventRow, error)
}
