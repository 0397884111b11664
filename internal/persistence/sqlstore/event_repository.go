package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/samber/mo"

	"github.com/example/followup/internal/persistence"
)

const eventsTable = "events"

var eventColumns = []string{
	"id",
	"name",
	"description",
	"start_ts",
	"end_ts",
	"is_recurring",
	"is_alerting",
	"recurrence_frequency_index",
	"reminders",
	"recurrence_interval",
	"recurrence_end_mode",
	"recurrence_end_date",
	"recurrence_end_count",
	"created_at",
	"updated_at",
}

// EventRepository implements persistence.EventRepository on database/sql.
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	sb     squirrel.StatementBuilderType
	now    func() time.Time
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates a repository bound to the pool's dialect.
func NewEventRepository(pool *ConnectionPool, retry RetryConfig) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(retry),
		sb:     pool.dialect.builder(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores a new event row.
func (r *EventRepository) Insert(ctx context.Context, row persistence.EventRow) error {
	if row.ID == "" {
		return persistence.ErrConstraintViolation
	}

	if row.CreatedAt.IsZero() {
		row.CreatedAt = r.now()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}

	values, err := rowValues(row)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Insert(eventsTable).Columns(eventColumns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := r.helper.ExecTx(ctx, tx, query, args...); err != nil {
				return r.mapper.MapError(err)
			}
			return nil
		})
	})
}

// Get retrieves an event row by ID.
func (r *EventRepository) Get(ctx context.Context, id string) (persistence.EventRow, error) {
	if id == "" {
		return persistence.EventRow{}, persistence.ErrNotFound
	}

	query, args, err := r.selectEvents().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return persistence.EventRow{}, fmt.Errorf("build select: %w", err)
	}

	row, err := scanEvent(r.helper.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.EventRow{}, r.mapper.MapError(err)
	}
	return row, nil
}

// FindByRange returns rows whose start lies in [min, max].
func (r *EventRepository) FindByRange(ctx context.Context, min, max float64) ([]persistence.EventRow, error) {
	return r.list(ctx, r.selectEvents().Where(squirrel.And{
		squirrel.GtOrEq{"start_ts": min},
		squirrel.LtOrEq{"start_ts": max},
	}))
}

// FindAllRecurring returns every recurring row.
func (r *EventRepository) FindAllRecurring(ctx context.Context) ([]persistence.EventRow, error) {
	return r.list(ctx, r.selectEvents().Where(squirrel.Eq{"is_recurring": true}))
}

// ListAll returns every row ordered by start then ID.
func (r *EventRepository) ListAll(ctx context.Context) ([]persistence.EventRow, error) {
	return r.list(ctx, r.selectEvents())
}

// Update replaces the row with the same ID. The creation time is preserved.
func (r *EventRepository) Update(ctx context.Context, row persistence.EventRow) error {
	if row.ID == "" {
		return persistence.ErrNotFound
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = r.now()
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return r.updateTx(ctx, tx, row)
		})
	})
}

// UpdateByKey replaces the row stored under the legacy (start, end) key.
func (r *EventRepository) UpdateByKey(ctx context.Context, oldStart, oldEnd float64, row persistence.EventRow) (persistence.EventRow, error) {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = r.now()
	}

	var stored persistence.EventRow
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			query, args, err := r.sb.Select("id").From(eventsTable).
				Where(squirrel.Eq{"start_ts": oldStart, "end_ts": oldEnd}).ToSql()
			if err != nil {
				return fmt.Errorf("build select: %w", err)
			}

			var id string
			if err := r.helper.QueryRowTx(ctx, tx, query, args...).Scan(&id); err != nil {
				return r.mapper.MapError(err)
			}

			row.ID = id
			if err := r.updateTx(ctx, tx, row); err != nil {
				return err
			}

			query, args, err = r.selectEvents().Where(squirrel.Eq{"id": id}).ToSql()
			if err != nil {
				return fmt.Errorf("build select: %w", err)
			}
			stored, err = scanEvent(r.helper.QueryRowTx(ctx, tx, query, args...))
			return r.mapper.MapError(err)
		})
	})
	if err != nil {
		return persistence.EventRow{}, err
	}
	return stored, nil
}

// Delete removes the row with the given ID.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, squirrel.Eq{"id": id})
}

// DeleteByKey removes the row stored under the legacy (start, end) key.
func (r *EventRepository) DeleteByKey(ctx context.Context, start, end float64) error {
	return r.delete(ctx, squirrel.Eq{"start_ts": start, "end_ts": end})
}

func (r *EventRepository) delete(ctx context.Context, where squirrel.Sqlizer) error {
	query, args, err := r.sb.Delete(eventsTable).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, query, args...)
			if err != nil {
				return r.mapper.MapError(err)
			}
			return requireAffected(result)
		})
	})
}

func (r *EventRepository) updateTx(ctx context.Context, tx *sql.Tx, row persistence.EventRow) error {
	reminders, err := encodeReminders(row.Reminders)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Update(eventsTable).SetMap(map[string]interface{}{
		"name":                       row.Name,
		"description":                row.Description,
		"start_ts":                   row.Start,
		"end_ts":                     row.End,
		"is_recurring":               row.IsRecurring,
		"is_alerting":                row.IsAlerting,
		"recurrence_frequency_index": row.FrequencyIndex,
		"reminders":                  reminders,
		"recurrence_interval":        row.Interval,
		"recurrence_end_mode":        row.EndMode,
		"recurrence_end_date":        nullFloat(row.EndDate),
		"recurrence_end_count":       nullInt(row.EndCount),
		"updated_at":                 formatTimestamp(row.UpdatedAt),
	}).Where(squirrel.Eq{"id": row.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.helper.ExecTx(ctx, tx, query, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *EventRepository) selectEvents() squirrel.SelectBuilder {
	return r.sb.Select(eventColumns...).From(eventsTable).OrderBy("start_ts", "id")
}

func (r *EventRepository) list(ctx context.Context, builder squirrel.SelectBuilder) ([]persistence.EventRow, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	events := make([]persistence.EventRow, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(scanner rowScanner) (persistence.EventRow, error) {
	var (
		row       persistence.EventRow
		reminders string
		endDate   sql.NullFloat64
		endCount  sql.NullInt64
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&row.ID,
		&row.Name,
		&row.Description,
		&row.Start,
		&row.End,
		&row.IsRecurring,
		&row.IsAlerting,
		&row.FrequencyIndex,
		&reminders,
		&row.Interval,
		&row.EndMode,
		&endDate,
		&endCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.EventRow{}, err
	}

	if row.Reminders, err = decodeReminders(reminders); err != nil {
		return persistence.EventRow{}, fmt.Errorf("decode reminders for %s: %w", row.ID, err)
	}
	if endDate.Valid {
		row.EndDate = mo.Some(endDate.Float64)
	}
	if endCount.Valid {
		row.EndCount = mo.Some(endCount.Int64)
	}
	row.CreatedAt = parseTimestamp(createdAt)
	row.UpdatedAt = parseTimestamp(updatedAt)
	return row, nil
}

func rowValues(row persistence.EventRow) ([]interface{}, error) {
	reminders, err := encodeReminders(row.Reminders)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		row.ID,
		row.Name,
		row.Description,
		row.Start,
		row.End,
		row.IsRecurring,
		row.IsAlerting,
		row.FrequencyIndex,
		reminders,
		row.Interval,
		row.EndMode,
		nullFloat(row.EndDate),
		nullInt(row.EndCount),
		formatTimestamp(row.CreatedAt),
		formatTimestamp(row.UpdatedAt),
	}, nil
}

func encodeReminders(reminders []int) (string, error) {
	if len(reminders) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(reminders)
	if err != nil {
		return "", fmt.Errorf("encode reminders: %w", err)
	}
	return string(data), nil
}

func decodeReminders(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var reminders []int
	if err := json.Unmarshal([]byte(raw), &reminders); err != nil {
		return nil, err
	}
	if len(reminders) == 0 {
		return nil, nil
	}
	return reminders, nil
}

func nullFloat(value mo.Option[float64]) sql.NullFloat64 {
	v, ok := value.Get()
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func nullInt(value mo.Option[int64]) sql.NullInt64 {
	v, ok := value.Get()
	return sql.NullInt64{Int64: v, Valid: ok}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
