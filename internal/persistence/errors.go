// Package persistence defines the event store contract shared by the SQL and
// in-memory backends. Rows keep the stored layout: instants as epoch seconds,
// nullable recurrence end columns as options.
package persistence

import "errors"

// Sentinels returned by every EventRepository implementation. Backends wrap
// driver errors so that callers can match them with errors.Is.
var (
	// ErrNotFound means no row has the requested ID or (start, end) key.
	ErrNotFound = errors.New("persistence: event not found")
	// ErrDuplicate means another row already holds the ID or (start, end) key.
	ErrDuplicate = errors.New("persistence: duplicate event")
	// ErrConstraintViolation means a row broke a column or check constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
