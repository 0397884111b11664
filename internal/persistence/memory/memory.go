package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/followup/internal/persistence"
)

type eventKey struct {
	start float64
	end   float64
}

// Storage is an in-memory persistence.EventRepository.
type Storage struct {
	mu     sync.RWMutex
	events map[string]persistence.EventRow
	keys   map[eventKey]string
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{
		events: make(map[string]persistence.EventRow),
		keys:   make(map[eventKey]string),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Insert stores a new event row.
func (s *Storage) Insert(ctx context.Context, row persistence.EventRow) error {
	if row.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[row.ID]; ok {
		return persistence.ErrDuplicate
	}
	key := eventKey{start: row.Start, end: row.End}
	if _, ok := s.keys[key]; ok {
		return persistence.ErrDuplicate
	}

	s.events[row.ID] = cloneRow(row)
	s.keys[key] = row.ID
	return nil
}

// Get retrieves an event row by ID.
func (s *Storage) Get(ctx context.Context, id string) (persistence.EventRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.events[id]
	if !ok {
		return persistence.EventRow{}, persistence.ErrNotFound
	}
	return cloneRow(row), nil
}

// FindByRange returns rows whose start lies in [min, max].
func (s *Storage) FindByRange(ctx context.Context, min, max float64) ([]persistence.EventRow, error) {
	return s.collect(func(row persistence.EventRow) bool {
		return row.Start >= min && row.Start <= max
	}), nil
}

// FindAllRecurring returns every recurring row.
func (s *Storage) FindAllRecurring(ctx context.Context) ([]persistence.EventRow, error) {
	return s.collect(func(row persistence.EventRow) bool {
		return row.IsRecurring
	}), nil
}

// ListAll returns every row ordered by start then ID.
func (s *Storage) ListAll(ctx context.Context) ([]persistence.EventRow, error) {
	return s.collect(func(persistence.EventRow) bool { return true }), nil
}

// Update replaces the row with the same ID.
func (s *Storage) Update(ctx context.Context, row persistence.EventRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[row.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	return s.replaceLocked(existing, row)
}

// UpdateByKey replaces the row stored under the legacy (start, end) key.
func (s *Storage) UpdateByKey(ctx context.Context, oldStart, oldEnd float64, row persistence.EventRow) (persistence.EventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keys[eventKey{start: oldStart, end: oldEnd}]
	if !ok {
		return persistence.EventRow{}, persistence.ErrNotFound
	}
	existing := s.events[id]
	row.ID = existing.ID
	if err := s.replaceLocked(existing, row); err != nil {
		return persistence.EventRow{}, err
	}
	return cloneRow(s.events[id]), nil
}

// Delete removes the row with the given ID.
func (s *Storage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.events[id]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, id)
	delete(s.keys, eventKey{start: row.Start, end: row.End})
	return nil
}

// DeleteByKey removes the row stored under the legacy (start, end) key.
func (s *Storage) DeleteByKey(ctx context.Context, start, end float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{start: start, end: end}
	id, ok := s.keys[key]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, id)
	delete(s.keys, key)
	return nil
}

func (s *Storage) replaceLocked(existing, row persistence.EventRow) error {
	oldKey := eventKey{start: existing.Start, end: existing.End}
	newKey := eventKey{start: row.Start, end: row.End}
	if owner, ok := s.keys[newKey]; ok && owner != existing.ID {
		return persistence.ErrDuplicate
	}

	row.CreatedAt = existing.CreatedAt
	delete(s.keys, oldKey)
	s.keys[newKey] = existing.ID
	s.events[existing.ID] = cloneRow(row)
	return nil
}

func (s *Storage) collect(match func(persistence.EventRow) bool) []persistence.EventRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]persistence.EventRow, 0)
	for _, row := range s.events {
		if match(row) {
			rows = append(rows, cloneRow(row))
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Start == rows[j].Start {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].Start < rows[j].Start
	})
	return rows
}

func cloneRow(row persistence.EventRow) persistence.EventRow {
	if row.Reminders != nil {
		row.Reminders = append([]int(nil), row.Reminders...)
	}
	return row
}
