package sqlstore

import (
	"context"
	"log/slog"
)

// Store is a migrated SQL event store.
type Store struct {
	*EventRepository
	pool *ConnectionPool
}

// Open connects to the database, applies migrations and returns the store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		EventRepository: NewEventRepository(pool, cfg.Retry),
		pool:            pool,
	}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
