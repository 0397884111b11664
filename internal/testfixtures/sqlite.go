package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/followup/internal/persistence/sqlstore"
)

// NewSQLiteStore opens a migrated SQLite event store in a temporary directory.
// The store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "followup.db")
	store, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Dialect: sqlstore.DialectSQLite,
		DSN:     "file:" + path,
	}, nil)
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}

	tb.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
