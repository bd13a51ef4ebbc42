package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/persistence/sqlite"
)

// fastRetry keeps busy retries short so a locked test database fails quickly.
var fastRetry = sqlite.RetryConfig{
	MaxRetries:    2,
	InitialDelay:  5 * time.Millisecond,
	MaxDelay:      20 * time.Millisecond,
	BackoffFactor: 2,
}

// SQLiteHarness provides a migrated snapshot store backed by a temporary file.
type SQLiteHarness struct {
	Store *sqlite.Store
	Path  string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Reopen closes the store and opens the same file again, as a restarted
// process would.
func (h *SQLiteHarness) Reopen(tb testing.TB, opts ...sqlite.Option) *sqlite.Store {
	tb.Helper()

	h.Close()
	store := openStore(tb, h.Path, opts...)
	h.Store = store
	h.cleanup = func() { _ = store.Close() }
	return store
}

// NewSQLiteHarness constructs a SQLiteHarness on a temporary file. Callers may
// invoke Close, but the helper also registers a cleanup with tb.
func NewSQLiteHarness(tb testing.TB, opts ...sqlite.Option) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "campus.db")
	store := openStore(tb, path, opts...)

	harness := &SQLiteHarness{
		Store: store,
		Path:  path,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

func openStore(tb testing.TB, path string, opts ...sqlite.Option) *sqlite.Store {
	tb.Helper()

	opts = append([]sqlite.Option{sqlite.WithRetryConfig(fastRetry)}, opts...)
	store, err := sqlite.OpenWithConfig(sqlite.TempFileTestConfig(path), opts...)
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	if _, err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}
	return store
}
