package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "campus.db")
	store, err := OpenWithConfig(TempFileTestConfig(path), opts...)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("snap-%d", n)
	}
}

func sampleSnapshot(base time.Time) persistence.Snapshot {
	cancelled := base.Add(90 * time.Minute)
	return persistence.Snapshot{
		Users: []persistence.User{
			{ID: "USER-1001", Username: "admin", Role: persistence.RoleAdministrator, CreatedAt: base},
			{ID: "USER-1002", Username: "alex", Role: persistence.RoleStudent, CreatedAt: base.Add(time.Minute)},
		},
		Resources: []persistence.Resource{
			{ID: "SR101", Name: "Computer Lab", Kind: persistence.KindRoom, Capacity: 20},
			{ID: "LE201", Name: "Microscopes", Kind: persistence.KindEquipment, Category: "Biology"},
		},
		Reservations: []persistence.Reservation{
			{ID: "RES-1", ResourceID: "SR101", Username: "alex", Day: 1, Slot: 2, CreatedAt: base, CancelledAt: &cancelled},
			{ID: "RES-2", ResourceID: "SR101", Username: "alex", Day: 1, Slot: 2, Active: true, CreatedAt: base.Add(2 * time.Hour)},
		},
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	applied, err := store.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no pending migrations, got %v", applied)
	}
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(migrations) < 2 || migrations[0].Version != "001" || migrations[1].Version != "002" {
		t.Fatalf("unexpected migrations %+v", migrations)
	}
	if migrations[0].Description != "create snapshots" || len(migrations[0].Checksum) != 64 {
		t.Fatalf("unexpected migration metadata %+v", migrations[0])
	}
	if got := splitStatements(migrations[0].SQL); len(got) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(got))
	}
}

func TestStore_LatestSnapshotEmpty(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.LatestSnapshot(context.Background()); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.January, 2, 15, 4, 5, 123456789, time.UTC)
	store := newTestStore(t, WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return base }))

	first, err := store.SaveSnapshot(ctx, persistence.Snapshot{})
	if err != nil {
		t.Fatalf("SaveSnapshot (empty): %v", err)
	}
	if first.ID != "snap-1" || !first.SavedAt.Equal(base) || first.Digest == "" {
		t.Fatalf("unexpected saved metadata %+v", first)
	}

	saved, err := store.SaveSnapshot(ctx, sampleSnapshot(base))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if loaded.ID != "snap-2" {
		t.Fatalf("expected newest snapshot, got %s", loaded.ID)
	}
	if !reflect.DeepEqual(loaded, saved) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", loaded, saved)
	}
}

func TestStore_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.SaveSnapshot(ctx, sampleSnapshot(time.Now().UTC())); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := store.pool.DB().ExecContext(ctx, `UPDATE snapshot_resources SET capacity = 999 WHERE resource_id = 'SR101'`); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, err := store.LatestSnapshot(ctx); !errors.Is(err, persistence.ErrCorruptSnapshot) {
		t.Fatalf("expected corrupt snapshot, got %v", err)
	}
}

func TestStore_ListAndPrune(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	store := newTestStore(t, WithIDGenerator(sequentialIDs()))

	for i := 0; i < 4; i++ {
		snap := sampleSnapshot(base)
		snap.SavedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}

	removed, err := store.PruneSnapshots(ctx, 0)
	if err != nil || removed != 0 {
		t.Fatalf("expected keep=0 to disable pruning, got %d %v", removed, err)
	}

	removed, err = store.PruneSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	infos, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != "snap-4" || infos[1].ID != "snap-3" {
		t.Fatalf("unexpected snapshots after prune %+v", infos)
	}
	if infos[0].Users != 2 || infos[0].Resources != 2 || infos[0].Reservations != 2 {
		t.Fatalf("unexpected counts %+v", infos[0])
	}

	var orphans int
	if err := store.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_reservations WHERE snapshot_seq NOT IN (SELECT seq FROM snapshots)`).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected pruned rows to be removed, found %d", orphans)
	}
}

func TestWithRetry(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}

	t.Run("retries busy errors", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("expected success on third attempt, got %v after %d calls", err, calls)
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		want := errors.New("UNIQUE constraint failed")
		err := withRetry(context.Background(), cfg, func() error {
			calls++
			return want
		})
		if !errors.Is(err, want) || calls != 1 {
			t.Fatalf("expected single attempt, got %v after %d calls", err, calls)
		}
	})
}

func TestStore_RetryConfigOption(t *testing.T) {
	if got := newTestStore(t).retry; got != DefaultRetryConfig() {
		t.Fatalf("expected default retry policy, got %+v", got)
	}

	fast := RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	store := newTestStore(t, WithRetryConfig(fast))
	if store.retry != fast {
		t.Fatalf("expected retry policy %+v, got %+v", fast, store.retry)
	}
	if _, err := store.SaveSnapshot(context.Background(), persistence.Snapshot{}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
}

func TestConfig_DriverDSN(t *testing.T) {
	cfg := DefaultConfig("file:campus.db?cache=shared")
	dsn := cfg.driverDSN()
	want := "file:campus.db?cache=shared&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	if dsn != want {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if got := cfg.filePath(); got != "campus.db" {
		t.Fatalf("unexpected file path %q", got)
	}
	if err := (Config{DSN: "x.db", JournalMode: "bogus"}).validate(); err == nil {
		t.Fatalf("expected invalid journal mode to be rejected")
	}
}
