// Package sqlite stores directory snapshots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/campus-booking/internal/persistence"
)

// Store implements persistence.SnapshotRepository on SQLite.
type Store struct {
	pool  *ConnectionPool
	retry RetryConfig
	newID func() string
	now   func() time.Time
}

var _ persistence.SnapshotRepository = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator overrides the snapshot id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the time source used for save times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetryConfig overrides the busy retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// Open connects to the database described by dsn using DefaultConfig.
func Open(dsn string, opts ...Option) (*Store, error) {
	return OpenWithConfig(DefaultConfig(dsn), opts...)
}

// OpenWithConfig connects using an explicit configuration.
func OpenWithConfig(cfg Config, opts ...Option) (*Store, error) {
	pool, err := NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}
	store := &Store{
		pool:  pool,
		retry: DefaultRetryConfig(),
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Migrate brings the schema up to date and returns the versions it applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return migrate(ctx, s.pool)
}

// SaveSnapshot stores snapshot as the newest snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot persistence.Snapshot) (persistence.Snapshot, error) {
	if snapshot.ID == "" {
		snapshot.ID = s.newID()
	}
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = s.now()
	}
	snapshot.SavedAt = snapshot.SavedAt.UTC()
	snapshot.Digest = persistence.ComputeDigest(snapshot)

	err := withRetry(ctx, s.retry, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return insertSnapshot(ctx, tx, snapshot)
		})
	})
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("sqlite: save snapshot %s: %w", snapshot.ID, err)
	}
	return snapshot, nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, snapshot persistence.Snapshot) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, saved_at, digest) VALUES (?, ?, ?)`,
		snapshot.ID, formatTime(snapshot.SavedAt), snapshot.Digest,
	)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, u := range snapshot.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_users (snapshot_seq, position, user_id, username, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			seq, i, u.ID, u.Username, u.Role, formatTime(u.CreatedAt),
		); err != nil {
			return fmt.Errorf("user %q: %w", u.Username, err)
		}
	}

	for i, r := range snapshot.Resources {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_resources (snapshot_seq, position, resource_id, name, kind, capacity, category) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			seq, i, r.ID, r.Name, r.Kind, r.Capacity, r.Category,
		); err != nil {
			return fmt.Errorf("resource %q: %w", r.ID, err)
		}
	}

	for i, r := range snapshot.Reservations {
		var cancelledAt sql.NullString
		if r.CancelledAt != nil {
			cancelledAt = sql.NullString{String: formatTime(*r.CancelledAt), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_reservations (snapshot_seq, position, reservation_id, resource_id, username, day, slot, active, created_at, cancelled_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seq, i, r.ID, r.ResourceID, r.Username, r.Day, r.Slot, boolToInt(r.Active), formatTime(r.CreatedAt), cancelledAt,
		); err != nil {
			return fmt.Errorf("reservation %q: %w", r.ID, err)
		}
	}
	return nil
}

// LatestSnapshot loads the newest snapshot and verifies its digest.
func (s *Store) LatestSnapshot(ctx context.Context) (persistence.Snapshot, error) {
	var snapshot persistence.Snapshot
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var (
			seq     int64
			savedAt string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT seq, id, saved_at, digest FROM snapshots ORDER BY seq DESC LIMIT 1`,
		).Scan(&seq, &snapshot.ID, &savedAt, &snapshot.Digest)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return err
		}
		if snapshot.SavedAt, err = parseTime(savedAt); err != nil {
			return err
		}

		if snapshot.Users, err = loadUsers(ctx, tx, seq); err != nil {
			return err
		}
		if snapshot.Resources, err = loadResources(ctx, tx, seq); err != nil {
			return err
		}
		snapshot.Reservations, err = loadReservations(ctx, tx, seq)
		return err
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Snapshot{}, err
		}
		return persistence.Snapshot{}, fmt.Errorf("sqlite: load latest snapshot: %w", err)
	}

	if err := persistence.VerifyDigest(snapshot); err != nil {
		return persistence.Snapshot{}, err
	}
	return snapshot, nil
}

func loadUsers(ctx context.Context, tx *sql.Tx, seq int64) ([]persistence.User, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id, username, role, created_at FROM snapshot_users WHERE snapshot_seq = ? ORDER BY position`, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.User
	for rows.Next() {
		var (
			u       persistence.User
			created string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &created); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func loadResources(ctx context.Context, tx *sql.Tx, seq int64) ([]persistence.Resource, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT resource_id, name, kind, capacity, category FROM snapshot_resources WHERE snapshot_seq = ? ORDER BY position`, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.Resource
	for rows.Next() {
		var r persistence.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.Capacity, &r.Category); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadReservations(ctx context.Context, tx *sql.Tx, seq int64) ([]persistence.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT reservation_id, resource_id, username, day, slot, active, created_at, cancelled_at
		 FROM snapshot_reservations WHERE snapshot_seq = ? ORDER BY position`, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.Reservation
	for rows.Next() {
		var (
			r         persistence.Reservation
			active    int
			created   string
			cancelled sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ResourceID, &r.Username, &r.Day, &r.Slot, &active, &created, &cancelled); err != nil {
			return nil, err
		}
		r.Active = active != 0
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if cancelled.Valid {
			at, err := parseTime(cancelled.String)
			if err != nil {
				return nil, err
			}
			r.CancelledAt = &at
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSnapshots returns summaries of every stored snapshot, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]persistence.SnapshotInfo, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT s.id, s.saved_at, s.digest,
			(SELECT COUNT(*) FROM snapshot_users u WHERE u.snapshot_seq = s.seq),
			(SELECT COUNT(*) FROM snapshot_resources r WHERE r.snapshot_seq = s.seq),
			(SELECT COUNT(*) FROM snapshot_reservations v WHERE v.snapshot_seq = s.seq)
		FROM snapshots s
		ORDER BY s.seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []persistence.SnapshotInfo
	for rows.Next() {
		var (
			info    persistence.SnapshotInfo
			savedAt string
		)
		if err := rows.Scan(&info.ID, &savedAt, &info.Digest, &info.Users, &info.Resources, &info.Reservations); err != nil {
			return nil, fmt.Errorf("sqlite: list snapshots: %w", err)
		}
		if info.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the newest keep snapshots and deletes the rest.
func (s *Store) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	var removed int
	err := withRetry(ctx, s.retry, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			const cutoff = `SELECT seq FROM snapshots ORDER BY seq DESC LIMIT -1 OFFSET ?`
			for _, table := range []string{"snapshot_users", "snapshot_resources", "snapshot_reservations"} {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE snapshot_seq IN (`+cutoff+`)`, keep); err != nil {
					return err
				}
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE seq IN (`+cutoff+`)`, keep)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed = int(n)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune snapshots: %w", err)
	}
	return removed, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(persistence.TimeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(persistence.TimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
