package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/export"
	httptransport "github.com/example/campus-booking/internal/http"
	"github.com/example/campus-booking/internal/persistence"
)

// snapshotStore adapts the snapshot repository to application.StateStore and
// prunes old snapshots after every save.
type snapshotStore struct {
	repo      persistence.SnapshotRepository
	retention int
}

var _ application.StateStore = (*snapshotStore)(nil)

func newSnapshotStore(repo persistence.SnapshotRepository, retention int) *snapshotStore {
	return &snapshotStore{repo: repo, retention: retention}
}

func (s *snapshotStore) SaveState(ctx context.Context, state application.State) error {
	_, _, err := s.save(ctx, state)
	return err
}

func (s *snapshotStore) save(ctx context.Context, state application.State) (persistence.Snapshot, int, error) {
	saved, err := s.repo.SaveSnapshot(ctx, toSnapshot(state))
	if err != nil {
		return persistence.Snapshot{}, 0, err
	}
	pruned, err := s.repo.PruneSnapshots(ctx, s.retention)
	if err != nil {
		return saved, 0, err
	}
	return saved, pruned, nil
}

func (s *snapshotStore) LoadState(ctx context.Context) (application.State, error) {
	snapshot, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.State{}, fmt.Errorf("%w: no snapshot saved yet", application.ErrNotFound)
		}
		return application.State{}, err
	}
	return toState(snapshot)
}

type directorySnapshotter struct {
	directory *application.Directory
	store     *snapshotStore
}

func (s directorySnapshotter) Snapshot(ctx context.Context) (httptransport.SnapshotResult, error) {
	saved, pruned, err := s.store.save(ctx, s.directory.State())
	if err != nil {
		return httptransport.SnapshotResult{}, err
	}
	return httptransport.SnapshotResult{
		ID:      saved.ID,
		SavedAt: saved.SavedAt,
		Digest:  saved.Digest,
		Pruned:  pruned,
	}, nil
}

type directoryExporter struct {
	directory *application.Directory
	dir       string
	now       func() time.Time
}

func (e directoryExporter) Export(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return export.WriteAll(e.dir, e.directory, e.now())
}

func toSnapshot(state application.State) persistence.Snapshot {
	snapshot := persistence.Snapshot{
		Users:        make([]persistence.User, 0, len(state.Users)),
		Resources:    make([]persistence.Resource, 0, len(state.Resources)),
		Reservations: make([]persistence.Reservation, 0, len(state.Reservations)),
	}
	for _, u := range state.Users {
		snapshot.Users = append(snapshot.Users, persistence.User{
			ID:        u.ID,
			Username:  u.Username,
			Role:      string(u.Role),
			CreatedAt: u.CreatedAt,
		})
	}
	for _, res := range state.Resources {
		snapshot.Resources = append(snapshot.Resources, toPersistenceResource(res))
	}
	for _, r := range state.Reservations {
		model := persistence.Reservation{
			ID:         r.ID,
			ResourceID: r.ResourceID,
			Username:   r.Username,
			Day:        r.Day,
			Slot:       r.Slot,
			Active:     r.Active,
			CreatedAt:  r.CreatedAt,
		}
		if !r.CancelledAt.IsZero() {
			cancelled := r.CancelledAt
			model.CancelledAt = &cancelled
		}
		snapshot.Reservations = append(snapshot.Reservations, model)
	}
	return snapshot
}

func toPersistenceResource(res application.Resource) persistence.Resource {
	model := persistence.Resource{ID: res.ResourceID(), Name: res.DisplayName()}
	switch v := res.(type) {
	case application.Room:
		model.Kind = persistence.KindRoom
		model.Capacity = v.Capacity
	case application.Equipment:
		model.Kind = persistence.KindEquipment
		model.Category = v.Category
	}
	return model
}

func toState(snapshot persistence.Snapshot) (application.State, error) {
	state := application.State{
		Users:        make([]application.User, 0, len(snapshot.Users)),
		Resources:    make([]application.Resource, 0, len(snapshot.Resources)),
		Reservations: make([]application.Reservation, 0, len(snapshot.Reservations)),
	}
	for _, u := range snapshot.Users {
		state.Users = append(state.Users, application.User{
			ID:        u.ID,
			Username:  u.Username,
			Role:      application.Role(u.Role),
			CreatedAt: u.CreatedAt,
		})
	}
	for _, model := range snapshot.Resources {
		res, err := toApplicationResource(model)
		if err != nil {
			return application.State{}, fmt.Errorf("snapshot %s: %w", snapshot.ID, err)
		}
		state.Resources = append(state.Resources, res)
	}
	for _, r := range snapshot.Reservations {
		reservation := application.Reservation{
			ID:         r.ID,
			ResourceID: r.ResourceID,
			Username:   r.Username,
			Day:        r.Day,
			Slot:       r.Slot,
			Active:     r.Active,
			CreatedAt:  r.CreatedAt,
		}
		if r.CancelledAt != nil {
			reservation.CancelledAt = *r.CancelledAt
		}
		state.Reservations = append(state.Reservations, reservation)
	}
	return state, nil
}

func toApplicationResource(model persistence.Resource) (application.Resource, error) {
	switch model.Kind {
	case persistence.KindRoom:
		return application.Room{ID: model.ID, Name: model.Name, Capacity: model.Capacity}, nil
	case persistence.KindEquipment:
		return application.Equipment{ID: model.ID, Name: model.Name, Category: model.Category}, nil
	}
	return nil, fmt.Errorf("resource %q has unknown kind %q", model.ID, model.Kind)
}
