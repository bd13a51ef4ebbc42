package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/campus-booking/internal/scheduler"
)

// State is a detached copy of every entity held by a Directory. Grids are not
// part of it; they are rebuilt from the active reservations on restore.
type State struct {
	Users        []User
	Resources    []Resource
	Reservations []Reservation
}

// StateStore persists and retrieves a complete directory state. LoadState
// returns ErrNotFound when nothing has been saved yet.
type StateStore interface {
	SaveState(ctx context.Context, state State) error
	LoadState(ctx context.Context) (State, error)
}

// State returns a copy of the directory contents in insertion order.
func (d *Directory) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state := State{
		Users:        make([]User, 0, len(d.userOrder)),
		Resources:    make([]Resource, 0, len(d.resourceOrder)),
		Reservations: make([]Reservation, len(d.reservations)),
	}
	for _, name := range d.userOrder {
		state.Users = append(state.Users, d.users[name])
	}
	for _, id := range d.resourceOrder {
		state.Resources = append(state.Resources, d.resources[id])
	}
	copy(state.Reservations, d.reservations)
	return state
}

// Restore replaces the directory contents with state. The state is checked
// before anything is replaced: keys and user ids must be present and unique,
// every reservation must belong to a restored user, active reservations must
// reference a restored resource, and no cell may be booked twice. On error
// the directory is left as it was. Both identifier sequences are reseeded from
// the restored ids.
func (d *Directory) Restore(ctx context.Context, state State) (err error) {
	if d == nil {
		return fmt.Errorf("Directory is nil")
	}

	logger := d.loggerWith(ctx, "Restore",
		"users", len(state.Users),
		"resources", len(state.Resources),
		"reservations", len(state.Reservations),
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to restore directory", "directory restored")
	}()

	users := make(map[string]User, len(state.Users))
	userOrder := make([]string, 0, len(state.Users))
	userIDs := make([]string, 0, len(state.Users))
	seenIDs := make(map[string]struct{}, len(state.Users))
	for i, user := range state.Users {
		name := strings.TrimSpace(user.Username)
		if name == "" {
			return fmt.Errorf("%w: user %d has no username", ErrInvalidInput, i)
		}
		if vErr := validateText("username", name); vErr != nil {
			return fmt.Errorf("user %d: %w", i, vErr)
		}
		id := strings.TrimSpace(user.ID)
		if id == "" {
			return fmt.Errorf("%w: user %q has no id", ErrInvalidInput, name)
		}
		if _, dup := seenIDs[id]; dup {
			return fmt.Errorf("%w: user id %q appears twice", ErrDuplicateIdentity, id)
		}
		seenIDs[id] = struct{}{}
		if !user.Role.valid() {
			return fmt.Errorf("%w: user %q has unknown role %q", ErrInvalidInput, name, user.Role)
		}
		if _, dup := users[name]; dup {
			return fmt.Errorf("%w: username %q appears twice", ErrDuplicateIdentity, name)
		}
		user.Username = name
		user.ID = id
		users[name] = user
		userOrder = append(userOrder, name)
		userIDs = append(userIDs, id)
	}

	resources := make(map[string]Resource, len(state.Resources))
	resourceOrder := make([]string, 0, len(state.Resources))
	grids := make(map[string]*scheduler.Grid, len(state.Resources))
	for i, res := range state.Resources {
		normalized := normalizeResource(res)
		if normalized == nil {
			return fmt.Errorf("%w: resource %d has unsupported variant %T", ErrInvalidInput, i, res)
		}
		if vErr := normalized.Validate(); vErr.HasErrors() {
			return fmt.Errorf("resource %q: %w", normalized.ResourceID(), vErr)
		}
		id := normalized.ResourceID()
		if _, dup := resources[id]; dup {
			return fmt.Errorf("%w: resource id %q appears twice", ErrDuplicateIdentity, id)
		}
		resources[id] = normalized
		resourceOrder = append(resourceOrder, id)
		grids[id] = scheduler.NewGrid(id)
	}

	reservations := make([]Reservation, 0, len(state.Reservations))
	index := make(map[string]int, len(state.Reservations))
	reservationIDs := make([]string, 0, len(state.Reservations))
	for _, r := range state.Reservations {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("%w: reservation without id", ErrInvalidInput)
		}
		if _, dup := index[r.ID]; dup {
			return fmt.Errorf("%w: reservation id %q appears twice", ErrDuplicateIdentity, r.ID)
		}
		if !scheduler.ValidPosition(r.Day, r.Slot) {
			return fmt.Errorf("%w: reservation %s at day %d slot %d", ErrInvalidTimeSlot, r.ID, r.Day, r.Slot)
		}
		if _, ok := users[r.Username]; !ok {
			return fmt.Errorf("%w: reservation %s is owned by unknown user %q", ErrNotFound, r.ID, r.Username)
		}
		if r.Active {
			grid, ok := grids[r.ResourceID]
			if !ok {
				return fmt.Errorf("%w: active reservation %s references resource %q", ErrNotFound, r.ID, r.ResourceID)
			}
			if gErr := grid.Occupy(r.Day, r.Slot, r.ID); gErr != nil {
				if errors.Is(gErr, scheduler.ErrSlotOccupied) {
					return fmt.Errorf("%w: reservation %s: %v", ErrConflict, r.ID, gErr)
				}
				return gErr
			}
		}
		index[r.ID] = len(reservations)
		reservations = append(reservations, r)
		reservationIDs = append(reservationIDs, r.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.users = users
	d.userOrder = userOrder
	d.resources = resources
	d.resourceOrder = resourceOrder
	d.grids = grids
	d.reservations = reservations
	d.reservationIndex = index
	d.userIDs.Reseed(userIDs)
	d.reservationIDs.Reseed(reservationIDs)
	return nil
}

// SaveTo writes the current state to store.
func (d *Directory) SaveTo(ctx context.Context, store StateStore) error {
	if store == nil {
		return fmt.Errorf("state store not configured")
	}
	return store.SaveState(ctx, d.State())
}

// LoadFrom restores the state held by store. It returns ErrNotFound, leaving
// the directory untouched, when the store is empty.
func (d *Directory) LoadFrom(ctx context.Context, store StateStore) error {
	if store == nil {
		return fmt.Errorf("state store not configured")
	}
	state, err := store.LoadState(ctx)
	if err != nil {
		return err
	}
	return d.Restore(ctx, state)
}

// DefaultAdmin is the administrator account installed by SeedDefaults.
const DefaultAdmin = "admin"

// SeedDefaults installs the demo catalog and accounts into an empty directory.
func (d *Directory) SeedDefaults(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("Directory is nil")
	}

	d.mu.RLock()
	empty := len(d.users) == 0 && len(d.resources) == 0 && len(d.reservations) == 0
	d.mu.RUnlock()
	if !empty {
		return fmt.Errorf("%w: directory already holds data", ErrDuplicateIdentity)
	}

	if _, err := d.AddUser(ctx, DefaultAdmin, true); err != nil {
		return err
	}
	for _, name := range []string{"student1", "student2"} {
		if _, err := d.AddUser(ctx, name, false); err != nil {
			return err
		}
	}

	catalog := []Resource{
		Room{ID: "SR101", Name: "Computer Lab", Capacity: 20},
		Room{ID: "SR102", Name: "Group Study Room", Capacity: 8},
		Room{ID: "SR103", Name: "Presentation Room", Capacity: 12},
		Equipment{ID: "LE201", Name: "Microscopes", Category: "Biology"},
		Equipment{ID: "LE202", Name: "Bunsen Burners", Category: "Chemistry"},
		Equipment{ID: "LE203", Name: "3D Printers", Category: "Engineering"},
	}
	for _, res := range catalog {
		if _, err := d.AddResource(ctx, DefaultAdmin, res); err != nil {
			return err
		}
	}
	return nil
}
