package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/campus-booking/internal/identity"
	"github.com/example/campus-booking/internal/scheduler"
)

// Directory is the campus reservation engine. It owns the resource catalog,
// the user registry, the reservation list, and one weekly grid per resource,
// and keeps them consistent across every mutation.
//
// The reservation list is the single authoritative store of reservation
// records; grids hold reservation ids only.
//
// Every mutation runs under the write lock for its whole read-modify-write
// sequence. Queries share the read lock.
type Directory struct {
	mu sync.RWMutex

	resources     map[string]Resource
	resourceOrder []string
	grids         map[string]*scheduler.Grid

	users     map[string]User
	userOrder []string

	reservations     []Reservation
	reservationIndex map[string]int

	reservationIDs *identity.Sequence
	userIDs        *identity.Sequence

	now    func() time.Time
	logger *slog.Logger
}

// NewDirectory constructs an empty directory.
func NewDirectory(now func() time.Time) *Directory {
	return NewDirectoryWithLogger(now, nil)
}

// NewDirectoryWithLogger constructs an empty directory with a specified logger.
func NewDirectoryWithLogger(now func() time.Time, logger *slog.Logger) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		resources:        make(map[string]Resource),
		grids:            make(map[string]*scheduler.Grid),
		users:            make(map[string]User),
		reservationIndex: make(map[string]int),
		reservationIDs:   identity.NewSequence(identity.ReservationPrefix, 0),
		userIDs:          identity.NewSequence(identity.UserPrefix, identity.UserFloor),
		now:              now,
		logger:           defaultLogger(logger),
	}
}

func (d *Directory) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, d.logger, "Directory", operation, attrs...)
}

func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err != nil {
		logger.ErrorContext(ctx, failure, "error", err, "error_kind", ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, success, attrs...)
}

// AddUser registers a new principal with the given role.
func (d *Directory) AddUser(ctx context.Context, username string, isAdmin bool) (user User, err error) {
	if d == nil {
		err = fmt.Errorf("Directory is nil")
		return
	}

	username = strings.TrimSpace(username)
	logger := d.loggerWith(ctx, "AddUser", "username", username, "is_admin", isAdmin)
	defer func() {
		logOutcome(ctx, logger, err, "failed to add user", "user added", "user_id", user.ID)
	}()

	if username == "" {
		err = invalidField("username", "username is required")
		return
	}
	if vErr := validateText("username", username); vErr != nil {
		err = vErr
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.users[username]; taken {
		err = fmt.Errorf("%w: username %q already exists", ErrDuplicateIdentity, username)
		return
	}

	role := RoleStudent
	if isAdmin {
		role = RoleAdministrator
	}
	user = d.insertUserLocked(username, role)
	return
}

func (d *Directory) insertUserLocked(username string, role Role) User {
	user := User{
		ID:        d.userIDs.Next(),
		Username:  username,
		Role:      role,
		CreatedAt: d.now().UTC(),
	}
	d.users[username] = user
	d.userOrder = append(d.userOrder, username)
	return user
}

// resolveOrProvisionLocked returns the user registered under username,
// creating a student account on first sight. Booking is the only path that
// provisions users implicitly; it never grants the administrator role.
func (d *Directory) resolveOrProvisionLocked(username string) (User, bool) {
	if user, ok := d.users[username]; ok {
		return user, false
	}
	return d.insertUserLocked(username, RoleStudent), true
}

func (d *Directory) isAdminLocked(username string) bool {
	user, ok := d.users[strings.TrimSpace(username)]
	return ok && user.IsAdmin()
}

// AddResource stores a new catalog entry together with its empty weekly grid.
// Only administrators may add resources.
func (d *Directory) AddResource(ctx context.Context, actingUser string, resource Resource) (stored Resource, err error) {
	if d == nil {
		err = fmt.Errorf("Directory is nil")
		return
	}

	logger := d.loggerWith(ctx, "AddResource", "principal", actingUser)
	defer func() {
		if stored != nil {
			logger = logger.With("resource_id", stored.ResourceID(), "kind", string(stored.Kind()))
		}
		logOutcome(ctx, logger, err, "failed to add resource", "resource added")
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isAdminLocked(actingUser) {
		err = fmt.Errorf("%w: only administrators can add resources", ErrUnauthorized)
		return
	}

	normalized := normalizeResource(resource)
	if normalized == nil {
		err = invalidField("kind", "resource must be a room or equipment")
		return
	}
	if vErr := normalized.Validate(); vErr.HasErrors() {
		err = vErr
		return
	}

	id := normalized.ResourceID()
	if _, taken := d.resources[id]; taken {
		err = fmt.Errorf("%w: resource id %q already exists", ErrDuplicateIdentity, id)
		return
	}

	d.resources[id] = normalized
	d.resourceOrder = append(d.resourceOrder, id)
	d.grids[id] = scheduler.NewGrid(id)
	stored = normalized
	return
}

// EditResource applies the supplied fields of params to an existing resource.
// Only administrators may edit resources. Nothing is applied unless every
// supplied field is valid for the resource's variant.
func (d *Directory) EditResource(ctx context.Context, params EditResourceParams) (updated Resource, err error) {
	if d == nil {
		err = fmt.Errorf("Directory is nil")
		return
	}

	id := strings.TrimSpace(params.ResourceID)
	logger := d.loggerWith(ctx, "EditResource", "principal", params.ActingUser, "resource_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to edit resource", "resource edited")
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isAdminLocked(params.ActingUser) {
		err = fmt.Errorf("%w: only administrators can edit resources", ErrUnauthorized)
		return
	}
	if id == "" {
		err = invalidField("id", "id is required")
		return
	}

	existing, ok := d.resources[id]
	if !ok {
		err = fmt.Errorf("%w: resource %q", ErrNotFound, id)
		return
	}

	name := strings.TrimSpace(params.Name)
	category := strings.TrimSpace(params.Category)

	switch current := existing.(type) {
	case Room:
		if category != "" {
			err = fmt.Errorf("%w: %s is a room and has no category", ErrWrongResourceType, id)
			return
		}
		next := current
		if name != "" {
			next.Name = name
		}
		if params.Capacity != nil {
			if *params.Capacity <= 0 {
				err = invalidField("capacity", "capacity must be positive")
				return
			}
			next.Capacity = *params.Capacity
		}
		updated = next
	case Equipment:
		if params.Capacity != nil {
			err = fmt.Errorf("%w: %s is equipment and has no capacity", ErrWrongResourceType, id)
			return
		}
		next := current
		if name != "" {
			next.Name = name
		}
		if category != "" {
			next.Category = category
		}
		updated = next
	default:
		err = fmt.Errorf("application: resource %q has unsupported variant %T", id, existing)
		return
	}

	if vErr := updated.Validate(); vErr.HasErrors() {
		updated = nil
		err = vErr
		return
	}

	d.resources[id] = updated
	return
}

// RemoveResource deletes a resource and its grid. Only administrators may
// remove resources, and only once every reservation against it is cancelled.
func (d *Directory) RemoveResource(ctx context.Context, actingUser, resourceID string) (err error) {
	if d == nil {
		return fmt.Errorf("Directory is nil")
	}

	id := strings.TrimSpace(resourceID)
	logger := d.loggerWith(ctx, "RemoveResource", "principal", actingUser, "resource_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to remove resource", "resource removed")
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isAdminLocked(actingUser) {
		err = fmt.Errorf("%w: only administrators can remove resources", ErrUnauthorized)
		return
	}
	if id == "" {
		err = invalidField("id", "id is required")
		return
	}

	resource, ok := d.resources[id]
	if !ok {
		err = fmt.Errorf("%w: resource %q", ErrNotFound, id)
		return
	}

	if active := d.countActiveLocked(id); active > 0 {
		err = fmt.Errorf("%w: %s (%s) has %d active reservation(s), cancel them first",
			ErrHasActiveBookings, resource.DisplayName(), id, active)
		return
	}

	delete(d.resources, id)
	delete(d.grids, id)
	d.resourceOrder = slices.DeleteFunc(d.resourceOrder, func(key string) bool { return key == id })
	return
}

func (d *Directory) countActiveLocked(resourceID string) int {
	count := 0
	for _, r := range d.reservations {
		if r.Active && r.ResourceID == resourceID {
			count++
		}
	}
	return count
}

// MakeReservation books one slot of one resource for username.
//
// Day and slot are checked before anything else. An unknown username is
// provisioned as a student account as part of a successful booking; a failed
// booking creates nothing, consumes no identifier, and leaves every grid as it was.
func (d *Directory) MakeReservation(ctx context.Context, params MakeReservationParams) (reservation Reservation, err error) {
	if d == nil {
		err = fmt.Errorf("Directory is nil")
		return
	}

	resourceID := strings.TrimSpace(params.ResourceID)
	username := strings.TrimSpace(params.Username)
	logger := d.loggerWith(ctx, "MakeReservation",
		"resource_id", resourceID,
		"username", username,
		"day", params.Day,
		"slot", params.Slot,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to make reservation", "reservation created", "reservation_id", reservation.ID)
	}()

	if !scheduler.ValidPosition(params.Day, params.Slot) {
		err = fmt.Errorf("%w: day must be 0-%d and slot 0-%d, got day %d slot %d",
			ErrInvalidTimeSlot, scheduler.DaysPerWeek-1, scheduler.SlotsPerDay-1, params.Day, params.Slot)
		return
	}

	vErr := &ValidationError{}
	if username == "" {
		vErr.add("username", "username is required")
	}
	vErr.merge(validateText("username", username))
	if resourceID == "" {
		vErr.add("resource_id", "resource id is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	resource, ok := d.resources[resourceID]
	if !ok {
		err = fmt.Errorf("%w: resource %q", ErrNotFound, resourceID)
		return
	}
	grid, ok := d.grids[resourceID]
	if !ok {
		err = fmt.Errorf("application: resource %q has no schedule", resourceID)
		return
	}

	holder, gErr := grid.At(params.Day, params.Slot)
	if gErr != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidTimeSlot, gErr)
		return
	}
	if holder != "" {
		err = fmt.Errorf("%w: %s %s for %s is held by %s", ErrConflict,
			scheduler.DayName(params.Day), scheduler.SlotLabel(params.Slot), resource.DisplayName(), holder)
		return
	}

	id := d.reservationIDs.Peek()
	if _, exists := d.reservationIndex[id]; exists {
		err = fmt.Errorf("application: generated reservation id %q already exists", id)
		return
	}
	if gErr := grid.Occupy(params.Day, params.Slot, id); gErr != nil {
		err = fmt.Errorf("%w: %v", ErrConflict, gErr)
		return
	}

	if _, provisioned := d.resolveOrProvisionLocked(username); provisioned {
		logger.InfoContext(ctx, "user provisioned on first booking")
	}

	reservation = Reservation{
		ID:         d.reservationIDs.Next(),
		ResourceID: resourceID,
		Username:   username,
		Day:        params.Day,
		Slot:       params.Slot,
		Active:     true,
		CreatedAt:  d.now().UTC(),
	}
	d.reservationIndex[reservation.ID] = len(d.reservations)
	d.reservations = append(d.reservations, reservation)
	return
}

// CancelReservation cancels a reservation on behalf of its owner or an
// administrator, freeing its slot. The record is kept. Cancelling an already
// cancelled reservation returns it unchanged.
func (d *Directory) CancelReservation(ctx context.Context, actingUser, reservationID string) (reservation Reservation, err error) {
	if d == nil {
		err = fmt.Errorf("Directory is nil")
		return
	}

	id := strings.TrimSpace(reservationID)
	actor := strings.TrimSpace(actingUser)
	logger := d.loggerWith(ctx, "CancelReservation", "principal", actor, "reservation_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to cancel reservation", "reservation cancelled")
	}()

	if id == "" {
		err = invalidField("reservation_id", "reservation id is required")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	idx, ok := d.reservationIndex[id]
	if !ok {
		err = fmt.Errorf("%w: reservation %q", ErrNotFound, id)
		return
	}
	current := d.reservations[idx]

	if current.Username != actor && !d.isAdminLocked(actor) {
		err = fmt.Errorf("%w: only the owner or an administrator can cancel %s", ErrUnauthorized, id)
		return
	}

	if !current.Active {
		reservation = current
		return
	}

	if grid, ok := d.grids[current.ResourceID]; ok {
		if holder, _ := grid.At(current.Day, current.Slot); holder == current.ID {
			if gErr := grid.Clear(current.Day, current.Slot); gErr != nil {
				err = gErr
				return
			}
		}
	}

	current.Active = false
	current.CancelledAt = d.now().UTC()
	d.reservations[idx] = current
	reservation = current
	return
}
