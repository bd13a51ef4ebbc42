package application

import (
	"fmt"
	"strings"

	"github.com/example/campus-booking/internal/scheduler"
)

// Resource returns the catalog entry stored under key.
func (d *Directory) Resource(key string) (Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key = strings.TrimSpace(key)
	res, ok := d.resources[key]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", ErrNotFound, key)
	}
	return res, nil
}

// User returns the principal registered under username.
func (d *Directory) User(username string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	username = strings.TrimSpace(username)
	user, ok := d.users[username]
	if !ok {
		return User{}, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return user, nil
}

// Reservation returns the reservation with the given id, active or cancelled.
func (d *Directory) Reservation(id string) (Reservation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id = strings.TrimSpace(id)
	idx, ok := d.reservationIndex[id]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: reservation %q", ErrNotFound, id)
	}
	return d.reservations[idx], nil
}

// IsAdmin reports whether username is a registered administrator.
func (d *Directory) IsAdmin(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isAdminLocked(username)
}

// Resources lists the catalog in insertion order.
func (d *Directory) Resources() []Resource {
	return d.filterResources(func(Resource, *scheduler.Grid) bool { return true })
}

// Users lists every registered principal in registration order.
func (d *Directory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.userOrder))
	for _, name := range d.userOrder {
		out = append(out, d.users[name])
	}
	return out
}

// Reservations lists every reservation ever made, including cancelled ones,
// in creation order.
func (d *Directory) Reservations() []Reservation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Reservation, len(d.reservations))
	copy(out, d.reservations)
	return out
}

// ResourceReservations lists the active reservations against a resource.
func (d *Directory) ResourceReservations(resourceID string) []Reservation {
	resourceID = strings.TrimSpace(resourceID)
	return d.activeReservations(func(r Reservation) bool { return r.ResourceID == resourceID })
}

// UserReservations lists the active reservations owned by username.
func (d *Directory) UserReservations(username string) []Reservation {
	username = strings.TrimSpace(username)
	return d.activeReservations(func(r Reservation) bool { return r.Username == username })
}

func (d *Directory) activeReservations(match func(Reservation) bool) []Reservation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Reservation
	for _, r := range d.reservations {
		if r.Active && match(r) {
			out = append(out, r)
		}
	}
	return out
}

// IsResourceAvailable reports whether a resource has no active reservation in
// any cell of its week.
func (d *Directory) IsResourceAvailable(resourceID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	resourceID = strings.TrimSpace(resourceID)
	grid, ok := d.grids[resourceID]
	if !ok {
		return false, fmt.Errorf("%w: resource %q", ErrNotFound, resourceID)
	}
	return !grid.HasAnyActive(), nil
}

// IsSlotAvailable reports whether (day, slot) of a resource is free.
func (d *Directory) IsSlotAvailable(resourceID string, day, slot int) (bool, error) {
	if !scheduler.ValidPosition(day, slot) {
		return false, fmt.Errorf("%w: day %d slot %d", ErrInvalidTimeSlot, day, slot)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	resourceID = strings.TrimSpace(resourceID)
	grid, ok := d.grids[resourceID]
	if !ok {
		return false, fmt.Errorf("%w: resource %q", ErrNotFound, resourceID)
	}
	busy, err := grid.IsActiveAt(day, slot)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidTimeSlot, err)
	}
	return !busy, nil
}

// WeeklySchedule returns the occupied cells of a resource with human-readable
// day and slot labels, ordered by day then slot.
func (d *Directory) WeeklySchedule(resourceID string) ([]ScheduleEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	resourceID = strings.TrimSpace(resourceID)
	grid, ok := d.grids[resourceID]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", ErrNotFound, resourceID)
	}

	cells := grid.ActiveReservations()
	entries := make([]ScheduleEntry, 0, len(cells))
	for _, cell := range cells {
		entry := ScheduleEntry{
			Day:           cell.Day,
			DayName:       scheduler.DayName(cell.Day),
			Slot:          cell.Slot,
			SlotLabel:     scheduler.SlotLabel(cell.Slot),
			ReservationID: cell.ReservationID,
		}
		if idx, ok := d.reservationIndex[cell.ReservationID]; ok {
			entry.Username = d.reservations[idx].Username
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SearchByName returns resources whose display name contains query,
// ignoring case.
func (d *Directory) SearchByName(query string) []Resource {
	return d.filterResources(nameContains(query))
}

// SearchByID returns resources whose key contains query, ignoring case.
func (d *Directory) SearchByID(query string) []Resource {
	return d.filterResources(idContains(query))
}

// FilterByKind returns resources of one variant.
func (d *Directory) FilterByKind(kind ResourceKind) []Resource {
	return d.filterResources(kindIs(kind))
}

// FilterRoomsByMinCapacity returns rooms seating at least minCapacity people.
func (d *Directory) FilterRoomsByMinCapacity(minCapacity int) []Resource {
	return d.filterResources(seatsAtLeast(minCapacity))
}

// FilterEquipmentByCategory returns equipment whose category contains query,
// ignoring case.
func (d *Directory) FilterEquipmentByCategory(query string) []Resource {
	return d.filterResources(categoryContains(query))
}

// FilterByAvailability returns resources that are entirely free (available
// true) or that hold at least one active reservation (available false).
func (d *Directory) FilterByAvailability(available bool) []Resource {
	return d.filterResources(availabilityIs(available))
}

// ResourceView is a catalog entry together with its availability, read at
// the same instant.
type ResourceView struct {
	Resource  Resource
	Available bool
}

// ResourceFilter narrows FindResources. Zero fields do not filter; set fields
// are combined with AND.
type ResourceFilter struct {
	Name        string
	ID          string
	Kind        *ResourceKind
	MinCapacity *int
	Category    string
	Available   *bool
}

func (f ResourceFilter) predicates() []resourceMatch {
	var out []resourceMatch
	if f.Name != "" {
		out = append(out, nameContains(f.Name))
	}
	if f.ID != "" {
		out = append(out, idContains(f.ID))
	}
	if f.Kind != nil {
		out = append(out, kindIs(*f.Kind))
	}
	if f.MinCapacity != nil {
		out = append(out, seatsAtLeast(*f.MinCapacity))
	}
	if f.Category != "" {
		out = append(out, categoryContains(f.Category))
	}
	if f.Available != nil {
		out = append(out, availabilityIs(*f.Available))
	}
	return out
}

// FindResources returns the catalog entries matching every set field of
// filter, each with its availability, in catalog order. The whole result is
// read under one lock.
func (d *Directory) FindResources(filter ResourceFilter) []ResourceView {
	matches := filter.predicates()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ResourceView
	for _, id := range d.resourceOrder {
		res, grid := d.resources[id], d.grids[id]
		if grid == nil {
			continue
		}
		keep := true
		for _, match := range matches {
			if !match(res, grid) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, ResourceView{Resource: res, Available: !grid.HasAnyActive()})
		}
	}
	return out
}

// ResourceViews lists the whole catalog with availability.
func (d *Directory) ResourceViews() []ResourceView {
	return d.FindResources(ResourceFilter{})
}

// ViewResource returns one catalog entry with its availability.
func (d *Directory) ViewResource(key string) (ResourceView, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key = strings.TrimSpace(key)
	res, ok := d.resources[key]
	grid := d.grids[key]
	if !ok || grid == nil {
		return ResourceView{}, fmt.Errorf("%w: resource %q", ErrNotFound, key)
	}
	return ResourceView{Resource: res, Available: !grid.HasAnyActive()}, nil
}

type resourceMatch func(Resource, *scheduler.Grid) bool

func nameContains(query string) resourceMatch {
	needle := strings.ToLower(strings.TrimSpace(query))
	return func(r Resource, _ *scheduler.Grid) bool {
		return strings.Contains(strings.ToLower(r.DisplayName()), needle)
	}
}

func idContains(query string) resourceMatch {
	needle := strings.ToLower(strings.TrimSpace(query))
	return func(r Resource, _ *scheduler.Grid) bool {
		return strings.Contains(strings.ToLower(r.ResourceID()), needle)
	}
}

func kindIs(kind ResourceKind) resourceMatch {
	return func(r Resource, _ *scheduler.Grid) bool { return r.Kind() == kind }
}

func seatsAtLeast(minCapacity int) resourceMatch {
	return func(r Resource, _ *scheduler.Grid) bool {
		room, ok := r.(Room)
		return ok && room.Capacity >= minCapacity
	}
}

func categoryContains(query string) resourceMatch {
	needle := strings.ToLower(strings.TrimSpace(query))
	return func(r Resource, _ *scheduler.Grid) bool {
		equipment, ok := r.(Equipment)
		return ok && strings.Contains(strings.ToLower(equipment.Category), needle)
	}
}

func availabilityIs(available bool) resourceMatch {
	return func(_ Resource, grid *scheduler.Grid) bool { return !grid.HasAnyActive() == available }
}

func (d *Directory) filterResources(match resourceMatch) []Resource {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Resource
	for _, id := range d.resourceOrder {
		res, grid := d.resources[id], d.grids[id]
		if grid != nil && match(res, grid) {
			out = append(out, res)
		}
	}
	return out
}
