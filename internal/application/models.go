package application

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Role fixes the permission level of a user.
type Role string

const (
	// RoleStudent may book resources and cancel its own reservations.
	RoleStudent Role = "student"
	// RoleAdministrator may additionally manage the catalog and cancel any reservation.
	RoleAdministrator Role = "administrator"
)

// Label returns the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleAdministrator:
		return "Administrator"
	case RoleStudent:
		return "Student"
	}
	return string(r)
}

func (r Role) valid() bool {
	return r == RoleStudent || r == RoleAdministrator
}

// User is a role-tagged principal.
type User struct {
	ID        string
	Username  string
	Role      Role
	CreatedAt time.Time
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdministrator
}

// ResourceKind is the closed type tag of a catalog entry.
type ResourceKind string

const (
	// KindRoom tags study rooms.
	KindRoom ResourceKind = "room"
	// KindEquipment tags lab equipment.
	KindEquipment ResourceKind = "equipment"
)

// Label returns the display name used in listings and exports.
func (k ResourceKind) Label() string {
	switch k {
	case KindRoom:
		return "Study Room"
	case KindEquipment:
		return "Lab Equipment"
	}
	return string(k)
}

// ParseResourceKind accepts a tag or its display label, case-insensitively.
func ParseResourceKind(value string) (ResourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "room", "study room", "studyroom":
		return KindRoom, true
	case "equipment", "lab equipment", "labequipment":
		return KindEquipment, true
	}
	return "", false
}

// Resource is a bookable catalog entry. The variant set is closed: Room and
// Equipment are its only implementations, and consumers switch over both.
type Resource interface {
	ResourceID() string
	DisplayName() string
	Kind() ResourceKind
	// Describe returns a one-line summary of the type-specific attributes.
	Describe() string
	// Validate reports blank or out-of-range fields.
	Validate() *ValidationError

	sealed()
}

// Room is a study room with a seating capacity.
type Room struct {
	ID       string
	Name     string
	Capacity int
}

func (r Room) ResourceID() string  { return r.ID }
func (r Room) DisplayName() string { return r.Name }
func (r Room) Kind() ResourceKind  { return KindRoom }
func (r Room) Describe() string    { return fmt.Sprintf("Capacity: %d people", r.Capacity) }
func (Room) sealed()               {}

func (r Room) Validate() *ValidationError {
	vErr := validateBase(r.ID, r.Name)
	if r.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	return vErr
}

// Equipment is a piece of lab equipment belonging to a category.
type Equipment struct {
	ID       string
	Name     string
	Category string
}

func (e Equipment) ResourceID() string  { return e.ID }
func (e Equipment) DisplayName() string { return e.Name }
func (e Equipment) Kind() ResourceKind  { return KindEquipment }
func (e Equipment) Describe() string    { return "Category: " + e.Category }
func (Equipment) sealed()               {}

func (e Equipment) Validate() *ValidationError {
	vErr := validateBase(e.ID, e.Name)
	if strings.TrimSpace(e.Category) == "" {
		vErr.add("category", "category is required")
	}
	vErr.merge(validateText("category", e.Category))
	return vErr
}

func validateBase(id, name string) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(id) == "" {
		vErr.add("id", "id is required")
	}
	if strings.TrimSpace(name) == "" {
		vErr.add("name", "name is required")
	}
	vErr.merge(validateText("id", id))
	vErr.merge(validateText("name", name))
	return vErr
}

// validateText rejects values that would split an exported line: the column
// separator and control characters such as line breaks.
func validateText(field, value string) *ValidationError {
	if strings.ContainsRune(value, '|') || strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return invalidField(field, field+" must not contain '|' or control characters")
	}
	return nil
}

// normalizeResource trims text fields and dereferences pointer variants so the
// directory only ever stores values. It returns nil for unknown or nil input.
func normalizeResource(res Resource) Resource {
	switch r := res.(type) {
	case Room:
		r.ID = strings.TrimSpace(r.ID)
		r.Name = strings.TrimSpace(r.Name)
		return r
	case *Room:
		if r == nil {
			return nil
		}
		return normalizeResource(*r)
	case Equipment:
		e := r
		e.ID = strings.TrimSpace(e.ID)
		e.Name = strings.TrimSpace(e.Name)
		e.Category = strings.TrimSpace(e.Category)
		return e
	case *Equipment:
		if r == nil {
			return nil
		}
		return normalizeResource(*r)
	}
	return nil
}

// Reservation is a booking of one slot of one resource. Everything except the
// active flag and the cancellation time is fixed at creation.
type Reservation struct {
	ID          string
	ResourceID  string
	Username    string
	Day         int
	Slot        int
	Active      bool
	CreatedAt   time.Time
	CancelledAt time.Time
}

// Status returns ACTIVE or CANCELLED.
func (r Reservation) Status() string {
	if r.Active {
		return "ACTIVE"
	}
	return "CANCELLED"
}

// EditResourceParams carries an in-place catalog edit. Empty strings and a nil
// capacity mean "leave unchanged".
type EditResourceParams struct {
	ActingUser string
	ResourceID string
	Name       string
	// Capacity applies to rooms only.
	Capacity *int
	// Category applies to equipment only.
	Category string
}

// MakeReservationParams carries a booking request.
type MakeReservationParams struct {
	ResourceID string
	Username   string
	Day        int
	Slot       int
}

// ScheduleEntry is a human-readable view of one occupied cell.
type ScheduleEntry struct {
	Day           int
	DayName       string
	Slot          int
	SlotLabel     string
	Username      string
	ReservationID string
}
