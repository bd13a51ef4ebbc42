package persistence

import "time"

// Resource kinds as stored.
const (
	KindRoom      = "room"
	KindEquipment = "equipment"
)

// Role labels as stored.
const (
	RoleStudent       = "student"
	RoleAdministrator = "administrator"
)

// User represents a registered principal inside a snapshot.
type User struct {
	ID        string
	Username  string
	Role      string
	CreatedAt time.Time
}

// Resource represents a catalog entry inside a snapshot. Capacity is set for
// rooms and Category for equipment.
type Resource struct {
	ID       string
	Name     string
	Kind     string
	Capacity int
	Category string
}

// Reservation represents a booking record inside a snapshot.
type Reservation struct {
	ID          string
	ResourceID  string
	Username    string
	Day         int
	Slot        int
	Active      bool
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Snapshot is a complete, ordered copy of the reservation directory.
type Snapshot struct {
	ID           string
	SavedAt      time.Time
	Digest       string
	Users        []User
	Resources    []Resource
	Reservations []Reservation
}

// SnapshotInfo summarises a stored snapshot without its contents.
type SnapshotInfo struct {
	ID           string
	SavedAt      time.Time
	Digest       string
	Users        int
	Resources    int
	Reservations int
}
