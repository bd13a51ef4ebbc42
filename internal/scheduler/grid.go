package scheduler

import (
	"errors"
	"fmt"
)

const (
	// DaysPerWeek is the number of bookable weekdays, Monday through Friday.
	DaysPerWeek = 5
	// SlotsPerDay is the number of fixed two-hour windows in a day.
	SlotsPerDay = 8
)

var (
	// ErrIndexOutOfRange is returned when a day or slot falls outside the fixed grid.
	ErrIndexOutOfRange = errors.New("scheduler: index out of range")
	// ErrSlotOccupied is returned when occupying a cell that already holds an active reservation.
	ErrSlotOccupied = errors.New("scheduler: slot occupied")
)

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

var slotLabels = [SlotsPerDay]string{
	"08:00-10:00", "10:00-12:00", "13:00-15:00", "15:00-17:00",
	"17:00-19:00", "19:00-21:00", "21:00-23:00", "23:00-01:00",
}

// Cell identifies an occupied position in a grid.
type Cell struct {
	Day           int
	Slot          int
	ReservationID string
}

// Grid is the weekly occupancy table of a single resource. A cell holds the
// identifier of the reservation occupying it, and only while that reservation
// is active.
type Grid struct {
	resourceID string
	cells      [DaysPerWeek][SlotsPerDay]string
}

// NewGrid returns an empty grid for the resource.
func NewGrid(resourceID string) *Grid {
	return &Grid{resourceID: resourceID}
}

// ValidPosition reports whether day and slot fall inside the grid.
func ValidPosition(day, slot int) bool {
	return day >= 0 && day < DaysPerWeek && slot >= 0 && slot < SlotsPerDay
}

func checkPosition(day, slot int) error {
	if day < 0 || day >= DaysPerWeek {
		return fmt.Errorf("%w: day %d, must be 0-%d", ErrIndexOutOfRange, day, DaysPerWeek-1)
	}
	if slot < 0 || slot >= SlotsPerDay {
		return fmt.Errorf("%w: slot %d, must be 0-%d", ErrIndexOutOfRange, slot, SlotsPerDay-1)
	}
	return nil
}

// Occupy records reservationID at (day, slot).
func (g *Grid) Occupy(day, slot int, reservationID string) error {
	if err := checkPosition(day, slot); err != nil {
		return err
	}
	if reservationID == "" {
		return fmt.Errorf("scheduler: empty reservation id")
	}
	if current := g.cells[day][slot]; current != "" {
		return fmt.Errorf("%w: %s %s %s held by %s", ErrSlotOccupied, g.resourceID, dayNames[day], slotLabels[slot], current)
	}
	g.cells[day][slot] = reservationID
	return nil
}

// Clear empties the cell at (day, slot). Clearing an empty cell is a no-op.
func (g *Grid) Clear(day, slot int) error {
	if err := checkPosition(day, slot); err != nil {
		return err
	}
	g.cells[day][slot] = ""
	return nil
}

// At returns the reservation id held at (day, slot), or "" when the cell is free.
func (g *Grid) At(day, slot int) (string, error) {
	if err := checkPosition(day, slot); err != nil {
		return "", err
	}
	return g.cells[day][slot], nil
}

// IsActiveAt reports whether an active reservation occupies (day, slot).
func (g *Grid) IsActiveAt(day, slot int) (bool, error) {
	id, err := g.At(day, slot)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

// HasAnyActive reports whether any cell is occupied.
func (g *Grid) HasAnyActive() bool {
	for day := range g.cells {
		for slot := range g.cells[day] {
			if g.cells[day][slot] != "" {
				return true
			}
		}
	}
	return false
}

// ActiveReservations lists occupied cells ordered by day, then slot.
func (g *Grid) ActiveReservations() []Cell {
	var out []Cell
	for day := range g.cells {
		for slot, id := range g.cells[day] {
			if id == "" {
				continue
			}
			out = append(out, Cell{Day: day, Slot: slot, ReservationID: id})
		}
	}
	return out
}

// DayName returns the weekday label for a day index, or "" when out of range.
func DayName(day int) string {
	if day < 0 || day >= DaysPerWeek {
		return ""
	}
	return dayNames[day]
}

// SlotLabel returns the time window for a slot index, or "" when out of range.
func SlotLabel(slot int) string {
	if slot < 0 || slot >= SlotsPerDay {
		return ""
	}
	return slotLabels[slot]
}
