package scheduler

import (
	"errors"
	"strings"
	"testing"
)

func TestGrid_OccupyAndClear(t *testing.T) {
	t.Parallel()

	t.Run("occupied cell reports active", func(t *testing.T) {
		t.Parallel()
		g := NewGrid("SR101")

		if err := g.Occupy(0, 1, "RES-1"); err != nil {
			t.Fatalf("Occupy returned error: %v", err)
		}

		active, err := g.IsActiveAt(0, 1)
		if err != nil {
			t.Fatalf("IsActiveAt returned error: %v", err)
		}
		if !active {
			t.Fatalf("expected (0,1) to be active")
		}
		if !g.HasAnyActive() {
			t.Fatalf("expected grid to report an active cell")
		}
	})

	t.Run("second occupant is rejected", func(t *testing.T) {
		t.Parallel()
		g := NewGrid("SR101")
		if err := g.Occupy(2, 3, "RES-1"); err != nil {
			t.Fatalf("Occupy returned error: %v", err)
		}

		err := g.Occupy(2, 3, "RES-2")
		if !errors.Is(err, ErrSlotOccupied) {
			t.Fatalf("expected ErrSlotOccupied, got %v", err)
		}
		if want := "SR101 Wednesday 15:00-17:00 held by RES-1"; !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to name the cell, got %q", err.Error())
		}
		if id, _ := g.At(2, 3); id != "RES-1" {
			t.Fatalf("expected original occupant to remain, got %q", id)
		}
	})

	t.Run("clear frees the cell", func(t *testing.T) {
		t.Parallel()
		g := NewGrid("SR101")
		if err := g.Occupy(4, 7, "RES-9"); err != nil {
			t.Fatalf("Occupy returned error: %v", err)
		}
		if err := g.Clear(4, 7); err != nil {
			t.Fatalf("Clear returned error: %v", err)
		}
		if g.HasAnyActive() {
			t.Fatalf("expected grid to be empty after clear")
		}
		if err := g.Occupy(4, 7, "RES-10"); err != nil {
			t.Fatalf("expected cleared cell to accept a new occupant, got %v", err)
		}
	})
}

func TestGrid_BoundsChecks(t *testing.T) {
	t.Parallel()

	g := NewGrid("LE201")
	positions := [][2]int{{-1, 0}, {5, 0}, {0, -1}, {0, 8}, {9, 12}}

	for _, pos := range positions {
		if err := g.Occupy(pos[0], pos[1], "RES-1"); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("Occupy(%d,%d): expected ErrIndexOutOfRange, got %v", pos[0], pos[1], err)
		}
		if err := g.Clear(pos[0], pos[1]); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("Clear(%d,%d): expected ErrIndexOutOfRange, got %v", pos[0], pos[1], err)
		}
		if _, err := g.IsActiveAt(pos[0], pos[1]); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("IsActiveAt(%d,%d): expected ErrIndexOutOfRange, got %v", pos[0], pos[1], err)
		}
		if ValidPosition(pos[0], pos[1]) {
			t.Fatalf("expected (%d,%d) to be invalid", pos[0], pos[1])
		}
	}
}

func TestGrid_ActiveReservationsOrdered(t *testing.T) {
	t.Parallel()

	g := NewGrid("SR102")
	for _, c := range []Cell{{3, 0, "RES-3"}, {0, 5, "RES-1"}, {0, 2, "RES-2"}} {
		if err := g.Occupy(c.Day, c.Slot, c.ReservationID); err != nil {
			t.Fatalf("Occupy returned error: %v", err)
		}
	}

	got := g.ActiveReservations()
	want := []string{"RES-2", "RES-1", "RES-3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ReservationID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ReservationID)
		}
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()

	if DayName(0) != "Monday" || DayName(4) != "Friday" || DayName(5) != "" {
		t.Fatalf("unexpected day names")
	}
	if SlotLabel(1) != "10:00-12:00" || SlotLabel(7) != "23:00-01:00" || SlotLabel(8) != "" {
		t.Fatalf("unexpected slot labels")
	}
}
