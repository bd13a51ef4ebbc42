package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/application"
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Booking describes a reservation to place while building a fixture directory.
type Booking struct {
	ResourceID string
	Username   string
	Day        int
	Slot       int
}

// Book places every booking on d in order and fails the test on the first error.
func Book(tb testing.TB, d *application.Directory, bookings ...Booking) []application.Reservation {
	tb.Helper()

	out := make([]application.Reservation, 0, len(bookings))
	for _, b := range bookings {
		r, err := d.MakeReservation(context.Background(), application.MakeReservationParams{
			ResourceID: b.ResourceID,
			Username:   b.Username,
			Day:        b.Day,
			Slot:       b.Slot,
		})
		if err != nil {
			tb.Fatalf("book %+v: %v", b, err)
		}
		out = append(out, r)
	}
	return out
}
