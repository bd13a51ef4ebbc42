package export_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/export"
	"github.com/example/campus-booking/internal/testfixtures"
)

func dataLines(t *testing.T, text string) []string {
	t.Helper()

	var out []string
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func TestWriters(t *testing.T) {
	t.Parallel()

	d := testfixtures.NewDirectoryFactory().NewSeededDirectory(t)
	testfixtures.Book(t, d,
		testfixtures.Booking{ResourceID: "SR101", Username: "alex", Day: 1, Slot: 2},
		testfixtures.Booking{ResourceID: "LE201", Username: "student1", Day: 4, Slot: 7},
	)
	if _, err := d.CancelReservation(context.Background(), "student1", "RES-2"); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	at := testfixtures.ReferenceTime()

	t.Run("resources", func(t *testing.T) {
		var buf bytes.Buffer
		if err := export.WriteResources(&buf, d, at); err != nil {
			t.Fatalf("WriteResources: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "# Campus Resources - Export Date: ") {
			t.Fatalf("missing title header: %q", buf.String())
		}
		if !strings.Contains(buf.String(), "# Format: ID | Name | Type | Available | Details\n") {
			t.Fatalf("missing format header: %q", buf.String())
		}
		lines := dataLines(t, buf.String())
		if len(lines) != 6 {
			t.Fatalf("expected 6 resources, got %d", len(lines))
		}
		if lines[0] != "SR101 | Computer Lab | Study Room | false | Capacity: 20 people" {
			t.Fatalf("unexpected first line %q", lines[0])
		}
		if lines[3] != "LE201 | Microscopes | Lab Equipment | true | Category: Biology" {
			t.Fatalf("unexpected equipment line %q", lines[3])
		}
	})

	t.Run("reservations", func(t *testing.T) {
		var buf bytes.Buffer
		if err := export.WriteReservations(&buf, d, at); err != nil {
			t.Fatalf("WriteReservations: %v", err)
		}
		lines := dataLines(t, buf.String())
		want := []string{
			"RES-1 | SR101 | alex | 1 | 2 | ACTIVE",
			"RES-2 | LE201 | student1 | 4 | 7 | CANCELLED",
		}
		if strings.Join(lines, "\n") != strings.Join(want, "\n") {
			t.Fatalf("unexpected reservations:\n%s", strings.Join(lines, "\n"))
		}
	})

	t.Run("users", func(t *testing.T) {
		var buf bytes.Buffer
		if err := export.WriteUsers(&buf, d, at); err != nil {
			t.Fatalf("WriteUsers: %v", err)
		}
		lines := dataLines(t, buf.String())
		want := []string{
			"admin | Administrator | USER-1001",
			"student1 | Student | USER-1002",
			"student2 | Student | USER-1003",
			"alex | Student | USER-1004",
		}
		if strings.Join(lines, "\n") != strings.Join(want, "\n") {
			t.Fatalf("unexpected users:\n%s", strings.Join(lines, "\n"))
		}
	})
}

func TestWriters_OneLinePerEntity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := testfixtures.NewDirectoryFactory().NewSeededDirectory(t)
	forged := "Lab\nFAKE9 | Ghost | Study Room | true | Capacity: 1 people"

	if _, err := d.AddResource(ctx, "admin", application.Room{ID: "SR900", Name: forged, Capacity: 4}); err == nil {
		t.Fatalf("expected a name with a line break to be rejected")
	}
	if _, err := d.AddResource(ctx, "admin", application.Equipment{ID: "LE900", Name: "Oscilloscope", Category: "Physics | Optics"}); err == nil {
		t.Fatalf("expected a category with a separator to be rejected")
	}
	if _, err := d.AddUser(ctx, "eve\nmallory | Administrator | USER-1", false); err == nil {
		t.Fatalf("expected a username with a line break to be rejected")
	}
	testfixtures.Book(t, d, testfixtures.Booking{ResourceID: "SR101", Username: "alex", Day: 0, Slot: 0})
	at := testfixtures.ReferenceTime()

	var resources, reservations, users bytes.Buffer
	if err := export.WriteResources(&resources, d, at); err != nil {
		t.Fatalf("WriteResources: %v", err)
	}
	if err := export.WriteReservations(&reservations, d, at); err != nil {
		t.Fatalf("WriteReservations: %v", err)
	}
	if err := export.WriteUsers(&users, d, at); err != nil {
		t.Fatalf("WriteUsers: %v", err)
	}

	if got, want := len(dataLines(t, resources.String())), len(d.Resources()); got != want {
		t.Fatalf("expected %d resource lines, got %d", want, got)
	}
	if got, want := len(dataLines(t, reservations.String())), len(d.Reservations()); got != want {
		t.Fatalf("expected %d reservation lines, got %d", want, got)
	}
	if got, want := len(dataLines(t, users.String())), len(d.Users()); got != want {
		t.Fatalf("expected %d user lines, got %d", want, got)
	}
	for _, line := range dataLines(t, resources.String()) {
		if strings.HasPrefix(line, "FAKE9") {
			t.Fatalf("forged row exported: %q", line)
		}
	}
}

func TestWriteAll(t *testing.T) {
	t.Parallel()

	d := testfixtures.NewDirectoryFactory().NewSeededDirectory(t)
	dir := filepath.Join(t.TempDir(), "exports")

	paths, err := export.WriteAll(dir, d, testfixtures.ReferenceTime())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %v", paths)
	}
	for _, name := range []string{export.ResourcesFile, export.ReservationsFile, export.UsersFile} {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.HasPrefix(string(body), "# ") {
			t.Fatalf("%s: expected header, got %q", name, body)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected no temporary files to remain, got %d entries", len(entries))
	}
}
