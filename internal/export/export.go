// Package export writes the directory contents as pipe-delimited text files
// for people to read.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/application"
)

// File names written by WriteAll.
const (
	ResourcesFile    = "resources.txt"
	ReservationsFile = "reservations.txt"
	UsersFile        = "users.txt"
)

const headerRule = "#============================================================"

// Source is the read side of the directory that the exporters need.
type Source interface {
	ResourceViews() []application.ResourceView
	Reservations() []application.Reservation
	Users() []application.User
}

func writeHeader(w *bufio.Writer, title string, at time.Time, columns ...string) {
	fmt.Fprintf(w, "# %s - Export Date: %s\n", title, at.Format(time.RFC1123))
	fmt.Fprintf(w, "# Format: %s\n", strings.Join(columns, " | "))
	fmt.Fprintln(w, headerRule)
}

// WriteResources writes one line per catalog entry.
func WriteResources(w io.Writer, src Source, at time.Time) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, "Campus Resources", at, "ID", "Name", "Type", "Available", "Details")

	for _, view := range src.ResourceViews() {
		res := view.Resource
		fmt.Fprintf(bw, "%s | %s | %s | %t | %s\n",
			res.ResourceID(), res.DisplayName(), res.Kind().Label(), view.Available, res.Describe())
	}
	return bw.Flush()
}

// WriteReservations writes one line per reservation, cancelled ones included.
func WriteReservations(w io.Writer, src Source, at time.Time) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, "Reservations", at, "ReservationID", "ResourceID", "Username", "Day", "Slot", "Status")

	for _, r := range src.Reservations() {
		fmt.Fprintf(bw, "%s | %s | %s | %d | %d | %s\n",
			r.ID, r.ResourceID, r.Username, r.Day, r.Slot, r.Status())
	}
	return bw.Flush()
}

// WriteUsers writes one line per registered user.
func WriteUsers(w io.Writer, src Source, at time.Time) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw, "System Users", at, "Username", "Role", "UserID")

	for _, u := range src.Users() {
		fmt.Fprintf(bw, "%s | %s | %s\n", u.Username, u.Role.Label(), u.ID)
	}
	return bw.Flush()
}

// WriteAll writes the three export files into dir, creating it when needed,
// and returns their paths. Each file is replaced atomically.
func WriteAll(dir string, src Source, at time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	files := []struct {
		name  string
		write func(io.Writer, Source, time.Time) error
	}{
		{ResourcesFile, WriteResources},
		{ReservationsFile, WriteReservations},
		{UsersFile, WriteUsers},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFileAtomic(path, func(w io.Writer) error { return f.write(w, src, at) }); err != nil {
			return paths, fmt.Errorf("export: %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
