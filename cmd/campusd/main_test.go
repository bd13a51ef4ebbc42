package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/config"
	httptransport "github.com/example/campus-booking/internal/http"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	return config.Config{
		HTTPPort:          8080,
		SQLiteDSN:         filepath.Join(dir, "campus.db"),
		ExportDir:         filepath.Join(dir, "exports"),
		LogLevel:          "info",
		LogFormat:         "text",
		SeedDefaults:      true,
		SnapshotRetention: 2,
		Autosave:          true,
	}
}

func call(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set(httptransport.ActingUserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApp_RestartContinuesIdentifiers(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := newApp(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	for slot := 0; slot < 7; slot++ {
		rec := call(t, first.handler, http.MethodPost, "/reservations", "alex", map[string]any{"resource_id": "SR101", "day": 0, "slot": slot})
		if rec.Code != http.StatusCreated {
			t.Fatalf("booking %d: expected 201, got %d: %s", slot, rec.Code, rec.Body.String())
		}
	}
	if rec := call(t, first.handler, http.MethodDelete, "/reservations/RES-3", "alex", nil); rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	before := first.directory.State()
	if err := first.close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := newApp(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = second.close(ctx) })

	if after := second.directory.State(); !reflect.DeepEqual(after, before) {
		t.Fatalf("restored state differs:\n got %+v\nwant %+v", after, before)
	}

	rec := call(t, second.handler, http.MethodPost, "/reservations", "zach", map[string]any{"resource_id": "SR101", "day": 0, "slot": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("rebook cancelled cell: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var booked struct {
		Reservation struct {
			ID string `json:"id"`
		} `json:"reservation"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&booked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if booked.Reservation.ID != "RES-8" {
		t.Fatalf("expected RES-8 after restart, got %s", booked.Reservation.ID)
	}
	zach, err := second.directory.User("zach")
	if err != nil || zach.ID != "USER-1005" {
		t.Fatalf("expected zach to be USER-1005, got %+v %v", zach, err)
	}

	if rec := call(t, second.handler, http.MethodPost, "/reservations", "zach", map[string]any{"resource_id": "SR101", "day": 0, "slot": 6}); rec.Code != http.StatusConflict {
		t.Fatalf("expected restored booking to block the cell, got %d", rec.Code)
	}
}

func TestApp_SeedsOnlyEmptyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("seed disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SeedDefaults = false
		a, err := newApp(ctx, cfg, discardLogger())
		if err != nil {
			t.Fatalf("newApp: %v", err)
		}
		t.Cleanup(func() { _ = a.close(ctx) })

		if got := len(a.directory.Resources()); got != 0 {
			t.Fatalf("expected empty catalog, got %d resources", got)
		}
	})

	t.Run("seed enabled", func(t *testing.T) {
		cfg := testConfig(t)
		a, err := newApp(ctx, cfg, discardLogger())
		if err != nil {
			t.Fatalf("newApp: %v", err)
		}
		t.Cleanup(func() { _ = a.close(ctx) })

		if !a.directory.IsAdmin(application.DefaultAdmin) || len(a.directory.Resources()) != 6 {
			t.Fatalf("expected default catalog and admin")
		}
	})
}

func TestApp_AdminEndpoints(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Autosave = false

	a, err := newApp(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(func() { _ = a.close(ctx) })

	for i := 0; i < 3; i++ {
		if rec := call(t, a.handler, http.MethodPost, "/admin/snapshot", application.DefaultAdmin, nil); rec.Code != http.StatusCreated {
			t.Fatalf("snapshot %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	infos, err := a.store.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(infos) != cfg.SnapshotRetention {
		t.Fatalf("expected retention to keep %d snapshots, got %d", cfg.SnapshotRetention, len(infos))
	}

	rec := call(t, a.handler, http.MethodPost, "/admin/export", application.DefaultAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Files) != 3 {
		t.Fatalf("expected 3 export files, got %v", resp.Files)
	}
	for _, path := range resp.Files {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("export file %s: %v", path, err)
		}
	}
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store reports not found", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		store := newSnapshotStore(harness.Store, 0)

		if _, err := store.LoadState(ctx); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected application not found, got %v", err)
		}
	})

	t.Run("state survives a reopen", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		d := testfixtures.NewDirectoryFactory().NewSeededDirectory(t)
		testfixtures.Book(t, d,
			testfixtures.Booking{ResourceID: "LE203", Username: "maria", Day: 4, Slot: 7},
			testfixtures.Booking{ResourceID: "SR102", Username: "student1", Day: 0, Slot: 0},
		)
		if _, err := d.CancelReservation(ctx, "student1", "RES-2"); err != nil {
			t.Fatalf("CancelReservation: %v", err)
		}
		if err := d.SaveTo(ctx, newSnapshotStore(harness.Store, 0)); err != nil {
			t.Fatalf("SaveTo: %v", err)
		}

		reopened := harness.Reopen(t)
		restored := testfixtures.NewDirectoryFactory().NewDirectory()
		if err := restored.LoadFrom(ctx, newSnapshotStore(reopened, 0)); err != nil {
			t.Fatalf("LoadFrom: %v", err)
		}
		if !reflect.DeepEqual(restored.State(), d.State()) {
			t.Fatalf("restored state differs:\n got %+v\nwant %+v", restored.State(), d.State())
		}
	})
}

func TestToState_RejectsUnknownKind(t *testing.T) {
	_, err := toState(persistence.Snapshot{
		ID:        "snap-x",
		Resources: []persistence.Resource{{ID: "BT1", Name: "Boat", Kind: "boat"}},
	})
	if err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.envFile != config.DefaultEnvFile || opts.exportOnly || opts.listSnapshots {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	opts, err = parseFlags([]string{"--env-file", "prod.env", "--export"})
	if err != nil || opts.envFile != "prod.env" || !opts.exportOnly {
		t.Fatalf("unexpected options %+v %v", opts, err)
	}

	if _, err := parseFlags([]string{"--export", "--list-snapshots"}); err == nil {
		t.Fatalf("expected conflicting modes to be rejected")
	}
	if _, err := parseFlags([]string{"serve"}); err == nil {
		t.Fatalf("expected positional arguments to be rejected")
	}
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestOneShotModes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := newApp(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	testfixtures.Book(t, a.directory, testfixtures.Booking{ResourceID: "LE201", Username: "student1", Day: 2, Slot: 1})
	if err := a.close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out bytes.Buffer
	if err := listSnapshots(ctx, cfg, &out); err != nil {
		t.Fatalf("listSnapshots: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 1 || !strings.Contains(lines[0], "reservations=1") {
		t.Fatalf("unexpected listing %q", out.String())
	}

	if err := exportOnce(ctx, cfg, discardLogger()); err != nil {
		t.Fatalf("exportOnce: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(cfg.ExportDir, "reservations.txt"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(body), "RES-1 | LE201 | student1 | 2 | 1 | ACTIVE") {
		t.Fatalf("unexpected export contents:\n%s", body)
	}

	out.Reset()
	if err := listSnapshots(ctx, cfg, &out); err != nil {
		t.Fatalf("listSnapshots: %v", err)
	}
	if got := strings.Count(out.String(), "\n"); got != 1 {
		t.Fatalf("expected export mode not to autosave, got %d snapshots", got)
	}
}
