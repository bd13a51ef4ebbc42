package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/campus-booking/internal/application"
)

// SnapshotResult describes a saved snapshot.
type SnapshotResult struct {
	ID      string
	SavedAt time.Time
	Digest  string
	Pruned  int
}

// Snapshotter persists the current directory state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (SnapshotResult, error)
}

// Exporter writes the human-readable export files and returns their paths.
type Exporter interface {
	Export(ctx context.Context) ([]string, error)
}

type adminChecker interface {
	IsAdmin(username string) bool
}

type AdminHandler struct {
	users       adminChecker
	snapshotter Snapshotter
	exporter    Exporter
	responder   responder
	logger      *slog.Logger
}

func NewAdminHandler(users adminChecker, snapshotter Snapshotter, exporter Exporter, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{
		users:       users,
		snapshotter: snapshotter,
		exporter:    exporter,
		responder:   newResponder(base),
		logger:      base,
	}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request, operation string) (*slog.Logger, bool) {
	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), operation, "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return nil, false
	}

	logger := h.log(r.Context(), operation, "principal", actingUser)
	if !h.users.IsAdmin(actingUser) {
		err := fmt.Errorf("%w: only administrators can run %s", application.ErrUnauthorized, operation)
		logger.ErrorContext(r.Context(), "admin operation denied", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return nil, false
	}
	return logger, true
}

func (h *AdminHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.users == nil || h.snapshotter == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger, ok := h.authorize(w, r, "Snapshot")
	if !ok {
		return
	}

	result, err := h.snapshotter.Snapshot(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "snapshot failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("snapshot_id", result.ID, "pruned", result.Pruned).InfoContext(r.Context(), "snapshot saved")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, snapshotResponse{
		ID:      result.ID,
		SavedAt: result.SavedAt.UTC().Format(time.RFC3339Nano),
		Digest:  result.Digest,
		Pruned:  result.Pruned,
	})
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.users == nil || h.exporter == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger, ok := h.authorize(w, r, "Export")
	if !ok {
		return
	}

	files, err := h.exporter.Export(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("file_count", len(files)).InfoContext(r.Context(), "export written")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, exportResponse{Files: files})
}

type snapshotResponse struct {
	ID      string `json:"id"`
	SavedAt string `json:"saved_at"`
	Digest  string `json:"digest"`
	Pruned  int    `json:"pruned"`
}

type exportResponse struct {
	Files []string `json:"files"`
}
