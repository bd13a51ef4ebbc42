package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/scheduler"
)

var errMissingPosition = errors.New("day and slot are required")

type reservationService interface {
	MakeReservation(ctx context.Context, params application.MakeReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, actingUser, reservationID string) (application.Reservation, error)
	Reservations() []application.Reservation
	ResourceReservations(resourceID string) []application.Reservation
	UserReservations(username string) []application.Reservation
	IsAdmin(username string) bool
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// List returns reservations visible to the acting user. Administrators see
// the full history, cancelled bookings included, narrowed by ?resource_id=
// and by ?active=true. Other callers see their own active bookings.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "List", "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return
	}

	logger := h.log(r.Context(), "List", "principal", actingUser)
	query := r.URL.Query()
	resourceID := strings.TrimSpace(query.Get("resource_id"))
	activeOnly := false
	if v := query.Get("active"); v != "" {
		var err error
		if activeOnly, err = strconv.ParseBool(v); err != nil {
			logger.ErrorContext(r.Context(), "invalid reservation query", "error", err, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
	}

	var reservations []application.Reservation
	switch {
	case !h.service.IsAdmin(actingUser):
		reservations = h.service.UserReservations(actingUser)
	case resourceID != "" && activeOnly:
		reservations = h.service.ResourceReservations(resourceID)
	default:
		for _, res := range h.service.Reservations() {
			if resourceID != "" && res.ResourceID != resourceID {
				continue
			}
			if activeOnly && !res.Active {
				continue
			}
			reservations = append(reservations, res)
		}
	}

	logger.With("result_count", len(reservations)).InfoContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

// Create books a cell for the acting user.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Create", "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal", actingUser, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.Day == nil || req.Slot == nil {
		h.log(r.Context(), "Create", "principal", actingUser, "error_kind", "bad_request").ErrorContext(r.Context(), "reservation request without position")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPosition)
		return
	}

	logger := h.log(r.Context(), "Create", "principal", actingUser, "resource_id", req.ResourceID, "day", *req.Day, "slot", *req.Slot)
	reservation, err := h.service.MakeReservation(r.Context(), application.MakeReservationParams{
		ResourceID: strings.TrimSpace(req.ResourceID),
		Username:   actingUser,
		Day:        *req.Day,
		Slot:       *req.Slot,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// Cancel releases a reservation owned by the acting user, or any reservation
// when the acting user is an administrator.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Cancel", "reservation_id", id, "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return
	}

	logger := h.log(r.Context(), "Cancel", "principal", actingUser, "reservation_id", id)
	reservation, err := h.service.CancelReservation(r.Context(), actingUser, id)
	if err != nil {
		logger.ErrorContext(r.Context(), "cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

type reservationRequest struct {
	ResourceID string `json:"resource_id"`
	Day        *int   `json:"day"`
	Slot       *int   `json:"slot"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID          string  `json:"id"`
	ResourceID  string  `json:"resource_id"`
	Username    string  `json:"username"`
	Day         int     `json:"day"`
	DayName     string  `json:"day_name"`
	Slot        int     `json:"slot"`
	SlotLabel   string  `json:"slot_label"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	CancelledAt *string `json:"cancelled_at,omitempty"`
}

func toReservationDTO(r application.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:         r.ID,
		ResourceID: r.ResourceID,
		Username:   r.Username,
		Day:        r.Day,
		DayName:    scheduler.DayName(r.Day),
		Slot:       r.Slot,
		SlotLabel:  scheduler.SlotLabel(r.Slot),
		Status:     r.Status(),
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !r.CancelledAt.IsZero() {
		cancelled := r.CancelledAt.UTC().Format(time.RFC3339Nano)
		dto.CancelledAt = &cancelled
	}
	return dto
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, toReservationDTO(r))
	}
	return out
}
