package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/campus-booking/internal/application"
)

type userService interface {
	AddUser(ctx context.Context, username string, isAdmin bool) (application.User, error)
	User(username string) (application.User, error)
	Users() []application.User
	UserReservations(username string) []application.Reservation
	IsAdmin(username string) bool
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// Create registers a user. Anyone may register a student; registering an
// administrator requires an administrator as the acting user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actingUser, _ := ActingUserFromContext(r.Context())

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal", actingUser, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal", actingUser, "username", req.Username, "is_admin", req.IsAdmin)
	if req.IsAdmin && !h.service.IsAdmin(actingUser) {
		err := fmt.Errorf("%w: only administrators can register administrators", application.ErrUnauthorized)
		logger.ErrorContext(r.Context(), "user creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	user, err := h.service.AddUser(r.Context(), req.Username, req.IsAdmin)
	if err != nil {
		logger.ErrorContext(r.Context(), "user creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

// List returns every registered user to administrators.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
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
	if !h.service.IsAdmin(actingUser) {
		err := fmt.Errorf("%w: only administrators can list users", application.ErrUnauthorized)
		logger.ErrorContext(r.Context(), "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	users := h.service.Users()
	logger.With("result_count", len(users)).InfoContext(r.Context(), "users listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

// Get returns one user to themselves or to an administrator.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request, username string) {
	logger, ok := h.authorizeSelf(w, r, "Get", username)
	if !ok {
		return
	}

	user, err := h.service.User(username)
	if err != nil {
		logger.ErrorContext(r.Context(), "user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user fetched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// Reservations returns the active bookings of one user.
func (h *UserHandler) Reservations(w http.ResponseWriter, r *http.Request, username string) {
	logger, ok := h.authorizeSelf(w, r, "Reservations", username)
	if !ok {
		return
	}

	reservations := h.service.UserReservations(username)
	logger.With("result_count", len(reservations)).InfoContext(r.Context(), "user reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

func (h *UserHandler) authorizeSelf(w http.ResponseWriter, r *http.Request, operation, username string) (*slog.Logger, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), operation, "username", username, "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return nil, false
	}

	logger := h.log(r.Context(), operation, "principal", actingUser, "username", username)
	if actingUser != username && !h.service.IsAdmin(actingUser) {
		err := fmt.Errorf("%w: %s cannot view %s", application.ErrUnauthorized, actingUser, username)
		logger.ErrorContext(r.Context(), "user access denied", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return nil, false
	}
	return logger, true
}

type userRequest struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	RoleLabel string `json:"role_label"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:        user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		RoleLabel: user.Role.Label(),
		IsAdmin:   user.IsAdmin(),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	return out
}
