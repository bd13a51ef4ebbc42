package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/campus-booking/internal/application"
)

type resourceService interface {
	AddResource(ctx context.Context, actingUser string, resource application.Resource) (application.Resource, error)
	EditResource(ctx context.Context, params application.EditResourceParams) (application.Resource, error)
	RemoveResource(ctx context.Context, actingUser, resourceID string) error
	FindResources(filter application.ResourceFilter) []application.ResourceView
	ViewResource(key string) (application.ResourceView, error)
	IsSlotAvailable(resourceID string, day, slot int) (bool, error)
	WeeklySchedule(resourceID string) ([]application.ScheduleEntry, error)
}

type ResourceHandler struct {
	service   resourceService
	responder responder
	logger    *slog.Logger
}

func NewResourceHandler(service resourceService, logger *slog.Logger) *ResourceHandler {
	base := defaultLogger(logger)
	return &ResourceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ResourceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ResourceHandler", operation, attrs...)
}

func (h *ResourceHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// List returns the catalog, narrowed by every supplied query parameter.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "List", "query", r.URL.RawQuery)
	filter, err := parseResourceFilter(r.URL.Query())
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid resource query", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	views := h.service.FindResources(filter)
	dtos := make([]resourceDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, toResourceDTO(v.Resource, v.Available))
	}

	logger.With("result_count", len(dtos)).InfoContext(r.Context(), "resources listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResourcesResponse{Resources: dtos})
}

func parseResourceFilter(query url.Values) (application.ResourceFilter, error) {
	filter := application.ResourceFilter{
		Name:     query.Get("name"),
		ID:       query.Get("id"),
		Category: query.Get("category"),
	}
	if v := query.Get("kind"); v != "" {
		kind, ok := application.ParseResourceKind(v)
		if !ok {
			return filter, errInvalidQuery
		}
		filter.Kind = &kind
	}
	if v := query.Get("min_capacity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, errInvalidQuery
		}
		filter.MinCapacity = &n
	}
	if v := query.Get("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errInvalidQuery
		}
		filter.Available = &available
	}
	return filter, nil
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Get", "resource_id", id)
	view, err := h.service.ViewResource(id)
	if err != nil {
		logger.ErrorContext(r.Context(), "resource fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "resource fetched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resourceResponse{Resource: toResourceDTO(view.Resource, view.Available)})
}

func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Create", "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return
	}

	var req resourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode resource request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "resource_id", req.ID, "kind", req.Kind)
	res, err := h.service.AddResource(r.Context(), actingUser, req.toResource())
	if err != nil {
		logger.ErrorContext(r.Context(), "resource creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "resource created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, resourceResponse{Resource: toResourceDTO(res, true)})
}

func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ready(w) {
		return
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Update", "resource_id", id, "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return
	}

	var req resourceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "resource_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode resource update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "resource_id", id)
	res, err := h.service.EditResource(r.Context(), application.EditResourceParams{
		ActingUser: actingUser,
		ResourceID: id,
		Name:       strings.TrimSpace(req.Name),
		Capacity:   req.Capacity,
		Category:   strings.TrimSpace(req.Category),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "resource update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	// A resource removed since the edit had no active reservations left.
	available := true
	if view, vErr := h.service.ViewResource(id); vErr == nil {
		available = view.Available
	}

	logger.InfoContext(r.Context(), "resource updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resourceResponse{Resource: toResourceDTO(res, available)})
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ready(w) {
		return
	}

	actingUser, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Delete", "resource_id", id, "error_kind", "unauthorized").ErrorContext(r.Context(), "missing acting user")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActingUser)
		return
	}

	logger := h.log(r.Context(), "Delete", "resource_id", id)
	if err := h.service.RemoveResource(r.Context(), actingUser, id); err != nil {
		logger.ErrorContext(r.Context(), "resource removal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "resource removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Schedule returns the occupied cells of one resource.
func (h *ResourceHandler) Schedule(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Schedule", "resource_id", id)
	entries, err := h.service.WeeklySchedule(id)
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(entries)).InfoContext(r.Context(), "schedule fetched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, scheduleResponse{ResourceID: id, Entries: toScheduleEntryDTOs(entries)})
}

// Availability reports whether one cell of a resource is free.
func (h *ResourceHandler) Availability(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ready(w) {
		return
	}

	day, dayErr := strconv.Atoi(r.URL.Query().Get("day"))
	slot, slotErr := strconv.Atoi(r.URL.Query().Get("slot"))
	if dayErr != nil || slotErr != nil {
		h.log(r.Context(), "Availability", "resource_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "day and slot must be integers")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	logger := h.log(r.Context(), "Availability", "resource_id", id, "day", day, "slot", slot)
	available, err := h.service.IsSlotAvailable(id, day, slot)
	if err != nil {
		logger.ErrorContext(r.Context(), "availability lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("available", available).InfoContext(r.Context(), "availability checked")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		ResourceID: id,
		Day:        day,
		Slot:       slot,
		Available:  available,
	})
}

type resourceRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Capacity int    `json:"capacity"`
	Category string `json:"category"`
}

// toResource returns nil for an unknown kind so that the Directory reports it
// after its authorization check.
func (r resourceRequest) toResource() application.Resource {
	kind, _ := application.ParseResourceKind(r.Kind)
	switch kind {
	case application.KindRoom:
		return application.Room{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
	case application.KindEquipment:
		return application.Equipment{ID: r.ID, Name: r.Name, Category: r.Category}
	}
	return nil
}

type resourceUpdateRequest struct {
	Name     string `json:"name"`
	Capacity *int   `json:"capacity"`
	Category string `json:"category"`
}

type resourceResponse struct {
	Resource resourceDTO `json:"resource"`
}

type listResourcesResponse struct {
	Resources []resourceDTO `json:"resources"`
}

type resourceDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Capacity  *int   `json:"capacity,omitempty"`
	Category  string `json:"category,omitempty"`
	Details   string `json:"details"`
	Available bool   `json:"available"`
}

func toResourceDTO(res application.Resource, available bool) resourceDTO {
	dto := resourceDTO{
		ID:        res.ResourceID(),
		Name:      res.DisplayName(),
		Kind:      string(res.Kind()),
		Type:      res.Kind().Label(),
		Details:   res.Describe(),
		Available: available,
	}
	switch v := res.(type) {
	case application.Room:
		capacity := v.Capacity
		dto.Capacity = &capacity
	case application.Equipment:
		dto.Category = v.Category
	}
	return dto
}

type scheduleResponse struct {
	ResourceID string             `json:"resource_id"`
	Entries    []scheduleEntryDTO `json:"entries"`
}

type scheduleEntryDTO struct {
	Day           int    `json:"day"`
	DayName       string `json:"day_name"`
	Slot          int    `json:"slot"`
	SlotLabel     string `json:"slot_label"`
	Username      string `json:"username"`
	ReservationID string `json:"reservation_id"`
}

func toScheduleEntryDTOs(entries []application.ScheduleEntry) []scheduleEntryDTO {
	out := make([]scheduleEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, scheduleEntryDTO{
			Day:           e.Day,
			DayName:       e.DayName,
			Slot:          e.Slot,
			SlotLabel:     e.SlotLabel,
			Username:      e.Username,
			ReservationID: e.ReservationID,
		})
	}
	return out
}

type availabilityResponse struct {
	ResourceID string `json:"resource_id"`
	Day        int    `json:"day"`
	Slot       int    `json:"slot"`
	Available  bool   `json:"available"`
}
