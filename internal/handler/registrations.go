package handler

import (
	"net/http"
	"strconv"

	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// RegistrationHandler serves self-registration and participant management.
type RegistrationHandler struct {
	svc *service.RegistrationService
	log logrus.FieldLogger
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, log logrus.FieldLogger) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, log: log}
}

// Register handles POST /events/{id}/register
// Performs a concurrency-safe registration of the caller.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Register(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// Unregister handles DELETE /events/{id}/register
func (h *RegistrationHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unregister(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListParticipants handles GET /events/{id}/participants
func (h *RegistrationHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.svc.ListParticipants(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(participants))
}

// AddParticipant handles POST /events/{id}/participants
func (h *RegistrationHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req model.AddParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	reg, err := h.svc.AddParticipant(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// RemoveParticipant handles DELETE /events/{id}/participants/{userId}
func (h *RegistrationHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveParticipant(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AvailableUsers handles GET /events/{id}/available-users?q=&limit=
func (h *RegistrationHandler) AvailableUsers(w http.ResponseWriter, r *http.Request) {
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidation, "limit must be an integer")
			return
		}
		limit = n
	}

	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		query = q.Get("search")
	}

	users, err := h.svc.AvailableUsers(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), query, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(users))
}

// MyRegistrations handles GET /my/registrations
func (h *RegistrationHandler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.MyRegistrations(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(events))
}
