package handler

import (
	"net/http"
	"time"

	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// AccountHandler serves sign-up, login and role management.
type AccountHandler struct {
	svc      *service.AccountService
	tokenTTL time.Duration
	log      logrus.FieldLogger
}

// NewAccountHandler constructs an AccountHandler. tokenTTL is used as the
// session cookie lifetime.
func NewAccountHandler(svc *service.AccountService, tokenTTL time.Duration, log logrus.FieldLogger) *AccountHandler {
	return &AccountHandler{svc: svc, tokenTTL: tokenTTL, log: log}
}

// SignUp handles POST /auth/signup
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	user, err := h.svc.SignUp(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.AuthResponse{User: user})
}

// Login handles POST /auth/login
// The token is returned in the body and also set as the session cookie.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	auth.SetCookie(w, r, resp.Token, h.tokenTTL)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SetRoles handles PUT /users/{id}/roles
func (h *AccountHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	var req model.SetRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	user, err := h.svc.SetRoles(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
