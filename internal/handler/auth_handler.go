package handler

import (
	"encoding/json"
	"net/http"

	"go-identity-service/internal/middleware"
	"go-identity-service/internal/model"
	"go-identity-service/internal/service"
	"go-identity-service/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
	audit   *service.AuditService
}

func NewAuthHandler(service *service.AuthService, audit *service.AuditService) *AuthHandler {
	return &AuthHandler{service: service, audit: audit}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	profile, err := h.service.Register(r.Context(), payload)
	if err != nil {
		h.audit.Record(r.Context(), model.AuditActionRegister, model.AuditOutcomeDenied, payload.Email, nil, clientIP(r))
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), model.AuditActionRegister, model.AuditOutcomeSuccess, profile.Email, &profile.ID, clientIP(r))
	writeSuccess(w, http.StatusOK, profile, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	pair, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.audit.Record(r.Context(), model.AuditActionLogin, model.AuditOutcomeDenied, payload.Email, nil, clientIP(r))
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), model.AuditActionLogin, model.AuditOutcomeSuccess, payload.Email, nil, clientIP(r))
	writeSuccess(w, http.StatusOK, pair, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	pair, err := h.service.Refresh(r.Context(), payload.AccessToken, payload.RefreshToken)
	if err != nil {
		h.audit.Record(r.Context(), model.AuditActionRefresh, model.AuditOutcomeDenied, "", nil, clientIP(r))
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), model.AuditActionRefresh, model.AuditOutcomeSuccess, "", nil, clientIP(r))
	writeSuccess(w, http.StatusOK, pair, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	profile, err := h.service.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, nil)
}
