package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gorilla/mux"
	service "github.com/hirewire/auth-service/internal/services"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
)

// genericUnauthorized is the only message token and credential failures ever
// put on the wire. The precise kind (revoked vs expired vs reuse) goes to the
// security event sink, not to the client.
const genericUnauthorized = "unauthorized"

type Handler struct {
	service service.AuthService
}

func NewHandler(s service.AuthService) *Handler {
	return &Handler{service: s}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeAuthError collapses the internal error taxonomy into wire statuses:
// 429 with a Retry-After hint, 401 with one generic body for every token or
// credential failure, 500 otherwise.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	var rateLimited *pkgerrors.RateLimitedError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimited.RetryAfter.Seconds())+1))
		h.writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrInvalidCredentials),
		errors.Is(err, pkgerrors.ErrMalformedToken),
		errors.Is(err, pkgerrors.ErrExpiredToken),
		errors.Is(err, pkgerrors.ErrRevokedToken),
		errors.Is(err, pkgerrors.ErrUnknownToken),
		errors.Is(err, pkgerrors.ErrWrongTokenType),
		errors.Is(err, pkgerrors.ErrTokenReuseDetected):
		h.writeError(w, http.StatusUnauthorized, genericUnauthorized)
	case errors.Is(err, pkgerrors.ErrIdentityExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.Me).Methods("GET")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	userID, err := h.service.Register(r.Context(), req.Email, req.Password, req.Role, requestMeta(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": userID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, requestMeta(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, genericUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"subject": subject})
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if _, err := netip.ParseAddr(first); err == nil {
			return first
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}
