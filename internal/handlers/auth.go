package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gemchat-backend/internal/middleware"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/observability"
)

type authService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, *models.AuthTokens, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.User, *models.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Status(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// CookieOptions controls the auth cookie issued on login.
type CookieOptions struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

type AuthHandler struct {
	authService authService
	cookie      CookieOptions
	metrics     *observability.Metrics
}

func NewAuthHandler(authService authService, cookie CookieOptions, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie, metrics: metrics}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, tokens, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.AuthEvents.WithLabelValues("signup").Inc()
	h.setAuthCookie(w, tokens.AccessToken)
	writeJSON(w, http.StatusCreated, models.AuthResponse{
		Message:    "OK",
		Name:       user.Name,
		Email:      user.Email,
		AuthTokens: *tokens,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, tokens, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.metrics.AuthEvents.WithLabelValues("login_failed").Inc()
		handleServiceError(w, r, err)
		return
	}

	h.metrics.AuthEvents.WithLabelValues("login").Inc()
	h.setAuthCookie(w, tokens.AccessToken)
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Message:    "OK",
		Name:       user.Name,
		Email:      user.Email,
		AuthTokens: *tokens,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.AuthEvents.WithLabelValues("refresh").Inc()
	h.setAuthCookie(w, tokens.AccessToken)
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Message:    "OK",
		Name:       user.Name,
		Email:      user.Email,
		AuthTokens: *tokens,
	})
}

// Logout drops the refresh token, if one is sent, and clears the auth cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.AuthEvents.WithLabelValues("logout").Inc()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (h *AuthHandler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Status(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AuthStatusResponse{
		Message: "OK",
		Name:    user.Name,
		Email:   user.Email,
	})
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
