package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gemchat-backend/internal/middleware"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Message: message,
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr      *services.ValidationError
		conflictErr        *services.ConflictError
		unauthenticatedErr *services.UnauthenticatedError
		unauthorizedErr    *services.UnauthorizedError
		rateLimitErr       *services.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflictErr.Message, r))
	case errors.As(err, &unauthenticatedErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHENTICATED", unauthenticatedErr.Message, r))
	case errors.As(err, &unauthorizedErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorizedErr.Message, r))
	case errors.As(err, &rateLimitErr):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", rateLimitErr.Message, r))
	default:
		log.Printf("ERROR: request %s %s failed [%s]: %v", r.Method, r.URL.Path, r.Header.Get(middleware.RequestIDHeader), err)
		resp := errorResp("INTERNAL_ERROR", "Internal server error", r)
		resp.Cause = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}
