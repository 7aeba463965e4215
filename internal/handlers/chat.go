package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"gemchat-backend/internal/middleware"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/render"
)

type chatService interface {
	Complete(ctx context.Context, userID uuid.UUID, message string) (string, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.ChatMessage, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) error
	Conversation(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type ChatHandler struct {
	chatService chatService
}

func NewChatHandler(chatService chatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Generate sends the message to the model and returns the reply.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := h.chatService.Complete(r.Context(), middleware.GetUserID(r.Context()), req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Message: reply})
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatHistoryResponse{Message: "OK", Chats: chats})
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.ClearHistory(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// Page renders the session owner's transcript as HTML.
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	user, err := h.chatService.Conversation(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render.WritePage(&buf, user.Name, user.Chats); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
