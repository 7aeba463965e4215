package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/observability"
	"gemchat-backend/internal/repository"
)

type chatUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SaveChats(ctx context.Context, user *models.User) error
}

// Completer turns a prompt into a reply. GeminiService is the production one.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Reply, error)
}

type ChatOptions struct {
	// PersistUserTurns also stores the user's message ahead of the reply.
	PersistUserTurns bool
}

type ChatService struct {
	users   chatUserStore
	model   Completer
	locker  Locker
	metrics *observability.Metrics
	opts    ChatOptions
}

func NewChatService(users chatUserStore, model Completer, locker Locker, metrics *observability.Metrics, opts ChatOptions) *ChatService {
	return &ChatService{
		users:   users,
		model:   model,
		locker:  locker,
		metrics: metrics,
		opts:    opts,
	}
}

// Complete asks the model for a reply to message given the stored history and
// appends the reply to the history. Nothing is saved when the model call fails.
func (s *ChatService) Complete(ctx context.Context, userID uuid.UUID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return "", err
	}
	defer unlock()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	prompt := BuildPrompt(user.Chats, message)

	start := time.Now()
	reply, err := s.model.Complete(ctx, prompt)
	if err != nil {
		s.metrics.ObserveCompletion("error", time.Since(start))
		return "", fmt.Errorf("generate completion: %w", err)
	}

	if reply.Fallback {
		log.Printf("WARNING: no usable candidate for user %s, storing fallback reply", userID)
		s.metrics.ObserveCompletion("fallback", time.Since(start))
	} else {
		s.metrics.ObserveCompletion("ok", time.Since(start))
	}

	if s.opts.PersistUserTurns {
		user.Chats = append(user.Chats, models.ChatMessage{Role: models.RoleUser, Content: message})
	}
	user.Chats = append(user.Chats, models.ChatMessage{Role: models.RoleAssistant, Content: reply.Text})

	if err := s.save(ctx, user); err != nil {
		return "", err
	}

	return reply.Text, nil
}

// Conversation returns the session owner's record after checking that the
// stored identity matches the session identity.
func (s *ChatService) Conversation(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ID != userID {
		return nil, &UnauthorizedError{Message: msgPermissionMismatch}
	}
	return user, nil
}

func (s *ChatService) History(ctx context.Context, userID uuid.UUID) ([]models.ChatMessage, error) {
	user, err := s.Conversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Chats, nil
}

// ClearHistory replaces the stored history with an empty one. There is no undo.
func (s *ChatService) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	user, err := s.Conversation(ctx, userID)
	if err != nil {
		return err
	}

	user.Chats = []models.ChatMessage{}
	if err := s.save(ctx, user); err != nil {
		return err
	}

	s.metrics.HistoryResets.Inc()
	return nil
}

func (s *ChatService) lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, chatLockKey(userID))
	if err != nil {
		s.metrics.LockWaits.WithLabelValues("failed").Inc()
		return nil, err
	}
	s.metrics.LockWaits.WithLabelValues("acquired").Inc()
	return unlock, nil
}

func (s *ChatService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthenticatedError{Message: msgUserNotRegistered}
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user, nil
}

func (s *ChatService) save(ctx context.Context, user *models.User) error {
	err := s.users.SaveChats(ctx, user)
	if errors.Is(err, repository.ErrVersionConflict) {
		return &ConflictError{Message: "Conversation was changed by another request, please retry"}
	}
	if err != nil {
		return fmt.Errorf("save chats for user %s: %w", user.ID, err)
	}
	return nil
}
