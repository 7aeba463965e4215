package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gemchat-backend/internal/models"
)

// MemoryUserRepo keeps users in process. It mirrors UserRepo, including the
// pgx.ErrNoRows and ErrVersionConflict errors, and is used for local runs
// without Postgres and in tests.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *MemoryUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Chats == nil {
		user.Chats = []models.ChatMessage{}
	}
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepo) UpdateLastLogin(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		now := time.Now().UTC()
		u.LastLoginAt = &now
	}
	return nil
}

func (r *MemoryUserRepo) SaveChats(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok || stored.Version != user.Version {
		return ErrVersionConflict
	}

	stored.Chats = append([]models.ChatMessage{}, user.Chats...)
	stored.Version++
	user.Version = stored.Version
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Chats = append([]models.ChatMessage{}, u.Chats...)
	return &c
}
