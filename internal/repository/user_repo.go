package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"gemchat-backend/internal/models"
)

// ErrVersionConflict is returned by SaveChats when the stored history changed
// after the caller loaded it.
var ErrVersionConflict = errors.New("chat history was modified concurrently")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, chats, version)
		VALUES ($1, $2, $3, $4, '[]'::jsonb, 0)
		RETURNING created_at`

	user.ID = uuid.New()
	user.Chats = []models.ChatMessage{}
	user.Version = 0

	return r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash,
	).Scan(&user.CreatedAt)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, chats, version, created_at, last_login_at
		FROM users WHERE LOWER(email) = LOWER($1)`
	return r.scanUser(ctx, query, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, chats, version, created_at, last_login_at
		FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var chatsRaw []byte

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&chatsRaw, &user.Version, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	chats, err := decodeChats(chatsRaw)
	if err != nil {
		return nil, fmt.Errorf("decode chats for user %s: %w", user.ID, err)
	}
	user.Chats = chats
	return user, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $1 WHERE id = $2", time.Now(), userID)
	return err
}

// SaveChats replaces the stored history with user.Chats if the stored version
// still equals user.Version, then bumps user.Version.
func (r *UserRepo) SaveChats(ctx context.Context, user *models.User) error {
	data, err := encodeChats(user.Chats)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		"UPDATE users SET chats = $1::jsonb, version = version + 1 WHERE id = $2 AND version = $3",
		string(data), user.ID, user.Version,
	)
	if err != nil {
		return fmt.Errorf("save chats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	user.Version++
	return nil
}

func encodeChats(chats []models.ChatMessage) ([]byte, error) {
	if chats == nil {
		chats = []models.ChatMessage{}
	}
	data, err := json.Marshal(chats)
	if err != nil {
		return nil, fmt.Errorf("encode chats: %w", err)
	}
	return data, nil
}

func decodeChats(raw []byte) ([]models.ChatMessage, error) {
	chats := []models.ChatMessage{}
	if len(raw) == 0 {
		return chats, nil
	}
	if err := json.Unmarshal(raw, &chats); err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []models.ChatMessage{}
	}
	return chats, nil
}
