// Package client is a typed HTTP client for the chat API. It keeps the
// session cookie in a jar so calls after Login are authenticated.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"gemchat-backend/internal/models"
)

// StatusError is returned for any non-200 response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: received status code %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: received status code %d", e.Op, e.StatusCode)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL, e.g.
// http://localhost:8080/api/v1.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, "login", http.MethodPost, "/user/login", models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AuthStatus(ctx context.Context) (*models.AuthStatusResponse, error) {
	var out models.AuthStatusResponse
	if err := c.do(ctx, "auth status", http.MethodGet, "/user/auth-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/user/logout", nil, nil)
}

// SendMessage returns the assistant's reply to message.
func (c *Client) SendMessage(ctx context.Context, message string) (string, error) {
	var out models.ChatResponse
	if err := c.do(ctx, "send message", http.MethodPost, "/chat/new", models.ChatRequest{Message: message}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Chats(ctx context.Context) ([]models.ChatMessage, error) {
	var out models.ChatHistoryResponse
	if err := c.do(ctx, "list chats", http.MethodGet, "/chat/all-chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *Client) DeleteChats(ctx context.Context) error {
	return c.do(ctx, "delete chats", http.MethodDelete, "/chat/delete", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody models.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errBody.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
