// Package auth mediates every credential round trip against the
// backend. It is the only place a backend interaction may populate or
// destroy the session store.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmhmddd/omega-gateway/internal/model"
	"github.com/mmhmddd/omega-gateway/internal/session"
)

const genericFailureMessage = "The operation could not be completed. Please try again."

var (
	// ErrResetTokenMissing is returned before any network call when the
	// one-time reset token from the reset link is absent.
	ErrResetTokenMissing = errors.New("reset token is missing")

	ErrBackendUnreachable = errors.New("backend unreachable")
)

// Error carries the user-visible message for a rejected auth request:
// the backend's own message when it sent one, else a generic fallback.
type Error struct {
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	http    *http.Client
	store   *session.Store
}

// NewClient builds the authenticator. httpClient is expected to carry
// the bearer transport so authenticated calls (change-password, me)
// get the token attached.
func NewClient(baseURL string, httpClient *http.Client, store *session.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		store:   store,
	}
}

type loginData struct {
	User  json.RawMessage `json:"user"`
	Token string          `json:"token"`
}

// Login exchanges credentials for a session. On success both the user
// snapshot and the token land in the store atomically. Never retried.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	env, err := c.post(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("login response: %w", err)
	}
	if data.Token == "" {
		return nil, &Error{Message: genericFailureMessage}
	}
	user, err := model.ParseUser(data.User)
	if err != nil {
		return nil, fmt.Errorf("login response: %w", err)
	}

	if err := c.store.Set(user, data.Token); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout destroys the local session. Idempotent: safe when no session
// exists. The backend token is simply abandoned; the backend has no
// revocation endpoint.
func (c *Client) Logout() error {
	return c.store.Clear()
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.post(ctx, "/auth/forgot-password", map[string]string{"email": email})
	return err
}

// ResetPassword consumes the one-time token carried by the reset link.
// An empty token is refused locally, before any network call.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return ErrResetTokenMissing
	}
	_, err := c.post(ctx, "/auth/reset-password", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	})
	return err
}

func (c *Client) ChangePassword(ctx context.Context, current, updated string) error {
	_, err := c.post(ctx, "/auth/change-password", map[string]string{
		"currentPassword": current,
		"newPassword":     updated,
	})
	return err
}

// Me refreshes the stored profile snapshot without replacing the token.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	env, err := c.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	user, err := model.ParseUser(env.Data)
	if err != nil {
		return nil, fmt.Errorf("profile response: %w", err)
	}
	if err := c.store.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*model.Envelope, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*model.Envelope, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Message: genericFailureMessage, Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		message := env.Message
		if message == "" {
			message = genericFailureMessage
		}
		return nil, &Error{Message: message, Status: resp.StatusCode}
	}
	return &env, nil
}
