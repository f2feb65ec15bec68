package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleEmployee    Role = "employee"
	RoleSecretariat Role = "secretariat"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee, RoleSecretariat:
		return true
	default:
		return false
	}
}

// User is the read-only profile snapshot returned by the backend. It is
// replaced wholesale on login or profile refresh, never mutated in place.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         Role            `json:"role"`
	Active       bool            `json:"active"`
	SystemAccess map[string]bool `json:"systemAccess,omitempty"`
	RouteAccess  []string        `json:"routeAccess,omitempty"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.SystemAccess != nil {
		out.SystemAccess = make(map[string]bool, len(u.SystemAccess))
		for k, v := range u.SystemAccess {
			out.SystemAccess[k] = v
		}
	}
	if u.RouteAccess != nil {
		out.RouteAccess = append([]string(nil), u.RouteAccess...)
	}
	return &out
}

var (
	ErrMissingUserID = errors.New("user record has no id")
	ErrInvalidRole   = errors.New("user record has an unknown role")
)

// ParseUser validates a user record at the ingestion boundary: either a
// backend response or a persisted snapshot. Everything past this point
// trusts the role enum and the access maps.
func ParseUser(raw []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("parse user record: %w", err)
	}
	if u.ID == "" {
		return nil, ErrMissingUserID
	}
	if !u.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}
	return &u, nil
}

// Envelope is the backend's response wrapper: {success, message, data}.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
