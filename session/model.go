package session

import (
	"strings"
	"time"
)

const (
	// RoleAdmin is the wire value of the administrator role after normalization.
	RoleAdmin = "ADMIN"
	// RoleUser is the wire value of the regular user role after normalization.
	RoleUser = "USER"
)

// Identity is the authenticated user as reported by the auth backend.
//
// Identity values are immutable once received: a later login or verification
// produces a new Identity instead of editing this one.
type Identity struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// NewIdentity builds an Identity with its role normalized.
func NewIdentity(id, username, email, firstName, lastName, role string) Identity {
	return Identity{
		ID:        id,
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      NormalizeRole(role),
	}
}

// NormalizeRole trims and upper-cases a wire role. Roles are compared
// case-insensitively everywhere, so "admin", " Admin " and "ADMIN" are equal.
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

// IsAdmin reports whether the identity carries the administrator role.
func (i Identity) IsAdmin() bool {
	return NormalizeRole(i.Role) == RoleAdmin
}

// DisplayName returns "First Last" when available and the username otherwise.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name == "" {
		return i.Username
	}
	return name
}

// Session is the authenticated identity plus the opaque bearer token.
type Session struct {
	Token    string
	Identity Identity

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session lifetime has elapsed at now. A zero
// ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the lifetime left at now, clamped at zero. A zero
// ExpiresAt reports zero.
func (s Session) Remaining(now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
