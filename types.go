package authflow

import (
	"context"

	"github.com/MrEthical07/authflow/session"
)

// Identity is the authenticated user. See [session.Identity].
type Identity = session.Identity

// Session is the authenticated identity plus token. See [session.Session].
type Session = session.Session

// SessionStore holds the current session. See [session.Store].
type SessionStore = session.Store

const (
	// RoleAdmin is the normalized administrator role.
	RoleAdmin = session.RoleAdmin
	// RoleUser is the normalized regular user role.
	RoleUser = session.RoleUser
)

// NormalizeRole trims and upper-cases a wire role.
func NormalizeRole(role string) string {
	return session.NormalizeRole(role)
}

// Gateway performs the four network operations of the identity flow.
//
// Implementations must return either a populated response and a nil error, or
// an error that is (or wraps) a *Failure. Controllers pass any other error
// through [AsFailure], so a misbehaving Gateway degrades to KindServer or
// KindNetwork instead of escaping untyped.
//
//	Implementations: gateway.HTTPGateway, authtest.Server (via gateway)
type Gateway interface {
	Login(ctx context.Context, req LoginRequest) (AuthResponse, error)
	RequestPasswordReset(ctx context.Context, email string) (MessageResponse, error)
	VerifyOTP(ctx context.Context, email, code string) (AuthResponse, error)
	ResendOTP(ctx context.Context, email string) (ResendResponse, error)
}

// LoginRequest is the credential pair submitted by the login form.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserPayload is the wire form of the authenticated user.
type UserPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Identity converts the payload into an [Identity] with a normalized role.
func (u UserPayload) Identity() Identity {
	return session.NewIdentity(u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.Role)
}

// AuthResponse is returned by login and OTP verification.
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}

// MessageResponse is returned by the password reset request.
type MessageResponse struct {
	Message string `json:"message"`
}

// ResendResponse is returned by the OTP resend request.
type ResendResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// AuthResult is the success payload of login and verification outcomes.
type AuthResult struct {
	Session     Session
	Destination Route
}

// ResetResult is the success payload of a password reset request.
type ResetResult struct {
	Email   string
	Message string
}

// ResendResult is the success payload of an OTP resend.
type ResendResult struct {
	Message         string
	CooldownSeconds int
}
