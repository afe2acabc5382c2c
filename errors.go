package authflow

import (
	"context"
	"errors"
	"net"

	"github.com/MrEthical07/authflow/session"
)

var (
	// ErrEngineNotReady is returned when a Client or controller is used before Build or after Close.
	ErrEngineNotReady = errors.New("client not initialized")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrGatewayRequired is returned by Build when no Gateway was configured.
	ErrGatewayRequired = errors.New("auth gateway required")
	// ErrSessionStoreRequired is returned by Build when WithSessionStore was given nil.
	ErrSessionStoreRequired = errors.New("session store required")
	// ErrNavigatorRequired is returned by Build when no Navigator was configured.
	ErrNavigatorRequired = errors.New("navigator required")
	// ErrOTPEmailRequired is returned when the verification step is entered without a bound email.
	ErrOTPEmailRequired = errors.New("verification step requires an email")
	// ErrCooldownActive is returned when a cooldown is started while one is already counting.
	ErrCooldownActive = errors.New("cooldown already active")
	// ErrCooldownDuration is returned when a cooldown is started with a non-positive duration.
	ErrCooldownDuration = errors.New("cooldown duration must be > 0")
	// ErrNoSession is returned when no session is held.
	ErrNoSession = session.ErrNoSession
)

// Kind classifies why an operation failed.
type Kind uint8

const (
	// KindValidation is a client-side rejection raised before any network call.
	KindValidation Kind = iota + 1
	// KindNotFound means the account or resource does not exist.
	KindNotFound
	// KindDomain is a business-rule rejection whose message comes from the server.
	KindDomain
	// KindServer is a 5xx response or an unclassifiable failure.
	KindServer
	// KindNetwork means the request never completed (timeout, abort, connection failure).
	KindNetwork
	// KindInvalid means the submitted secret (credentials or code) was wrong.
	KindInvalid
	// KindExpired means the submitted code is stale.
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDomain:
		return "domain"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindInvalid:
		return "invalid"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Failure is the typed failure carried by every Gateway error and by failed
// outcomes. Message is display-ready.
type Failure struct {
	Kind    Kind
	Message string
	// Status is the HTTP status reported by the server, or 0 when none was received.
	Status int
	Err    error
}

// NewFailure builds a Failure without a status or cause.
func NewFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}
	if f.Message == "" {
		return f.Kind.String()
	}
	return f.Kind.String() + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Is matches another *Failure of the same kind, so errors.Is(err, NewFailure(KindNetwork, ""))
// works as a kind test.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok || f == nil || t == nil {
		return false
	}
	return f.Kind == t.Kind
}

// AsFailure converts any error into a *Failure. Gateway errors pass through;
// context cancellation and net.Error become KindNetwork; anything else becomes
// KindServer. A nil error returns nil.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindNetwork, Message: msgNetwork, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Failure{Kind: KindNetwork, Message: msgNetwork, Err: err}
	}

	return &Failure{Kind: KindServer, Message: msgServer, Err: err}
}

// IsKind reports whether err is a *Failure of kind k.
func IsKind(err error, k Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f != nil && f.Kind == k
}

const (
	msgNetwork = "Unable to reach the server. Check your connection and try again."
	msgServer  = "Something went wrong on our side. Please try again later."

	msgRequired       = "required"
	msgInvalidEmail   = "Please enter a valid email address"
	msgIncompleteCode = "Please enter the 6-digit code"
)
