package authflow

import (
	"context"

	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/google/uuid"
)

// LoginController submits credentials and establishes a session.
//
// At most one login request is in flight per controller; a submit while one
// is pending returns a Skipped outcome without calling the gateway. After
// Dispose, a pending response is discarded and never written or navigated.
type LoginController struct {
	client *Client
	id     string
	guard  *flows.Guard
}

// NewLoginController returns an idle controller bound to c.
func (c *Client) NewLoginController() *LoginController {
	return &LoginController{
		client: c,
		id:     uuid.NewString(),
		guard:  flows.NewGuard(),
	}
}

// ID identifies the controller in audit events.
func (l *LoginController) ID() string { return l.id }

// Pending reports whether a login request is in flight.
func (l *LoginController) Pending() bool { return l.guard.Busy() }

// Dispose tears the controller down. It is idempotent.
func (l *LoginController) Dispose() { l.guard.Dispose() }

// SubmitLogin validates the credentials, calls the gateway, and on success
// writes the session and navigates to the role's landing route. Failures
// leave the session store untouched and the controller ready to retry. A
// controller disposed after the session is written still reports success but
// does not navigate.
func (l *LoginController) SubmitLogin(ctx context.Context, username, password string) Outcome[AuthResult] {
	c := l.client

	reqCtx, cancel, ok := l.guard.Begin(ctx)
	if !ok {
		c.countSkipped(loginCounters)
		return skipped[AuthResult]()
	}
	defer cancel()

	if fe := ValidateLogin(username, password); fe != nil {
		l.guard.Finish(nil)
		c.metricInc(MetricValidationRejected)
		return failed[AuthResult](validationFailure(fe))
	}

	requestID := uuid.NewString()
	reqCtx = WithRequestID(reqCtx, requestID)

	var resp AuthResponse
	err := c.callGateway(reqCtx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.gateway.Login(ctx, LoginRequest{Username: username, Password: password})
		return callErr
	})

	var out Outcome[AuthResult]
	committed := l.guard.Finish(func() {
		if err != nil {
			out = failed[AuthResult](AsFailure(err))
			return
		}
		s, f := c.establishSession(reqCtx, resp)
		if f != nil {
			out = failed[AuthResult](f)
			return
		}
		out = success(AuthResult{Session: s, Destination: c.redirector.DestinationFor(s.Identity.Role)})
	})
	if !committed {
		c.emitDiscarded(reqCtx, loginCounters, l.id, requestID, auditEventLogin)
		return discarded[AuthResult]()
	}

	if !out.OK() {
		c.metricInc(MetricLoginFailure)
		c.emitAudit(reqCtx, auditEventLogin, l.id, requestID, false, "", out.Failure(), func() map[string]string {
			return map[string]string{
				"identifier": username,
			}
		})
		return out
	}

	result := out.Value()
	c.metricInc(MetricLoginSuccess)
	c.emitAudit(reqCtx, auditEventLogin, l.id, requestID, true, result.Session.Identity.ID, nil, func() map[string]string {
		return map[string]string{
			"role":        result.Session.Identity.Role,
			"destination": string(result.Destination),
		}
	})
	c.deliverNavigation(reqCtx, l.guard, l.id, result.Destination, nil)
	return out
}
