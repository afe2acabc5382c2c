package authflow

import (
	"context"
	"strings"

	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/google/uuid"
)

// ResetRequester runs the forgot-password step: it asks the server to send a
// code to an email and forwards that email to the verification step.
type ResetRequester struct {
	client *Client
	id     string
	guard  *flows.Guard
}

// NewResetRequester returns an idle requester bound to c.
func (c *Client) NewResetRequester() *ResetRequester {
	return &ResetRequester{
		client: c,
		id:     uuid.NewString(),
		guard:  flows.NewGuard(),
	}
}

// ID identifies the requester in audit events.
func (r *ResetRequester) ID() string { return r.id }

// Pending reports whether a request is in flight.
func (r *ResetRequester) Pending() bool { return r.guard.Busy() }

// Dispose tears the requester down. It is idempotent.
func (r *ResetRequester) Dispose() { r.guard.Dispose() }

// RequestReset validates email and asks the gateway for a reset code. On
// success it navigates to the verification route with the email in the
// navigation state unless the requester has been disposed by then. Each call
// is independent of earlier ones.
func (r *ResetRequester) RequestReset(ctx context.Context, email string) Outcome[ResetResult] {
	c := r.client
	email = strings.TrimSpace(email)

	reqCtx, cancel, ok := r.guard.Begin(ctx)
	if !ok {
		c.countSkipped(resetCounters)
		return skipped[ResetResult]()
	}
	defer cancel()

	if fe := ValidateEmail(email); fe != nil {
		r.guard.Finish(nil)
		c.metricInc(MetricValidationRejected)
		return failed[ResetResult](validationFailure(fe))
	}

	requestID := uuid.NewString()
	reqCtx = WithRequestID(reqCtx, requestID)

	var resp MessageResponse
	err := c.callGateway(reqCtx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.gateway.RequestPasswordReset(ctx, email)
		return callErr
	})

	var out Outcome[ResetResult]
	committed := r.guard.Finish(func() {
		if err != nil {
			out = failed[ResetResult](AsFailure(err))
			return
		}
		out = success(ResetResult{Email: email, Message: resp.Message})
	})
	if !committed {
		c.emitDiscarded(reqCtx, resetCounters, r.id, requestID, auditEventResetRequest)
		return discarded[ResetResult]()
	}

	if !out.OK() {
		c.metricInc(MetricResetRequestFailure)
		c.emitAudit(reqCtx, auditEventResetRequest, r.id, requestID, false, "", out.Failure(), func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return out
	}

	c.metricInc(MetricResetRequestSuccess)
	c.emitAudit(reqCtx, auditEventResetRequest, r.id, requestID, true, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	c.deliverNavigation(reqCtx, r.guard, r.id, c.config.Routes.VerifyOTP, NavState{NavStateEmail: email})
	return out
}
