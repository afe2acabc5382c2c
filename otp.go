package authflow

import (
	"context"
	"strings"
	"sync"

	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/google/uuid"
)

// OTPState is the verification state of an [OTPController].
type OTPState uint8

const (
	// OTPNotVerified accepts code submissions.
	OTPNotVerified OTPState = iota
	// OTPVerifying has a verification request in flight.
	OTPVerifying
	// OTPVerified is terminal: the session is established.
	OTPVerified
)

func (s OTPState) String() string {
	switch s {
	case OTPVerifying:
		return "verifying"
	case OTPVerified:
		return "verified"
	default:
		return "not_verified"
	}
}

// OTPController drives the one-time passcode step for exactly one email.
//
// Verification and resend share a single request slot. Resend is refused while
// the cooldown counts; the cooldown starts only after a successful resend and
// is ticked by a background driver until it reaches zero or the controller is
// disposed.
type OTPController struct {
	client *Client
	id     string
	email  string
	guard  *flows.Guard

	lifetime context.Context
	stop     context.CancelFunc

	mu       sync.Mutex
	state    OTPState
	input    string
	onTick   func(CooldownState)
	cooldown CooldownTimer
}

// EnterOTPStep opens the verification step for email. Without an email the
// step is never entered: the navigator is sent to the registration route and
// [ErrOTPEmailRequired] is returned.
func (c *Client) EnterOTPStep(email string) (*OTPController, error) {
	if c == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		c.metricInc(MetricOTPEntryRejected)
		c.emitAudit(context.Background(), auditEventOTPEntryRejected, "", "", false, "", nil, nil)
		c.navigator.Navigate(c.config.Routes.Register, nil)
		return nil, ErrOTPEmailRequired
	}

	lifetime, stop := context.WithCancel(context.Background())
	return &OTPController{
		client:   c,
		id:       uuid.NewString(),
		email:    email,
		guard:    flows.NewGuard(),
		lifetime: lifetime,
		stop:     stop,
	}, nil
}

// EnterOTPStepFromState opens the verification step for the email carried by
// the navigation state of the previous step.
func (c *Client) EnterOTPStepFromState(state NavState) (*OTPController, error) {
	return c.EnterOTPStep(state.Email())
}

// ID identifies the controller in audit events.
func (o *OTPController) ID() string { return o.id }

// Email returns the bound email.
func (o *OTPController) Email() string { return o.email }

// State returns the verification state.
func (o *OTPController) State() OTPState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cooldown returns the resend cooldown snapshot for display.
func (o *OTPController) Cooldown() CooldownState {
	return o.cooldown.State()
}

// OnCooldownTick registers fn to observe every cooldown tick. fn runs on the
// driver goroutine.
func (o *OTPController) OnCooldownTick(fn func(CooldownState)) {
	o.mu.Lock()
	o.onTick = fn
	o.mu.Unlock()
}

// SetInput sanitizes a keystroke-level edit of the code field and returns the
// value the field should now show.
func (o *OTPController) SetInput(raw string) string {
	clean := SanitizeOTPInput(raw)
	o.mu.Lock()
	o.input = clean
	o.mu.Unlock()
	return clean
}

// Input returns the current field value.
func (o *OTPController) Input() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.input
}

// Ready reports whether the field holds a complete code.
func (o *OTPController) Ready() bool {
	return IsCompleteOTP(o.Input())
}

// Dispose stops the cooldown, cancels any in-flight request, and discards its
// response. It is idempotent.
func (o *OTPController) Dispose() {
	o.guard.Dispose()
	o.stop()
	o.cooldown.Cancel()
}

// Submit verifies the current field value. See [OTPController.SubmitCode].
func (o *OTPController) Submit(ctx context.Context) Outcome[AuthResult] {
	return o.SubmitCode(ctx, o.Input())
}

// SubmitCode sanitizes rawInput and, when it is a complete code, verifies it.
// Success is terminal: the session is written and the navigator is sent to the
// role's landing route, unless the controller was disposed in between. A
// failure returns the controller to NotVerified.
func (o *OTPController) SubmitCode(ctx context.Context, rawInput string) Outcome[AuthResult] {
	c := o.client
	code := o.SetInput(rawInput)

	if o.State() == OTPVerified {
		c.countSkipped(verifyCounters)
		return skipped[AuthResult]()
	}

	reqCtx, cancel, ok := o.guard.Begin(ctx)
	if !ok {
		c.countSkipped(verifyCounters)
		return skipped[AuthResult]()
	}
	defer cancel()

	if fe := ValidateOTP(code); fe != nil {
		o.guard.Finish(nil)
		c.metricInc(MetricValidationRejected)
		return failed[AuthResult](validationFailure(fe))
	}

	o.mu.Lock()
	if o.state == OTPVerified {
		o.mu.Unlock()
		o.guard.Finish(nil)
		c.countSkipped(verifyCounters)
		return skipped[AuthResult]()
	}
	o.state = OTPVerifying
	o.input = ""
	o.mu.Unlock()

	requestID := uuid.NewString()
	reqCtx = WithRequestID(reqCtx, requestID)

	var resp AuthResponse
	err := c.callGateway(reqCtx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.gateway.VerifyOTP(ctx, o.email, code)
		return callErr
	})

	var out Outcome[AuthResult]
	committed := o.guard.Finish(func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if err != nil {
			o.state = OTPNotVerified
			out = failed[AuthResult](AsFailure(err))
			return
		}
		s, f := c.establishSession(reqCtx, resp)
		if f != nil {
			o.state = OTPNotVerified
			out = failed[AuthResult](f)
			return
		}
		o.state = OTPVerified
		o.cooldown.Cancel()
		out = success(AuthResult{Session: s, Destination: c.redirector.DestinationFor(s.Identity.Role)})
	})
	if !committed {
		o.mu.Lock()
		o.state = OTPNotVerified
		o.mu.Unlock()
		c.emitDiscarded(reqCtx, verifyCounters, o.id, requestID, auditEventOTPVerify)
		return discarded[AuthResult]()
	}

	if !out.OK() {
		c.metricInc(MetricOTPVerifyFailure)
		c.emitAudit(reqCtx, auditEventOTPVerify, o.id, requestID, false, "", out.Failure(), func() map[string]string {
			return map[string]string{
				"email": o.email,
			}
		})
		return out
	}

	o.stop()
	result := out.Value()
	c.metricInc(MetricOTPVerifySuccess)
	c.emitAudit(reqCtx, auditEventOTPVerify, o.id, requestID, true, result.Session.Identity.ID, nil, func() map[string]string {
		return map[string]string{
			"email":       o.email,
			"role":        result.Session.Identity.Role,
			"destination": string(result.Destination),
		}
	})
	c.deliverNavigation(reqCtx, o.guard, o.id, result.Destination, nil)
	return out
}

// Resend asks the gateway for a fresh code. While the cooldown counts, after
// verification, or while another request is in flight it is a Skipped no-op.
// Only a successful resend starts the cooldown.
func (o *OTPController) Resend(ctx context.Context) Outcome[ResendResult] {
	c := o.client

	if o.State() == OTPVerified {
		c.countSkipped(resendCounters)
		return skipped[ResendResult]()
	}
	if o.cooldown.Counting() {
		c.metricInc(MetricOTPResendSuppressed)
		return skipped[ResendResult]()
	}

	reqCtx, cancel, ok := o.guard.Begin(ctx)
	if !ok {
		c.countSkipped(resendCounters)
		return skipped[ResendResult]()
	}
	defer cancel()

	if o.cooldown.Counting() {
		o.guard.Finish(nil)
		c.metricInc(MetricOTPResendSuppressed)
		return skipped[ResendResult]()
	}

	requestID := uuid.NewString()
	reqCtx = WithRequestID(reqCtx, requestID)

	var resp ResendResponse
	err := c.callGateway(reqCtx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.gateway.ResendOTP(ctx, o.email)
		return callErr
	})

	seconds := c.config.OTP.CooldownSeconds()
	var out Outcome[ResendResult]
	committed := o.guard.Finish(func() {
		if err != nil {
			out = failed[ResendResult](AsFailure(err))
			return
		}
		if startErr := o.cooldown.Start(seconds); startErr != nil {
			out = failed[ResendResult](AsFailure(startErr))
			return
		}
		o.startCooldownDriver()
		out = success(ResendResult{Message: resp.Message, CooldownSeconds: seconds})
	})
	if !committed {
		c.emitDiscarded(reqCtx, resendCounters, o.id, requestID, auditEventOTPResend)
		return discarded[ResendResult]()
	}

	if !out.OK() {
		c.metricInc(MetricOTPResendFailure)
		c.emitAudit(reqCtx, auditEventOTPResend, o.id, requestID, false, "", out.Failure(), func() map[string]string {
			return map[string]string{
				"email": o.email,
			}
		})
		return out
	}

	c.metricInc(MetricOTPResendSuccess)
	c.logger.DebugContext(reqCtx, "authflow: resend cooldown started", "flow_id", o.id, "seconds", seconds)
	c.emitAudit(reqCtx, auditEventOTPResend, o.id, requestID, true, "", nil, func() map[string]string {
		return map[string]string{
			"email": o.email,
		}
	})
	return out
}

func (o *OTPController) startCooldownDriver() {
	metrics := o.client.metrics
	src := o.client.ticks(o.client.config.OTP.TickInterval)
	metrics.cooldownStarted()
	go func() {
		defer metrics.cooldownStopped()
		runCooldown(o.lifetime, &o.cooldown, src, func(st CooldownState) {
			o.mu.Lock()
			fn := o.onTick
			o.mu.Unlock()
			if fn != nil {
				fn(st)
			}
		})
	}()
}
