package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func verifyAs(email, code, role string) func(ctx context.Context, e, c string) (AuthResponse, error) {
	return func(ctx context.Context, e, c string) (AuthResponse, error) {
		if e != email || c != code {
			return AuthResponse{}, &Failure{Kind: KindInvalid, Message: "Invalid OTP", Status: 400}
		}
		return authOK("otp-token", "u-test", "testuser", email, role), nil
	}
}

func TestEnterOTPStepWithoutEmailRedirectsToRegister(t *testing.T) {
	gw := &fakeGateway{}
	env := newTestEnv(t, gw)

	for _, state := range []NavState{nil, {}, {NavStateEmail: "  "}} {
		ctrl, err := env.client.EnterOTPStepFromState(state)
		if !errors.Is(err, ErrOTPEmailRequired) {
			t.Fatalf("expected ErrOTPEmailRequired, got %v", err)
		}
		if ctrl != nil {
			t.Fatal("expected no controller")
		}
	}

	calls := env.nav.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected three redirects, got %d", len(calls))
	}
	for _, c := range calls {
		if c.route != "/register" {
			t.Fatalf("expected /register, got %q", c.route)
		}
	}
	if gw.verifyCalls.Load()+gw.resendCalls.Load() != 0 {
		t.Fatal("entry rejection must not touch the gateway")
	}
}

func TestSubmitCodeSuccessIsTerminal(t *testing.T) {
	gw := &fakeGateway{verify: verifyAs("testuser@example.com", "123456", "USER")}
	env := newTestEnv(t, gw)

	ctrl, err := env.client.EnterOTPStep("testuser@example.com")
	if err != nil {
		t.Fatalf("EnterOTPStep: %v", err)
	}
	defer ctrl.Dispose()

	out := ctrl.SubmitCode(context.Background(), "123456")
	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err())
	}
	if ctrl.State() != OTPVerified {
		t.Fatalf("expected Verified, got %v", ctrl.State())
	}
	if out.Value().Destination != "/events" {
		t.Fatalf("expected /events, got %q", out.Value().Destination)
	}
	if out.Value().Session.Identity.Email != "testuser@example.com" {
		t.Fatalf("unexpected identity %+v", out.Value().Session.Identity)
	}

	calls := env.nav.Calls()
	if len(calls) != 1 || calls[0].route != "/events" {
		t.Fatalf("expected navigation to /events, got %+v", calls)
	}

	if again := ctrl.SubmitCode(context.Background(), "123456"); again.Status() != Skipped {
		t.Fatalf("expected submit after verification to be skipped, got %v", again.Status())
	}
	if resend := ctrl.Resend(context.Background()); resend.Status() != Skipped {
		t.Fatalf("expected resend after verification to be skipped, got %v", resend.Status())
	}
	if gw.verifyCalls.Load() != 1 || gw.resendCalls.Load() != 0 {
		t.Fatalf("unexpected gateway calls verify=%d resend=%d", gw.verifyCalls.Load(), gw.resendCalls.Load())
	}
	if env.store.writes.Load() != 1 {
		t.Fatalf("expected one session write, got %d", env.store.writes.Load())
	}
}

func TestSubmitCodeSanitizesInput(t *testing.T) {
	gw := &fakeGateway{verify: verifyAs("a@example.com", "123456", "USER")}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("a@example.com")
	defer ctrl.Dispose()

	if got := ctrl.SetInput("12a-3"); got != "123" {
		t.Fatalf("expected sanitized field %q, got %q", "123", got)
	}
	if ctrl.Ready() {
		t.Fatal("expected incomplete code to be not ready")
	}
	if got := ctrl.SetInput("1 2 3 4 5 6 7 8"); got != "123456" {
		t.Fatalf("expected truncated field %q, got %q", "123456", got)
	}
	if !ctrl.Ready() {
		t.Fatal("expected complete code to be ready")
	}

	out := ctrl.Submit(context.Background())
	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err())
	}
	gw.mu.Lock()
	code := gw.lastCode
	gw.mu.Unlock()
	if code != "123456" {
		t.Fatalf("expected sanitized code sent, got %q", code)
	}
	if ctrl.Input() != "" {
		t.Fatal("expected code field cleared after submission")
	}
}

func TestSubmitCodeIncompleteNeverCallsGateway(t *testing.T) {
	gw := &fakeGateway{verify: verifyAs("a@example.com", "123456", "USER")}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("a@example.com")
	defer ctrl.Dispose()

	for _, raw := range []string{"", "12345", "abcdef"} {
		out := ctrl.SubmitCode(context.Background(), raw)
		if out.Status() != Failed || out.Kind() != KindValidation {
			t.Fatalf("%q: expected validation failure, got %v %v", raw, out.Status(), out.Kind())
		}
		if out.Message() != "Please enter the 6-digit code" {
			t.Fatalf("unexpected message %q", out.Message())
		}
		if ctrl.State() != OTPNotVerified {
			t.Fatalf("expected NotVerified, got %v", ctrl.State())
		}
	}
	if gw.verifyCalls.Load() != 0 {
		t.Fatalf("expected no gateway call, got %d", gw.verifyCalls.Load())
	}
}

func TestSubmitCodeNetworkFailureAllowsRetry(t *testing.T) {
	attempts := 0
	gw := &fakeGateway{}
	gw.verify = func(ctx context.Context, email, code string) (AuthResponse, error) {
		attempts++
		if attempts == 1 {
			return AuthResponse{}, &Failure{Kind: KindNetwork, Message: msgNetwork, Err: context.DeadlineExceeded}
		}
		return authOK("tok", "u1", "testuser", email, "USER"), nil
	}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("testuser@example.com")
	defer ctrl.Dispose()

	out := ctrl.SubmitCode(context.Background(), "123456")
	if out.Status() != Failed || out.Kind() != KindNetwork {
		t.Fatalf("expected network failure, got %v %v", out.Status(), out.Kind())
	}
	if out.Message() == "" {
		t.Fatal("expected display message")
	}
	if ctrl.State() != OTPNotVerified {
		t.Fatalf("expected NotVerified after failure, got %v", ctrl.State())
	}
	if env.store.writes.Load() != 0 {
		t.Fatal("failure must not write the session")
	}

	retry := ctrl.SubmitCode(context.Background(), "123456")
	if !retry.OK() {
		t.Fatalf("expected retry to be accepted and succeed, got %v %v", retry.Status(), retry.Err())
	}
}

func TestSubmitCodeExpiredAndInvalidKinds(t *testing.T) {
	for _, want := range []Kind{KindInvalid, KindExpired, KindServer} {
		gw := &fakeGateway{
			verify: func(context.Context, string, string) (AuthResponse, error) {
				return AuthResponse{}, NewFailure(want, want.String())
			},
		}
		env := newTestEnv(t, gw)
		ctrl, _ := env.client.EnterOTPStep("a@example.com")

		out := ctrl.SubmitCode(context.Background(), "654321")
		ctrl.Dispose()
		if out.Kind() != want {
			t.Fatalf("expected %v, got %v", want, out.Kind())
		}
	}
}

func TestSubmitCodeSingleFlightAcrossResend(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	wait := blockUntil(release, entered)

	gw := &fakeGateway{}
	gw.verify = func(ctx context.Context, email, code string) (AuthResponse, error) {
		if err := wait(ctx); err != nil {
			return AuthResponse{}, err
		}
		return authOK("tok", "u1", "testuser", email, "USER"), nil
	}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("a@example.com")
	defer ctrl.Dispose()

	done := make(chan Outcome[AuthResult], 1)
	go func() { done <- ctrl.SubmitCode(context.Background(), "123456") }()
	<-entered

	if ctrl.State() != OTPVerifying {
		t.Fatalf("expected Verifying, got %v", ctrl.State())
	}
	if out := ctrl.SubmitCode(context.Background(), "123456"); out.Status() != Skipped {
		t.Fatalf("expected second submit skipped, got %v", out.Status())
	}
	if out := ctrl.Resend(context.Background()); out.Status() != Skipped {
		t.Fatalf("expected resend during verification skipped, got %v", out.Status())
	}

	close(release)
	if out := <-done; !out.OK() {
		t.Fatalf("expected first submit to succeed, got %v", out.Err())
	}
	if gw.verifyCalls.Load() != 1 || gw.resendCalls.Load() != 0 {
		t.Fatalf("unexpected calls verify=%d resend=%d", gw.verifyCalls.Load(), gw.resendCalls.Load())
	}
}

func TestResendStartsCooldownAndCountsDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	gw := &fakeGateway{}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("testuser@example.com")
	defer ctrl.Dispose()

	observed := make(chan CooldownState, 64)
	ctrl.OnCooldownTick(func(s CooldownState) { observed <- s })

	out := ctrl.Resend(context.Background())
	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err())
	}
	if out.Value().CooldownSeconds != 60 || out.Value().Message != "OTP resent successfully" {
		t.Fatalf("unexpected result %+v", out.Value())
	}
	if st := ctrl.Cooldown(); st.Phase != CooldownCounting || st.RemainingSeconds != 60 {
		t.Fatalf("expected Counting/60, got %+v", st)
	}

	src := env.ticks.Latest(t)
	src.tick(t)
	if st := <-observed; st.Phase != CooldownCounting || st.RemainingSeconds != 59 {
		t.Fatalf("expected Counting/59 after one tick, got %+v", st)
	}

	if skipped := ctrl.Resend(context.Background()); skipped.Status() != Skipped {
		t.Fatalf("expected resend during cooldown skipped, got %v", skipped.Status())
	}
	if gw.resendCalls.Load() != 1 {
		t.Fatalf("expected one gateway call, got %d", gw.resendCalls.Load())
	}

	prev := 59
	for i := 0; i < 59; i++ {
		src.tick(t)
		st := <-observed
		if st.RemainingSeconds > prev {
			t.Fatalf("remaining seconds increased from %d to %d", prev, st.RemainingSeconds)
		}
		prev = st.RemainingSeconds
	}
	if st := ctrl.Cooldown(); st.Phase != CooldownIdle || st.RemainingSeconds != 0 {
		t.Fatalf("expected Idle/0 after 60 ticks, got %+v", st)
	}

	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected tick source stopped when cooldown finished")
	}

	if again := ctrl.Resend(context.Background()); !again.OK() {
		t.Fatalf("expected resend after cooldown to be accepted, got %v", again.Status())
	}
	if v := env.client.MetricsSnapshot().Counters[MetricOTPResendSuppressed]; v != 1 {
		t.Fatalf("expected MetricOTPResendSuppressed=1, got %d", v)
	}
}

func TestResendFailureDoesNotStartCooldown(t *testing.T) {
	gw := &fakeGateway{
		resend: func(context.Context, string) (ResendResponse, error) {
			return ResendResponse{}, &Failure{Kind: KindDomain, Message: "Account already verified", Status: 400}
		},
	}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("a@example.com")
	defer ctrl.Dispose()

	out := ctrl.Resend(context.Background())
	if out.Status() != Failed || out.Message() != "Account already verified" {
		t.Fatalf("expected domain failure, got %v %q", out.Status(), out.Message())
	}
	if ctrl.Cooldown().Phase != CooldownIdle {
		t.Fatal("failed resend must not start the cooldown")
	}
	if out := ctrl.Resend(context.Background()); out.Status() != Failed {
		t.Fatalf("expected another attempt to reach the gateway, got %v", out.Status())
	}
	if gw.resendCalls.Load() != 2 {
		t.Fatalf("expected two gateway calls, got %d", gw.resendCalls.Load())
	}
}

func TestDisposeStopsCooldownDriver(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	gw := &fakeGateway{}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("a@example.com")

	if out := ctrl.Resend(context.Background()); !out.OK() {
		t.Fatalf("expected success, got %v", out.Err())
	}
	src := env.ticks.Latest(t)

	ctrl.Dispose()
	ctrl.Dispose()

	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected dispose to stop the tick source")
	}
	if st := ctrl.Cooldown(); st.Phase != CooldownIdle || st.RemainingSeconds != 0 {
		t.Fatalf("expected cancelled cooldown, got %+v", st)
	}
	if out := ctrl.SubmitCode(context.Background(), "123456"); out.Status() != Skipped {
		t.Fatalf("expected submit after dispose skipped, got %v", out.Status())
	}
}

func TestDisposeDuringVerifyDiscards(t *testing.T) {
	entered := make(chan struct{}, 1)
	gw := &fakeGateway{}
	gw.verify = func(ctx context.Context, email, code string) (AuthResponse, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return AuthResponse{}, ctx.Err()
	}
	env := newTestEnv(t, gw)
	ctrl, _ := env.client.EnterOTPStep("a@example.com")

	done := make(chan Outcome[AuthResult], 1)
	go func() { done <- ctrl.SubmitCode(context.Background(), "123456") }()
	<-entered
	ctrl.Dispose()

	out := <-done
	if out.Status() != Discarded {
		t.Fatalf("expected discarded, got %v", out.Status())
	}
	if env.store.writes.Load() != 0 || len(env.nav.Calls()) != 0 {
		t.Fatal("disposed controller must not write or navigate")
	}
}

func TestResendLateSuccessAfterDisposeIsDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{}, 1)
	gw := &fakeGateway{}
	gw.resend = func(ctx context.Context, email string) (ResendResponse, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return ResendResponse{Message: "OTP resent successfully", Email: email}, nil
	}
	env := newTestEnv(t, gw)
	ctrl, err := env.client.EnterOTPStep("a@example.com")
	if err != nil {
		t.Fatalf("EnterOTPStep failed: %v", err)
	}

	done := make(chan Outcome[ResendResult], 1)
	go func() { done <- ctrl.Resend(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected gateway call")
	}
	ctrl.Dispose()

	var out Outcome[ResendResult]
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Resend did not return after Dispose")
	}
	if out.Status() != Discarded {
		t.Fatalf("expected discarded, got %v", out.Status())
	}
	if st := ctrl.Cooldown(); st.Phase != CooldownIdle || st.RemainingSeconds != 0 {
		t.Fatalf("expected idle cooldown, got %+v", st)
	}
	if n := env.ticks.Count(); n != 0 {
		t.Fatalf("expected no cooldown driver, got %d tick sources", n)
	}
	if n := env.client.MetricsSnapshot().ActiveCooldowns; n != 0 {
		t.Fatalf("expected no active cooldowns, got %d", n)
	}
	if v := env.client.MetricsSnapshot().Counters[MetricOTPResendDiscarded]; v != 1 {
		t.Fatalf("expected one discarded resend, got %d", v)
	}
}

func TestActiveCooldownGaugeFollowsDriver(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{}, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.OTP.ResendCooldown = time.Second
		cfg.Metrics.Enabled = true
		b.WithConfig(cfg)
	})
	ctrl, _ := env.client.EnterOTPStep("a@example.com")
	defer ctrl.Dispose()

	if out := ctrl.Resend(context.Background()); !out.OK() {
		t.Fatalf("expected success, got %v", out.Err())
	}
	if n := env.client.MetricsSnapshot().ActiveCooldowns; n != 1 {
		t.Fatalf("expected one active cooldown, got %d", n)
	}

	src := env.ticks.Latest(t)
	src.tick(t)

	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected driver to stop once the cooldown elapsed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for env.client.MetricsSnapshot().ActiveCooldowns != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected active cooldown gauge to return to zero")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
