package authflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/session"
)

type fakeGateway struct {
	login  func(ctx context.Context, req LoginRequest) (AuthResponse, error)
	reset  func(ctx context.Context, email string) (MessageResponse, error)
	verify func(ctx context.Context, email, code string) (AuthResponse, error)
	resend func(ctx context.Context, email string) (ResendResponse, error)

	loginCalls  atomic.Int32
	resetCalls  atomic.Int32
	verifyCalls atomic.Int32
	resendCalls atomic.Int32

	mu          sync.Mutex
	lastEmail   string
	lastCode    string
	lastRequest string
}

func (g *fakeGateway) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	g.loginCalls.Add(1)
	g.record(ctx, req.Username, "")
	if g.login == nil {
		return AuthResponse{}, NewFailure(KindServer, "login not stubbed")
	}
	return g.login(ctx, req)
}

func (g *fakeGateway) RequestPasswordReset(ctx context.Context, email string) (MessageResponse, error) {
	g.resetCalls.Add(1)
	g.record(ctx, email, "")
	if g.reset == nil {
		return MessageResponse{Message: "OTP sent to your email"}, nil
	}
	return g.reset(ctx, email)
}

func (g *fakeGateway) VerifyOTP(ctx context.Context, email, code string) (AuthResponse, error) {
	g.verifyCalls.Add(1)
	g.record(ctx, email, code)
	if g.verify == nil {
		return AuthResponse{}, NewFailure(KindServer, "verify not stubbed")
	}
	return g.verify(ctx, email, code)
}

func (g *fakeGateway) ResendOTP(ctx context.Context, email string) (ResendResponse, error) {
	g.resendCalls.Add(1)
	g.record(ctx, email, "")
	if g.resend == nil {
		return ResendResponse{Message: "OTP resent successfully", Email: email}, nil
	}
	return g.resend(ctx, email)
}

func (g *fakeGateway) record(ctx context.Context, email, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastEmail = email
	g.lastCode = code
	g.lastRequest = RequestIDFromContext(ctx)
}

func authOK(token, id, username, email, role string) AuthResponse {
	return AuthResponse{
		Token: token,
		User: UserPayload{
			ID:        id,
			Username:  username,
			Email:     email,
			FirstName: "First",
			LastName:  "Last",
			Role:      role,
		},
	}
}

// blockUntil returns a gateway stub body that waits for release or ctx.
func blockUntil(release <-chan struct{}, entered chan<- struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type navCall struct {
	route Route
	state NavState
}

type recordingNavigator struct {
	mu    sync.Mutex
	calls []navCall
}

func (n *recordingNavigator) Navigate(route Route, state NavState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navCall{route: route, state: state})
}

func (n *recordingNavigator) Calls() []navCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]navCall, len(n.calls))
	copy(out, n.calls)
	return out
}

type manualTicks struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *manualTicks) C() <-chan time.Time { return m.ch }

func (m *manualTicks) Stop() {
	m.once.Do(func() { close(m.stopped) })
}

type tickFactory struct {
	mu      sync.Mutex
	sources []*manualTicks
}

func (f *tickFactory) New(time.Duration) TickSource {
	src := &manualTicks{ch: make(chan time.Time), stopped: make(chan struct{})}
	f.mu.Lock()
	f.sources = append(f.sources, src)
	f.mu.Unlock()
	return src
}

func (f *tickFactory) Latest(t *testing.T) *manualTicks {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		t.Fatal("expected a cooldown tick source")
	}
	return f.sources[len(f.sources)-1]
}

func (f *tickFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// tick delivers one tick and waits until the driver has consumed it.
func (m *manualTicks) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("cooldown driver did not accept tick")
	}
}

type testEnv struct {
	client *Client
	gw     *fakeGateway
	nav    *recordingNavigator
	store  *memoryStoreSpy
	ticks  *tickFactory
}

func newTestEnv(t *testing.T, gw *fakeGateway, configure ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		gw:    gw,
		nav:   &recordingNavigator{},
		store: newMemoryStoreSpy(),
		ticks: &tickFactory{},
	}
	b := New().
		WithGateway(gw).
		WithNavigator(env.nav).
		WithSessionStore(env.store).
		WithMetricsEnabled(true).
		WithTickSource(env.ticks.New)
	for _, fn := range configure {
		fn(b)
	}

	client, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	env.client = client
	return env
}

// memoryStoreSpy counts writes on top of a real MemoryStore.
type memoryStoreSpy struct {
	inner   SessionStore
	writes  atomic.Int32
	clears  atomic.Int32
	failErr error
}

func newMemoryStoreSpy() *memoryStoreSpy {
	return &memoryStoreSpy{inner: session.NewMemoryStore()}
}

func (s *memoryStoreSpy) Load(ctx context.Context) (Session, error) {
	return s.inner.Load(ctx)
}

func (s *memoryStoreSpy) Replace(ctx context.Context, sess Session) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.writes.Add(1)
	return s.inner.Replace(ctx, sess)
}

func (s *memoryStoreSpy) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.inner.Clear(ctx)
}

// requestIDHandler records the request id found on the context of each log
// record, keyed by message.
type requestIDHandler struct {
	mu   sync.Mutex
	seen map[string]string
}

func newRequestIDHandler() *requestIDHandler {
	return &requestIDHandler{seen: map[string]string{}}
}

func (h *requestIDHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *requestIDHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[r.Message] = RequestIDFromContext(ctx)
	return nil
}

func (h *requestIDHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *requestIDHandler) WithGroup(string) slog.Handler      { return h }

func (h *requestIDHandler) RequestID(msg string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.seen[msg]
	return id, ok
}
