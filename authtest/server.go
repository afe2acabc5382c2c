package authtest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// User is a seeded account.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	// Verified accounts may request password resets.
	Verified bool
}

// Config configures a [Server].
type Config struct {
	Paths     authflow.GatewayConfig
	Signing   jwt.Config
	OTPExpiry time.Duration
	Logger    *slog.Logger
	// Throttle, when its Redis client is set, limits repeated bad passwords
	// and codes.
	Throttle ThrottleConfig
}

// ThrottleConfig bounds failed attempts per username (login) and per email
// (code verification) within Window. A zero budget disables that check.
type ThrottleConfig struct {
	Redis             redis.UniversalClient
	Prefix            string
	MaxLoginFailures  int
	MaxVerifyFailures int
	Window            time.Duration
}

// DefaultConfig returns the default endpoint paths, HS256 tokens valid for one
// hour, and a ten minute code expiry.
func DefaultConfig() Config {
	return Config{
		Paths: authflow.DefaultConfig().Gateway,
		Signing: jwt.Config{
			AccessTTL:     time.Hour,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    []byte("authtest-signing-key-not-for-production"),
			Issuer:        "authtest",
		},
		OTPExpiry: authflow.DefaultOTPExpiry,
	}
}

type pendingCode struct {
	digest  [32]byte
	expires time.Time
}

type injectedFailure struct {
	status  int
	message string
}

// Server is an http.Handler serving the auth API.
type Server struct {
	cfg     Config
	tokens  *jwt.Manager
	logger  *slog.Logger
	limiter *rate.Limiter
	mux     *http.ServeMux
	now     func() time.Time

	mu        sync.Mutex
	users     map[string]*User // by lower-cased username
	byEmail   map[string]*User // by lower-cased email
	codes     map[string]pendingCode
	lastCodes map[string]string
	fixedCode string
	failures  map[gateway.Operation][]injectedFailure
	calls     map[gateway.Operation]int
	gates     map[gateway.Operation]chan struct{}
}

// NewServer builds a backend seeded with users.
func NewServer(cfg Config, users ...User) (*Server, error) {
	tokens, err := jwt.NewManager(cfg.Signing)
	if err != nil {
		return nil, err
	}
	if cfg.OTPExpiry <= 0 {
		cfg.OTPExpiry = authflow.DefaultOTPExpiry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:       cfg,
		tokens:    tokens,
		logger:    logger,
		mux:       http.NewServeMux(),
		now:       time.Now,
		users:     make(map[string]*User),
		byEmail:   make(map[string]*User),
		codes:     make(map[string]pendingCode),
		lastCodes: make(map[string]string),
		failures:  make(map[gateway.Operation][]injectedFailure),
		calls:     make(map[gateway.Operation]int),
		gates:     make(map[gateway.Operation]chan struct{}),
	}
	if cfg.Throttle.Redis != nil {
		prefix := cfg.Throttle.Prefix
		if prefix == "" {
			prefix = "authtest"
		}
		s.limiter = rate.New(cfg.Throttle.Redis, prefix)
	}
	for _, u := range users {
		s.AddUser(u)
	}

	s.mux.HandleFunc("POST "+cfg.Paths.LoginPath, s.handleLogin)
	s.mux.HandleFunc("POST "+cfg.Paths.ForgotPasswordPath, s.handleForgotPassword)
	s.mux.HandleFunc("POST "+cfg.Paths.VerifyOTPPath, s.handleVerifyOTP)
	s.mux.HandleFunc("POST "+cfg.Paths.ResendOTPPath, s.handleResendOTP)
	return s, nil
}

// DemoUsers returns the accounts seeded by the CLI and examples.
func DemoUsers() []User {
	return []User{
		{Username: "admin", Email: "admin@example.com", Password: "admin123", FirstName: "Ada", LastName: "Admin", Role: authflow.RoleAdmin, Verified: true},
		{Username: "testuser", Email: "testuser@example.com", Password: "password123", FirstName: "Test", LastName: "User", Role: authflow.RoleUser, Verified: true},
		{Username: "newbie", Email: "newbie@example.com", Password: "newbie123", FirstName: "New", LastName: "Bie", Role: "user", Verified: false},
	}
}

// AddUser seeds or replaces an account. An empty ID is filled with a UUID.
func (s *Server) AddUser(u User) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Username)] = &u
	s.byEmail[strings.ToLower(u.Email)] = &u
}

// SetFixedCode makes every issued code equal code. An empty code restores
// random codes.
func (s *Server) SetFixedCode(code string) {
	s.mu.Lock()
	s.fixedCode = code
	s.mu.Unlock()
}

// LastCode returns the most recent code issued to email, as if read from the
// user's mailbox.
func (s *Server) LastCode(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.lastCodes[strings.ToLower(email)]
	return code, ok
}

// ExpireCode makes the pending code of email stale.
func (s *Server) ExpireCode(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if p, ok := s.codes[key]; ok {
		p.expires = s.now().Add(-time.Second)
		s.codes[key] = p
	}
}

// FailNext makes the next call of op answer status with message instead of
// being handled. Calls queue in order.
func (s *Server) FailNext(op gateway.Operation, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], injectedFailure{status: status, message: message})
}

// Hold blocks every call of op until the returned release function runs.
func (s *Server) Hold(op gateway.Operation) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[op] == gate {
				delete(s.gates, op)
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests op has received.
func (s *Server) Calls(op gateway.Operation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Tokens exposes the signer, for verifying issued tokens in tests.
func (s *Server) Tokens() *jwt.Manager {
	return s.tokens
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// enter records a call and applies holds and injected failures. It reports
// whether the handler should continue.
func (s *Server) enter(op gateway.Operation, w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.calls[op]++
	gate := s.gates[op]
	var injected *injectedFailure
	if q := s.failures[op]; len(q) > 0 {
		injected = &q[0]
		s.failures[op] = q[1:]
	}
	s.mu.Unlock()

	s.logger.Debug("authtest: request", "operation", string(op), "request_id", r.Header.Get("X-Request-ID"))

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return false
		}
	}
	if injected != nil {
		writeMessage(w, injected.status, injected.message)
		return false
	}
	return true
}

func (s *Server) authResponse(u *User) (authflow.AuthResponse, error) {
	token, err := s.tokens.Issue(u.ID, u.Username, u.Email, u.Role)
	if err != nil {
		return authflow.AuthResponse{}, err
	}
	return authflow.AuthResponse{
		Token: token,
		User: authflow.UserPayload{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
		},
	}, nil
}

// issueCode stores a fresh code for u. Callers hold s.mu.
func (s *Server) issueCode(u *User) error {
	code := s.fixedCode
	if code == "" {
		var err error
		code, err = internal.NewOTP(authflow.OTPLength)
		if err != nil {
			return err
		}
	}
	key := strings.ToLower(u.Email)
	s.codes[key] = pendingCode{digest: internal.HashCode(code), expires: s.now().Add(s.cfg.OTPExpiry)}
	s.lastCodes[key] = code
	s.logger.Info("authtest: code issued", "email", u.Email, "code", code)
	return nil
}

func (s *Server) loginRule() rate.Rule {
	return rate.Rule{Name: "login", Max: s.cfg.Throttle.MaxLoginFailures, Window: s.cfg.Throttle.Window}
}

func (s *Server) verifyRule() rate.Rule {
	return rate.Rule{Name: "verify", Max: s.cfg.Throttle.MaxVerifyFailures, Window: s.cfg.Throttle.Window}
}

// throttled writes the response for a limiter error and reports whether it did.
func (s *Server) throttled(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, rate.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, msgTooManyAttempts)
	default:
		s.logger.Warn("authtest: limiter failed", "error", err)
		writeMessage(w, http.StatusServiceUnavailable, "Service unavailable")
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, authflow.MessageResponse{Message: message})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	return true
}
