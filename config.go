package authflow

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of a [Client].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Routes  RoutesConfig
	OTP     OTPConfig
	Session SessionConfig
	Gateway GatewayConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig names the navigation targets used by the flows.
type RoutesConfig struct {
	AdminLanding   Route
	DefaultLanding Route
	Register       Route
	VerifyOTP      Route
	Login          Route
}

/*
====================================
OTP CONFIG
====================================
*/

// DefaultResendCooldown is the wait between two successful resend requests.
const DefaultResendCooldown = 60 * time.Second

// DefaultOTPExpiry is the server-side validity window of a code as shown to users.
const DefaultOTPExpiry = 10 * time.Minute

// OTPConfig tunes the verification step.
type OTPConfig struct {
	ResendCooldown time.Duration
	TickInterval   time.Duration
	// ExpiryWindow is informational: the server decides when a code expires.
	ExpiryWindow time.Duration
}

// CooldownSeconds returns ResendCooldown in whole seconds, rounded up.
func (c OTPConfig) CooldownSeconds() int {
	secs := c.ResendCooldown / time.Second
	if c.ResendCooldown%time.Second != 0 {
		secs++
	}
	return int(secs)
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session bookkeeping.
type SessionConfig struct {
	// DefaultTTL bounds sessions whose token carries no expiry claim.
	DefaultTTL  time.Duration
	RedisPrefix string
	Profile     string
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig describes the remote auth API.
type GatewayConfig struct {
	BaseURL            string
	Timeout            time.Duration
	LoginPath          string
	ForgotPasswordPath string
	VerifyOTPPath      string
	ResendOTPPath      string
	UserAgent          string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// DrainTimeout bounds how long Close keeps delivering queued events.
	DrainTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Routes: RoutesConfig{
			AdminLanding:   "/admin",
			DefaultLanding: "/events",
			Register:       "/register",
			VerifyOTP:      "/verify-otp",
			Login:          "/login",
		},
		OTP: OTPConfig{
			ResendCooldown: DefaultResendCooldown,
			TickInterval:   time.Second,
			ExpiryWindow:   DefaultOTPExpiry,
		},
		Session: SessionConfig{
			DefaultTTL:  24 * time.Hour,
			RedisPrefix: "af",
			Profile:     "default",
		},
		Gateway: GatewayConfig{
			BaseURL:            "http://localhost:8080",
			Timeout:            10 * time.Second,
			LoginPath:          "/api/auth/login",
			ForgotPasswordPath: "/api/auth/forgot-password",
			VerifyOTPPath:      "/api/auth/verify-otp",
			ResendOTPPath:      "/api/auth/resend-otp",
			UserAgent:          "authflow",
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   256,
			DropIfFull:   true,
			DrainTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate returns the first configuration violation.
func (c *Config) Validate() error {
	// Routes
	routes := map[string]Route{
		"AdminLanding":   c.Routes.AdminLanding,
		"DefaultLanding": c.Routes.DefaultLanding,
		"Register":       c.Routes.Register,
		"VerifyOTP":      c.Routes.VerifyOTP,
		"Login":          c.Routes.Login,
	}
	for _, name := range []string{"AdminLanding", "DefaultLanding", "Register", "VerifyOTP", "Login"} {
		r := routes[name]
		if strings.TrimSpace(string(r)) == "" {
			return errors.New("Routes " + name + " must be set")
		}
		if !strings.HasPrefix(string(r), "/") {
			return errors.New("Routes " + name + " must start with '/'")
		}
	}

	// OTP
	if c.OTP.ResendCooldown < time.Second {
		return errors.New("OTP ResendCooldown must be >= 1s")
	}
	if c.OTP.ResendCooldown > time.Hour {
		return errors.New("OTP ResendCooldown must be <= 1h")
	}
	if c.OTP.TickInterval <= 0 {
		return errors.New("OTP TickInterval must be > 0")
	}
	if c.OTP.ExpiryWindow < 0 {
		return errors.New("OTP ExpiryWindow must be >= 0")
	}

	// Session
	if c.Session.DefaultTTL <= 0 {
		return errors.New("Session DefaultTTL must be > 0")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must be set")
	}

	// Gateway
	if c.Gateway.Timeout <= 0 {
		return errors.New("Gateway Timeout must be > 0")
	}
	for _, gp := range []struct {
		name string
		path string
	}{
		{"LoginPath", c.Gateway.LoginPath},
		{"ForgotPasswordPath", c.Gateway.ForgotPasswordPath},
		{"VerifyOTPPath", c.Gateway.VerifyOTPPath},
		{"ResendOTPPath", c.Gateway.ResendOTPPath},
	} {
		if !strings.HasPrefix(gp.path, "/") {
			return errors.New("Gateway " + gp.name + " must start with '/'")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.Enabled && c.Audit.DrainTimeout <= 0 {
		return errors.New("Audit DrainTimeout must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
