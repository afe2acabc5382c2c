package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/MrEthical07/authflow/gateway"

	// maxBodyBytes bounds every response body read.
	maxBodyBytes = 1 << 20
)

// Operation names one of the four gateway calls.
type Operation string

const (
	OpLogin          Operation = "login"
	OpForgotPassword Operation = "forgot_password"
	OpVerifyOTP      Operation = "verify_otp"
	OpResendOTP      Operation = "resend_otp"
)

// HTTPGateway talks to the auth API described by an authflow.GatewayConfig.
type HTTPGateway struct {
	cfg        authflow.GatewayConfig
	httpClient *http.Client
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

var _ authflow.Gateway = (*HTTPGateway)(nil)

// Option customizes an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient replaces the default client, whose timeout is cfg.Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *HTTPGateway) {
		if tp != nil {
			g.tracer = tp.Tracer(tracerName)
		}
	}
}

// New returns a gateway for cfg. BaseURL must be set.
func New(cfg authflow.GatewayConfig, opts ...Option) (*HTTPGateway, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway BaseURL must be set")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	g := &HTTPGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

// Login posts credentials.
func (g *HTTPGateway) Login(ctx context.Context, req authflow.LoginRequest) (authflow.AuthResponse, error) {
	var resp authflow.AuthResponse
	if err := g.do(ctx, OpLogin, g.cfg.LoginPath, req, &resp); err != nil {
		return authflow.AuthResponse{}, err
	}
	if err := checkAuthResponse(resp); err != nil {
		return authflow.AuthResponse{}, err
	}
	return resp, nil
}

// RequestPasswordReset asks the server to email a reset code.
func (g *HTTPGateway) RequestPasswordReset(ctx context.Context, email string) (authflow.MessageResponse, error) {
	var resp authflow.MessageResponse
	if err := g.do(ctx, OpForgotPassword, g.cfg.ForgotPasswordPath, emailRequest{Email: email}, &resp); err != nil {
		return authflow.MessageResponse{}, err
	}
	return resp, nil
}

// VerifyOTP submits a six-digit code for email.
func (g *HTTPGateway) VerifyOTP(ctx context.Context, email, code string) (authflow.AuthResponse, error) {
	var resp authflow.AuthResponse
	if err := g.do(ctx, OpVerifyOTP, g.cfg.VerifyOTPPath, verifyRequest{Email: email, OTPCode: code}, &resp); err != nil {
		return authflow.AuthResponse{}, err
	}
	if err := checkAuthResponse(resp); err != nil {
		return authflow.AuthResponse{}, err
	}
	return resp, nil
}

// ResendOTP asks the server to send a fresh code to email.
func (g *HTTPGateway) ResendOTP(ctx context.Context, email string) (authflow.ResendResponse, error) {
	var resp authflow.ResendResponse
	if err := g.do(ctx, OpResendOTP, g.cfg.ResendOTPPath, emailRequest{Email: email}, &resp); err != nil {
		return authflow.ResendResponse{}, err
	}
	return resp, nil
}

func checkAuthResponse(resp authflow.AuthResponse) error {
	if resp.Token == "" {
		return &authflow.Failure{
			Kind:    authflow.KindServer,
			Message: msgServer,
			Err:     errors.New("auth response missing token"),
		}
	}
	return nil
}

func (g *HTTPGateway) do(ctx context.Context, op Operation, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	requestID := authflow.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := g.tracer.Start(ctx, "authflow.gateway."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.path", path),
			attribute.String("authflow.request_id", requestID),
		),
	)
	defer span.End()

	fail := func(f *authflow.Failure) error {
		span.SetAttributes(attribute.String("authflow.failure_kind", f.Kind.String()))
		if f.Status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", f.Status))
		}
		span.SetStatus(codes.Error, f.Kind.String())
		if f.Err != nil {
			span.RecordError(f.Err)
		}
		return f
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fail(&authflow.Failure{Kind: authflow.KindServer, Message: msgServer, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fail(&authflow.Failure{Kind: authflow.KindServer, Message: msgServer, Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	g.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	res, err := g.httpClient.Do(req)
	if err != nil {
		return fail(&authflow.Failure{Kind: authflow.KindNetwork, Message: msgNetwork, Err: err})
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return fail(&authflow.Failure{Kind: authflow.KindNetwork, Message: msgNetwork, Status: res.StatusCode, Err: err})
	}
	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fail(classify(op, res.StatusCode, serverMessage(data)))
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fail(&authflow.Failure{
				Kind:    authflow.KindServer,
				Message: msgServer,
				Status:  res.StatusCode,
				Err:     fmt.Errorf("decode %s response: %w", op, err),
			})
		}
	}
	return nil
}

// serverMessage extracts the display message of an error body. It accepts
// {"message": "..."} and {"error": "..."}.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if m := strings.TrimSpace(body.Message); m != "" {
		return m
	}
	return strings.TrimSpace(body.Error)
}
