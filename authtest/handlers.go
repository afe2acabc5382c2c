package authtest

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal"
)

const msgTooManyAttempts = "Too many attempts. Please try again later."

type emailBody struct {
	Email string `json:"email"`
}

type verifyBody struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.enter(gateway.OpLogin, w, r) {
		return
	}

	var body authflow.LoginRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	subject := strings.ToLower(body.Username)
	if s.throttled(w, s.limiter.Check(r.Context(), s.loginRule(), subject)) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[subject]
	if !ok {
		u, ok = s.byEmail[subject]
	}
	s.mu.Unlock()

	if !ok || !internal.SecretMatches(u.Password, body.Password) {
		if s.throttled(w, s.limiter.Hit(r.Context(), s.loginRule(), subject)) {
			return
		}
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if s.throttled(w, s.limiter.Reset(r.Context(), s.loginRule(), subject)) {
		return
	}

	resp, err := s.authResponse(u)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Token issuance failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !s.enter(gateway.OpForgotPassword, w, r) {
		return
	}

	var body emailBody
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(body.Email))]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Email not found")
		return
	}
	if !u.Verified {
		writeMessage(w, http.StatusBadRequest, "Account is not verified. Please verify your email first.")
		return
	}
	if err := s.issueCode(u); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not issue code")
		return
	}
	writeMessage(w, http.StatusOK, "OTP sent to your email")
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if !s.enter(gateway.OpVerifyOTP, w, r) {
		return
	}

	var body verifyBody
	if !decode(w, r, &body) {
		return
	}

	key := strings.ToLower(strings.TrimSpace(body.Email))
	if s.throttled(w, s.limiter.Check(r.Context(), s.verifyRule(), key)) {
		return
	}

	s.mu.Lock()
	u, ok := s.byEmail[key]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Email not found")
		return
	}
	pending, ok := s.codes[key]
	switch {
	case !ok || !internal.CodeMatches(pending.digest, body.OTPCode):
		s.mu.Unlock()
		if s.throttled(w, s.limiter.Hit(r.Context(), s.verifyRule(), key)) {
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid OTP")
		return
	case !s.now().Before(pending.expires):
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "OTP has expired")
		return
	}
	delete(s.codes, key)
	u.Verified = true
	s.mu.Unlock()

	if s.throttled(w, s.limiter.Reset(r.Context(), s.verifyRule(), key)) {
		return
	}

	resp, err := s.authResponse(u)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Token issuance failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	if !s.enter(gateway.OpResendOTP, w, r) {
		return
	}

	var body emailBody
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(body.Email))
	u, ok := s.byEmail[key]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Email not found")
		return
	}
	if _, pending := s.codes[key]; !pending && u.Verified {
		writeMessage(w, http.StatusBadRequest, "Account already verified")
		return
	}
	if err := s.issueCode(u); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not issue code")
		return
	}
	writeJSON(w, http.StatusOK, authflow.ResendResponse{Message: "OTP resent successfully", Email: u.Email})
}
