package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/authflow"
)

const (
	msgNetwork            = "Unable to reach the server. Check your connection and try again."
	msgServer             = "Something went wrong on our side. Please try again later."
	msgInvalidCredentials = "Invalid credentials"
	msgEmailNotFound      = "Email not found"
	msgNotFound           = "Not found"
	msgInvalidCode        = "Invalid verification code"
	msgExpiredCode        = "Verification code has expired"
	msgRejected           = "Request was rejected"
)

// classify maps a non-2xx response of op to a failure. message is the
// server-supplied text and may be empty.
func classify(op Operation, status int, message string) *authflow.Failure {
	f := &authflow.Failure{
		Status: status,
		Err:    fmt.Errorf("%s: unexpected status %d", op, status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		f.Kind = authflow.KindServer
		f.Message = msgServer
		return f
	case status == http.StatusNotFound:
		f.Kind = authflow.KindNotFound
		f.Message = orDefault(message, notFoundMessage(op))
		return f
	case status < http.StatusBadRequest:
		// 1xx and 3xx are not part of the contract.
		f.Kind = authflow.KindServer
		f.Message = msgServer
		return f
	}

	switch op {
	case OpLogin:
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			f.Kind = authflow.KindInvalid
			f.Message = orDefault(message, msgInvalidCredentials)
			return f
		}
	case OpVerifyOTP:
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusGone:
			if status == http.StatusGone || strings.Contains(strings.ToLower(message), "expired") {
				f.Kind = authflow.KindExpired
				f.Message = orDefault(message, msgExpiredCode)
				return f
			}
			f.Kind = authflow.KindInvalid
			f.Message = orDefault(message, msgInvalidCode)
			return f
		}
	}

	f.Kind = authflow.KindDomain
	f.Message = orDefault(message, msgRejected)
	return f
}

func notFoundMessage(op Operation) string {
	switch op {
	case OpForgotPassword, OpResendOTP:
		return msgEmailNotFound
	default:
		return msgNotFound
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
