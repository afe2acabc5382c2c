package gateway

import (
	"testing"

	"github.com/MrEthical07/authflow"
)

func TestClassifyDefaults(t *testing.T) {
	tests := []struct {
		op     Operation
		status int
		msg    string
		kind   authflow.Kind
		want   string
	}{
		{OpLogin, 403, "", authflow.KindInvalid, msgInvalidCredentials},
		{OpLogin, 404, "", authflow.KindNotFound, msgNotFound},
		{OpLogin, 429, "", authflow.KindDomain, msgRejected},
		{OpLogin, 502, "bad gateway", authflow.KindServer, msgServer},
		{OpForgotPassword, 404, "", authflow.KindNotFound, msgEmailNotFound},
		{OpResendOTP, 404, "", authflow.KindNotFound, msgEmailNotFound},
		{OpVerifyOTP, 401, "", authflow.KindInvalid, msgInvalidCode},
		{OpVerifyOTP, 410, "", authflow.KindExpired, msgExpiredCode},
		{OpVerifyOTP, 400, "Code EXPIRED", authflow.KindExpired, "Code EXPIRED"},
		{OpResendOTP, 302, "", authflow.KindServer, msgServer},
	}

	for _, tc := range tests {
		f := classify(tc.op, tc.status, tc.msg)
		if f.Kind != tc.kind {
			t.Fatalf("%s %d: expected kind %s, got %s", tc.op, tc.status, tc.kind, f.Kind)
		}
		if f.Message != tc.want {
			t.Fatalf("%s %d: expected message %q, got %q", tc.op, tc.status, tc.want, f.Message)
		}
		if f.Status != tc.status {
			t.Fatalf("%s %d: expected status recorded, got %d", tc.op, tc.status, f.Status)
		}
	}
}

func TestServerMessage(t *testing.T) {
	if got := serverMessage([]byte(`{"message":" hi "}`)); got != "hi" {
		t.Fatalf("expected message field, got %q", got)
	}
	if got := serverMessage([]byte(`{"error":"nope"}`)); got != "nope" {
		t.Fatalf("expected error field, got %q", got)
	}
	if got := serverMessage([]byte(`<html>`)); got != "" {
		t.Fatalf("expected empty for non-JSON, got %q", got)
	}
}
