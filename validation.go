package authflow

import "strings"

// OTPLength is the number of digits in a one-time passcode.
const OTPLength = 6

// Field error reasons.
const (
	ReasonRequired   = "required"
	ReasonFormat     = "format"
	ReasonIncomplete = "incomplete"
)

// FieldError is a structured client-side validation result.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// IsValidEmail performs a conservative shape check: exactly one '@', non-empty
// local and domain parts, a dot in the domain, no consecutive dots, no
// whitespace, and no leading or trailing dot in either part.
func IsValidEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	if strings.Count(s, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	if local == "" || domain == "" {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	for _, part := range []string{local, domain} {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") {
			return false
		}
	}
	return true
}

// SanitizeOTPInput strips every non-digit and keeps at most the first
// [OTPLength] digits. It is meant to run on every input event, so the field
// value is always short and numeric.
func SanitizeOTPInput(raw string) string {
	var b strings.Builder
	b.Grow(OTPLength)
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		n++
		if n == OTPLength {
			break
		}
	}
	return b.String()
}

// IsCompleteOTP reports whether s is exactly [OTPLength] ASCII digits.
func IsCompleteOTP(s string) bool {
	if len(s) != OTPLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateLogin returns the first missing login field, or nil.
func ValidateLogin(username, password string) *FieldError {
	if strings.TrimSpace(username) == "" {
		return &FieldError{Field: "username", Reason: ReasonRequired}
	}
	if password == "" {
		return &FieldError{Field: "password", Reason: ReasonRequired}
	}
	return nil
}

// ValidateEmail checks an email field.
func ValidateEmail(email string) *FieldError {
	if strings.TrimSpace(email) == "" {
		return &FieldError{Field: "email", Reason: ReasonRequired}
	}
	if !IsValidEmail(email) {
		return &FieldError{Field: "email", Reason: ReasonFormat}
	}
	return nil
}

// ValidateOTP checks an already sanitized code field.
func ValidateOTP(code string) *FieldError {
	if code == "" {
		return &FieldError{Field: "otpCode", Reason: ReasonRequired}
	}
	if !IsCompleteOTP(code) {
		return &FieldError{Field: "otpCode", Reason: ReasonIncomplete}
	}
	return nil
}

// validationFailure turns a field error into the display-ready Validation failure.
func validationFailure(fe *FieldError) *Failure {
	msg := msgRequired
	switch {
	case fe.Reason == ReasonFormat:
		msg = msgInvalidEmail
	case fe.Reason == ReasonIncomplete, fe.Field == "otpCode":
		msg = msgIncompleteCode
	}
	return &Failure{Kind: KindValidation, Message: msg, Err: fe}
}
