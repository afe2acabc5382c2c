package internal

import "testing"

func TestNewOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewOTP(6)
		if err != nil {
			t.Fatalf("NewOTP: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}

	if _, err := NewOTP(3); err == nil {
		t.Fatal("expected error for too few digits")
	}
	if _, err := NewOTP(11); err == nil {
		t.Fatal("expected error for too many digits")
	}
}

func TestCodeMatches(t *testing.T) {
	stored := HashCode("123456")
	if !CodeMatches(stored, "123456") {
		t.Fatal("expected match")
	}
	if CodeMatches(stored, "123457") {
		t.Fatal("expected mismatch")
	}
}

func TestSecretMatches(t *testing.T) {
	if !SecretMatches("admin123", "admin123") {
		t.Fatal("expected match")
	}
	if SecretMatches("admin123", "admin124") || SecretMatches("admin123", "") {
		t.Fatal("expected mismatch")
	}
}
