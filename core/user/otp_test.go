package user

import (
	"testing"
	"time"
)

func TestNewOneTimeCode(t *testing.T) {
	code, err := NewOneTimeCode("t@test.test", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewOneTimeCode() failed: %v", err)
	}

	if len(code.Code) != otpLength {
		t.Errorf("Code length = %d; want %d", len(code.Code), otpLength)
	}
	for _, r := range code.Code {
		if r < '0' || r > '9' {
			t.Errorf("Code = %q; want digits only", code.Code)
			break
		}
	}
	if code.Expired(time.Now().UTC()) {
		t.Error("fresh code is already expired")
	}
	if !code.Expired(time.Now().UTC().Add(11 * time.Minute)) {
		t.Error("code did not expire after its TTL")
	}
}

func TestMakeVerificationToken(t *testing.T) {
	t1, err := makeVerificationToken()
	if err != nil {
		t.Fatalf("makeVerificationToken() failed: %v", err)
	}
	t2, _ := makeVerificationToken()

	if len(t1) != 64 {
		t.Errorf("token length = %d; want 64", len(t1))
	}
	if t1 == t2 {
		t.Error("two tokens are identical")
	}
}
