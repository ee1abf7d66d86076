package user

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
	"time"
)

const otpLength = 6

// OneTimeCode authorizes one password reset for the email it was issued to.
// Multiple outstanding codes per email are permitted; each is consumed
// (deleted) at most once.
type OneTimeCode struct {
	ID        int
	Email     string
	Code      string
	ExpiresAt time.Time // UTC
}

func (c OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// NewOneTimeCode issues a fresh numeric code for email, valid for ttl.
func NewOneTimeCode(email string, ttl time.Duration) (OneTimeCode, error) {
	code, err := generateNumericCode(otpLength)
	if err != nil {
		return OneTimeCode{}, err
	}
	return OneTimeCode{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func generateNumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// makeVerificationToken generates the random single-use token embedded in the
// email verification link.
func makeVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
