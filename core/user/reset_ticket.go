package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// A reset ticket proves a recent, successful OTP redemption to the final
// password-update call. It is an HMAC over the user's identity and current
// password hash plus an issue timestamp: tampering fails the signature check,
// the timestamp bounds its lifetime, and changing the password (the only thing
// a ticket is good for) invalidates it, making it single-use.

var (
	salt    = []byte("darasa.core.user.reset_ticket")
	nowFunc = time.Now // mockable

	// set by NewService from config
	secretKey               []byte
	resetTicketTimeoutDelta time.Duration

	// errors
	errInvalidTicket = errors.New("invalid reset ticket")
	errTicketExpired = errors.New("reset ticket expired")
)

// makeResetTicket generates a reset ticket for a given User.
func makeResetTicket(usr User) string {
	return makeTicketWithTimestamp(usr, int(nowFunc().Unix()))
}

// verifyResetTicket checks that a reset ticket for a given User is valid.
func verifyResetTicket(usr User, ticket string) error {
	if ticket == "" {
		return errInvalidTicket
	}

	parts := strings.SplitN(ticket, "-", 2)
	if len(parts) < 2 {
		return errInvalidTicket
	}
	tsB32 := parts[0]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return errInvalidTicket
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidTicket
	}

	// check that the ticket has not been tampered with
	newTicket := makeTicketWithTimestamp(usr, ts)
	if subtle.ConstantTimeCompare([]byte(newTicket), []byte(ticket)) == 0 {
		return errInvalidTicket
	}

	// check that the timestamp is within limit
	if nowFunc().Sub(time.Unix(int64(ts), 0)) > resetTicketTimeoutDelta {
		return errTicketExpired
	}
	return nil
}

func makeTicketWithTimestamp(usr User, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, sign(hashValue(usr, ts)))
}

func sign(val []byte) string {
	key := sha256.Sum256(append(salt, secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(strconv.Itoa(usr.ID))
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
