package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrEmailUnverified    = errors.New("please verify your email before logging in")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired verification token")
	ErrInvalidResetCode   = errors.New("invalid or expired code")
	ErrInvalidResetTicket = errors.New("invalid or expired reset ticket")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByVerificationToken(ctx context.Context, token string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	OTPRepository interface {
		CreateCode(ctx context.Context, code OneTimeCode) (OneTimeCode, error)
		// ConsumeCode deletes the most recent unexpired (email, code) match;
		// ErrInvalidResetCode when there is none. Other outstanding codes for
		// the same email are left to expire on their own.
		ConsumeCode(ctx context.Context, email, code string, now time.Time) error
	}

	Service struct {
		repo    Repository
		otpRepo OTPRepository
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

func NewService(repo Repository, otpRepo OTPRepository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	secretKey = []byte(conf.SecretKey)
	resetTicketTimeoutDelta = conf.ResetTicketExpirationDelta
	return &Service{
		repo:    repo,
		otpRepo: otpRepo,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// CheckEmailUniqueness returns a ValidationError when email is already registered.
func (svc *Service) CheckEmailUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	if errors.Cause(err) == ErrNotFound {
		return nil
	}
	return errors.Wrap(err, "checking email uniqueness")
}

// Register creates an unverified student account and emails the verification
// link. The account is persisted whether or not the email can be delivered; a
// delivery failure surfaces as core.ErrUpstreamDependency.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	token, err := makeVerificationToken()
	if err != nil {
		return User{}, errors.Wrap(err, "generating verification token")
	}

	now := time.Now().UTC()
	usr := User{
		Name:              nu.Name,
		Email:             nu.Email,
		Roles:             []string{RoleStudent},
		IsActive:          true,
		VerificationToken: token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	if err := svc.sendVerificationEmail(usr); err != nil {
		svc.logger.Error("sending verification email", err, usr)
		return usr, errors.Wrap(core.ErrUpstreamDependency, "sending verification email")
	}
	return usr, nil
}

// VerifyEmail marks the account holding token as verified and clears the
// token, making it single-use.
func (svc *Service) VerifyEmail(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrInvalidToken
	}
	usr, err := svc.repo.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidToken
		}
		return User{}, errors.Wrap(err, "finding user by verification token")
	}

	usr.IsEmailVerified = true
	usr.VerificationToken = ""
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Authenticate checks the credential pair and records the login time.
// Session credential issuance is the API layer's concern.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !usr.IsEmailVerified {
		return User{}, ErrEmailUnverified
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}

	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset issues a one-time numeric code for the account and
// emails it. Previously issued codes remain valid until they expire.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := NewOneTimeCode(usr.Email, svc.conf.OTPExpirationDelta)
	if err != nil {
		return errors.Wrap(err, "generating one-time code")
	}
	if _, err := svc.otpRepo.CreateCode(ctx, code); err != nil {
		return errors.Wrap(err, "persisting one-time code")
	}

	if err := svc.sendOTPEmail(usr, code); err != nil {
		svc.logger.Error("sending OTP email", err, usr)
		return errors.Wrap(core.ErrUpstreamDependency, "sending OTP email")
	}
	return nil
}

// RedeemResetCode consumes an unexpired (email, code) pair and returns the
// reset ticket the password-update call must present.
func (svc *Service) RedeemResetCode(ctx context.Context, email, code string) (string, error) {
	email = core.CleanString(email, true /* lower */)
	if err := svc.otpRepo.ConsumeCode(ctx, email, code, time.Now().UTC()); err != nil {
		return "", err
	}
	usr, err := svc.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", errors.Wrap(err, "finding user by email")
	}
	return makeResetTicket(usr), nil
}

// ResetPassword overwrites the account password after verifying the reset
// ticket. A successful reset changes the password hash the ticket was signed
// over, so the ticket cannot be replayed.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	usr, err := svc.GetByEmail(ctx, rp.Email)
	if err != nil {
		return err
	}
	if err := verifyResetTicket(usr, rp.Ticket); err != nil {
		return ErrInvalidResetTicket
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// UpdateProfile applies the self-service profile changes.
func (svc *Service) UpdateProfile(ctx context.Context, id int, up UpdateProfile) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if up.Name != "" {
		usr.Name = up.Name
	}
	if up.Password != "" {
		if err := usr.SetPassword(up.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) sendVerificationEmail(usr User) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", svc.conf.FrontendBaseURL, usr.VerificationToken)
	msg := &core.EmailMessage{
		To:          []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:     "Verify Your Email",
		TextContent: fmt.Sprintf("Follow this link to verify your email: %s", link),
		HTMLContent: fmt.Sprintf(`<p>Click <a href="%s">here</a> to verify your email.</p>`, link),
	}
	return svc.mailSvc.SendMessage(msg)
}

func (svc *Service) sendOTPEmail(usr User, code OneTimeCode) error {
	validity := svc.conf.OTPExpirationDelta
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your OTP for Password Reset",
		TextContent: fmt.Sprintf(
			"Your OTP for password reset is %s. The OTP is valid only for the next %d minutes.",
			code.Code, int(validity.Minutes())),
		HTMLContent: fmt.Sprintf(
			"<p>Your OTP for password reset is <strong>%s</strong>. The OTP is valid only for the next %d minutes.</p>",
			code.Code, int(validity.Minutes())),
	}
	return svc.mailSvc.SendMessage(msg)
}
