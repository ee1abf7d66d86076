package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/darasahq/darasa/core"
)

// Roles
const (
	RoleAdmin      = "admin:"
	RoleInstructor = "instructor:"
	RoleStudent    = "student:"
)

var AllRoles = []string{RoleAdmin, RoleInstructor, RoleStudent}

// User is a principal: a student, an instructor or an admin, distinguished by role.
type User struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	IsEmailVerified   bool      `json:"is_email_verified"`
	VerificationToken string    `json:"-"`
	Roles             []string  `json:"roles"`
	PasswordHash      []byte    `json:"-"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
	LastLogin         time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool      { return u.RoleStartsWith(RoleAdmin) }
func (u *User) IsInstructor() bool { return u.RoleStartsWith(RoleInstructor) }
func (u *User) IsStudent() bool    { return u.RoleStartsWith(RoleStudent) }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateProfile defines what information a principal may modify on their own account.
type UpdateProfile struct {
	Name            string `json:"name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	return validate.Struct(up)
}

// ResetUserPassword carries the final step of the password recovery flow: the
// new password plus the reset ticket issued on successful OTP redemption.
type ResetUserPassword struct {
	Email           string `json:"email" validate:"required,email"`
	Ticket          string `json:"reset_ticket" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	return validate.Struct(rp)
}
