package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/user"
)

const pqUniqueViolation = "23505"

type userRow struct {
	ID                int            `db:"id"`
	Name              string         `db:"name"`
	Email             string         `db:"email"`
	IsEmailVerified   bool           `db:"is_email_verified"`
	VerificationToken string         `db:"verification_token"`
	Roles             pq.StringArray `db:"roles"`
	PasswordHash      []byte         `db:"password_hash"`
	IsActive          bool           `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	LastLogin         null.Time      `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                r.ID,
		Name:              r.Name,
		Email:             r.Email,
		IsEmailVerified:   r.IsEmailVerified,
		VerificationToken: r.VerificationToken,
		Roles:             r.Roles,
		PasswordHash:      r.PasswordHash,
		IsActive:          r.IsActive,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		LastLogin:         r.LastLogin.Time,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
		INSERT INTO "user" (name, email, is_email_verified, verification_token, roles, password_hash, is_active, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := repo.db.QueryRowxContext(
		ctx, q,
		usr.Name, usr.Email, usr.IsEmailVerified, usr.VerificationToken, pq.StringArray(usr.Roles),
		usr.PasswordHash, usr.IsActive, usr.CreatedAt, usr.UpdatedAt, null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	).Scan(&usr.ID)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "querying user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByVerificationToken(ctx context.Context, token string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE verification_token = $1 AND verification_token <> ''`, token)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
		UPDATE "user"
		SET name = $2, email = $3, is_email_verified = $4, verification_token = $5, roles = $6,
		    password_hash = $7, is_active = $8, updated_at = $9, last_login = $10
		WHERE id = $1`

	res, err := repo.db.ExecContext(
		ctx, q,
		usr.ID, usr.Name, usr.Email, usr.IsEmailVerified, usr.VerificationToken, pq.StringArray(usr.Roles),
		usr.PasswordHash, usr.IsActive, usr.UpdatedAt, null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

type otpRepository struct {
	db *sqlx.DB
}

var _ user.OTPRepository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *sqlx.DB) *otpRepository {
	return &otpRepository{db: db}
}

func (repo *otpRepository) CreateCode(ctx context.Context, code user.OneTimeCode) (user.OneTimeCode, error) {
	const q = `INSERT INTO otp (email, code, expires_at) VALUES ($1, $2, $3) RETURNING id`

	err := repo.db.QueryRowxContext(ctx, q, code.Email, code.Code, code.ExpiresAt).Scan(&code.ID)
	if err != nil {
		return user.OneTimeCode{}, errors.Wrap(err, "inserting one-time code")
	}
	return code, nil
}

func (repo *otpRepository) ConsumeCode(ctx context.Context, email, code string, now time.Time) error {
	// delete exactly one row: the matching code that expires last
	const q = `
		DELETE FROM otp
		WHERE id = (
			SELECT id FROM otp
			WHERE email = $1 AND code = $2 AND expires_at > $3
			ORDER BY expires_at DESC
			LIMIT 1
		)`

	res, err := repo.db.ExecContext(ctx, q, email, code, now)
	if err != nil {
		return errors.Wrap(err, "consuming one-time code")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrInvalidResetCode
	}
	return nil
}
