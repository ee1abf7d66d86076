package dummydb

import (
	"context"
	"time"

	"github.com/darasahq/darasa/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.query() {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}

	repo.db.pkCount++
	usr.ID = repo.db.pkCount
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByVerificationToken(_ context.Context, token string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if token != "" {
		for _, usr := range repo.query() {
			if usr.VerificationToken == token {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

type otpRepository struct {
	db *otpTable
}

var _ user.OTPRepository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *DB) *otpRepository {
	return &otpRepository{db: db.otp}
}

func (repo *otpRepository) CreateCode(_ context.Context, code user.OneTimeCode) (user.OneTimeCode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	code.ID = repo.db.pkCount
	repo.db.table[code.ID] = &code
	return code, nil
}

func (repo *otpRepository) ConsumeCode(_ context.Context, email, code string, now time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	// the matching code that expires last wins
	var match *user.OneTimeCode
	for _, c := range repo.db.table {
		if c.Email != email || c.Code != code || c.Expired(now) {
			continue
		}
		if match == nil || c.ExpiresAt.After(match.ExpiresAt) {
			match = c
		}
	}
	if match == nil {
		return user.ErrInvalidResetCode
	}
	delete(repo.db.table, match.ID)
	return nil
}
