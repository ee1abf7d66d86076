package main

import (
	"context"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// addInstructor creates an instructor account, or promotes an existing
// account to instructor. The account comes out active and email-verified.
func (cli *commandLine) addInstructor(name, email, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:      name,
			Email:     email,
			CreatedAt: now,
		}
	}
	if !usr.IsInstructor() {
		usr.Roles = append(usr.Roles, user.RoleInstructor)
	}
	usr.IsActive = true
	usr.IsEmailVerified = true
	usr.VerificationToken = ""
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == 0 {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
