package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	found := err == nil

	now := user.NowFunc().UTC()
	usr.Name = name
	usr.Username = uname
	if email != "" {
		usr.Email = email
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if found {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, usr.ID); err != nil {
			return err
		}
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return err
	}
	if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return err
	}
	usr.CreatedAt = now
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
