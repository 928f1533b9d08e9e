package main

import (
	"context"
	"time"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := cli.usrRepo.UpdateUser(ctx, user.User{ID: usr.ID, PasswordHash: usr.PasswordHash, UpdatedAt: usr.UpdatedAt}, nil); err != nil {
		return err
	}
	return nil
}
