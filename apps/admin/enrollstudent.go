package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/student"
)

// enrollStudent creates a new student account, prompting for a password on
// the terminal.
func (cli *commandLine) enrollStudent(name, email, pwd, plan, expires string, credits int) error {
	ns := student.NewStudent{
		Name:     core.CleanString(name),
		Email:    core.CleanString(email, true /* lower */),
		Password: pwd,
		Plan:     core.CleanString(plan, true /* lower */),
		Credits:  credits,
	}
	if expires != "" {
		exp, err := time.ParseInLocation("2006-01-02", expires, core.Conf.Location())
		if err != nil {
			return errors.Wrap(err, "parsing -expires")
		}
		ns.ExpiresAt = exp.UTC()
	}
	if err := ns.Validate(cli.stdSvc); err != nil {
		return err
	}

	std, err := cli.stdSvc.Enroll(context.Background(), ns)
	if err != nil {
		return err
	}
	logger.Printf("enrolled student %s (%s) on plan %s with %d credits", std.Email, std.ID, std.Plan, std.Balance)
	return nil
}
