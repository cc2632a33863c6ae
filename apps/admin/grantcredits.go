package main

import (
	"context"

	"github.com/notamil/backend/core"
)

// grantCredits adds credits to a student's balance, recording the grant in
// the ledger.
func (cli *commandLine) grantCredits(email string, amount int, reason string) error {
	ctx := context.Background()

	std, err := cli.stdSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	std, err = cli.stdSvc.Credit(ctx, std.ID, amount, reason)
	if err != nil {
		return err
	}
	logger.Printf("granted %d credits to %s; new balance: %d", amount, std.Email, std.Balance)
	return nil
}
