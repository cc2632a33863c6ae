package main

import (
	"context"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
)

// addCorrector registers a corrector or updates an existing one's intake
// capabilities.
func (cli *commandLine) addCorrector(email, name string, typed, manuscript bool) error {
	if !typed && !manuscript {
		// a corrector that accepts nothing can never be assigned
		typed = true
	}
	c, err := cli.essayRepo.UpsertCorrector(context.Background(), essay.Corrector{
		Email:             core.CleanString(email, true /* lower */),
		Name:              core.CleanString(name),
		AcceptsTyped:      typed,
		AcceptsManuscript: manuscript,
	})
	if err != nil {
		return err
	}
	logger.Printf("registered corrector %s (typed: %t, manuscript: %t)", c.Email, c.AcceptsTyped, c.AcceptsManuscript)
	return nil
}
