package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/notamil/backend/core/essay"
	"github.com/notamil/backend/core/student"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	stdSvc    student.Service
	essayRepo essay.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  enrollstudent -name NAME -email EMAIL -plan PLAN [-expires YYYY-MM-DD] [-credits N] - enroll a new student")
	fmt.Println("  grantcredits -email EMAIL -amount N [-reason REASON] - grant credits to a student")
	fmt.Println("  addcorrector -email EMAIL -name NAME [-typed] [-manuscript] - register or update a corrector")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	enrollCmd := flag.NewFlagSet("enrollstudent", flag.ExitOnError)
	enrollName := enrollCmd.String("name", "", "The student's full name.")
	enrollEmail := enrollCmd.String("email", "", "The student's email. The password will be prompted next.")
	enrollPlan := enrollCmd.String("plan", student.PlanCredits, "Plan tier: credits, monthly or annual.")
	enrollExpires := enrollCmd.String("expires", "", "Subscription expiry date (YYYY-MM-DD); required for subscription tiers.")
	enrollCredits := enrollCmd.Int("credits", 0, "Initial credit grant.")

	grantCmd := flag.NewFlagSet("grantcredits", flag.ExitOnError)
	grantEmail := grantCmd.String("email", "", "The student's email.")
	grantAmount := grantCmd.Int("amount", 0, "Number of credits to grant.")
	grantReason := grantCmd.String("reason", "manual credit grant", "Audit reason recorded in the ledger.")

	correctorCmd := flag.NewFlagSet("addcorrector", flag.ExitOnError)
	correctorEmail := correctorCmd.String("email", "", "The corrector's email.")
	correctorName := correctorCmd.String("name", "", "The corrector's full name.")
	correctorTyped := correctorCmd.Bool("typed", false, "Corrector accepts typed submissions.")
	correctorManuscript := correctorCmd.Bool("manuscript", false, "Corrector accepts manuscript submissions.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "enrollstudent":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enrollName == "" || *enrollEmail == "" {
			enrollCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			enrollCmd.Usage()
			return errHelp
		}
		return cli.enrollStudent(*enrollName, *enrollEmail, string(pwd), *enrollPlan, *enrollExpires, *enrollCredits)
	case "grantcredits":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantEmail == "" || *grantAmount <= 0 {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grantCredits(*grantEmail, *grantAmount, *grantReason)
	case "addcorrector":
		if err := correctorCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *correctorEmail == "" || *correctorName == "" {
			correctorCmd.Usage()
			return errHelp
		}
		return cli.addCorrector(*correctorEmail, *correctorName, *correctorTyped, *correctorManuscript)
	default:
		cli.printUsage()
		return errHelp
	}
}
