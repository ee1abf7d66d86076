package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/darasahq/darasa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addinstructor -name NAME -email EMAIL - create or promote an instructor account")
	fmt.Println("  resetpassword -email EMAIL            - reset a user's password")
	fmt.Println("  migrate                               - bring the database schema up to date")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addInstructorCmd := flag.NewFlagSet("addinstructor", flag.ExitOnError)
	addInstructorName := addInstructorCmd.String("name", "", "The instructor's full name.")
	addInstructorEmail := addInstructorCmd.String("email", "", "The instructor's email. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "addinstructor":
		if err := addInstructorCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addInstructorName == "" || *addInstructorEmail == "" {
			addInstructorCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addInstructorCmd)
		if err != nil {
			return err
		}
		return cli.addInstructor(*addInstructorName, *addInstructorEmail, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "migrate":
		return cli.migrate()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
