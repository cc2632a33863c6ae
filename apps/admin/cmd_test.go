package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/notamil/backend/core/student"
	inmemdb "github.com/notamil/backend/storage/database/inmem"
)

var stdSvc student.Service

func setup(t *testing.T) *commandLine {
	t.Helper()
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags)

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	stdSvc = student.NewService(inmemdb.NewStudentRepository(db))

	return &commandLine{
		stdSvc:    stdSvc,
		essayRepo: inmemdb.NewEssayRepository(db),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "essay", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_enrollStudent(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"enrollstudent"}, wantErr: errHelp},
		{name: "name but no password", args: []string{"enrollstudent", "-name", "Ana", "-email", "ana@test.br"}, wantErr: errHelp},
		{
			name:  "credits plan",
			args:  []string{"enrollstudent", "-name", "Ana", "-email", "ana@test.br", "-credits", "5"},
			extra: extra{pwd: "s3cr3tpwd"},
		},
		{
			name:  "monthly plan with expiry",
			args:  []string{"enrollstudent", "-name", "Bia", "-email", "bia@test.br", "-plan", "monthly", "-expires", "2026-12-31"},
			extra: extra{pwd: "s3cr3tpwd"},
		},
		{
			name:       "monthly plan without expiry",
			args:       []string{"enrollstudent", "-name", "Caio", "-email", "caio@test.br", "-plan", "monthly"},
			extra:      extra{pwd: "s3cr3tpwd"},
			wantErrStr: "expiry_required",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				email := args[5]
				std, err := stdSvc.GetByEmail(context.Background(), email)
				if err != nil {
					t.Fatalf("GetByEmail() failed, %v", err)
				}
				if std.CheckPassword("s3cr3tpwd") != nil {
					t.Error("failed to set password")
				}
			} else if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			} else if tt.wantErrStr != "" {
				if !strings.Contains(err.Error(), tt.wantErrStr) {
					t.Errorf("cli.run() error = %v, want it to mention %q", err, tt.wantErrStr)
				}
			} else {
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_grantCredits(t *testing.T) {
	cli := setup(t)

	std, err := stdSvc.Enroll(context.Background(), student.NewStudent{
		Name:     "Ana",
		Email:    "ana@test.br",
		Password: "s3cr3tpwd",
		Plan:     student.PlanCredits,
	})
	if err != nil {
		t.Fatalf("Enroll() failed, %v", err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"grantcredits"}, wantErr: errHelp},
		{name: "zero amount", args: []string{"grantcredits", "-email", "ana@test.br"}, wantErr: errHelp},
		{name: "student not found", args: []string{"grantcredits", "-email", "lol@test.br", "-amount", "3"}, wantErr: student.ErrNotFound},
		{name: "grant", args: []string{"grantcredits", "-email", "ana@test.br", "-amount", "3"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := stdSvc.GetByID(context.Background(), std.ID)
				if err != nil {
					t.Fatalf("GetByID() failed, %v", err)
				}
				if refreshed.Balance != 3 {
					t.Errorf("Balance = %d, want 3", refreshed.Balance)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
