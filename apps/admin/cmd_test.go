package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/user"
	sqlxrepos "github.com/trezcool/cronograma/storage/database/sqlx"
	"github.com/trezcool/cronograma/tests"
)

var ctx = context.Background()

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	testutil.FreezeTime(t, time.Date(2026, 11, 2, 12, 0, 0, 0, time.UTC))

	// set up DB & services
	db := testutil.PrepareDB(t)
	cli, err := newCommandLine(db, testutil.Config(), &testutil.Logger{})
	require.NoError(t, err)

	out := new(bytes.Buffer)
	cli.out = out
	return cli, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantErrIs  func(error) bool
	wantOut    string
}

func (tt cliTest) run(t *testing.T, cli *commandLine, out *bytes.Buffer) {
	out.Reset()
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	case tt.wantErrIs != nil:
		assert.True(t, tt.wantErrIs(err), "unexpected error: %v", err)
	default:
		require.NoError(t, err)
		assert.Contains(t, out.String(), tt.wantOut)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		if dir != "migrations/sqlite3" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
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
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "exam_boards", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, cli, out)
		})
	}
}

func Test_commandLine_users(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "adduser: no email", args: []string{"adduser", "-name", "Ana"}, wantErr: errHelp},
		{
			name:    "adduser",
			args:    []string{"adduser", "-name", "Ana", "-email", "Ana@Example.com", "-telegram", "42"},
			wantOut: "user 1 created: Ana <ana@example.com> (America/Sao_Paulo)",
		},
		{
			name:    "adduser: timezone",
			args:    []string{"adduser", "-name", "Bia", "-email", "bia@example.com", "-timezone", "Europe/Lisbon"},
			wantOut: "user 2 created: Bia <bia@example.com> (Europe/Lisbon)",
		},
		{name: "adduser: email taken", args: []string{"adduser", "-name", "Ana", "-email", "ana@example.com"}, wantErrIs: core.IsValidationError},
		{name: "adduser: bad timezone", args: []string{"adduser", "-name", "Cris", "-email", "cris@example.com", "-timezone", "Mars/Olympus"}, wantErrIs: core.IsValidationError},
		{name: "token: no email", args: []string{"token"}, wantErr: errHelp},
		{name: "token: unknown user", args: []string{"token", "-email", "lol@example.com"}, wantErr: user.ErrNotFound},
		{name: "token", args: []string{"token", "-email", "ANA@example.com"}, wantOut: "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, cli, out)
		})
	}

	usr, err := cli.users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(42), usr.TelegramChatID.Int64)
}

func Test_commandLine_plans(t *testing.T) {
	cli, out := setup(t)

	users := sqlxrepos.NewUserRepository(cli.db)
	usr := testutil.CreateUser(t, users, "Ana", "ana@example.com", "UTC")
	p := testutil.CreatePlan(t, cli.plans, usr.ID, "ENEM", time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC), 2, plan.ReviewComplete)
	planID := strconv.FormatInt(p.ID, 10)

	path := filepath.Join(t.TempDir(), "curriculum.csv")
	content := "subject,weight,topic,priority\nHistória,,Brasil Colônia\nHistória,,Era Vargas\n\nGeografia,1,Clima\nGeografia,1,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tests := []cliTest{
		{name: "import: no args", args: []string{"import"}, wantErr: errHelp},
		{name: "import: no file", args: []string{"import", "-plan", planID}, wantErr: errHelp},
		{name: "import: unknown plan", args: []string{"import", "-plan", "999", "-file", path}, wantErr: plan.ErrNotFound},
		{name: "import", args: []string{"import", "-plan", planID, "-file", path}, wantOut: "4 rows: 2 subjects and 3 topics created, 1 skipped\nline 6: missing topic"},
		{name: "import again", args: []string{"import", "-plan", planID, "-file", path}, wantOut: "0 subjects and 0 topics created, 4 skipped"},
		{name: "generate: no args", args: []string{"generate"}, wantErr: errHelp},
		{name: "generate: unknown plan", args: []string{"generate", "-plan", "999"}, wantErr: plan.ErrNotFound},
		{name: "generate", args: []string{"generate", "-plan", planID}, wantOut: fmt.Sprintf("plan %d: ", p.ID)},
		{name: "reconcile", args: []string{"reconcile"}, wantOut: "0 discrepancies found"},
		{name: "reconcile -fix", args: []string{"reconcile", "-fix"}, wantOut: "0 discrepancies fixed"},
		{name: "repair-owners", args: []string{"repair-owners"}, wantOut: "0 sessions repaired"},
		{name: "remind", args: []string{"remind"}, wantOut: "0 overdue digests: 0 sent, 0 failed (2026-11-02)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, cli, out)
		})
	}

	subjects, err := cli.plans.ListSubjects(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
}
