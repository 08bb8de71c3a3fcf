package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkceria/ceria/core/user"
	"github.com/tkceria/ceria/storage/database"
	"github.com/tkceria/ceria/storage/database/sqlxrepos"
	"github.com/tkceria/ceria/testutil"
)

func setup(t *testing.T) *commandLine {
	db := testutil.PrepareDB(t)
	return &commandLine{
		db:      db,
		engine:  database.EngineSQLite,
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotEngine string
	gooseRunFunc = func(_ context.Context, _ *sqlx.DB, engine, command string, args ...string) error {
		gotEngine = engine
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	defer func() { gooseRunFunc = database.RunMigration }()

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
	assert.Equal(t, database.EngineSQLite, gotEngine)
}

func Test_commandLine_migrate_embedded(t *testing.T) {
	cli := setup(t)
	// PrepareDB already applied every migration
	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	require.NoError(t, cli.run([]string{"admin", "migrate", "status"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, cli.usrRepo, "Bu Sari", "sari", "sari@ceria.sch.id", "", user.RoleTeacher, true)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-username", "kepsek"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-name", "Kepala Sekolah", "-username", "kepsek", "-role", "janitor"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Kepala Sekolah", "-username", "kepsek"}, wantErr: errHelp},
		{name: "email taken", args: []string{"adduser", "-name", "Kepala Sekolah", "-username", "kepsek", "-email", "sari@ceria.sch.id"}, extra: "rahasia", wantErr: user.ErrEmailExists},
		{name: "create admin", args: []string{"adduser", "-name", "Kepala Sekolah", "-username", "Kepsek", "-email", "kepsek@ceria.sch.id"}, extra: "rahasia"},
		{name: "promote existing", args: []string{"adduser", "-name", "Bu Sari", "-username", "sari"}, extra: "rahasia"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	kepsek, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "kepsek"})
	require.NoError(t, err)
	assert.Equal(t, "Kepala Sekolah", kepsek.Name)
	assert.Equal(t, user.RoleAdmin, kepsek.Role)
	assert.True(t, kepsek.IsActive)
	assert.NoError(t, kepsek.CheckPassword("rahasia"))

	sari, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "sari"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, sari.Role)
	assert.Equal(t, "sari@ceria.sch.id", sari.Email)
	assert.NoError(t, sari.CheckPassword("rahasia"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, cli.usrRepo, "Pak Budi", "budi", "budi@example.com", "lama", user.RoleParent, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "baru"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "BUDI@example.com"}, extra: "lebih-baru"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err == nil {
				refreshedUsr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}
