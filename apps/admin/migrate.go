package main

import (
	"context"

	"github.com/tkceria/ceria/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(context.Background(), cli.db, cli.engine, args[0], args[1:]...)
}
