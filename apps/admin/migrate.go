package main

import (
	"github.com/pressly/goose/v3"

	"github.com/trezcool/cronograma/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	driver := cli.db.DriverName()
	if err := database.SetupMigrations(driver); err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.db.DB, database.MigrationsDir(driver), args[1:]...)
}
