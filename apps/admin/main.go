package main

import (
	"log"
	"os"

	"github.com/tkceria/ceria/core"
	logsvc "github.com/tkceria/ceria/services/logger"
	"github.com/tkceria/ceria/storage/database"
	"github.com/tkceria/ceria/storage/database/sqlxrepos"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rlogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger = rlogger

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:      db,
		engine:  conf.Database.Engine,
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	rlogger.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin: "+os.Args[1], err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal("admin: setup", err)
	}
}
