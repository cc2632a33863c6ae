package main

import (
	"log"
	"os"

	"github.com/notamil/backend/apps/api/echo"
	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
	"github.com/notamil/backend/core/student"
	"github.com/notamil/backend/services/email"
	"github.com/notamil/backend/services/logger"
	"github.com/notamil/backend/storage/database"
	"github.com/notamil/backend/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var appLogger core.Logger
	if core.Conf.Debug {
		appLogger = logsvc.NewStdLogger(stdLogger)
	} else {
		appLogger = logsvc.NewRollbarLogger(stdLogger, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err, appLogger)
	defer db.Close()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(appLogger)
	}
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	essaySvc := essay.NewService(
		sqlxrepos.NewEssayRepository(db),
		stdSvc,
		mailSvc,
		appLogger,
		core.NewRetryPolicy(core.Conf.Retry),
	)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:    core.Conf.Server.Host + ":" + core.Conf.Server.Port,
			EssaySvc:   essaySvc,
			StudentSvc: stdSvc,
			Logger:     appLogger,
		},
	)
	app.Start()
}

func errAndDie(err error, logger core.Logger) {
	if err != nil {
		logger.Fatal("startup failed", err)
	}
}
