package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/tkceria/ceria/apps/api/echo"
	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/attendance"
	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/news"
	"github.com/tkceria/ceria/core/payment"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
	emailsvc "github.com/tkceria/ceria/services/email"
	locksvc "github.com/tkceria/ceria/services/lock"
	logsvc "github.com/tkceria/ceria/services/logger"
	metricsvc "github.com/tkceria/ceria/services/metrics"
	"github.com/tkceria/ceria/storage/database"
	"github.com/tkceria/ceria/storage/database/sqlxrepos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up editing infra
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locker := edit.NewLocalLocker()
	if conf.Redis.Address != "" {
		client, err := locksvc.NewClient(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = client.Close() }()
		locker = locksvc.NewRedisLocker(client, conf.Server.SaveLockTTL, logger)
	}
	recorder := metricsvc.NewRecorder()
	sessions := edit.NewSessions(conf.Server.SessionIdleTimeout)
	go sessions.Run(ctx, time.Minute)

	policy := edit.DropFailed
	if conf.Server.RetainFailedEdits {
		policy = edit.RetainFailed
	}

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	student.RegisterValidators(validate, translator)
	attendance.RegisterValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, logger, conf)
	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db), usrSvc, validate)

	gradeSvc := grade.NewService(sqlxrepos.NewGradeRepository(db), studentSvc, grade.Options{
		Sessions:    sessions,
		Locker:      locker,
		Recorder:    recorder,
		Policy:      policy,
		Concurrency: conf.Server.SaveConcurrency,
	})
	attendanceSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), studentSvc, attendance.Options{
		Sessions:    sessions,
		Locker:      locker,
		Recorder:    recorder,
		Policy:      policy,
		Concurrency: conf.Server.SaveConcurrency,
	})
	paymentSvc := payment.NewService(sqlxrepos.NewPaymentRepository(db), studentSvc, usrSvc, mailSvc, logger)
	newsSvc := news.NewService(sqlxrepos.NewNewsRepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:        conf.Server.Address,
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			SignalShutdown: func() { shutdown <- syscall.SIGTERM },
			Metrics:        recorder.Handler(),
		},
		&echoapi.Deps{
			UserSvc:       usrSvc,
			StudentSvc:    studentSvc,
			GradeSvc:      gradeSvc,
			AttendanceSvc: attendanceSvc,
			PaymentSvc:    paymentSvc,
			NewsSvc:       newsSvc,
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		if err = server.Stop(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(context.Background(), db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
