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

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/darasahq/darasa/apps/api/echo"
	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enroll"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	uploadsvc "github.com/darasahq/darasa/services/upload"
	"github.com/darasahq/darasa/storage/database"
	sqlxrepos "github.com/darasahq/darasa/storage/database/sqlx"
)

const shutdownTimeout = 5 * time.Second

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lshortfile)
	var logger core.Logger
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	if err := run(conf, logger); err != nil {
		logger.Fatal(fmt.Sprintf("running API: %v", err), err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	// set up validation
	translator := getTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	uploadSvc, err := uploadsvc.NewMinioService(conf)
	if err != nil {
		return errors.Wrap(err, "setting up upload service")
	}

	courseRepo := sqlxrepos.NewCourseRepository(db)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), sqlxrepos.NewOTPRepository(db), mailSvc, logger, conf)
	courseSvc := course.NewService(courseRepo, sqlxrepos.NewThreadRepository(db))
	enrollSvc := enroll.NewService(sqlxrepos.NewEnrollRepository(db), courseRepo)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Address,
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		EnrollSvc:      enrollSvc,
		UploadSvc:      uploadSvc,
		Validate:       validate,
		Translator:     translator,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	serverErrs := make(chan error, 1)
	go func() {
		logger.Info("API server listening on " + conf.Server.Address)
		serverErrs <- app.Start()
	}()

	select {
	case err := <-serverErrs:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("shutting down: %v", sig))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			return errors.Wrap(err, "stopping server")
		}
	}
	return nil
}

func getTranslator() ut.Translator {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	return translator
}
