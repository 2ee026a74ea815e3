package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/session"
	"github.com/trezcool/cronograma/core/user"
	appfs "github.com/trezcool/cronograma/fs"
	emailsvc "github.com/trezcool/cronograma/services/email"
	"github.com/trezcool/cronograma/services/importer"
	logsvc "github.com/trezcool/cronograma/services/logger"
	remindersvc "github.com/trezcool/cronograma/services/reminder"
	telegramsvc "github.com/trezcool/cronograma/services/telegram"
	"github.com/trezcool/cronograma/storage/database"
	sqlxrepos "github.com/trezcool/cronograma/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli, err := newCommandLine(db, conf, logger)
	errAndDie(err)
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}

func newCommandLine(db *sqlx.DB, conf *core.Config, logger core.Logger) (*commandLine, error) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)

	usrRepo := sqlxrepos.NewUserRepository(db)
	planRepo := sqlxrepos.NewPlanRepository(db)
	sessionRepo := sqlxrepos.NewSessionRepository(db)

	users := user.NewService(usrRepo, validate, translator, conf)
	schedules := schedule.NewService(db, planRepo, sessionRepo, sqlxrepos.NewScheduleRepository(db), users, validate, translator, logger, conf)

	core.ParseEmailTemplates(appfs.FS, conf, logger)
	var mailSvc core.EmailService = emailsvc.NewConsoleService(log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger, conf)
	if !conf.Debug && conf.SendgridApiKey != "" {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	notifiers := []remindersvc.Notifier{remindersvc.NewEmailNotifier(mailSvc)}
	if conf.TelegramToken != "" {
		tg, err := telegramsvc.NewNotifier(conf)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}

	return &commandLine{
		db:        db,
		conf:      conf,
		out:       os.Stdout,
		users:     users,
		plans:     planRepo,
		schedules: schedules,
		sessions:  session.NewService(db, sessionRepo, planRepo, validate, translator, logger),
		importer:  importer.NewImporter(db, planRepo, logger),
		reminders: remindersvc.NewService(schedules, usrRepo, notifiers, logger, conf),
	}, nil
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
