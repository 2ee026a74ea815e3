package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/cronograma/apps/api/echo"
	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/session"
	"github.com/trezcool/cronograma/core/user"
	emailsvc "github.com/trezcool/cronograma/services/email"
	logsvc "github.com/trezcool/cronograma/services/logger"
	remindersvc "github.com/trezcool/cronograma/services/reminder"
	telegramsvc "github.com/trezcool/cronograma/services/telegram"
	"github.com/trezcool/cronograma/storage/database"
	sqlxrepos "github.com/trezcool/cronograma/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)
	return validate
}

func newLocator(svc *user.Service) plan.Locator {
	return svc
}

// newNotifiers returns the reminder channels: email, plus Telegram when `telegramToken` is set.
func newNotifiers(conf *core.Config, mailSvc core.EmailService, logger core.Logger) []remindersvc.Notifier {
	notifiers := []remindersvc.Notifier{remindersvc.NewEmailNotifier(mailSvc)}
	if conf.TelegramToken == "" {
		return notifiers
	}
	tg, err := telegramsvc.NewNotifier(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("telegram reminders disabled: %v", err), err)
		return notifiers
	}
	return append(notifiers, tg)
}

func newReminderService(
	schedules *schedule.Service,
	users user.Repository,
	notifiers []remindersvc.Notifier,
	logger core.Logger,
	conf *core.Config,
) *remindersvc.Service {
	return remindersvc.NewService(schedules, users, notifiers, logger, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))

	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewPlanRepository, dig.As(new(plan.Repository), new(session.TopicUpdater))))
	must(c.Provide(sqlxrepos.NewSessionRepository, dig.As(new(session.Repository))))
	must(c.Provide(sqlxrepos.NewScheduleRepository, dig.As(new(schedule.Repository))))

	must(c.Provide(user.NewService))
	must(c.Provide(newLocator))
	must(c.Provide(plan.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(newNotifiers))
	must(c.Provide(newReminderService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
