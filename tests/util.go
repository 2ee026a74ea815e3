package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/user"
	"github.com/trezcool/cronograma/storage/database"
)

// PrepareDB opens a migrated in-memory sqlite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000", uuid.NewString())
	db, err := sqlx.Open(core.EngineSQLite, dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// Config returns the configuration used by tests.
func Config() *core.Config {
	return &core.Config{
		Env:             "TEST",
		AppName:         "Cronograma",
		TestMode:        true,
		SecretKey:       "test-secret",
		DefaultTimezone: "America/Sao_Paulo",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Database: core.DatabaseConfig{Engine: core.EngineSQLite},
		Scheduler: core.SchedulerConfig{
			LockTimeout: 200 * time.Millisecond,
			ReminderAt:  "07:00",
		},
	}
}

// Validator returns a validator with every custom tag registered.
func Validator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)
	return validate, translator
}

// FreezeTime sets the clock to now until the end of the test.
func FreezeTime(t *testing.T, now time.Time) {
	t.Cleanup(core.SetNowFunc(func() time.Time { return now }))
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records log entries.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Levels returns the levels of the recorded entries.
func (l *Logger) Levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	levels := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		levels = append(levels, e.Level)
	}
	return levels
}

func CreateUser(t *testing.T, repo user.Repository, name, email, timezone string) user.User {
	now := core.Now()
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Email:     email,
		Timezone:  timezone,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreatePlan creates a plan for the user; `hours` is the study budget of every weekday.
func CreatePlan(t *testing.T, repo plan.Repository, userID int64, name string, exam time.Time, hours float64, mode plan.ReviewMode) plan.StudyPlan {
	var wh plan.WeeklyHours
	for i := range wh {
		wh[i] = hours
	}
	now := core.Now()
	p, err := repo.CreatePlan(context.Background(), plan.StudyPlan{
		UserID:                 userID,
		Name:                   name,
		ExamDate:               core.DateOf(exam),
		StudyHoursPerDay:       wh,
		SessionDurationMinutes: 60,
		ReviewMode:             mode,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
	if err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	return p
}

// CreateSubject creates a subject whose topics are prioritized in order.
func CreateSubject(t *testing.T, repo plan.Repository, planID int64, name string, weight int, topics ...string) plan.Subject {
	now := core.Now()
	s := plan.Subject{PlanID: planID, Name: name, PriorityWeight: weight, CreatedAt: now}
	for i, d := range topics {
		s.Topics = append(s.Topics, plan.Topic{Description: d, Priority: i + 1, Status: plan.TopicPending, CreatedAt: now})
	}
	s, err := repo.CreateSubject(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return s
}
