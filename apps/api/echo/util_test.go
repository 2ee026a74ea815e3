package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/cronograma/apps/api/echo"
	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/session"
	"github.com/trezcool/cronograma/core/user"
	"github.com/trezcool/cronograma/storage/database/sqlx"
	"github.com/trezcool/cronograma/tests"
)

var monday = time.Date(2026, 11, 2, 12, 0, 0, 0, time.UTC)

type (
	fixture struct {
		db     *sqlx.DB
		conf   *core.Config
		logger *testutil.Logger
		users  user.Repository
		plans  plan.Repository
		app    *Server
	}

	httpErr struct {
		Error string `json:"error"`
	}

	lockedPlans struct {
		schedule.Repository
	}
)

func (lockedPlans) TryLockPlan(context.Context, int64, ...core.DBExecutor) (bool, error) {
	return false, nil
}

func setup(t *testing.T) *fixture {
	testutil.FreezeTime(t, monday)
	db := testutil.PrepareDB(t)
	f := &fixture{
		db:     db,
		conf:   testutil.Config(),
		logger: new(testutil.Logger),
		users:  sqlxrepos.NewUserRepository(db),
		plans:  sqlxrepos.NewPlanRepository(db),
	}
	f.app = f.server(sqlxrepos.NewScheduleRepository(db))
	return f
}

// server builds the API over the fixture database with the given schedule repository.
func (f *fixture) server(scheduleRepo schedule.Repository) *Server {
	validate, translator := testutil.Validator()
	sessionRepo := sqlxrepos.NewSessionRepository(f.db)

	usrSvc := user.NewService(f.users, validate, translator, f.conf)
	return NewServer(Deps{
		Conf:        f.conf,
		Logger:      f.logger,
		Translator:  translator,
		UserSvc:     usrSvc,
		PlanSvc:     plan.NewService(f.db, f.plans, usrSvc, validate, translator),
		ScheduleSvc: schedule.NewService(f.db, f.plans, sessionRepo, scheduleRepo, usrSvc, validate, translator, f.logger, f.conf),
		SessionSvc:  session.NewService(f.db, sessionRepo, f.plans, validate, translator, f.logger),
	})
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, f.conf), f.conf)
	require.NoError(t, err)
	return token
}

// do serves the request and returns the recorded response.
func (f *fixture) do(app *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func everyDay(hours float64) map[string]float64 {
	m := make(map[string]float64, 7)
	for _, d := range []string{"0", "1", "2", "3", "4", "5", "6"} {
		m[d] = hours
	}
	return m
}

var _ http.Handler = (*Server)(nil)
