package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/session"
	"github.com/trezcool/cronograma/core/user"
	"github.com/trezcool/cronograma/storage/database/sqlx"
	"github.com/trezcool/cronograma/tests"
)

var (
	ctx  = context.Background()
	exam = time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)
)

func day(s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newSession(p plan.StudyPlan, date string, typ session.Type, topicID int64, status session.Status) session.Session {
	return session.Session{
		PlanID:      p.ID,
		UserID:      p.UserID,
		SessionDate: day(date),
		Type:        typ,
		TopicID:     null.NewInt64(topicID, topicID != 0),
		SubjectName: "Matemática",
		Description: "session",
		Sequence:    1,
		Status:      status,
		CreatedAt:   core.Now(),
	}
}

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)

	ana := testutil.CreateUser(t, repo, "Ana", "ana@example.com", "America/Sao_Paulo")
	bia := testutil.CreateUser(t, repo, "Bia", "bia@example.com", "UTC")
	assert.NotZero(t, ana.ID)

	got, err := repo.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, got.ID)
	assert.Equal(t, "America/Sao_Paulo", got.Timezone)
	assert.False(t, got.TelegramChatID.Valid)

	_, err = repo.GetUser(ctx, 999)
	assert.Equal(t, user.ErrNotFound, err)

	users, err := repo.ListUsersByID(ctx, []int64{bia.ID, ana.ID})
	require.NoError(t, err)
	if assert.Len(t, users, 2) {
		assert.Equal(t, ana.ID, users[0].ID)
		assert.Equal(t, bia.ID, users[1].ID)
	}

	bia.TelegramChatID = null.Int64From(42)
	_, err = repo.UpdateUser(ctx, bia)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, bia.ID)
	require.NoError(t, err)
	assert.Equal(t, null.Int64From(42), got.TelegramChatID)

	_, err = repo.UpdateUser(ctx, user.User{ID: 999})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestPlanRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@example.com", "UTC")
	repo := sqlxrepos.NewPlanRepository(db)

	p := testutil.CreatePlan(t, repo, usr.ID, "ENEM", exam, 2, plan.ReviewLight)
	got, err := repo.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, exam, got.ExamDate)
	assert.Equal(t, plan.ReviewLight, got.ReviewMode)
	assert.Equal(t, 14.0, got.StudyHoursPerDay.Total())
	assert.False(t, got.LastGeneratedAt.Valid)

	math := testutil.CreateSubject(t, repo, p.ID, "Matemática", 3, "Funções", "Geometria")
	bio := testutil.CreateSubject(t, repo, p.ID, "Biologia", 1, "Citologia")

	// topics are listed by priority
	_, err = repo.CreateTopics(ctx, math.ID, []plan.Topic{{Description: "Álgebra", Priority: 0, CreatedAt: core.Now()}})
	require.NoError(t, err)

	subjects, err := repo.ListSubjects(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, math.ID, subjects[0].ID)
	assert.Equal(t, bio.ID, subjects[1].ID)
	descs := make([]string, 0)
	for _, tp := range subjects[0].Topics {
		descs = append(descs, tp.Description)
		assert.Equal(t, plan.TopicPending, tp.Status)
	}
	assert.Equal(t, []string{"Álgebra", "Funções", "Geometria"}, descs)

	topicID := subjects[1].Topics[0].ID
	completedAt := time.Date(2026, 11, 2, 10, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SetTopicStatus(ctx, topicID, plan.TopicCompleted, null.TimeFrom(completedAt)))
	subj, err := repo.GetSubject(ctx, bio.ID)
	require.NoError(t, err)
	assert.True(t, subj.Topics[0].IsCompleted())
	assert.Equal(t, completedAt, subj.Topics[0].CompletedAt.Time)

	plans, err := repo.ListPlans(ctx, plan.ListFilter{UserID: usr.ID})
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	require.NoError(t, repo.DeletePlan(ctx, p.ID))
	_, err = repo.GetPlan(ctx, p.ID)
	assert.Equal(t, plan.ErrNotFound, err)
	_, err = repo.GetSubject(ctx, math.ID)
	assert.Equal(t, plan.ErrSubjectNotFound, err)
	assert.Equal(t, plan.ErrNotFound, repo.DeletePlan(ctx, p.ID))
}

func TestPlanRepository_RejectsUnknownReviewMode(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@example.com", "UTC")
	repo := sqlxrepos.NewPlanRepository(db)

	_, err := repo.CreatePlan(ctx, plan.StudyPlan{
		UserID:                 usr.ID,
		Name:                   "ENEM",
		ExamDate:               exam,
		SessionDurationMinutes: 60,
		ReviewMode:             "weekly",
		CreatedAt:              core.Now(),
		UpdatedAt:              core.Now(),
	})
	assert.Error(t, err)
}

func TestSessionRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@example.com", "UTC")
	plans := sqlxrepos.NewPlanRepository(db)
	p := testutil.CreatePlan(t, plans, usr.ID, "ENEM", exam, 2, plan.ReviewLight)
	subj := testutil.CreateSubject(t, plans, p.ID, "Matemática", 1, "Funções", "Geometria")
	t1, t2 := subj.Topics[0].ID, subj.Topics[1].ID
	repo := sqlxrepos.NewSessionRepository(db)

	n, err := repo.InsertSessions(ctx, []session.Session{
		newSession(p, "2026-11-03", session.TypeNewTopic, t2, session.StatusPending),
		newSession(p, "2026-11-02", session.TypeNewTopic, t1, session.StatusCompleted),
		newSession(p, "2026-11-09", session.TypeReview, t1, session.StatusPending),
		newSession(p, "2026-11-08", session.TypeEssay, 0, session.StatusSkipped),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := repo.ListSessions(ctx, session.ListFilter{PlanID: p.ID}, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, day("2026-11-02"), all[0].SessionDate)
	assert.Equal(t, usr.ID, all[0].UserID)
	assert.Equal(t, null.Int64From(t1), all[0].TopicID)
	assert.False(t, all[2].TopicID.Valid) // essay

	pending, err := repo.ListSessions(ctx, session.ListFilter{
		UserID: usr.ID,
		Status: session.StatusPending,
		From:   day("2026-11-03"),
		To:     day("2026-11-09"),
	}, []core.DBOrdering{{Field: "session_date", Ascending: false}})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, session.TypeReview, pending[0].Type)
	assert.Equal(t, session.TypeNewTopic, pending[1].Type)

	reviews, err := repo.ListSessions(ctx, session.ListFilter{PlanID: p.ID, Type: session.TypeReview}, nil)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	s := pending[1]
	s.Status = session.StatusCompleted
	s.QuestionsSolved = 12
	s.CompletedAt = null.TimeFrom(time.Date(2026, 11, 3, 21, 0, 0, 0, time.UTC))
	_, err = repo.UpdateSession(ctx, s)
	require.NoError(t, err)
	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
	assert.Equal(t, 12, got.QuestionsSolved)

	deleted, err := repo.DeletePendingSessions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	all, err = repo.ListSessions(ctx, session.ListFilter{PlanID: p.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.GetSession(ctx, 999)
	assert.Equal(t, session.ErrNotFound, err)
	assert.Equal(t, session.ErrNotFound, repo.SetTimeStudied(ctx, 999, 60))
}

func TestSessionRepository_Constraints(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@example.com", "UTC")
	p := testutil.CreatePlan(t, sqlxrepos.NewPlanRepository(db), usr.ID, "ENEM", exam, 2, plan.ReviewLight)
	repo := sqlxrepos.NewSessionRepository(db)

	tests := []struct {
		name  string
		query string
		args  []interface{}
	}{
		{
			name:  "unknown status",
			query: "INSERT INTO study_sessions (study_plan_id, user_id, session_date, session_type, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			args:  []interface{}{p.ID, usr.ID, day("2026-11-02"), "new_topic", "done", core.Now()},
		},
		{
			name:  "unknown type",
			query: "INSERT INTO study_sessions (study_plan_id, user_id, session_date, session_type, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			args:  []interface{}{p.ID, usr.ID, day("2026-11-02"), "simulado", "pending", core.Now()},
		},
		{
			name:  "missing owner",
			query: "INSERT INTO study_sessions (study_plan_id, session_date, session_type, status, created_at) VALUES (?, ?, ?, ?, ?)",
			args:  []interface{}{p.ID, day("2026-11-02"), "new_topic", "pending", core.Now()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ExecContext(ctx, tt.query, tt.args...)
			assert.Error(t, err)
		})
	}

	// legacy values are rejected before reaching the database
	_, err := repo.InsertSessions(ctx, []session.Session{newSession(p, "2026-11-02", session.TypeNewTopic, 0, "done")})
	assert.Error(t, err)
}

func TestSessionRepository_TimeLogs(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@example.com", "UTC")
	p := testutil.CreatePlan(t, sqlxrepos.NewPlanRepository(db), usr.ID, "ENEM", exam, 2, plan.ReviewLight)
	repo := sqlxrepos.NewSessionRepository(db)

	_, err := repo.InsertSessions(ctx, []session.Session{
		newSession(p, "2026-11-02", session.TypeEssay, 0, session.StatusPending),
		newSession(p, "2026-11-03", session.TypeEssay, 0, session.StatusPending),
	})
	require.NoError(t, err)
	sessions, err := repo.ListSessions(ctx, session.ListFilter{PlanID: p.ID}, nil)
	require.NoError(t, err)
	s1, s2 := sessions[0], sessions[1]

	start := time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC)
	for _, l := range []session.TimeLog{
		{SessionID: s1.ID, UserID: usr.ID, StartTime: start, EndTime: start.Add(20 * time.Minute), DurationSeconds: 1200},
		{SessionID: s1.ID, UserID: usr.ID, StartTime: start.Add(30 * time.Minute), EndTime: start.Add(40 * time.Minute), DurationSeconds: 600},
		{SessionID: s2.ID, UserID: usr.ID, StartTime: start, EndTime: start.Add(time.Minute), DurationSeconds: 60},
	} {
		l.CreatedAt = core.Now()
		created, err := repo.AddTimeLog(ctx, l)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
	}
	require.NoError(t, repo.SetTimeStudied(ctx, s2.ID, 60))

	logs, err := repo.ListTimeLogs(ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, start, logs[0].StartTime)

	discrepancies, err := repo.ListDiscrepancies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []session.Discrepancy{
		{SessionID: s1.ID, TimeStudiedSeconds: 0, LoggedSeconds: 1800, Logs: 2},
	}, discrepancies)
}

func TestSessionRepository_RepairOwners(t *testing.T) {
	db := testutil.PrepareDB(t)
	users := sqlxrepos.NewUserRepository(db)
	ana := testutil.CreateUser(t, users, "Ana", "ana@example.com", "UTC")
	bia := testutil.CreateUser(t, users, "Bia", "bia@example.com", "UTC")
	p := testutil.CreatePlan(t, sqlxrepos.NewPlanRepository(db), ana.ID, "ENEM", exam, 2, plan.ReviewLight)
	repo := sqlxrepos.NewSessionRepository(db)

	wrong := newSession(p, "2026-11-02", session.TypeEssay, 0, session.StatusPending)
	wrong.UserID = bia.ID
	_, err := repo.InsertSessions(ctx, []session.Session{wrong, newSession(p, "2026-11-03", session.TypeEssay, 0, session.StatusPending)})
	require.NoError(t, err)

	n, err := repo.RepairOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	owned, err := repo.ListSessions(ctx, session.ListFilter{UserID: ana.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	n, err = repo.RepairOwners(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduleRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@example.com", "UTC")
	plans := sqlxrepos.NewPlanRepository(db)
	p := testutil.CreatePlan(t, plans, usr.ID, "ENEM", exam, 2, plan.ReviewLight)
	subj := testutil.CreateSubject(t, plans, p.ID, "Matemática", 1, "Funções", "Geometria", "Álgebra")
	repo := sqlxrepos.NewScheduleRepository(db)

	ok, err := repo.TryLockPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = repo.TryLockPlan(ctx, 999)
	assert.Error(t, err)

	exclusion := func(tp plan.Topic) schedule.Exclusion {
		return schedule.Exclusion{
			TopicRef: schedule.TopicRef{
				TopicID:     tp.ID,
				SubjectID:   subj.ID,
				SubjectName: subj.Name,
				Description: tp.Description,
				Priority:    tp.Priority,
			},
			Reason: "reta final",
		}
	}
	require.NoError(t, repo.ReplaceExclusions(ctx, p.ID, []schedule.Exclusion{exclusion(subj.Topics[2]), exclusion(subj.Topics[1])}))
	require.NoError(t, repo.ReplaceExclusions(ctx, p.ID, []schedule.Exclusion{exclusion(subj.Topics[2])}))

	excl, err := repo.ListExclusions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, excl, 1)
	assert.Equal(t, p.ID, excl[0].PlanID)
	assert.Equal(t, subj.Topics[2].ID, excl[0].TopicID)
	assert.Equal(t, "Álgebra", excl[0].Description)
	assert.Equal(t, 3, excl[0].Priority)
	assert.False(t, excl[0].CreatedAt.IsZero())

	require.NoError(t, repo.ReplaceExclusions(ctx, p.ID, nil))
	excl, err = repo.ListExclusions(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, excl)
}
