package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
)

const (
	planColumns = "id, user_id, name, exam_date, study_hours_per_day, daily_question_goal, weekly_question_goal, " +
		"session_duration_minutes, review_mode, has_essay, reta_final_mode, last_generated_at, created_at, updated_at"
	subjectColumns = "id, study_plan_id, name, priority_weight, created_at"
	topicColumns   = "id, subject_id, description, priority, status, completed_at, created_at"
)

type planRepository struct {
	repository
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(exec core.DBExecutor) *planRepository {
	return &planRepository{repository{exec: exec}}
}

func normalizePlan(p plan.StudyPlan) plan.StudyPlan {
	p.ExamDate = core.DateOf(p.ExamDate)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.LastGeneratedAt.Valid {
		p.LastGeneratedAt.Time = p.LastGeneratedAt.Time.UTC()
	}
	return p
}

func normalizeTopic(t plan.Topic) plan.Topic {
	t.CreatedAt = t.CreatedAt.UTC()
	if t.CompletedAt.Valid {
		t.CompletedAt.Time = t.CompletedAt.Time.UTC()
	}
	return t
}

func (repo planRepository) CreatePlan(ctx context.Context, p plan.StudyPlan, exec ...core.DBExecutor) (plan.StudyPlan, error) {
	p = normalizePlan(p)
	id, err := insert(ctx, repo.getExec(exec),
		`INSERT INTO study_plans (user_id, name, exam_date, study_hours_per_day, daily_question_goal, weekly_question_goal,
		session_duration_minutes, review_mode, has_essay, reta_final_mode, last_generated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.ExamDate, p.StudyHoursPerDay, p.DailyQuestionGoal, p.WeeklyQuestionGoal,
		p.SessionDurationMinutes, p.ReviewMode, p.HasEssay, p.RetaFinalMode, p.LastGeneratedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return plan.StudyPlan{}, errors.Wrap(err, "inserting plan")
	}
	p.ID = id
	return p, nil
}

func (repo planRepository) GetPlan(ctx context.Context, id int64, exec ...core.DBExecutor) (plan.StudyPlan, error) {
	exe := repo.getExec(exec)
	var p plan.StudyPlan
	if err := exe.GetContext(ctx, &p, exe.Rebind("SELECT "+planColumns+" FROM study_plans WHERE id = ?"), id); err != nil {
		return plan.StudyPlan{}, trapNoRowsErr(err, plan.ErrNotFound, "getting plan")
	}
	return normalizePlan(p), nil
}

func (repo planRepository) ListPlans(ctx context.Context, filter plan.ListFilter, exec ...core.DBExecutor) ([]plan.StudyPlan, error) {
	exe := repo.getExec(exec)
	q := "SELECT " + planColumns + " FROM study_plans"
	var args []interface{}
	if filter.UserID != 0 {
		q += " WHERE user_id = ?"
		args = append(args, filter.UserID)
	}
	q += " ORDER BY id"

	plans := make([]plan.StudyPlan, 0)
	if err := exe.SelectContext(ctx, &plans, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing plans")
	}
	for i := range plans {
		plans[i] = normalizePlan(plans[i])
	}
	return plans, nil
}

func (repo planRepository) UpdatePlan(ctx context.Context, p plan.StudyPlan, exec ...core.DBExecutor) (plan.StudyPlan, error) {
	p = normalizePlan(p)
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(
		`UPDATE study_plans SET name = ?, exam_date = ?, study_hours_per_day = ?, daily_question_goal = ?,
		weekly_question_goal = ?, session_duration_minutes = ?, review_mode = ?, has_essay = ?, reta_final_mode = ?,
		last_generated_at = ?, updated_at = ? WHERE id = ?`),
		p.Name, p.ExamDate, p.StudyHoursPerDay, p.DailyQuestionGoal, p.WeeklyQuestionGoal, p.SessionDurationMinutes,
		p.ReviewMode, p.HasEssay, p.RetaFinalMode, p.LastGeneratedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return plan.StudyPlan{}, errors.Wrap(err, "updating plan")
	}
	if err = checkAffected(res, plan.ErrNotFound); err != nil {
		return plan.StudyPlan{}, err
	}
	return p, nil
}

func (repo planRepository) DeletePlan(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM study_plans WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting plan")
	}
	return checkAffected(res, plan.ErrNotFound)
}

func (repo planRepository) CreateSubject(ctx context.Context, s plan.Subject, exec ...core.DBExecutor) (plan.Subject, error) {
	exe := repo.getExec(exec)
	s.CreatedAt = s.CreatedAt.UTC()
	id, err := insert(ctx, exe,
		"INSERT INTO subjects (study_plan_id, name, priority_weight, created_at) VALUES (?, ?, ?, ?)",
		s.PlanID, s.Name, s.PriorityWeight, s.CreatedAt)
	if err != nil {
		return plan.Subject{}, errors.Wrap(err, "inserting subject")
	}
	s.ID = id

	if s.Topics, err = repo.CreateTopics(ctx, id, s.Topics, exe); err != nil {
		return plan.Subject{}, err
	}
	return s, nil
}

func (repo planRepository) GetSubject(ctx context.Context, id int64, exec ...core.DBExecutor) (plan.Subject, error) {
	exe := repo.getExec(exec)
	var s plan.Subject
	if err := exe.GetContext(ctx, &s, exe.Rebind("SELECT "+subjectColumns+" FROM subjects WHERE id = ?"), id); err != nil {
		return plan.Subject{}, trapNoRowsErr(err, plan.ErrSubjectNotFound, "getting subject")
	}
	s.CreatedAt = s.CreatedAt.UTC()

	topics, err := repo.listTopics(ctx, exe, []int64{id})
	if err != nil {
		return plan.Subject{}, err
	}
	s.Topics = topics
	return s, nil
}

func (repo planRepository) UpdateSubject(ctx context.Context, s plan.Subject, exec ...core.DBExecutor) (plan.Subject, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE subjects SET name = ?, priority_weight = ? WHERE id = ?"),
		s.Name, s.PriorityWeight, s.ID)
	if err != nil {
		return plan.Subject{}, errors.Wrap(err, "updating subject")
	}
	if err = checkAffected(res, plan.ErrSubjectNotFound); err != nil {
		return plan.Subject{}, err
	}
	return s, nil
}

func (repo planRepository) DeleteSubject(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM subjects WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return checkAffected(res, plan.ErrSubjectNotFound)
}

func (repo planRepository) ListSubjects(ctx context.Context, planID int64, exec ...core.DBExecutor) ([]plan.Subject, error) {
	exe := repo.getExec(exec)
	subjects := make([]plan.Subject, 0)
	err := exe.SelectContext(ctx, &subjects,
		exe.Rebind("SELECT "+subjectColumns+" FROM subjects WHERE study_plan_id = ? ORDER BY id"), planID)
	if err != nil {
		return nil, errors.Wrap(err, "listing subjects")
	}
	if len(subjects) == 0 {
		return subjects, nil
	}

	ids := make([]int64, 0, len(subjects))
	for _, s := range subjects {
		ids = append(ids, s.ID)
	}
	topics, err := repo.listTopics(ctx, exe, ids)
	if err != nil {
		return nil, err
	}
	bySubject := make(map[int64][]plan.Topic, len(subjects))
	for _, t := range topics {
		bySubject[t.SubjectID] = append(bySubject[t.SubjectID], t)
	}
	for i := range subjects {
		subjects[i].CreatedAt = subjects[i].CreatedAt.UTC()
		subjects[i].Topics = bySubject[subjects[i].ID]
		if subjects[i].Topics == nil {
			subjects[i].Topics = []plan.Topic{}
		}
	}
	return subjects, nil
}

func (repo planRepository) listTopics(ctx context.Context, exe core.DBExecutor, subjectIDs []int64) ([]plan.Topic, error) {
	q, args, err := sqlx.In("SELECT "+topicColumns+" FROM topics WHERE subject_id IN (?) ORDER BY subject_id, priority, id", subjectIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building topics query")
	}
	topics := make([]plan.Topic, 0)
	if err = exe.SelectContext(ctx, &topics, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing topics")
	}
	for i := range topics {
		topics[i] = normalizeTopic(topics[i])
	}
	return topics, nil
}

func (repo planRepository) CreateTopics(ctx context.Context, subjectID int64, topics []plan.Topic, exec ...core.DBExecutor) ([]plan.Topic, error) {
	exe := repo.getExec(exec)
	created := make([]plan.Topic, 0, len(topics))
	for _, t := range topics {
		t.SubjectID = subjectID
		if t.Status == "" {
			t.Status = plan.TopicPending
		}
		t = normalizeTopic(t)
		id, err := insert(ctx, exe,
			"INSERT INTO topics (subject_id, description, priority, status, completed_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			t.SubjectID, t.Description, t.Priority, t.Status, t.CompletedAt, t.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "inserting topic")
		}
		t.ID = id
		created = append(created, t)
	}
	return created, nil
}

func (repo planRepository) SetTopicStatus(ctx context.Context, topicID int64, status plan.TopicStatus, completedAt null.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if completedAt.Valid {
		completedAt.Time = completedAt.Time.UTC()
	}
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE topics SET status = ?, completed_at = ? WHERE id = ?"),
		status, completedAt, topicID)
	if err != nil {
		return errors.Wrap(err, "updating topic status")
	}
	return checkAffected(res, errors.Errorf("topic %d not found", topicID))
}
