package sqlxrepos

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/session"
)

const (
	sessionColumns = "id, study_plan_id, user_id, session_date, session_type, topic_id, subject_name, description, sequence, " +
		"status, time_studied_seconds, questions_solved, notes, generation_id, completed_at, created_at"
	timeLogColumns = "id, session_id, user_id, start_time, end_time, duration_seconds, created_at"

	insertSessionsQuery = `INSERT INTO study_sessions (study_plan_id, user_id, session_date, session_type, topic_id,
	subject_name, description, sequence, status, time_studied_seconds, questions_solved, notes, generation_id, completed_at, created_at)
	VALUES (:study_plan_id, :user_id, :session_date, :session_type, :topic_id, :subject_name, :description, :sequence,
	:status, :time_studied_seconds, :questions_solved, :notes, :generation_id, :completed_at, :created_at)`
)

var sessionOrderFields = map[string]bool{
	"id":                   true,
	"session_date":         true,
	"sequence":             true,
	"session_type":         true,
	"status":               true,
	"subject_name":         true,
	"time_studied_seconds": true,
	"created_at":           true,
}

type sessionRepository struct {
	repository
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{repository{exec: exec}}
}

func normalizeSession(s session.Session) session.Session {
	s.SessionDate = core.DateOf(s.SessionDate)
	s.CreatedAt = s.CreatedAt.UTC()
	if s.CompletedAt.Valid {
		s.CompletedAt.Time = s.CompletedAt.Time.UTC()
	}
	return s
}

func (repo sessionRepository) InsertSessions(ctx context.Context, sessions []session.Session, exec ...core.DBExecutor) (int, error) {
	rows := make([]session.Session, len(sessions))
	for i, s := range sessions {
		rows[i] = normalizeSession(s)
	}
	n, err := namedInsert(ctx, repo.getExec(exec), insertSessionsQuery, len(rows), func(from, to int) interface{} {
		return rows[from:to]
	})
	return n, errors.Wrap(err, "inserting sessions")
}

func (repo sessionRepository) DeletePendingSessions(ctx context.Context, planID int64, exec ...core.DBExecutor) (int64, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM study_sessions WHERE study_plan_id = ? AND status = ?"),
		planID, session.StatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "deleting pending sessions")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading deleted sessions")
}

func (repo sessionRepository) ListSessions(ctx context.Context, filter session.ListFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]session.Session, error) {
	exe := repo.getExec(exec)

	var (
		conds []string
		args  []interface{}
	)
	if filter.PlanID != 0 {
		conds = append(conds, "study_plan_id = ?")
		args = append(args, filter.PlanID)
	}
	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conds = append(conds, "session_type = ?")
		args = append(args, filter.Type)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "session_date >= ?")
		args = append(args, core.DateOf(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "session_date <= ?")
		args = append(args, core.DateOf(filter.To))
	}

	q := "SELECT " + sessionColumns + " FROM study_sessions"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if ord := orderBy(ordering, sessionOrderFields); ord != "" {
		q += ord + ", id ASC"
	} else {
		q += " ORDER BY session_date ASC, sequence ASC, id ASC"
	}

	sessions := make([]session.Session, 0)
	if err := exe.SelectContext(ctx, &sessions, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	for i := range sessions {
		sessions[i] = normalizeSession(sessions[i])
	}
	return sessions, nil
}

func (repo sessionRepository) GetSession(ctx context.Context, id int64, exec ...core.DBExecutor) (session.Session, error) {
	exe := repo.getExec(exec)
	var s session.Session
	if err := exe.GetContext(ctx, &s, exe.Rebind("SELECT "+sessionColumns+" FROM study_sessions WHERE id = ?"), id); err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "getting session")
	}
	return normalizeSession(s), nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	s = normalizeSession(s)
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(
		`UPDATE study_sessions SET session_date = ?, sequence = ?, status = ?, time_studied_seconds = ?,
		questions_solved = ?, notes = ?, completed_at = ? WHERE id = ?`),
		s.SessionDate, s.Sequence, s.Status, s.TimeStudiedSeconds, s.QuestionsSolved, s.Notes, s.CompletedAt, s.ID)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if err = checkAffected(res, session.ErrNotFound); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (repo sessionRepository) AddTimeLog(ctx context.Context, l session.TimeLog, exec ...core.DBExecutor) (session.TimeLog, error) {
	l.StartTime, l.EndTime, l.CreatedAt = l.StartTime.UTC(), l.EndTime.UTC(), l.CreatedAt.UTC()
	id, err := insert(ctx, repo.getExec(exec),
		"INSERT INTO study_time_logs (session_id, user_id, start_time, end_time, duration_seconds, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		l.SessionID, l.UserID, l.StartTime, l.EndTime, l.DurationSeconds, l.CreatedAt)
	if err != nil {
		return session.TimeLog{}, errors.Wrap(err, "inserting time log")
	}
	l.ID = id
	return l, nil
}

func (repo sessionRepository) ListTimeLogs(ctx context.Context, sessionID int64, exec ...core.DBExecutor) ([]session.TimeLog, error) {
	exe := repo.getExec(exec)
	logs := make([]session.TimeLog, 0)
	err := exe.SelectContext(ctx, &logs,
		exe.Rebind("SELECT "+timeLogColumns+" FROM study_time_logs WHERE session_id = ? ORDER BY start_time, id"), sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "listing time logs")
	}
	for i := range logs {
		logs[i].StartTime, logs[i].EndTime, logs[i].CreatedAt = logs[i].StartTime.UTC(), logs[i].EndTime.UTC(), logs[i].CreatedAt.UTC()
	}
	return logs, nil
}

func (repo sessionRepository) ListDiscrepancies(ctx context.Context, exec ...core.DBExecutor) ([]session.Discrepancy, error) {
	discrepancies := make([]session.Discrepancy, 0)
	err := repo.getExec(exec).SelectContext(ctx, &discrepancies, `
		SELECT s.id AS session_id, s.time_studied_seconds, SUM(l.duration_seconds) AS logged_seconds, COUNT(l.id) AS logs
		FROM study_sessions s
		JOIN study_time_logs l ON l.session_id = s.id
		GROUP BY s.id, s.time_studied_seconds
		HAVING s.time_studied_seconds <> SUM(l.duration_seconds)
		ORDER BY s.id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing time discrepancies")
	}
	return discrepancies, nil
}

func (repo sessionRepository) SetTimeStudied(ctx context.Context, sessionID, seconds int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE study_sessions SET time_studied_seconds = ? WHERE id = ?"), seconds, sessionID)
	if err != nil {
		return errors.Wrap(err, "updating time studied")
	}
	return checkAffected(res, session.ErrNotFound)
}

func (repo sessionRepository) RepairOwners(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE study_sessions
		SET user_id = (SELECT p.user_id FROM study_plans p WHERE p.id = study_sessions.study_plan_id)
		WHERE user_id IS NULL
		   OR user_id <> (SELECT p.user_id FROM study_plans p WHERE p.id = study_sessions.study_plan_id)`)
	if err != nil {
		return 0, errors.Wrap(err, "repairing session owners")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading repaired sessions")
}
