package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/schedule"
)

const (
	exclusionColumns = "id, study_plan_id, topic_id, subject_id, subject_name, topic_description, priority, reason, created_at"

	insertExclusionsQuery = `INSERT INTO reta_final_exclusions (study_plan_id, topic_id, subject_id, subject_name,
	topic_description, priority, reason, created_at)
	VALUES (:study_plan_id, :topic_id, :subject_id, :subject_name, :topic_description, :priority, :reason, :created_at)`
)

type scheduleRepository struct {
	repository
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(exec core.DBExecutor) *scheduleRepository {
	return &scheduleRepository{repository{exec: exec}}
}

// TryLockPlan takes a transaction-scoped advisory lock on postgres. On sqlite, where
// transactions start with the database write lock, it only checks the plan row.
func (repo scheduleRepository) TryLockPlan(ctx context.Context, planID int64, exec ...core.DBExecutor) (bool, error) {
	exe := repo.getExec(exec)
	if exe.DriverName() == core.EnginePostgres {
		var locked bool
		if err := exe.GetContext(ctx, &locked, "SELECT pg_try_advisory_xact_lock($1)", planID); err != nil {
			return false, errors.Wrap(err, "locking plan")
		}
		return locked, nil
	}

	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE study_plans SET updated_at = updated_at WHERE id = ?"), planID)
	if err != nil {
		return false, errors.Wrap(err, "locking plan")
	}
	return true, errors.Wrap(checkAffected(res, errors.Errorf("plan %d not found", planID)), "locking plan")
}

func (repo scheduleRepository) ReplaceExclusions(ctx context.Context, planID int64, excl []schedule.Exclusion, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM reta_final_exclusions WHERE study_plan_id = ?"), planID); err != nil {
		return errors.Wrap(err, "deleting exclusions")
	}

	now := core.Now()
	rows := make([]schedule.Exclusion, len(excl))
	for i, e := range excl {
		e.PlanID = planID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		rows[i] = e
	}
	_, err := namedInsert(ctx, exe, insertExclusionsQuery, len(rows), func(from, to int) interface{} {
		return rows[from:to]
	})
	return errors.Wrap(err, "inserting exclusions")
}

func (repo scheduleRepository) ListExclusions(ctx context.Context, planID int64, exec ...core.DBExecutor) ([]schedule.Exclusion, error) {
	exe := repo.getExec(exec)
	excl := make([]schedule.Exclusion, 0)
	err := exe.SelectContext(ctx, &excl, exe.Rebind(
		"SELECT "+exclusionColumns+" FROM reta_final_exclusions WHERE study_plan_id = ? ORDER BY subject_id, priority, topic_id"), planID)
	if err != nil {
		return nil, errors.Wrap(err, "listing exclusions")
	}
	for i := range excl {
		excl[i].CreatedAt = excl[i].CreatedAt.UTC()
	}
	return excl, nil
}
