package session

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
)

const MaxStudySeconds = 8 * 60 * 60

var (
	// errors
	ErrNotFound         = errors.New("study session not found")
	ErrAlreadyCompleted = errors.New("study session already completed")
)

type (
	ListFilter struct {
		PlanID int64
		UserID int64
		Status Status
		Type   Type
		From   time.Time // inclusive
		To     time.Time // inclusive
	}

	Repository interface {
		// InsertSessions bulk-inserts sessions and returns the number of rows written.
		InsertSessions(ctx context.Context, sessions []Session, exec ...core.DBExecutor) (int, error)
		DeletePendingSessions(ctx context.Context, planID int64, exec ...core.DBExecutor) (int64, error)
		ListSessions(ctx context.Context, filter ListFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Session, error)
		GetSession(ctx context.Context, id int64, exec ...core.DBExecutor) (Session, error)
		UpdateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)

		AddTimeLog(ctx context.Context, l TimeLog, exec ...core.DBExecutor) (TimeLog, error)
		ListTimeLogs(ctx context.Context, sessionID int64, exec ...core.DBExecutor) ([]TimeLog, error)
		ListDiscrepancies(ctx context.Context, exec ...core.DBExecutor) ([]Discrepancy, error)
		SetTimeStudied(ctx context.Context, sessionID, seconds int64, exec ...core.DBExecutor) error
		// RepairOwners sets every session's user_id to its plan owner and returns the number of fixed rows.
		RepairOwners(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}

	// TopicUpdater marks topics completed.
	TopicUpdater interface {
		SetTopicStatus(ctx context.Context, topicID int64, status plan.TopicStatus, completedAt null.Time, exec ...core.DBExecutor) error
	}

	CompleteSession struct {
		TimeStudiedSeconds int64  `json:"time_studied_seconds" validate:"omitempty,min=60,max=28800"`
		QuestionsSolved    int    `json:"questions_solved" validate:"min=0,max=10000"`
		Notes              string `json:"notes" validate:"max=2000"`
	}

	NewTimeLog struct {
		StartTime time.Time `json:"start_time" validate:"required"`
		EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	}

	Service struct {
		db         core.DB
		repo       Repository
		topics     TopicUpdater
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewService(db core.DB, repo Repository, topics TopicUpdater, validate *validator.Validate, translator ut.Translator, logger core.Logger) *Service {
	return &Service{db: db, repo: repo, topics: topics, validate: validate, translator: translator, logger: logger}
}

func (svc *Service) get(ctx context.Context, userID, id int64, exec ...core.DBExecutor) (Session, error) {
	s, err := svc.repo.GetSession(ctx, id, exec...)
	if err != nil {
		return Session{}, err
	}
	if s.UserID != userID {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (svc *Service) Get(ctx context.Context, userID, id int64) (Session, error) {
	return svc.get(ctx, userID, id)
}

// List returns the user's sessions matching filter, by date then sequence unless ordered otherwise.
func (svc *Service) List(ctx context.Context, userID int64, filter ListFilter, ordering []core.DBOrdering) ([]Session, error) {
	filter.UserID = userID
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "session_date", Ascending: true}, {Field: "sequence", Ascending: true}}
	}
	return svc.repo.ListSessions(ctx, filter, ordering)
}

// Complete marks the session completed. A completed new-topic session completes its topic;
// time studied is recorded as a time log ending now.
// Only the session (and its topic) are touched, never the plan.
func (svc *Service) Complete(ctx context.Context, userID, id int64, cs CompleteSession) (Session, error) {
	if err := svc.validate.Struct(cs); err != nil {
		return Session{}, core.ValidationErrorFrom(err, svc.translator)
	}

	var s Session
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if s, err = svc.get(ctx, userID, id, tx); err != nil {
			return err
		}
		if s.IsCompleted() {
			return core.NewValidationError(ErrAlreadyCompleted)
		}

		now := core.Now()
		s.Status = StatusCompleted
		s.CompletedAt = null.TimeFrom(now)
		s.QuestionsSolved = cs.QuestionsSolved
		s.Notes = core.CleanString(cs.Notes)

		if cs.TimeStudiedSeconds > 0 {
			dur := time.Duration(cs.TimeStudiedSeconds) * time.Second
			if _, err = svc.repo.AddTimeLog(ctx, TimeLog{
				SessionID:       s.ID,
				UserID:          s.UserID,
				StartTime:       now.Add(-dur),
				EndTime:         now,
				DurationSeconds: cs.TimeStudiedSeconds,
				CreatedAt:       now,
			}, tx); err != nil {
				return errors.Wrap(err, "adding time log")
			}
			s.TimeStudiedSeconds += cs.TimeStudiedSeconds
		}

		if s, err = svc.repo.UpdateSession(ctx, s, tx); err != nil {
			return errors.Wrap(err, "updating session")
		}
		if s.Type == TypeNewTopic && s.TopicID.Valid {
			if err = svc.topics.SetTopicStatus(ctx, s.TopicID.Int64, plan.TopicCompleted, null.TimeFrom(now), tx); err != nil {
				return errors.Wrap(err, "completing topic")
			}
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// Skip marks a pending session skipped; it is no longer overdue.
func (svc *Service) Skip(ctx context.Context, userID, id int64) (Session, error) {
	s, err := svc.get(ctx, userID, id)
	if err != nil {
		return Session{}, err
	}
	if s.IsCompleted() {
		return Session{}, core.NewValidationError(ErrAlreadyCompleted)
	}
	s.Status = StatusSkipped
	return svc.repo.UpdateSession(ctx, s)
}

// LogTime appends a time log (pause/resume chunk) to the session and adds its duration
// to the session's time studied.
func (svc *Service) LogTime(ctx context.Context, userID, id int64, nl NewTimeLog) (TimeLog, error) {
	if err := svc.validate.Struct(nl); err != nil {
		return TimeLog{}, core.ValidationErrorFrom(err, svc.translator)
	}
	dur := int64(nl.EndTime.Sub(nl.StartTime) / time.Second)
	if dur > MaxStudySeconds {
		return TimeLog{}, core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "a time log cannot exceed 8 hours"})
	}

	var l TimeLog
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		s, err := svc.get(ctx, userID, id, tx)
		if err != nil {
			return err
		}
		l, err = svc.repo.AddTimeLog(ctx, TimeLog{
			SessionID:       s.ID,
			UserID:          s.UserID,
			StartTime:       nl.StartTime.UTC(),
			EndTime:         nl.EndTime.UTC(),
			DurationSeconds: dur,
			CreatedAt:       core.Now(),
		}, tx)
		if err != nil {
			return errors.Wrap(err, "adding time log")
		}
		return errors.Wrap(svc.repo.SetTimeStudied(ctx, s.ID, s.TimeStudiedSeconds+dur, tx), "updating time studied")
	})
	if err != nil {
		return TimeLog{}, err
	}
	return l, nil
}

func (svc *Service) TimeLogs(ctx context.Context, userID, id int64) ([]TimeLog, error) {
	if _, err := svc.get(ctx, userID, id); err != nil {
		return nil, err
	}
	return svc.repo.ListTimeLogs(ctx, id)
}

// Reconcile lists the sessions whose time logs do not sum to their time studied.
// With fix, time studied is reset to the logged sum.
func (svc *Service) Reconcile(ctx context.Context, fix bool) ([]Discrepancy, error) {
	discrepancies, err := svc.repo.ListDiscrepancies(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing time discrepancies")
	}
	if !fix || len(discrepancies) == 0 {
		return discrepancies, nil
	}

	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, d := range discrepancies {
			if err := svc.repo.SetTimeStudied(ctx, d.SessionID, d.LoggedSeconds, tx); err != nil {
				return errors.Wrapf(err, "repairing session %d", d.SessionID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("time studied reconciled", map[string]interface{}{"sessions": len(discrepancies)})
	return discrepancies, nil
}

// RepairOwners backfills sessions' user_id from their plan.
func (svc *Service) RepairOwners(ctx context.Context) (int64, error) {
	n, err := svc.repo.RepairOwners(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "repairing session owners")
	}
	if n > 0 {
		svc.logger.Warn("session owners repaired", map[string]interface{}{"sessions": n})
	}
	return n, nil
}
