package schedule

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

const lockRetryDelay = 50 * time.Millisecond

type (
	Repository interface {
		// TryLockPlan takes the plan's generation lock for the duration of the transaction `exec`.
		// It returns false, without error, when another transaction holds it.
		TryLockPlan(ctx context.Context, planID int64, exec ...core.DBExecutor) (bool, error)
		// ReplaceExclusions replaces the plan's reta final exclusions by `excl`.
		ReplaceExclusions(ctx context.Context, planID int64, excl []Exclusion, exec ...core.DBExecutor) error
		ListExclusions(ctx context.Context, planID int64, exec ...core.DBExecutor) ([]Exclusion, error)
	}

	// GenerateParams overrides plan settings for a generation; the overrides are saved to the plan.
	GenerateParams = plan.UpdatePlan

	// CapacityDeficitWarning reports pending topics that got no session.
	CapacityDeficitWarning struct {
		UnscheduledCount int        `json:"unscheduled_count"`
		Topics           []TopicRef `json:"topics"`
		Message          string     `json:"message"`
	}

	GenerateResult struct {
		GenerationID     string                  `json:"generation_id"`
		SessionsCreated  int                     `json:"sessions_created"`
		SessionsDeleted  int64                   `json:"sessions_deleted"`
		NewTopicSessions int                     `json:"new_topic_sessions"`
		ReviewSessions   int                     `json:"review_sessions"`
		EssaySessions    int                     `json:"essay_sessions"`
		SkippedReviews   int                     `json:"skipped_reviews"`
		SkippedEssays    int                     `json:"skipped_essays"`
		Capacity         int                     `json:"capacity"`
		RetaFinalApplied bool                    `json:"reta_final_applied"`
		DroppedTopics    []Exclusion             `json:"dropped_topics"`
		Deficit          *CapacityDeficitWarning `json:"deficit,omitempty"`
		Warnings         []string                `json:"warnings"`
	}

	// Digest is the overdue sessions of one plan, as of its owner's today.
	Digest struct {
		UserID   int64             `json:"user_id"`
		PlanID   int64             `json:"plan_id"`
		PlanName string            `json:"plan_name"`
		Today    time.Time         `json:"today"`
		Sessions []session.Session `json:"sessions"`
	}

	Service struct {
		db         core.DB
		plans      plan.Repository
		sessions   session.Repository
		repo       Repository
		locator    plan.Locator
		locker     *PlanLocker
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
		lockWait   time.Duration
	}
)

func NewService(
	db core.DB,
	plans plan.Repository,
	sessions session.Repository,
	repo Repository,
	locator plan.Locator,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:         db,
		plans:      plans,
		sessions:   sessions,
		repo:       repo,
		locator:    locator,
		locker:     NewPlanLocker(conf.Scheduler.LockTimeout),
		validate:   validate,
		translator: translator,
		logger:     logger,
		lockWait:   conf.Scheduler.LockTimeout,
	}
}

func (svc *Service) getPlan(ctx context.Context, userID, planID int64) (plan.StudyPlan, time.Time, error) {
	p, err := svc.plans.GetPlan(ctx, planID)
	if err != nil {
		return plan.StudyPlan{}, time.Time{}, err
	}
	if p.UserID != userID {
		return plan.StudyPlan{}, time.Time{}, plan.ErrNotFound
	}
	loc, err := svc.locator.Location(ctx, userID)
	if err != nil {
		return plan.StudyPlan{}, time.Time{}, errors.Wrap(err, "resolving user timezone")
	}
	return p, core.Today(loc), nil
}

// GenerateSchedule regenerates the pending sessions of the plan from today (in the owner's
// timezone) up to the exam. Completed and skipped sessions are kept.
// Everything is written in one transaction: on failure, the previous schedule is left intact.
func (svc *Service) GenerateSchedule(ctx context.Context, userID, planID int64, params GenerateParams) (GenerateResult, error) {
	if err := svc.validate.Struct(params); err != nil {
		return GenerateResult{}, core.ValidationErrorFrom(err, svc.translator)
	}
	p, today, err := svc.getPlan(ctx, userID, planID)
	if err != nil {
		return GenerateResult{}, err
	}
	if err = params.Apply(&p); err != nil {
		return GenerateResult{}, err
	}
	warnings, err := plan.CheckConfig(p, today)
	if err != nil {
		return GenerateResult{}, err
	}

	unlock, err := svc.locker.Lock(ctx, planID)
	if err != nil {
		return GenerateResult{}, err
	}
	defer unlock()

	res := GenerateResult{GenerationID: uuid.NewString(), Warnings: warnings}
	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.lockPlan(ctx, planID, tx); err != nil {
			return err
		}

		subjects, sessions, err := svc.snapshot(ctx, planID, tx)
		if err != nil {
			return err
		}
		sched, err := generateFor(p, today, subjects, sessions)
		if err != nil {
			return err
		}

		if res.SessionsDeleted, err = svc.sessions.DeletePendingSessions(ctx, planID, tx); err != nil {
			return &PersistenceError{Op: "deleting pending sessions", Err: err}
		}
		now := core.Now()
		if res.SessionsCreated, err = svc.sessions.InsertSessions(ctx, toSessions(p, sched, res.GenerationID, now), tx); err != nil {
			return &PersistenceError{Op: "inserting sessions", Err: err}
		}
		if err = svc.repo.ReplaceExclusions(ctx, planID, sched.Dropped, tx); err != nil {
			return &PersistenceError{Op: "saving exclusions", Err: err}
		}
		p.LastGeneratedAt = null.TimeFrom(now)
		p.UpdatedAt = now
		if _, err = svc.plans.UpdatePlan(ctx, p, tx); err != nil {
			return &PersistenceError{Op: "updating plan", Err: err}
		}

		res.summarize(sched)
		return nil
	})
	if err != nil {
		if IsNoAvailability(err) || IsConcurrencyConflict(err) || core.IsValidationError(err) {
			return GenerateResult{}, err
		}
		if !IsPersistence(err) {
			err = &PersistenceError{Op: "generating schedule", Err: err}
		}
		svc.logger.Error(err.Error(), map[string]interface{}{"plan_id": planID})
		return GenerateResult{}, err
	}

	svc.logger.Info("schedule generated", map[string]interface{}{
		"plan_id":       planID,
		"generation_id": res.GenerationID,
		"sessions":      res.SessionsCreated,
		"capacity":      res.Capacity,
	})
	return res, nil
}

// lockPlan retries the database plan lock until the lock wait elapses.
func (svc *Service) lockPlan(ctx context.Context, planID int64, tx core.DBExecutor) error {
	deadline := time.Now().Add(svc.lockWait)
	for {
		ok, err := svc.repo.TryLockPlan(ctx, planID, tx)
		if err != nil {
			return &PersistenceError{Op: "locking plan", Err: err}
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &ConcurrencyConflictError{PlanID: planID}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// snapshot reads the subjects and the sessions of the plan.
func (svc *Service) snapshot(ctx context.Context, planID int64, tx core.DBExecutor) ([]plan.Subject, []session.Session, error) {
	subjects, err := svc.plans.ListSubjects(ctx, planID, tx)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "listing subjects", Err: err}
	}
	sessions, err := svc.sessions.ListSessions(ctx, session.ListFilter{PlanID: planID}, nil, tx)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "listing sessions", Err: err}
	}
	return subjects, sessions, nil
}

// generateFor computes the schedule of p from today around the sessions a regeneration keeps:
// the completed and skipped ones dated today or later.
func generateFor(p plan.StudyPlan, today time.Time, subjects []plan.Subject, sessions []session.Session) (Schedule, error) {
	kept := make([]session.Session, 0)
	for _, s := range sessions {
		if !s.IsPending() && !core.DateOf(s.SessionDate).Before(today) {
			kept = append(kept, s)
		}
	}
	return Generate(subjects, CalendarFor(p, today, kept), Options{
		ReviewMode: p.ReviewMode,
		RetaFinal:  p.RetaFinalMode,
		HasEssay:   p.HasEssay,
	})
}

func (res *GenerateResult) summarize(sched Schedule) {
	res.NewTopicSessions = sched.Count(session.TypeNewTopic)
	res.ReviewSessions = sched.Count(session.TypeReview)
	res.EssaySessions = sched.Count(session.TypeEssay)
	res.SkippedReviews = sched.SkippedReviews
	res.SkippedEssays = sched.SkippedEssays
	res.Capacity = sched.Capacity
	res.RetaFinalApplied = sched.RetaFinal
	res.DroppedTopics = sched.Dropped
	if n := len(sched.Unscheduled); n > 0 {
		res.Deficit = &CapacityDeficitWarning{
			UnscheduledCount: n,
			Topics:           sched.Unscheduled,
			Message: fmt.Sprintf(
				"%d pending topics do not fit the %d available sessions; add study hours, move the exam date or enable reta final mode",
				n, sched.Capacity),
		}
	}
}

func toSessions(p plan.StudyPlan, sched Schedule, generationID string, now time.Time) []session.Session {
	sessions := make([]session.Session, 0, len(sched.Entries))
	for _, e := range sched.Entries {
		sessions = append(sessions, session.Session{
			PlanID:       p.ID,
			UserID:       p.UserID,
			SessionDate:  e.Date,
			Type:         e.Type,
			TopicID:      null.NewInt64(e.TopicID, e.TopicID != 0),
			SubjectName:  e.SubjectName,
			Description:  e.Description,
			Sequence:     e.Sequence,
			Status:       session.StatusPending,
			GenerationID: null.StringFrom(generationID),
			CreatedAt:    now,
		})
	}
	return sessions
}

// GetSchedulePreview summarizes the plan's schedule. It only reads, subjects and sessions
// from the same transaction.
func (svc *Service) GetSchedulePreview(ctx context.Context, userID, planID int64) (Preview, error) {
	p, today, err := svc.getPlan(ctx, userID, planID)
	if err != nil {
		return Preview{}, err
	}
	var preview Preview
	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		subjects, sessions, err := svc.snapshot(ctx, planID, tx)
		if err != nil {
			return err
		}
		preview = BuildPreview(p, subjects, sessions, today)
		return nil
	})
	if err != nil {
		return Preview{}, errors.Wrap(err, "reading schedule")
	}
	return preview, nil
}

func (svc *Service) GetProgress(ctx context.Context, userID, planID int64) (Progress, error) {
	if _, _, err := svc.getPlan(ctx, userID, planID); err != nil {
		return Progress{}, err
	}
	subjects, err := svc.plans.ListSubjects(ctx, planID)
	if err != nil {
		return Progress{}, errors.Wrap(err, "listing subjects")
	}
	sessions, err := svc.sessions.ListSessions(ctx, session.ListFilter{PlanID: planID, Type: session.TypeNewTopic}, nil)
	if err != nil {
		return Progress{}, errors.Wrap(err, "listing sessions")
	}
	return ComputeProgress(topicsOf(subjects), sessions), nil
}

// GetOverdue returns the plan's pending sessions dated before the owner's today.
func (svc *Service) GetOverdue(ctx context.Context, userID, planID int64) ([]session.Session, error) {
	_, today, err := svc.getPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return svc.overdue(ctx, planID, today)
}

func (svc *Service) overdue(ctx context.Context, planID int64, today time.Time) ([]session.Session, error) {
	sessions, err := svc.sessions.ListSessions(ctx, session.ListFilter{
		PlanID: planID,
		Status: session.StatusPending,
		To:     core.AddDays(today, -1),
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	return ComputeOverdue(sessions, today), nil
}

func (svc *Service) ListExclusions(ctx context.Context, userID, planID int64) ([]Exclusion, error) {
	if _, _, err := svc.getPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	return svc.repo.ListExclusions(ctx, planID)
}

// OverdueDigests returns, for every plan with overdue sessions, those sessions.
func (svc *Service) OverdueDigests(ctx context.Context) ([]Digest, error) {
	plans, err := svc.plans.ListPlans(ctx, plan.ListFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing plans")
	}

	digests := make([]Digest, 0)
	for _, p := range plans {
		loc, err := svc.locator.Location(ctx, p.UserID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving timezone of user %d", p.UserID)
		}
		today := core.Today(loc)
		sessions, err := svc.overdue(ctx, p.ID, today)
		if err != nil {
			return nil, err
		}
		if len(sessions) > 0 {
			digests = append(digests, Digest{UserID: p.UserID, PlanID: p.ID, PlanName: p.Name, Today: today, Sessions: sessions})
		}
	}
	return digests, nil
}
