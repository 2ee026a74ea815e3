package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
)

var (
	// errors
	ErrNotFound        = errors.New("study plan not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrDuplicateTopics = errors.New("duplicate topics")
)

type (
	ListFilter struct {
		UserID int64 // 0: all users
	}

	Repository interface {
		CreatePlan(ctx context.Context, p StudyPlan, exec ...core.DBExecutor) (StudyPlan, error)
		GetPlan(ctx context.Context, id int64, exec ...core.DBExecutor) (StudyPlan, error)
		ListPlans(ctx context.Context, filter ListFilter, exec ...core.DBExecutor) ([]StudyPlan, error)
		UpdatePlan(ctx context.Context, p StudyPlan, exec ...core.DBExecutor) (StudyPlan, error)
		DeletePlan(ctx context.Context, id int64, exec ...core.DBExecutor) error

		// CreateSubject inserts the subject and its topics.
		CreateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id int64, exec ...core.DBExecutor) (Subject, error)
		UpdateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubject(ctx context.Context, id int64, exec ...core.DBExecutor) error
		// ListSubjects returns the plan's subjects ordered by id, with their topics
		// ordered by priority then id.
		ListSubjects(ctx context.Context, planID int64, exec ...core.DBExecutor) ([]Subject, error)

		CreateTopics(ctx context.Context, subjectID int64, topics []Topic, exec ...core.DBExecutor) ([]Topic, error)
		SetTopicStatus(ctx context.Context, topicID int64, status TopicStatus, completedAt null.Time, exec ...core.DBExecutor) error
	}

	// Locator resolves a user's timezone.
	Locator interface {
		Location(ctx context.Context, userID int64) (*time.Location, error)
	}

	NewPlan struct {
		Name                   string      `json:"name" validate:"required,max=200"`
		ExamDate               string      `json:"exam_date" validate:"required"`
		StudyHoursPerDay       WeeklyHours `json:"study_hours_per_day" validate:"weekly_hours"`
		DailyQuestionGoal      int         `json:"daily_question_goal"`
		WeeklyQuestionGoal     int         `json:"weekly_question_goal"`
		SessionDurationMinutes int         `json:"session_duration_minutes"`
		ReviewMode             string      `json:"review_mode" validate:"review_mode"`
		HasEssay               bool        `json:"has_essay"`
		RetaFinalMode          bool        `json:"reta_final_mode"`
	}

	// UpdatePlan holds optional changes; nil fields are left untouched.
	UpdatePlan struct {
		Name                   *string      `json:"name" validate:"omitempty,min=1,max=200"`
		ExamDate               *string      `json:"exam_date"`
		StudyHoursPerDay       *WeeklyHours `json:"study_hours_per_day" validate:"omitempty,weekly_hours"`
		DailyQuestionGoal      *int         `json:"daily_question_goal"`
		WeeklyQuestionGoal     *int         `json:"weekly_question_goal"`
		SessionDurationMinutes *int         `json:"session_duration_minutes"`
		ReviewMode             *string      `json:"review_mode" validate:"omitempty,review_mode"`
		HasEssay               *bool        `json:"has_essay"`
		RetaFinalMode          *bool        `json:"reta_final_mode"`
	}

	NewSubject struct {
		Name           string   `json:"name" validate:"required,max=200"`
		PriorityWeight int      `json:"priority_weight" validate:"min=0,max=100"`
		Topics         string   `json:"topics"`     // newline-separated
		TopicList      []string `json:"topic_list"` // used as is, after Topics
	}

	UpdateSubject struct {
		Name           *string `json:"name" validate:"omitempty,min=1,max=200"`
		PriorityWeight *int    `json:"priority_weight" validate:"omitempty,min=0,max=100"`
	}

	Service struct {
		db         core.DB
		repo       Repository
		locator    Locator
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(db core.DB, repo Repository, locator Locator, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{db: db, repo: repo, locator: locator, validate: validate, translator: translator}
}

// Apply copies the non-nil fields of up onto p.
func (up UpdatePlan) Apply(p *StudyPlan) error {
	if up.Name != nil {
		p.Name = core.CleanString(*up.Name)
	}
	if up.ExamDate != nil {
		d, err := core.ParseDate(core.CleanString(*up.ExamDate))
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "exam_date", Error: "exam date must be formatted as YYYY-MM-DD"})
		}
		p.ExamDate = d
	}
	if up.StudyHoursPerDay != nil {
		p.StudyHoursPerDay = *up.StudyHoursPerDay
	}
	if up.DailyQuestionGoal != nil {
		p.DailyQuestionGoal = *up.DailyQuestionGoal
	}
	if up.WeeklyQuestionGoal != nil {
		p.WeeklyQuestionGoal = *up.WeeklyQuestionGoal
	}
	if up.SessionDurationMinutes != nil {
		p.SessionDurationMinutes = *up.SessionDurationMinutes
	}
	if up.ReviewMode != nil {
		mode, err := ParseReviewMode(*up.ReviewMode)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "review_mode", Error: err.Error()})
		}
		p.ReviewMode = mode
	}
	if up.HasEssay != nil {
		p.HasEssay = *up.HasEssay
	}
	if up.RetaFinalMode != nil {
		p.RetaFinalMode = *up.RetaFinalMode
	}
	return nil
}

func (svc *Service) today(ctx context.Context, userID int64) (time.Time, error) {
	loc, err := svc.locator.Location(ctx, userID)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "resolving user timezone")
	}
	return core.Today(loc), nil
}

func (svc *Service) Create(ctx context.Context, userID int64, np NewPlan) (StudyPlan, []string, error) {
	if err := svc.validate.Struct(np); err != nil {
		return StudyPlan{}, nil, core.ValidationErrorFrom(err, svc.translator)
	}

	now := core.Now()
	p := StudyPlan{
		UserID:                 userID,
		StudyHoursPerDay:       np.StudyHoursPerDay,
		DailyQuestionGoal:      np.DailyQuestionGoal,
		WeeklyQuestionGoal:     np.WeeklyQuestionGoal,
		SessionDurationMinutes: np.SessionDurationMinutes,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if p.SessionDurationMinutes == 0 {
		p.SessionDurationMinutes = DefaultSessionMinutes
	}
	up := UpdatePlan{
		Name:          &np.Name,
		ExamDate:      &np.ExamDate,
		ReviewMode:    &np.ReviewMode,
		HasEssay:      &np.HasEssay,
		RetaFinalMode: &np.RetaFinalMode,
	}
	if err := up.Apply(&p); err != nil {
		return StudyPlan{}, nil, err
	}

	today, err := svc.today(ctx, userID)
	if err != nil {
		return StudyPlan{}, nil, err
	}
	warnings, err := CheckConfig(p, today)
	if err != nil {
		return StudyPlan{}, nil, err
	}

	p, err = svc.repo.CreatePlan(ctx, p)
	if err != nil {
		return StudyPlan{}, nil, errors.Wrap(err, "creating plan")
	}
	return p, warnings, nil
}

// Get returns the plan `id` if it belongs to the user.
func (svc *Service) Get(ctx context.Context, userID, id int64) (StudyPlan, error) {
	p, err := svc.repo.GetPlan(ctx, id)
	if err != nil {
		return StudyPlan{}, err
	}
	if p.UserID != userID {
		return StudyPlan{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) List(ctx context.Context, userID int64) ([]StudyPlan, error) {
	return svc.repo.ListPlans(ctx, ListFilter{UserID: userID})
}

func (svc *Service) Update(ctx context.Context, userID, id int64, up UpdatePlan) (StudyPlan, []string, error) {
	if err := svc.validate.Struct(up); err != nil {
		return StudyPlan{}, nil, core.ValidationErrorFrom(err, svc.translator)
	}
	p, err := svc.Get(ctx, userID, id)
	if err != nil {
		return StudyPlan{}, nil, err
	}
	if err = up.Apply(&p); err != nil {
		return StudyPlan{}, nil, err
	}

	today, err := svc.today(ctx, userID)
	if err != nil {
		return StudyPlan{}, nil, err
	}
	warnings, err := CheckConfig(p, today)
	if err != nil {
		return StudyPlan{}, nil, err
	}

	p.UpdatedAt = core.Now()
	p, err = svc.repo.UpdatePlan(ctx, p)
	if err != nil {
		return StudyPlan{}, nil, errors.Wrap(err, "updating plan")
	}
	return p, warnings, nil
}

func (svc *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := svc.Get(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.DeletePlan(ctx, id)
}

// AddSubject creates a subject with its topics. Topic priorities follow the list order.
// Exact duplicate topics are rejected; near duplicates are returned as warnings.
func (svc *Service) AddSubject(ctx context.Context, userID, planID int64, ns NewSubject) (Subject, []string, error) {
	ns.Name = core.CleanString(ns.Name)
	if err := svc.validate.Struct(ns); err != nil {
		return Subject{}, nil, core.ValidationErrorFrom(err, svc.translator)
	}
	if _, err := svc.Get(ctx, userID, planID); err != nil {
		return Subject{}, nil, err
	}

	descs := ParseTopicList(ns.Topics)
	for _, d := range ns.TopicList {
		if d = core.CleanString(d); d != "" {
			descs = append(descs, d)
		}
	}
	dups, similar := CompareTopics(descs, nil)
	if len(dups) > 0 {
		return Subject{}, nil, core.NewValidationError(ErrDuplicateTopics, core.FieldError{
			Field: "topics",
			Error: "duplicate topics: " + strings.Join(dups, ", "),
		})
	}

	subj := Subject{
		PlanID:         planID,
		Name:           ns.Name,
		PriorityWeight: ns.PriorityWeight,
		CreatedAt:      core.Now(),
		Topics:         make([]Topic, 0, len(descs)),
	}
	for i, d := range descs {
		subj.Topics = append(subj.Topics, Topic{
			Description: d,
			Priority:    i + 1,
			Status:      TopicPending,
			CreatedAt:   subj.CreatedAt,
		})
	}

	var err error
	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		subj, err = svc.repo.CreateSubject(ctx, subj, tx)
		return err
	})
	if err != nil {
		return Subject{}, nil, errors.Wrap(err, "creating subject")
	}
	return subj, similarWarnings(similar), nil
}

// AddTopics appends topics to an existing subject, after its current topics.
func (svc *Service) AddTopics(ctx context.Context, userID, subjectID int64, descs []string) ([]Topic, []string, error) {
	subj, err := svc.getSubject(ctx, userID, subjectID)
	if err != nil {
		return nil, nil, err
	}
	subjects, err := svc.repo.ListSubjects(ctx, subj.PlanID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing subjects")
	}

	existing := make([]string, 0)
	maxPriority := 0
	for _, s := range subjects {
		if s.ID != subjectID {
			continue
		}
		for _, t := range s.Topics {
			existing = append(existing, t.Description)
			if t.Priority > maxPriority {
				maxPriority = t.Priority
			}
		}
	}

	cleaned := make([]string, 0, len(descs))
	for _, d := range descs {
		if d = core.CleanString(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	dups, similar := CompareTopics(cleaned, existing)
	if len(dups) > 0 {
		return nil, nil, core.NewValidationError(ErrDuplicateTopics, core.FieldError{
			Field: "topics",
			Error: "duplicate topics: " + strings.Join(dups, ", "),
		})
	}

	now := core.Now()
	topics := make([]Topic, 0, len(cleaned))
	for i, d := range cleaned {
		topics = append(topics, Topic{
			SubjectID:   subjectID,
			Description: d,
			Priority:    maxPriority + i + 1,
			Status:      TopicPending,
			CreatedAt:   now,
		})
	}
	topics, err = svc.repo.CreateTopics(ctx, subjectID, topics)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating topics")
	}
	return topics, similarWarnings(similar), nil
}

func (svc *Service) getSubject(ctx context.Context, userID, subjectID int64) (Subject, error) {
	subj, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return Subject{}, err
	}
	if _, err = svc.Get(ctx, userID, subj.PlanID); err != nil {
		if err == ErrNotFound {
			return Subject{}, ErrSubjectNotFound
		}
		return Subject{}, err
	}
	return subj, nil
}

func (svc *Service) UpdateSubject(ctx context.Context, userID, subjectID int64, us UpdateSubject) (Subject, error) {
	if err := svc.validate.Struct(us); err != nil {
		return Subject{}, core.ValidationErrorFrom(err, svc.translator)
	}
	subj, err := svc.getSubject(ctx, userID, subjectID)
	if err != nil {
		return Subject{}, err
	}
	if us.Name != nil {
		subj.Name = core.CleanString(*us.Name)
	}
	if us.PriorityWeight != nil {
		subj.PriorityWeight = *us.PriorityWeight
	}
	return svc.repo.UpdateSubject(ctx, subj)
}

// DeleteSubject deletes the subject and, by cascade, its topics.
func (svc *Service) DeleteSubject(ctx context.Context, userID, subjectID int64) error {
	if _, err := svc.getSubject(ctx, userID, subjectID); err != nil {
		return err
	}
	return svc.repo.DeleteSubject(ctx, subjectID)
}

func (svc *Service) ListSubjects(ctx context.Context, userID, planID int64) ([]Subject, error) {
	if _, err := svc.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	return svc.repo.ListSubjects(ctx, planID)
}

func similarWarnings(similar []Similar) []string {
	if len(similar) == 0 {
		return nil
	}
	warnings := make([]string, 0, len(similar))
	for _, s := range similar {
		warnings = append(warnings, fmt.Sprintf("topic %q looks like %q (%.0f%% similar)", s.Description, s.Of, s.Ratio*100))
	}
	return warnings
}
