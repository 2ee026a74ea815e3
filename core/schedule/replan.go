package schedule

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

type (
	// OverloadedDay is a day whose sessions need more time than its study budget.
	OverloadedDay struct {
		Date          time.Time `json:"date"`
		SessionCount  int       `json:"session_count"`
		TotalMinutes  int       `json:"total_minutes"`
		LimitMinutes  int       `json:"limit_minutes"`
		ExcessMinutes int       `json:"excess_minutes"`
		Severity      string    `json:"severity"` // warning | critical
	}

	// ReplanPreview is what a regeneration would do, computed without writing anything.
	ReplanPreview struct {
		GenerateResult
		OverdueCount   int             `json:"overdue_count"`
		DaysUntilExam  int             `json:"days_until_exam"`
		OverloadedDays []OverloadedDay `json:"overloaded_days"`
		Sessions       []Entry         `json:"sessions"`
	}
)

// DetectOverloadedDays returns the days from today whose sessions, at sessionMinutes each,
// exceed the weekday budget of hours. A day is critical past one and a half times its budget.
func DetectOverloadedDays(sessions []session.Session, hours plan.WeeklyHours, sessionMinutes int, today time.Time) []OverloadedDay {
	perDay := make(map[time.Time]int)
	for _, s := range sessions {
		d := core.DateOf(s.SessionDate)
		if d.Before(today) {
			continue
		}
		perDay[d]++
	}

	overloaded := make([]OverloadedDay, 0)
	for d, n := range perDay {
		total := n * sessionMinutes
		limit := int(math.Round(hours.Hours(d.Weekday()) * 60))
		if total <= limit {
			continue
		}
		severity := "warning"
		if float64(total) > float64(limit)*1.5 {
			severity = "critical"
		}
		overloaded = append(overloaded, OverloadedDay{
			Date:          d,
			SessionCount:  n,
			TotalMinutes:  total,
			LimitMinutes:  limit,
			ExcessMinutes: total - limit,
			Severity:      severity,
		})
	}
	sort.Slice(overloaded, func(i, j int) bool { return overloaded[i].Date.Before(overloaded[j].Date) })
	return overloaded
}

// PreviewGeneration computes what GenerateSchedule would do with params, without taking
// the plan lock and without writing. The overloaded days are those of the current schedule.
func (svc *Service) PreviewGeneration(ctx context.Context, userID, planID int64, params GenerateParams) (ReplanPreview, error) {
	if err := svc.validate.Struct(params); err != nil {
		return ReplanPreview{}, core.ValidationErrorFrom(err, svc.translator)
	}
	p, today, err := svc.getPlan(ctx, userID, planID)
	if err != nil {
		return ReplanPreview{}, err
	}
	if err = params.Apply(&p); err != nil {
		return ReplanPreview{}, err
	}
	warnings, err := plan.CheckConfig(p, today)
	if err != nil {
		return ReplanPreview{}, err
	}

	var (
		subjects []plan.Subject
		sessions []session.Session
	)
	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		subjects, sessions, err = svc.snapshot(ctx, planID, tx)
		return err
	})
	if err != nil {
		return ReplanPreview{}, errors.Wrap(err, "reading schedule")
	}

	sched, err := generateFor(p, today, subjects, sessions)
	if err != nil {
		return ReplanPreview{}, err
	}

	preview := ReplanPreview{
		GenerateResult: GenerateResult{Warnings: warnings, SessionsCreated: len(sched.Entries)},
		OverdueCount:   len(ComputeOverdue(sessions, today)),
		DaysUntilExam:  core.DaysBetween(today, core.DateOf(p.ExamDate)),
		OverloadedDays: DetectOverloadedDays(sessions, p.StudyHoursPerDay, p.SessionDurationMinutes, today),
		Sessions:       sched.Entries,
	}
	for _, s := range sessions {
		if s.IsPending() {
			preview.SessionsDeleted++
		}
	}
	preview.summarize(sched)
	return preview, nil
}
