package plan

import (
	"fmt"
	"math"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cronograma/core"
)

// limits
const (
	MinSessionMinutes     = 10
	MaxSessionMinutes     = 240
	DefaultSessionMinutes = 50
	MaxDailyQuestions     = 500
	MaxWeeklyQuestions    = 3500
	MaxDayHours           = 24

	heavyDayHours       = 12
	heavyWeekHours      = 70
	minStudyDays        = 3
	shortRunwayDays     = 30
	goalTolerancePct    = 30
	goalToleranceFactor = goalTolerancePct / 100.0
)

var (
	reviewModeTag  = "review_mode"
	reviewModeText = "{0} must be one of completo, intensivo, leve, nenhum"

	weeklyHoursTag  = "weekly_hours"
	weeklyHoursText = fmt.Sprintf("{0} must hold between 0 and %d hours per weekday", MaxDayHours)
)

// InitValidators registers the plan validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(reviewModeTag, reviewModeValidation)
	registerTranslation(validate, translator, reviewModeTag, reviewModeText)

	_ = validate.RegisterValidation(weeklyHoursTag, weeklyHoursValidation)
	registerTranslation(validate, translator, weeklyHoursTag, weeklyHoursText)
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func reviewModeValidation(fl validator.FieldLevel) bool {
	_, err := ParseReviewMode(fl.Field().String())
	return err == nil
}

func weeklyHoursValidation(fl validator.FieldLevel) bool {
	wh, ok := fl.Field().Interface().(WeeklyHours)
	if !ok {
		return false
	}
	return validHours(wh)
}

func validHours(wh WeeklyHours) bool {
	for _, h := range wh {
		if h < 0 || h > MaxDayHours || math.IsNaN(h) {
			return false
		}
	}
	return true
}

// CheckConfig validates the scheduling configuration of p against `today` (the owner's local date).
// Hard violations are returned as a *core.ValidationError; soft issues as warnings.
func CheckConfig(p StudyPlan, today time.Time) (warnings []string, err error) {
	var flds []core.FieldError
	addErr := func(field, msg string) { flds = append(flds, core.FieldError{Field: field, Error: msg}) }

	if p.SessionDurationMinutes < MinSessionMinutes || p.SessionDurationMinutes > MaxSessionMinutes {
		addErr("session_duration_minutes", fmt.Sprintf("session duration must be between %d and %d minutes", MinSessionMinutes, MaxSessionMinutes))
	}
	if p.DailyQuestionGoal < 0 || p.DailyQuestionGoal > MaxDailyQuestions {
		addErr("daily_question_goal", fmt.Sprintf("daily question goal must be between 0 and %d", MaxDailyQuestions))
	}
	if p.WeeklyQuestionGoal < 0 || p.WeeklyQuestionGoal > MaxWeeklyQuestions {
		addErr("weekly_question_goal", fmt.Sprintf("weekly question goal must be between 0 and %d", MaxWeeklyQuestions))
	}
	if !validHours(p.StudyHoursPerDay) {
		addErr("study_hours_per_day", fmt.Sprintf("study hours must be between 0 and %d per weekday", MaxDayHours))
	}
	if !p.ReviewMode.Valid() {
		addErr("review_mode", "unknown review mode")
	}
	examDate := core.DateOf(p.ExamDate)
	if p.ExamDate.IsZero() {
		addErr("exam_date", "exam date is required")
	} else if !examDate.After(today) {
		addErr("exam_date", "exam date must be in the future")
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}

	for day, h := range p.StudyHoursPerDay {
		if h > heavyDayHours {
			warnings = append(warnings, fmt.Sprintf("%s has more than %d study hours", time.Weekday(day), heavyDayHours))
		}
	}
	if n := p.StudyHoursPerDay.StudyDays(); n > 0 && n < minStudyDays {
		warnings = append(warnings, fmt.Sprintf("only %d study days per week; at least %d are recommended", n, minStudyDays))
	}
	if total := p.StudyHoursPerDay.Total(); total > heavyWeekHours {
		warnings = append(warnings, fmt.Sprintf("%.1f study hours per week exceeds the recommended %d", total, heavyWeekHours))
	}
	if days := core.DaysBetween(today, examDate); days < shortRunwayDays {
		warnings = append(warnings, fmt.Sprintf("only %d days until the exam; consider reta final mode", days))
	}
	if p.DailyQuestionGoal > 0 && p.WeeklyQuestionGoal > 0 {
		expected := float64(p.DailyQuestionGoal * 7)
		if math.Abs(float64(p.WeeklyQuestionGoal)-expected)/expected > goalToleranceFactor {
			warnings = append(warnings, fmt.Sprintf(
				"weekly question goal (%d) differs more than %d%% from daily goal x 7 (%d)",
				p.WeeklyQuestionGoal, goalTolerancePct, int(expected)))
		}
	}
	return warnings, nil
}
