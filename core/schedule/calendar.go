package schedule

import (
	"math"
	"time"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

// Calendar is the study window of a plan: every day from Start (inclusive) up to the
// exam day (exclusive), with as many session slots per day as the weekday budget allows.
// Kept sessions (completed or skipped ones a regeneration leaves in place) use up the
// slots of their day.
type Calendar struct {
	Hours          plan.WeeklyHours
	Start          time.Time
	Exam           time.Time
	SessionMinutes int
	Kept           []session.Session
}

// Day is a study day and its slot usage.
type Day struct {
	Date  time.Time
	Slots int
	Used  int
	// LastSeq is the highest sequence of the kept sessions of the day.
	LastSeq int
}

func (d Day) Free() int {
	if d.Used >= d.Slots {
		return 0
	}
	return d.Slots - d.Used
}

// CalendarFor builds the calendar of p starting today, around the kept sessions.
func CalendarFor(p plan.StudyPlan, today time.Time, kept []session.Session) Calendar {
	return Calendar{
		Hours:          p.StudyHoursPerDay,
		Start:          core.DateOf(today),
		Exam:           core.DateOf(p.ExamDate),
		SessionMinutes: p.SessionDurationMinutes,
		Kept:           kept,
	}
}

func (c Calendar) Validate() error {
	var flds []core.FieldError
	if c.SessionMinutes <= 0 {
		flds = append(flds, core.FieldError{Field: "session_duration_minutes", Error: "session duration must be positive"})
	}
	for day, h := range c.Hours {
		if h < 0 || h > plan.MaxDayHours || math.IsNaN(h) {
			flds = append(flds, core.FieldError{
				Field: "study_hours_per_day",
				Error: time.Weekday(day).String() + " hours must be between 0 and 24",
			})
			break
		}
	}
	if c.Exam.IsZero() || !core.DateOf(c.Exam).After(core.DateOf(c.Start)) {
		flds = append(flds, core.FieldError{Field: "exam_date", Error: "exam date must be after today"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// SlotsFor returns the number of whole sessions fitting the weekday's budget.
func (c Calendar) SlotsFor(day time.Weekday) int {
	if c.SessionMinutes <= 0 {
		return 0
	}
	// hours are rounded to whole minutes, so that 1.4h is 84 minutes and not 83.99...
	minutes := int(math.Round(c.Hours.Hours(day) * 60))
	if minutes <= 0 {
		return 0
	}
	return minutes / c.SessionMinutes
}

// Days returns the study days of the window, skipping days without a whole slot.
func (c Calendar) Days() ([]Day, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var weekly int
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		weekly += c.SlotsFor(wd)
	}
	if weekly == 0 {
		return nil, &NoAvailabilityError{Reason: "no weekday has enough study hours for a single session"}
	}

	type usage struct{ sessions, lastSeq int }
	kept := make(map[time.Time]usage, len(c.Kept))
	for _, s := range c.Kept {
		date := core.DateOf(s.SessionDate)
		u := kept[date]
		u.sessions++
		if s.Sequence > u.lastSeq {
			u.lastSeq = s.Sequence
		}
		kept[date] = u
	}

	start, exam := core.DateOf(c.Start), core.DateOf(c.Exam)
	days := make([]Day, 0, core.DaysBetween(start, exam))
	for d := start; d.Before(exam); d = core.AddDays(d, 1) {
		if slots := c.SlotsFor(d.Weekday()); slots > 0 {
			u := kept[d]
			days = append(days, Day{Date: d, Slots: slots, Used: u.sessions, LastSeq: u.lastSeq})
		}
	}
	if len(days) == 0 {
		return nil, &NoAvailabilityError{Reason: "no study day is left before the exam"}
	}
	return days, nil
}

// Capacity returns the number of free slots of the window.
func (c Calendar) Capacity() (int, error) {
	days, err := c.Days()
	if err != nil {
		return 0, err
	}
	return capacityOf(days), nil
}

func capacityOf(days []Day) int {
	var n int
	for _, d := range days {
		n += d.Free()
	}
	return n
}
