package schedule

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
)

func date(s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// hours builds weekly hours from Sunday to Saturday.
func hours(h ...float64) plan.WeeklyHours {
	var wh plan.WeeklyHours
	copy(wh[:], h)
	return wh
}

func everyDay(h float64) plan.WeeklyHours {
	return hours(h, h, h, h, h, h, h)
}

func dates(days []Day) []string {
	res := make([]string, 0, len(days))
	for _, d := range days {
		res = append(res, d.Date.Format(core.DateLayout))
	}
	return res
}

func TestCalendar_Days(t *testing.T) {
	cal := Calendar{
		Hours:          hours(0, 2, 2, 2, 2, 2, 1.4),
		Start:          date("2026-11-02"), // Monday
		Exam:           date("2026-11-09"),
		SessionMinutes: 42,
	}

	days, err := cal.Days()
	require.NoError(t, err)

	// Sunday has no hours; the exam day is not a study day
	assert.Equal(t, []string{"2026-11-02", "2026-11-03", "2026-11-04", "2026-11-05", "2026-11-06", "2026-11-07"}, dates(days))
	for _, d := range days {
		assert.Equal(t, 2, d.Slots, d.Date)
		assert.Zero(t, d.Used)
	}

	capacity, err := cal.Capacity()
	require.NoError(t, err)
	assert.Equal(t, 12, capacity)
}

func TestCalendar_SlotsFor(t *testing.T) {
	tests := []struct {
		name    string
		hours   float64
		minutes int
		want    int
	}{
		{name: "exact", hours: 2, minutes: 60, want: 2},
		{name: "floor", hours: 2, minutes: 50, want: 2},
		{name: "fractional hours", hours: 1.4, minutes: 42, want: 2},
		{name: "less than a session", hours: 0.5, minutes: 50, want: 0},
		{name: "no hours", hours: 0, minutes: 50, want: 0},
		{name: "no duration", hours: 2, minutes: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := Calendar{Hours: everyDay(tt.hours), SessionMinutes: tt.minutes}
			assert.Equal(t, tt.want, cal.SlotsFor(time.Wednesday))
		})
	}
}

func TestCalendar_NoAvailability(t *testing.T) {
	tests := []struct {
		name string
		cal  Calendar
	}{
		{
			name: "no hours at all",
			cal:  Calendar{Hours: hours(), Start: date("2026-11-02"), Exam: date("2026-12-01"), SessionMinutes: 50},
		},
		{
			name: "budgets shorter than a session",
			cal:  Calendar{Hours: everyDay(0.5), Start: date("2026-11-02"), Exam: date("2026-12-01"), SessionMinutes: 50},
		},
		{
			name: "no study day before the exam",
			cal:  Calendar{Hours: hours(0, 2), Start: date("2026-11-01"), Exam: date("2026-11-02"), SessionMinutes: 50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cal.Days()
			require.Error(t, err)
			assert.True(t, IsNoAvailability(err), err)
			assert.Contains(t, err.Error(), "increase the daily study hours")
		})
	}
}

func TestCalendar_Validate(t *testing.T) {
	valid := Calendar{Hours: everyDay(2), Start: date("2026-11-02"), Exam: date("2026-12-01"), SessionMinutes: 50}

	tests := []struct {
		name      string
		mutate    func(c *Calendar)
		wantField string
	}{
		{name: "valid", mutate: func(c *Calendar) {}},
		{name: "exam today", mutate: func(c *Calendar) { c.Exam = c.Start }, wantField: "exam_date"},
		{name: "exam in the past", mutate: func(c *Calendar) { c.Exam = date("2026-10-01") }, wantField: "exam_date"},
		{name: "negative hours", mutate: func(c *Calendar) { c.Hours[3] = -1 }, wantField: "study_hours_per_day"},
		{name: "too many hours", mutate: func(c *Calendar) { c.Hours[3] = 25 }, wantField: "study_hours_per_day"},
		{name: "no duration", mutate: func(c *Calendar) { c.SessionMinutes = 0 }, wantField: "session_duration_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := valid
			tt.mutate(&cal)
			err := cal.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			verr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, err)
			assert.True(t, verr.HasField(tt.wantField), verr.Error())
		})
	}
}
