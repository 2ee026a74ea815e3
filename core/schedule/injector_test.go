package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

type entryView struct {
	Date    string
	Type    session.Type
	TopicID int64
	Seq     int
}

func viewOf(entries []Entry, types ...session.Type) []entryView {
	keep := make(map[session.Type]bool)
	for _, typ := range types {
		keep[typ] = true
	}
	res := make([]entryView, 0)
	for _, e := range entries {
		if len(keep) > 0 && !keep[e.Type] {
			continue
		}
		res = append(res, entryView{Date: e.Date.Format(core.DateLayout), Type: e.Type, TopicID: e.TopicID, Seq: e.Sequence})
	}
	return res
}

func TestGenerate_Reviews(t *testing.T) {
	cal := Calendar{Hours: everyDay(2), Start: date("2026-11-02"), Exam: date("2026-12-15"), SessionMinutes: 60}

	sched, err := Generate([]plan.Subject{subject(1, 1, 1)}, cal, Options{ReviewMode: plan.ReviewComplete})
	require.NoError(t, err)

	assert.Equal(t, []entryView{
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 11, Seq: 1},
		{Date: "2026-11-09", Type: session.TypeReview, TopicID: 11, Seq: 1},
		{Date: "2026-12-02", Type: session.TypeReview, TopicID: 11, Seq: 1},
	}, viewOf(sched.Entries))
	assert.Contains(t, sched.Entries[1].Description, "D+7")
	assert.Contains(t, sched.Entries[2].Description, "D+30")
	assert.Equal(t, 1, sched.Count(session.TypeNewTopic))
	assert.Equal(t, 2, sched.Count(session.TypeReview))
	assert.Zero(t, sched.SkippedReviews)
	assert.Zero(t, sched.Deficit())
}

func TestGenerate_ReviewModes(t *testing.T) {
	cal := Calendar{Hours: everyDay(2), Start: date("2026-11-02"), Exam: date("2026-12-15"), SessionMinutes: 60}

	tests := []struct {
		mode plan.ReviewMode
		want int
	}{
		{mode: plan.ReviewComplete, want: 2},
		{mode: plan.ReviewIntensive, want: 3},
		{mode: plan.ReviewLight, want: 1},
		{mode: plan.ReviewNone, want: 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			sched, err := Generate([]plan.Subject{subject(1, 1, 1)}, cal, Options{ReviewMode: tt.mode})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sched.Count(session.TypeReview))
		})
	}
}

func TestGenerate_ReviewsMoveToNextFreeDay(t *testing.T) {
	cal := Calendar{
		Hours:          hours(0, 1, 1), // Monday and Tuesday
		Start:          date("2026-11-02"),
		Exam:           date("2026-11-17"),
		SessionMinutes: 60,
	}

	sched, err := Generate([]plan.Subject{subject(1, 1, 3)}, cal, Options{ReviewMode: plan.ReviewLight})
	require.NoError(t, err)

	assert.Equal(t, []entryView{
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 11, Seq: 1},
		{Date: "2026-11-03", Type: session.TypeNewTopic, TopicID: 12, Seq: 1},
		{Date: "2026-11-09", Type: session.TypeNewTopic, TopicID: 13, Seq: 1},
		{Date: "2026-11-10", Type: session.TypeReview, TopicID: 11, Seq: 1},
		{Date: "2026-11-16", Type: session.TypeReview, TopicID: 12, Seq: 1},
	}, viewOf(sched.Entries))
	// the review of topic 13 would land on or after the exam
	assert.Equal(t, 1, sched.SkippedReviews)
}

func TestGenerate_WeeklyEssays(t *testing.T) {
	cal := Calendar{Hours: everyDay(1), Start: date("2026-11-02"), Exam: date("2026-11-16"), SessionMinutes: 60}

	sched, err := Generate([]plan.Subject{subject(1, 1, 2)}, cal, Options{ReviewMode: plan.ReviewNone, HasEssay: true})
	require.NoError(t, err)

	assert.Equal(t, []entryView{
		{Date: "2026-11-08", Type: session.TypeEssay, Seq: 1},
		{Date: "2026-11-15", Type: session.TypeEssay, Seq: 1},
	}, viewOf(sched.Entries, session.TypeEssay))
	assert.Zero(t, sched.SkippedEssays)
}

func TestGenerate_DayOrdering(t *testing.T) {
	cal := Calendar{Hours: everyDay(3), Start: date("2026-11-02"), Exam: date("2026-11-10"), SessionMinutes: 60}
	subjects := []plan.Subject{subject(1, 1, 1), subject(2, 1, 1)}

	sched, err := Generate(subjects, cal, Options{ReviewMode: plan.ReviewLight, HasEssay: true})
	require.NoError(t, err)

	assert.Equal(t, []entryView{
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 11, Seq: 1},
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 21, Seq: 2},
		{Date: "2026-11-08", Type: session.TypeEssay, Seq: 1},
		{Date: "2026-11-09", Type: session.TypeReview, TopicID: 11, Seq: 1},
		{Date: "2026-11-09", Type: session.TypeReview, TopicID: 21, Seq: 2},
		{Date: "2026-11-09", Type: session.TypeEssay, Seq: 3},
	}, viewOf(sched.Entries))

	// never over a day's budget
	perDay := make(map[string]int)
	for _, e := range sched.Entries {
		perDay[e.Date.Format(core.DateLayout)]++
	}
	for d, n := range perDay {
		assert.LessOrEqual(t, n, 3, d)
	}
}

func TestGenerate_CompletedTopicsKeepTheirReviews(t *testing.T) {
	cal := Calendar{Hours: everyDay(2), Start: date("2026-11-02"), Exam: date("2026-12-15"), SessionMinutes: 60}
	s := subject(1, 1, 3)
	s.Topics[0].Status = plan.TopicCompleted
	s.Topics[0].CompletedAt = null.TimeFrom(date("2026-10-30"))
	s.Topics[1].Status = plan.TopicCompleted
	s.Topics[1].CompletedAt = null.TimeFrom(date("2026-10-20")) // D+7 already past

	sched, err := Generate([]plan.Subject{s}, cal, Options{ReviewMode: plan.ReviewLight})
	require.NoError(t, err)

	assert.Equal(t, []entryView{
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 13, Seq: 1},
		{Date: "2026-11-06", Type: session.TypeReview, TopicID: 11, Seq: 1},
		{Date: "2026-11-09", Type: session.TypeReview, TopicID: 13, Seq: 1},
	}, viewOf(sched.Entries))
	assert.Zero(t, sched.SkippedReviews)
}

func TestGenerate_Deficit(t *testing.T) {
	subjects := []plan.Subject{subject(1, 3, 5), subject(2, 1, 3)}

	sched, err := Generate(subjects, oneSlotCalendar(7), Options{ReviewMode: plan.ReviewLight})
	require.NoError(t, err)

	assert.Equal(t, 7, sched.Capacity)
	assert.Equal(t, 7, sched.Count(session.TypeNewTopic))
	assert.Equal(t, []int64{23}, topicIDs(sched.Unscheduled))
	assert.Empty(t, sched.Dropped)
	assert.False(t, sched.RetaFinal)
	assert.Equal(t, 1, sched.Deficit())
	// every slot holds a new topic
	assert.Zero(t, sched.Count(session.TypeReview))
	assert.Equal(t, 7, sched.SkippedReviews)
}

func TestGenerate_RetaFinal(t *testing.T) {
	subjects := []plan.Subject{subject(1, 3, 5), subject(2, 1, 3)}

	sched, err := Generate(subjects, oneSlotCalendar(7), Options{ReviewMode: plan.ReviewComplete, RetaFinal: true})
	require.NoError(t, err)

	assert.True(t, sched.RetaFinal)
	assert.Empty(t, sched.Unscheduled)
	assert.Equal(t, []int64{13, 14, 15, 23}, func() []int64 {
		ids := make([]int64, 0)
		for _, e := range sched.Dropped {
			ids = append(ids, e.TopicID)
			assert.NotEmpty(t, e.Reason)
		}
		return ids
	}())
	assert.Equal(t, 4, sched.Deficit())

	// best topics first, each subject keeps one; a single D+3 review per topic
	assert.Equal(t, []entryView{
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 11, Seq: 1},
		{Date: "2026-11-03", Type: session.TypeNewTopic, TopicID: 12, Seq: 1},
		{Date: "2026-11-04", Type: session.TypeNewTopic, TopicID: 21, Seq: 1},
		{Date: "2026-11-05", Type: session.TypeNewTopic, TopicID: 22, Seq: 1},
		{Date: "2026-11-06", Type: session.TypeReview, TopicID: 11, Seq: 1},
		{Date: "2026-11-07", Type: session.TypeReview, TopicID: 12, Seq: 1},
		{Date: "2026-11-08", Type: session.TypeReview, TopicID: 21, Seq: 1},
	}, viewOf(sched.Entries))
	for _, e := range sched.Entries {
		if e.Type == session.TypeReview {
			assert.Contains(t, e.Description, "D+3")
		}
	}
	assert.Equal(t, 1, sched.SkippedReviews)
}

func TestGenerate_RetaFinalNotNeeded(t *testing.T) {
	subjects := []plan.Subject{subject(1, 1, 2)}

	sched, err := Generate(subjects, oneSlotCalendar(7), Options{ReviewMode: plan.ReviewNone, RetaFinal: true})
	require.NoError(t, err)
	assert.False(t, sched.RetaFinal)
	assert.Empty(t, sched.Dropped)
	assert.Equal(t, 2, sched.Count(session.TypeNewTopic))
}

func TestGenerate_PastExam(t *testing.T) {
	cal := Calendar{Hours: everyDay(2), Start: date("2026-11-02"), Exam: date("2026-11-01"), SessionMinutes: 60}
	_, err := Generate([]plan.Subject{subject(1, 1, 1)}, cal, Options{})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

func TestGenerate_RetaFinalKeepsEverySubject(t *testing.T) {
	subjects := []plan.Subject{subject(1, 1, 2), subject(2, 1, 2), subject(3, 1, 2), subject(4, 1, 2), subject(5, 1, 2)}

	sched, err := Generate(subjects, oneSlotCalendar(6), Options{ReviewMode: plan.ReviewComplete, RetaFinal: true})
	require.NoError(t, err)

	assert.True(t, sched.RetaFinal)
	studied := make(map[string]bool)
	for _, e := range sched.Entries {
		if e.Type == session.TypeNewTopic {
			studied[e.SubjectName] = true
		}
	}
	assert.Equal(t, map[string]bool{"S1": true, "S2": true, "S3": true, "S4": true, "S5": true}, studied)
	assert.Equal(t, 5, sched.Count(session.TypeNewTopic))
	assert.Equal(t, []int64{12, 22, 32, 42, 52}, func() []int64 {
		ids := make([]int64, 0)
		for _, e := range sched.Dropped {
			ids = append(ids, e.TopicID)
		}
		return ids
	}())
	// the one slot left goes to a review
	assert.Equal(t, 1, sched.Count(session.TypeReview))
	assert.Equal(t, 4, sched.SkippedReviews)
}

func keptSession(day string, typ session.Type, topicID int64, seq int, desc string) session.Session {
	return session.Session{
		SessionDate: date(day),
		Type:        typ,
		TopicID:     null.NewInt64(topicID, topicID != 0),
		Description: desc,
		Sequence:    seq,
		Status:      session.StatusCompleted,
	}
}

func TestGenerate_AroundKeptSessions(t *testing.T) {
	s := subject(1, 1, 4)
	s.Topics[0].Status = plan.TopicCompleted
	s.Topics[0].CompletedAt = null.TimeFrom(date("2026-11-02"))
	cal := Calendar{
		Hours:          everyDay(2),
		Start:          date("2026-11-02"),
		Exam:           date("2026-11-05"),
		SessionMinutes: 60,
		Kept:           []session.Session{keptSession("2026-11-02", session.TypeNewTopic, 11, 1, "S1 topic 1")},
	}

	sched, err := Generate([]plan.Subject{s}, cal, Options{ReviewMode: plan.ReviewNone})
	require.NoError(t, err)

	assert.Equal(t, 5, sched.Capacity)
	assert.Equal(t, []entryView{
		{Date: "2026-11-02", Type: session.TypeNewTopic, TopicID: 12, Seq: 2},
		{Date: "2026-11-03", Type: session.TypeNewTopic, TopicID: 13, Seq: 1},
		{Date: "2026-11-03", Type: session.TypeNewTopic, TopicID: 14, Seq: 2},
	}, viewOf(sched.Entries))
}

func TestGenerate_KeptDayIsFull(t *testing.T) {
	cal := Calendar{
		Hours:          everyDay(2),
		Start:          date("2026-11-02"),
		Exam:           date("2026-11-04"),
		SessionMinutes: 60,
		Kept: []session.Session{
			keptSession("2026-11-02", session.TypeNewTopic, 11, 1, "S1 topic 1"),
			keptSession("2026-11-02", session.TypeNewTopic, 12, 2, "S1 topic 2"),
			keptSession("2026-11-02", session.TypeEssay, 0, 3, "Redação semanal 1"), // over the budget
		},
	}

	days, err := cal.Days()
	require.NoError(t, err)
	assert.Zero(t, days[0].Free())
	assert.Equal(t, 3, days[0].LastSeq)

	sched, err := Generate([]plan.Subject{subject(2, 1, 3)}, cal, Options{ReviewMode: plan.ReviewNone})
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Capacity)
	assert.Equal(t, []entryView{
		{Date: "2026-11-03", Type: session.TypeNewTopic, TopicID: 21, Seq: 1},
		{Date: "2026-11-03", Type: session.TypeNewTopic, TopicID: 22, Seq: 2},
	}, viewOf(sched.Entries))
	assert.Equal(t, []int64{23}, topicIDs(sched.Unscheduled))
}

func TestGenerate_KeptReviewsAndEssaysAreNotRepeated(t *testing.T) {
	s := subject(1, 1, 1)
	s.Topics[0].Status = plan.TopicCompleted
	s.Topics[0].CompletedAt = null.TimeFrom(date("2026-10-26")) // D+7 is 2026-11-02
	cal := Calendar{
		Hours:          everyDay(2),
		Start:          date("2026-11-02"),
		Exam:           date("2026-11-09"),
		SessionMinutes: 60,
		Kept: []session.Session{
			keptSession("2026-11-02", session.TypeReview, 11, 1, "Revisão D+7: S1 topic 1"),
			keptSession("2026-11-04", session.TypeEssay, 0, 1, "Redação semanal 1"),
		},
	}

	sched, err := Generate([]plan.Subject{s}, cal, Options{ReviewMode: plan.ReviewLight, HasEssay: true})
	require.NoError(t, err)
	assert.Empty(t, sched.Entries)
	assert.Zero(t, sched.SkippedReviews)
	assert.Zero(t, sched.SkippedEssays)

	// without the kept sessions, both are scheduled again
	cal.Kept = nil
	sched, err = Generate([]plan.Subject{s}, cal, Options{ReviewMode: plan.ReviewLight, HasEssay: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Count(session.TypeReview))
	assert.Equal(t, 1, sched.Count(session.TypeEssay))
}
