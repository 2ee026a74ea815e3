package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

func sess(id int64, day string, typ session.Type, topicID int64, status session.Status) session.Session {
	return session.Session{
		ID:          id,
		SessionDate: date(day),
		Type:        typ,
		TopicID:     null.NewInt64(topicID, topicID != 0),
		SubjectName: "S1",
		Status:      status,
	}
}

func TestComputeProgress(t *testing.T) {
	topics := subject(1, 1, 4).Topics

	tests := []struct {
		name     string
		topics   []plan.Topic
		sessions []session.Session
		want     Progress
	}{
		{
			name:   "no sessions",
			topics: topics,
			want:   Progress{TotalTopics: 4},
		},
		{
			name:   "repeated completions count once",
			topics: topics,
			sessions: []session.Session{
				sess(1, "2026-11-02", session.TypeNewTopic, 11, session.StatusCompleted),
				sess(2, "2026-11-03", session.TypeNewTopic, 11, session.StatusCompleted),
				sess(3, "2026-11-04", session.TypeNewTopic, 11, session.StatusCompleted),
			},
			want: Progress{TotalTopics: 4, CompletedTopics: 1, Percentage: 25},
		},
		{
			name:   "reviews and pending sessions do not count",
			topics: topics,
			sessions: []session.Session{
				sess(1, "2026-11-02", session.TypeNewTopic, 11, session.StatusCompleted),
				sess(2, "2026-11-03", session.TypeReview, 12, session.StatusCompleted),
				sess(3, "2026-11-04", session.TypeNewTopic, 13, session.StatusPending),
				sess(4, "2026-11-04", session.TypeNewTopic, 14, session.StatusSkipped),
			},
			want: Progress{TotalTopics: 4, CompletedTopics: 1, Percentage: 25},
		},
		{
			name:   "sessions of unknown topics are ignored",
			topics: topics,
			sessions: []session.Session{
				sess(1, "2026-11-02", session.TypeNewTopic, 99, session.StatusCompleted),
				sess(2, "2026-11-02", session.TypeNewTopic, 11, session.StatusCompleted),
				sess(3, "2026-11-02", session.TypeNewTopic, 12, session.StatusCompleted),
			},
			want: Progress{TotalTopics: 4, CompletedTopics: 2, Percentage: 50},
		},
		{
			name: "no topics",
			sessions: []session.Session{
				sess(1, "2026-11-02", session.TypeNewTopic, 11, session.StatusCompleted),
			},
			want: Progress{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeProgress(tt.topics, tt.sessions))
		})
	}
}

func TestComputeOverdue(t *testing.T) {
	sessions := []session.Session{
		sess(5, "2026-11-04", session.TypeNewTopic, 11, session.StatusPending), // today
		sess(4, "2026-11-03", session.TypeReview, 12, session.StatusPending),
		sess(3, "2026-11-02", session.TypeNewTopic, 13, session.StatusCompleted),
		sess(2, "2026-11-02", session.TypeNewTopic, 14, session.StatusSkipped),
		sess(1, "2026-11-01", session.TypeNewTopic, 15, session.StatusPending),
		sess(6, "2026-11-10", session.TypeNewTopic, 16, session.StatusPending),
	}

	got := ComputeOverdue(sessions, date("2026-11-04"))
	ids := make([]int64, 0, len(got))
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{1, 4}, ids)

	assert.Empty(t, ComputeOverdue(nil, date("2026-11-04")))
}

func TestBuildPreview(t *testing.T) {
	p := plan.StudyPlan{ID: 7, ExamDate: date("2026-12-01")}
	subjects := []plan.Subject{subject(2, 1, 2), subject(1, 3, 3)}
	sessions := []session.Session{
		sess(1, "2026-11-02", session.TypeNewTopic, 11, session.StatusCompleted),
		sess(2, "2026-11-03", session.TypeNewTopic, 12, session.StatusPending),
		sess(3, "2026-11-05", session.TypeNewTopic, 21, session.StatusPending),
		sess(4, "2026-11-09", session.TypeReview, 11, session.StatusCompleted),
		sess(5, "2026-11-10", session.TypeEssay, 0, session.StatusPending),
	}
	sessions[0].TimeStudiedSeconds = 3000
	sessions[3].TimeStudiedSeconds = 1200

	pv := BuildPreview(p, subjects, sessions, date("2026-11-04"))

	assert.Equal(t, 27, pv.DaysUntilExam)
	assert.Equal(t, PhaseInProgress, pv.Phase)
	assert.Equal(t, 5, pv.TotalTopics)
	assert.Equal(t, 1, pv.CompletedTopics)
	assert.Equal(t, 4, pv.PendingTopics)
	assert.Equal(t, 20, pv.CurrentProgress)
	assert.Equal(t, 2, pv.ScheduledTopics)
	assert.Equal(t, 2, pv.UnscheduledTopics)
	assert.Equal(t, 60, pv.CoveragePercentage)
	assert.Equal(t, 5, pv.TotalSessions)
	assert.Equal(t, 2, pv.CompletedSessions)
	assert.Equal(t, 3, pv.PendingSessions)
	assert.Equal(t, 1, pv.OverdueSessions)
	assert.Equal(t, 1, pv.ReviewSessions)
	assert.Equal(t, 1, pv.CompletedReviews)
	assert.Equal(t, int64(4200), pv.TimeStudiedSeconds)

	if assert.Len(t, pv.BySubject, 2) {
		s1, s2 := pv.BySubject[0], pv.BySubject[1]
		assert.Equal(t, int64(1), s1.SubjectID)
		assert.Equal(t, 3, s1.TotalTopics)
		assert.Equal(t, 1, s1.CompletedTopics)
		assert.Equal(t, 1, s1.ScheduledTopics)
		assert.Equal(t, 33, s1.Percentage)
		assert.Equal(t, 2, s1.CompletedSessions)
		assert.Equal(t, 2, s1.PendingSessions) // the essay is filed under S1 by name

		assert.Equal(t, int64(2), s2.SubjectID)
		assert.Equal(t, 0, s2.CompletedTopics)
		assert.Equal(t, 1, s2.ScheduledTopics)
		assert.Equal(t, 1, s2.PendingSessions)
	}
}

func TestBuildPreview_Phases(t *testing.T) {
	subjects := []plan.Subject{subject(1, 1, 1)}
	done := []session.Session{sess(1, "2026-11-02", session.TypeNewTopic, 11, session.StatusCompleted)}
	pending := []session.Session{sess(1, "2026-11-02", session.TypeNewTopic, 11, session.StatusPending)}

	tests := []struct {
		name     string
		exam     string
		sessions []session.Session
		want     Phase
	}{
		{name: "not generated", exam: "2026-12-01", want: PhaseNotGenerated},
		{name: "in progress", exam: "2026-12-01", sessions: pending, want: PhaseInProgress},
		{name: "completed", exam: "2026-12-01", sessions: done, want: PhaseCompleted},
		{name: "exam passed", exam: "2026-11-04", sessions: pending, want: PhaseExamPassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv := BuildPreview(plan.StudyPlan{ExamDate: date(tt.exam)}, subjects, tt.sessions, date("2026-11-04"))
			assert.Equal(t, tt.want, pv.Phase)
		})
	}
}
