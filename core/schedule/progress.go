package schedule

import (
	"sort"
	"time"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/session"
)

// Phase is the lifecycle stage of a plan's schedule.
type Phase string

const (
	PhaseNotGenerated Phase = "not_generated"
	PhaseInProgress   Phase = "in_progress"
	PhaseCompleted    Phase = "completed"
	PhaseExamPassed   Phase = "exam_passed"
)

type (
	Progress struct {
		TotalTopics     int `json:"total_topics"`
		CompletedTopics int `json:"completed_topics"`
		Percentage      int `json:"percentage"`
	}

	SubjectProgress struct {
		SubjectID         int64  `json:"subject_id"`
		SubjectName       string `json:"subject_name"`
		PriorityWeight    int    `json:"priority_weight"`
		TotalTopics       int    `json:"total_topics"`
		CompletedTopics   int    `json:"completed_topics"`
		ScheduledTopics   int    `json:"scheduled_topics"`
		Percentage        int    `json:"percentage"`
		PendingSessions   int    `json:"pending_sessions"`
		CompletedSessions int    `json:"completed_sessions"`
	}

	Preview struct {
		PlanID             int64             `json:"plan_id"`
		ExamDate           time.Time         `json:"exam_date"`
		Today              time.Time         `json:"today"`
		DaysUntilExam      int               `json:"days_until_exam"`
		Phase              Phase             `json:"phase"`
		TotalTopics        int               `json:"total_topics"`
		CompletedTopics    int               `json:"completed_topics"`
		PendingTopics      int               `json:"pending_topics"`
		CurrentProgress    int               `json:"current_progress"`
		ScheduledTopics    int               `json:"scheduled_topics"`
		UnscheduledTopics  int               `json:"unscheduled_topics"`
		CoveragePercentage int               `json:"coverage_percentage"`
		TotalSessions      int               `json:"total_sessions"`
		CompletedSessions  int               `json:"completed_sessions"`
		PendingSessions    int               `json:"pending_sessions"`
		OverdueSessions    int               `json:"overdue_sessions"`
		ReviewSessions     int               `json:"review_sessions"`
		CompletedReviews   int               `json:"completed_reviews"`
		TimeStudiedSeconds int64             `json:"time_studied_seconds"`
		BySubject          []SubjectProgress `json:"by_subject"`
	}
)

// ComputeProgress counts the distinct topics of `topics` with at least one completed
// new-topic session. Several completed sessions of the same topic count once.
func ComputeProgress(topics []plan.Topic, sessions []session.Session) Progress {
	known := make(map[int64]bool, len(topics))
	for _, t := range topics {
		known[t.ID] = true
	}
	done := completedTopics(sessions)
	var completed int
	for id := range done {
		if known[id] {
			completed++
		}
	}
	return Progress{
		TotalTopics:     len(known),
		CompletedTopics: completed,
		Percentage:      core.Percent(completed, len(known)),
	}
}

func completedTopics(sessions []session.Session) map[int64]bool {
	done := make(map[int64]bool)
	for _, s := range sessions {
		if s.Type == session.TypeNewTopic && s.IsCompleted() && s.TopicID.Valid {
			done[s.TopicID.Int64] = true
		}
	}
	return done
}

// ComputeOverdue returns the pending sessions dated strictly before today, oldest first.
// Sessions of today are never overdue.
func ComputeOverdue(sessions []session.Session, today time.Time) []session.Session {
	today = core.DateOf(today)
	overdue := make([]session.Session, 0)
	for _, s := range sessions {
		if s.IsOverdue(today) {
			overdue = append(overdue, s)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		a, b := core.DateOf(overdue[i].SessionDate), core.DateOf(overdue[j].SessionDate)
		if !a.Equal(b) {
			return a.Before(b)
		}
		if overdue[i].Sequence != overdue[j].Sequence {
			return overdue[i].Sequence < overdue[j].Sequence
		}
		return overdue[i].ID < overdue[j].ID
	})
	return overdue
}

// BuildPreview summarizes the schedule of p from one snapshot of its subjects and sessions.
func BuildPreview(p plan.StudyPlan, subjects []plan.Subject, sessions []session.Session, today time.Time) Preview {
	today = core.DateOf(today)
	pv := Preview{
		PlanID:        p.ID,
		ExamDate:      core.DateOf(p.ExamDate),
		Today:         today,
		DaysUntilExam: core.DaysBetween(today, p.ExamDate),
	}
	if pv.DaysUntilExam < 0 {
		pv.DaysUntilExam = 0
	}

	done := completedTopics(sessions)
	scheduled := make(map[int64]bool)
	bySubjectName := make(map[string]*SubjectProgress, len(subjects))
	topicSubject := make(map[int64]*SubjectProgress)
	pv.BySubject = make([]SubjectProgress, len(subjects))

	sorted := append([]plan.Subject(nil), subjects...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i, s := range sorted {
		sp := &pv.BySubject[i]
		*sp = SubjectProgress{SubjectID: s.ID, SubjectName: s.Name, PriorityWeight: s.PriorityWeight, TotalTopics: len(s.Topics)}
		bySubjectName[s.Name] = sp
		for _, t := range s.Topics {
			topicSubject[t.ID] = sp
		}
	}

	for _, s := range sessions {
		pv.TotalSessions++
		pv.TimeStudiedSeconds += s.TimeStudiedSeconds
		switch {
		case s.IsCompleted():
			pv.CompletedSessions++
		case s.IsPending():
			pv.PendingSessions++
			if s.IsOverdue(today) {
				pv.OverdueSessions++
			}
		}
		if s.Type == session.TypeReview {
			pv.ReviewSessions++
			if s.IsCompleted() {
				pv.CompletedReviews++
			}
		}
		if s.Type == session.TypeNewTopic && s.TopicID.Valid && !s.IsCompleted() {
			scheduled[s.TopicID.Int64] = true
		}

		sp := bySubjectName[s.SubjectName]
		if s.TopicID.Valid && topicSubject[s.TopicID.Int64] != nil {
			sp = topicSubject[s.TopicID.Int64]
		}
		if sp != nil {
			if s.IsCompleted() {
				sp.CompletedSessions++
			} else if s.IsPending() {
				sp.PendingSessions++
			}
		}
	}

	for _, t := range topicsOf(sorted) {
		pv.TotalTopics++
		sp := topicSubject[t.ID]
		switch {
		case done[t.ID]:
			pv.CompletedTopics++
			sp.CompletedTopics++
		case scheduled[t.ID]:
			pv.ScheduledTopics++
			sp.ScheduledTopics++
		}
	}
	for i := range pv.BySubject {
		sp := &pv.BySubject[i]
		sp.Percentage = core.Percent(sp.CompletedTopics, sp.TotalTopics)
	}

	pv.PendingTopics = pv.TotalTopics - pv.CompletedTopics
	pv.UnscheduledTopics = pv.PendingTopics - pv.ScheduledTopics
	pv.CurrentProgress = core.Percent(pv.CompletedTopics, pv.TotalTopics)
	pv.CoveragePercentage = core.Percent(pv.CompletedTopics+pv.ScheduledTopics, pv.TotalTopics)
	pv.Phase = phaseOf(p, pv, today)
	return pv
}

func topicsOf(subjects []plan.Subject) []plan.Topic {
	topics := make([]plan.Topic, 0, plan.CountTopics(subjects))
	for _, s := range subjects {
		topics = append(topics, s.Topics...)
	}
	return topics
}

func phaseOf(p plan.StudyPlan, pv Preview, today time.Time) Phase {
	switch {
	case !core.DateOf(p.ExamDate).After(today):
		return PhaseExamPassed
	case pv.TotalTopics > 0 && pv.CompletedTopics == pv.TotalTopics:
		return PhaseCompleted
	case pv.TotalSessions == 0:
		return PhaseNotGenerated
	default:
		return PhaseInProgress
	}
}
