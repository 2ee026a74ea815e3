package plan

import (
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// ReviewMode selects the spaced-review intervals injected after each new topic.
type ReviewMode string

const (
	ReviewComplete  ReviewMode = "completo"  // D+7 and D+30
	ReviewIntensive ReviewMode = "intensivo" // D+7, D+14 and D+28
	ReviewLight     ReviewMode = "leve"      // D+7
	ReviewNone      ReviewMode = "nenhum"
)

var ReviewModes = []ReviewMode{ReviewComplete, ReviewIntensive, ReviewLight, ReviewNone}

// Intervals returns the review offsets, in days.
func (m ReviewMode) Intervals() []int {
	switch m {
	case ReviewComplete:
		return []int{7, 30}
	case ReviewIntensive:
		return []int{7, 14, 28}
	case ReviewLight:
		return []int{7}
	default:
		return nil
	}
}

func (m ReviewMode) Valid() bool {
	for _, mode := range ReviewModes {
		if m == mode {
			return true
		}
	}
	return false
}

// ParseReviewMode parses s; an empty string is the default mode.
func ParseReviewMode(s string) (ReviewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ReviewComplete), "complete":
		return ReviewComplete, nil
	case string(ReviewIntensive), "intensive":
		return ReviewIntensive, nil
	case string(ReviewLight), "light", "essencial":
		return ReviewLight, nil
	case string(ReviewNone), "none", "nenhuma":
		return ReviewNone, nil
	}
	return "", errors.Errorf("unknown review mode %q", s)
}

// TopicStatus is the closed set of topic states.
type TopicStatus string

const (
	TopicPending   TopicStatus = "pending"
	TopicCompleted TopicStatus = "completed"
)

func ParseTopicStatus(s string) (TopicStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "pendente":
		return TopicPending, nil
	case "completed", "concluído", "concluido":
		return TopicCompleted, nil
	}
	return "", errors.Errorf("unknown topic status %q", s)
}

func (s *TopicStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return errors.Errorf("cannot scan %T into TopicStatus", src)
	}
	st, err := ParseTopicStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s TopicStatus) Value() (driver.Value, error) {
	if _, err := ParseTopicStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// WeeklyHours maps weekdays (0 = Sunday … 6 = Saturday) to study hours.
// It is encoded as a JSON object keyed by the weekday number.
type WeeklyHours [7]float64

func (wh WeeklyHours) Hours(day time.Weekday) float64 {
	return wh[int(day)%7]
}

func (wh WeeklyHours) Total() float64 {
	var total float64
	for _, h := range wh {
		total += h
	}
	return total
}

// StudyDays returns the number of weekdays with a positive budget.
func (wh WeeklyHours) StudyDays() int {
	var n int
	for _, h := range wh {
		if h > 0 {
			n++
		}
	}
	return n
}

func (wh WeeklyHours) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, 7)
	for i, h := range wh {
		m[strconv.Itoa(i)] = h
	}
	return json.Marshal(m)
}

func (wh *WeeklyHours) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "decoding weekly hours")
	}
	var res WeeklyHours
	for k, h := range m {
		day, err := strconv.Atoi(k)
		if err != nil || day < 0 || day > 6 {
			return errors.Errorf("invalid weekday %q", k)
		}
		res[day] = h
	}
	*wh = res
	return nil
}

func (wh *WeeklyHours) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*wh = WeeklyHours{}
		return nil
	case string:
		return wh.UnmarshalJSON([]byte(v))
	case []byte:
		return wh.UnmarshalJSON(v)
	}
	return errors.Errorf("cannot scan %T into WeeklyHours", src)
}

func (wh WeeklyHours) Value() (driver.Value, error) {
	data, err := wh.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type (
	StudyPlan struct {
		ID                     int64       `db:"id" json:"id"`
		UserID                 int64       `db:"user_id" json:"user_id"`
		Name                   string      `db:"name" json:"name"`
		ExamDate               time.Time   `db:"exam_date" json:"exam_date"`
		StudyHoursPerDay       WeeklyHours `db:"study_hours_per_day" json:"study_hours_per_day"`
		DailyQuestionGoal      int         `db:"daily_question_goal" json:"daily_question_goal"`
		WeeklyQuestionGoal     int         `db:"weekly_question_goal" json:"weekly_question_goal"`
		SessionDurationMinutes int         `db:"session_duration_minutes" json:"session_duration_minutes"`
		ReviewMode             ReviewMode  `db:"review_mode" json:"review_mode"`
		HasEssay               bool        `db:"has_essay" json:"has_essay"`
		RetaFinalMode          bool        `db:"reta_final_mode" json:"reta_final_mode"`
		LastGeneratedAt        null.Time   `db:"last_generated_at" json:"last_generated_at"`
		CreatedAt              time.Time   `db:"created_at" json:"created_at"`
		UpdatedAt              time.Time   `db:"updated_at" json:"updated_at"`
	}

	Subject struct {
		ID             int64     `db:"id" json:"id"`
		PlanID         int64     `db:"study_plan_id" json:"study_plan_id"`
		Name           string    `db:"name" json:"name"`
		PriorityWeight int       `db:"priority_weight" json:"priority_weight"`
		CreatedAt      time.Time `db:"created_at" json:"created_at"`
		Topics         []Topic   `db:"-" json:"topics"`
	}

	Topic struct {
		ID          int64       `db:"id" json:"id"`
		SubjectID   int64       `db:"subject_id" json:"subject_id"`
		Description string      `db:"description" json:"description"`
		Priority    int         `db:"priority" json:"priority"`
		Status      TopicStatus `db:"status" json:"status"`
		CompletedAt null.Time   `db:"completed_at" json:"completed_at"`
		CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	}
)

// PendingTopics returns the subject's pending topics.
func (s Subject) PendingTopics() []Topic {
	pending := make([]Topic, 0, len(s.Topics))
	for _, t := range s.Topics {
		if t.Status != TopicCompleted {
			pending = append(pending, t)
		}
	}
	return pending
}

func (t Topic) IsCompleted() bool { return t.Status == TopicCompleted }

// CountTopics returns the total number of topics of subjects.
func CountTopics(subjects []Subject) int {
	var n int
	for _, s := range subjects {
		n += len(s.Topics)
	}
	return n
}
