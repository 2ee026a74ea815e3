package session

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
)

// Type is the closed set of session kinds.
type Type string

const (
	TypeNewTopic Type = "new_topic"
	TypeReview   Type = "review"
	TypeEssay    Type = "essay"
	TypeOther    Type = "other"
)

// Rank orders session types within a day: new topics, reviews, essays, then anything else.
func (t Type) Rank() int {
	switch t {
	case TypeNewTopic:
		return 0
	case TypeReview:
		return 1
	case TypeEssay:
		return 2
	default:
		return 3
	}
}

// ParseType parses canonical and legacy session type names.
func ParseType(s string) (Type, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case string(TypeNewTopic), "novo tópico", "novo topico", "new topic":
		return TypeNewTopic, nil
	case string(TypeReview), "revisão", "revisao":
		return TypeReview, nil
	case string(TypeEssay), "redação", "redacao":
		return TypeEssay, nil
	case string(TypeOther), "outro", "simulado", "simulado completo", "simulado direcionado":
		return TypeOther, nil
	}
	// legacy labels such as "Revisão 7D" or "Revisão 30D"
	if strings.HasPrefix(v, "revisão ") || strings.HasPrefix(v, "revisao ") {
		return TypeReview, nil
	}
	return "", errors.Errorf("unknown session type %q", s)
}

func (t *Type) Scan(src interface{}) error {
	raw, err := scanString(src, "Type")
	if err != nil {
		return err
	}
	typ, err := ParseType(raw)
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

func (t Type) Value() (driver.Value, error) {
	typ, err := ParseType(string(t))
	if err != nil {
		return nil, err
	}
	return string(typ), nil
}

// Status is the closed set of session states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

// ParseStatus parses canonical and legacy status names. Unknown values are rejected.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusPending), "pendente":
		return StatusPending, nil
	case string(StatusCompleted), "concluído", "concluido", "concluída", "concluida":
		return StatusCompleted, nil
	case string(StatusSkipped), "pulado", "pulada", "ignorado":
		return StatusSkipped, nil
	}
	return "", errors.Errorf("unknown session status %q", s)
}

func (st *Status) Scan(src interface{}) error {
	raw, err := scanString(src, "Status")
	if err != nil {
		return err
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*st = status
	return nil
}

func (st Status) Value() (driver.Value, error) {
	status, err := ParseStatus(string(st))
	if err != nil {
		return nil, err
	}
	return string(status), nil
}

func scanString(src interface{}, typ string) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", errors.Errorf("cannot scan %T into %s", src, typ)
}

type (
	Session struct {
		ID                 int64       `db:"id" json:"id"`
		PlanID             int64       `db:"study_plan_id" json:"study_plan_id"`
		UserID             int64       `db:"user_id" json:"user_id"`
		SessionDate        time.Time   `db:"session_date" json:"session_date"`
		Type               Type        `db:"session_type" json:"session_type"`
		TopicID            null.Int64  `db:"topic_id" json:"topic_id"`
		SubjectName        string      `db:"subject_name" json:"subject_name"`
		Description        string      `db:"description" json:"description"`
		Sequence           int         `db:"sequence" json:"sequence"`
		Status             Status      `db:"status" json:"status"`
		TimeStudiedSeconds int64       `db:"time_studied_seconds" json:"time_studied_seconds"`
		QuestionsSolved    int         `db:"questions_solved" json:"questions_solved"`
		Notes              string      `db:"notes" json:"notes"`
		GenerationID       null.String `db:"generation_id" json:"generation_id"`
		CompletedAt        null.Time   `db:"completed_at" json:"completed_at"`
		CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	}

	TimeLog struct {
		ID              int64     `db:"id" json:"id"`
		SessionID       int64     `db:"session_id" json:"session_id"`
		UserID          int64     `db:"user_id" json:"user_id"`
		StartTime       time.Time `db:"start_time" json:"start_time"`
		EndTime         time.Time `db:"end_time" json:"end_time"`
		DurationSeconds int64     `db:"duration_seconds" json:"duration_seconds"`
		CreatedAt       time.Time `db:"created_at" json:"created_at"`
	}

	// Discrepancy is a session whose time logs do not add up to its time studied.
	Discrepancy struct {
		SessionID          int64 `db:"session_id" json:"session_id"`
		TimeStudiedSeconds int64 `db:"time_studied_seconds" json:"time_studied_seconds"`
		LoggedSeconds      int64 `db:"logged_seconds" json:"logged_seconds"`
		Logs               int   `db:"logs" json:"logs"`
	}
)

func (s Session) IsPending() bool   { return s.Status == StatusPending }
func (s Session) IsCompleted() bool { return s.Status == StatusCompleted }

// IsOverdue reports whether s is still pending on a date before today.
func (s Session) IsOverdue(today time.Time) bool {
	return s.IsPending() && core.DateOf(s.SessionDate).Before(today)
}
