package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/trezcool/cronograma/core/plan"
)

// Exclusion is a topic left out of a compressed (reta final) schedule.
type Exclusion struct {
	ID     int64 `db:"id" json:"id"`
	PlanID int64 `db:"study_plan_id" json:"study_plan_id"`
	TopicRef
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type candidate struct {
	subject plan.Subject
	topic   plan.Topic
}

// Compress keeps at most `capacity` pending topics of subjects, favouring the most
// important ones: the best topic of every subject first (when there is room for one per
// subject), then the remaining topics by priority and subject weight.
// It returns the subjects restricted to the kept topics and the dropped topics.
func Compress(subjects []plan.Subject, capacity int) ([]plan.Subject, []Exclusion) {
	var (
		bests []candidate
		rest  []candidate
	)
	for _, s := range subjects {
		topics := sortedPending(s)
		for i, t := range topics {
			if i == 0 {
				bests = append(bests, candidate{s, t})
			} else {
				rest = append(rest, candidate{s, t})
			}
		}
	}

	keep := make(map[int64]bool, capacity)
	if capacity < len(bests) {
		sort.SliceStable(bests, func(i, j int) bool {
			a, b := bests[i], bests[j]
			if a.subject.PriorityWeight != b.subject.PriorityWeight {
				return a.subject.PriorityWeight > b.subject.PriorityWeight
			}
			if a.topic.Priority != b.topic.Priority {
				return a.topic.Priority < b.topic.Priority
			}
			return a.subject.ID < b.subject.ID
		})
		rest = append(append([]candidate(nil), bests[capacity:]...), rest...)
		bests = bests[:capacity]
	}
	for _, c := range bests {
		keep[c.topic.ID] = true
	}

	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i], rest[j]
		if a.topic.Priority != b.topic.Priority {
			return a.topic.Priority < b.topic.Priority
		}
		if a.subject.PriorityWeight != b.subject.PriorityWeight {
			return a.subject.PriorityWeight > b.subject.PriorityWeight
		}
		if a.subject.ID != b.subject.ID {
			return a.subject.ID < b.subject.ID
		}
		return a.topic.ID < b.topic.ID
	})
	var dropped []Exclusion
	for _, c := range rest {
		if len(keep) < capacity {
			keep[c.topic.ID] = true
			continue
		}
		dropped = append(dropped, Exclusion{
			TopicRef: refOf(c.subject, c.topic),
			Reason:   fmt.Sprintf("reta final: priority %d topic left out of the %d topics kept before the exam", c.topic.Priority, capacity),
		})
	}
	sort.SliceStable(dropped, func(i, j int) bool {
		if dropped[i].SubjectID != dropped[j].SubjectID {
			return dropped[i].SubjectID < dropped[j].SubjectID
		}
		if dropped[i].Priority != dropped[j].Priority {
			return dropped[i].Priority < dropped[j].Priority
		}
		return dropped[i].TopicID < dropped[j].TopicID
	})

	kept := make([]plan.Subject, 0, len(subjects))
	for _, s := range subjects {
		topics := make([]plan.Topic, 0, len(s.Topics))
		for _, t := range s.Topics {
			if t.IsCompleted() || keep[t.ID] {
				topics = append(topics, t)
			}
		}
		s.Topics = topics
		kept = append(kept, s)
	}
	return kept, dropped
}
